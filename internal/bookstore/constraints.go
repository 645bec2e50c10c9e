package bookstore

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hanpama/structgraph/internal/schema"
)

// rule is what the @trimmed and @length directives on one input field ask
// for.
type rule struct {
	trim     bool
	min, max int64
}

// constraints maps input field names to the rules applied on them.
type constraints map[string]rule

// constraintsOf reads the directives applied on the fields of an input
// type. Unknown directives are ignored.
func constraintsOf(t *schema.Type) constraints {
	c := constraints{}
	if t == nil {
		return c
	}
	for _, f := range t.InputFields {
		var r rule
		for _, d := range f.Directives {
			switch d.Name {
			case "trimmed":
				r.trim = true
			case "length":
				r.min = intArg(d, "min")
				r.max = intArg(d, "max")
			}
		}
		if r != (rule{}) {
			c[f.Name] = r
		}
	}
	return c
}

func intArg(d *schema.AppliedDirective, name string) int64 {
	v, _ := d.Arg(name)
	n, _ := v.(int64)
	return n
}

// text applies the rule for field to s.
func (c constraints) text(field, s string) (string, error) {
	r := c[field]
	if r.trim {
		s = strings.TrimSpace(s)
	}
	if err := r.check(field, utf8.RuneCountInString(s), "characters"); err != nil {
		return "", err
	}
	return s, nil
}

// list checks the bounds for field against a list of n items.
func (c constraints) list(field string, n int) error {
	return c[field].check(field, n, "items")
}

func (r rule) check(field string, n int, unit string) error {
	if r.min > 0 && int64(n) < r.min {
		return fmt.Errorf("%s must have at least %d %s", field, r.min, unit)
	}
	if r.max > 0 && int64(n) > r.max {
		return fmt.Errorf("%s must have at most %d %s", field, r.max, unit)
	}
	return nil
}
