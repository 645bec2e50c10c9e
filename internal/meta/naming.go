package meta

import (
	"regexp"
	"unicode"
)

var nameRE = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// IsValidName reports whether s is a legal GraphQL name.
func IsValidName(s string) bool { return nameRE.MatchString(s) }

// LowerCamel lower-cases the leading upper-case run of s. A run followed by a
// lower-case letter keeps its last letter, so acronyms stay readable:
//
//	SimpleDirective -> simpleDirective
//	URLCheck        -> urlCheck
//	ID              -> id
func LowerCamel(s string) string {
	r := []rune(s)
	n := 0
	for n < len(r) && unicode.IsUpper(r[n]) {
		n++
	}
	if n == 0 {
		return s
	}
	if n > 1 && n < len(r) && unicode.IsLower(r[n]) {
		n--
	}
	for i := 0; i < n; i++ {
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}
