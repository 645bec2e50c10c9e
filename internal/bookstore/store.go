package bookstore

import (
	"strconv"
	"sync"

	graphql "github.com/graph-gophers/graphql-go"
)

// Book is a stored book. Fields resolve directly by name.
type Book struct {
	ID     graphql.ID
	Title  string
	Author string
	Year   *int32
	Tags   []string
	ISBN   *string
	Source string
}

// Store keeps books in memory.
type Store struct {
	mu    sync.RWMutex
	seq   int
	books []*Book
}

func NewStore() *Store { return &Store{} }

// Add stores b under a new id and returns the stored copy.
func (s *Store) Add(b Book) *Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	b.ID = graphql.ID(strconv.Itoa(s.seq))
	b.Tags = append([]string{}, b.Tags...)
	s.books = append(s.books, &b)
	return &b
}

func (s *Store) Get(id graphql.ID) *Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.books {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// Find returns the books matching f in insertion order.
func (s *Store) Find(f *BookFilter) []*Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*Book{}
	for _, b := range s.books {
		if f.matches(b) {
			out = append(out, b)
		}
	}
	return out
}

func (f *BookFilter) matches(b *Book) bool {
	if f == nil {
		return true
	}
	if f.Author != nil && *f.Author != b.Author {
		return false
	}
	if f.Tag != nil && !hasTag(b.Tags, *f.Tag) {
		return false
	}
	return f.Published.contains(b.Year)
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
