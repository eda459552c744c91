// Package history maintains the durable set of previously delivered (or
// permanently undeliverable) image URLs used for deduplication.
package history

// Set is an in-memory set of large-variant URLs. It is not safe for
// concurrent use; the pipeline mutates it strictly sequentially.
type Set struct {
	urls map[string]struct{}
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{urls: make(map[string]struct{})}
}

// NewSetFrom creates a Set seeded with the given URLs.
func NewSetFrom(urls []string) *Set {
	s := NewSet()
	for _, u := range urls {
		s.Add(u)
	}
	return s
}

// Add inserts a URL. Adding an existing URL is a no-op.
func (s *Set) Add(url string) {
	s.urls[url] = struct{}{}
}

// Contains reports whether the URL was recorded before.
func (s *Set) Contains(url string) bool {
	_, ok := s.urls[url]
	return ok
}

// Len returns the number of recorded URLs.
func (s *Set) Len() int {
	return len(s.urls)
}

// URLs returns a snapshot of the recorded URLs in unspecified order.
func (s *Set) URLs() []string {
	out := make([]string, 0, len(s.urls))
	for u := range s.urls {
		out = append(out, u)
	}
	return out
}
