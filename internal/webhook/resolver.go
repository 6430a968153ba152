package webhook

import (
	"net/url"
	"strings"
)

// SegmentPair names two interchangeable path fragments. Both directions are tried.
type SegmentPair struct {
	A string
	B string
}

// Resolver derives fallback endpoint variants from one configured webhook URL.
type Resolver struct {
	// Segments are swapped wherever they appear inside the path (first occurrence).
	Segments []SegmentPair
	// Suffixes are swapped only when the path ends with them.
	Suffixes []SegmentPair
}

// DefaultResolver covers the test/production webhook prefix and the two
// resource names the screening workflow has been published under.
var DefaultResolver = Resolver{
	Segments: []SegmentPair{{A: "/webhook-test/", B: "/webhook/"}},
	Suffixes: []SegmentPair{{A: "/candidate-screening", B: "/resume-screening"}},
}

// Resolve is DefaultResolver.Resolve.
func Resolve(primary string) []string {
	return DefaultResolver.Resolve(primary)
}

// Resolve returns the ordered candidate URLs for primary. The primary URL is
// always first and no URL appears twice. A primary that is not an absolute
// URL is returned unchanged as the only candidate.
func (r Resolver) Resolve(primary string) []string {
	out := newOrderedSet()

	base, err := url.Parse(primary)
	if err != nil || base.Scheme == "" || base.Host == "" {
		out.add(primary)
		return out.items
	}

	paths := newOrderedSet()
	paths.add(strings.TrimRight(base.Path, "/"))

	for _, pair := range r.Segments {
		for _, p := range paths.snapshot() {
			if strings.Contains(p, pair.A) {
				paths.add(strings.Replace(p, pair.A, pair.B, 1))
			}
			if strings.Contains(p, pair.B) {
				paths.add(strings.Replace(p, pair.B, pair.A, 1))
			}
		}
	}
	for _, pair := range r.Suffixes {
		for _, p := range paths.snapshot() {
			if strings.HasSuffix(p, pair.A) {
				paths.add(strings.TrimSuffix(p, pair.A) + pair.B)
			}
			if strings.HasSuffix(p, pair.B) {
				paths.add(strings.TrimSuffix(p, pair.B) + pair.A)
			}
		}
	}

	out.add(primary)
	for _, p := range paths.items {
		v := *base
		v.Path = p
		v.RawPath = ""
		out.add(v.String())
	}
	return out.items
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *orderedSet) snapshot() []string {
	return append([]string(nil), s.items...)
}
