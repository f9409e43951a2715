package filter

import (
	"strings"
)

// DefaultArtifactMarkers are substrings of file names produced as byproducts of
// an earlier conversion, such as the images an Org LaTeX export leaves behind.
var DefaultArtifactMarkers = []string{"ltximg"}

// Set is a Filter composed of predicates; a name is excluded when any predicate
// matches it.
type Set struct {
	policy     Policy
	predicates []Predicate
}

// New creates a filter for the given policy from predicates.
func New(policy Policy, predicates ...Predicate) *Set {
	return &Set{
		policy:     policy,
		predicates: append([]Predicate(nil), predicates...),
	}
}

// Policy returns the policy the filter was built for.
func (s *Set) Policy() Policy {
	return s.policy
}

// With returns a copy of the filter with additional predicates.
func (s *Set) With(predicates ...Predicate) *Set {
	combined := make([]Predicate, 0, len(s.predicates)+len(predicates))
	combined = append(combined, s.predicates...)
	combined = append(combined, predicates...)
	return &Set{policy: s.policy, predicates: combined}
}

// Exclude implements Filter. Excluded names keep their input order.
func (s *Set) Exclude(dir string, names []string) []string {
	var excluded []string
	for _, name := range names {
		if s.Excludes(dir, name) {
			excluded = append(excluded, name)
		}
	}
	return excluded
}

// Excludes reports whether a single name in dir is excluded.
func (s *Set) Excludes(dir, name string) bool {
	for _, p := range s.predicates {
		if p(dir, name) {
			return true
		}
	}
	return false
}

// Func adapts a plain function to the Filter interface.
type Func func(dir string, names []string) []string

// Exclude implements Filter.
func (f Func) Exclude(dir string, names []string) []string {
	return f(dir, names)
}

// Hidden excludes names starting with a dot.
func Hidden() Predicate {
	return func(_, name string) bool {
		return strings.HasPrefix(name, ".")
	}
}

// WithSuffix excludes names ending in any of the suffixes.
func WithSuffix(suffixes SuffixSet) Predicate {
	return func(_, name string) bool {
		return suffixes.Match(name)
	}
}

// WithoutSuffix excludes names that end in none of the suffixes.
func WithoutSuffix(suffixes SuffixSet) Predicate {
	return func(_, name string) bool {
		return !suffixes.Match(name)
	}
}

// Containing excludes names containing any of the markers.
func Containing(markers ...string) Predicate {
	return func(_, name string) bool {
		for _, m := range markers {
			if m != "" && strings.Contains(name, m) {
				return true
			}
		}
		return false
	}
}

// ForExport builds the filter for pushing documents to the device. It excludes
// hidden files, device-native files, generated artifacts, and anything the
// device can neither display directly nor receive through a conversion.
func ForExport(supported, convertible, native SuffixSet, markers []string, extra ...Predicate) *Set {
	allowed := supported.Union(convertible)
	preds := []Predicate{
		Hidden(),
		WithSuffix(native),
		WithoutSuffix(allowed),
		Containing(markers...),
	}
	return New(PolicyExport, append(preds, extra...)...)
}

// ForBackup keeps only the device's native note and annotation files.
func ForBackup(native SuffixSet) *Set {
	return New(PolicyBackup, WithoutSuffix(native))
}

// ForImport keeps only files with the given native note suffix.
func ForImport(suffix string) *Set {
	return New(PolicyImport, WithoutSuffix(NewSuffixSet(suffix)))
}

// Ensure Set and Func implement Filter.
var (
	_ Filter = (*Set)(nil)
	_ Filter = Func(nil)
)
