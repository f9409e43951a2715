// Package filter decides which files of a directory take part in a sync.
//
// A filter is a named policy built from small predicates. Each predicate looks
// at one child name of a directory and reports whether it should be excluded.
// Only file names are filtered; directories are always descended into.
package filter

import (
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Filter classifies the immediate file names of a directory.
type Filter interface {
	// Exclude returns the subset of names that must not be synced.
	// It has no side effects.
	Exclude(dir string, names []string) []string
}

// Predicate reports whether the file name in dir should be excluded.
type Predicate func(dir, name string) bool

// Policy tags a filter with the traversal it was built for.
type Policy int

const (
	// PolicyExport pushes local documents to the device.
	PolicyExport Policy = iota
	// PolicyBackup copies native note and annotation files off the device.
	PolicyBackup
	// PolicyImport converts native notes on the device into documents.
	PolicyImport
	// PolicyCustom is any hand-assembled predicate set.
	PolicyCustom
)

const (
	policyExport = "export"
	policyBackup = "backup"
	policyImport = "import"
	policyCustom = "custom"
)

// String returns the string representation of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyExport:
		return policyExport
	case PolicyBackup:
		return policyBackup
	case PolicyImport:
		return policyImport
	default:
		return policyCustom
	}
}

// SuffixSet is a set of file name suffixes such as ".pdf" or ".tar.gz".
// Matching is case-sensitive, as on the device.
type SuffixSet struct {
	set mapset.Set[string]
}

// NewSuffixSet builds a set from the given suffixes.
func NewSuffixSet(suffixes ...string) SuffixSet {
	return SuffixSet{set: mapset.NewThreadUnsafeSet(suffixes...)}
}

// Match reports whether name ends in any suffix of the set.
func (s SuffixSet) Match(name string) bool {
	if s.set == nil {
		return false
	}
	found := false
	s.set.Each(func(suffix string) bool {
		if strings.HasSuffix(name, suffix) {
			found = true
			return true
		}
		return false
	})
	return found
}

// Union returns a new set holding the suffixes of both sets.
func (s SuffixSet) Union(other SuffixSet) SuffixSet {
	switch {
	case s.set == nil && other.set == nil:
		return NewSuffixSet()
	case s.set == nil:
		return SuffixSet{set: other.set.Clone()}
	case other.set == nil:
		return SuffixSet{set: s.set.Clone()}
	}
	return SuffixSet{set: s.set.Union(other.set)}
}

// Len returns the number of suffixes in the set.
func (s SuffixSet) Len() int {
	if s.set == nil {
		return 0
	}
	return s.set.Cardinality()
}

// Slice returns the suffixes in sorted order.
func (s SuffixSet) Slice() []string {
	if s.set == nil {
		return []string{}
	}
	out := s.set.ToSlice()
	slices.Sort(out)
	return out
}
