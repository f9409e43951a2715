package convert

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrOverlappingSuffix is returned when a rule's source suffix is a suffix
	// of, or ends with, the source suffix of a rule already registered.
	ErrOverlappingSuffix = errors.New("overlapping source suffix")

	// ErrInvalidRule is returned for a rule with an empty suffix or no converter.
	ErrInvalidRule = errors.New("invalid conversion rule")
)

// Rule maps files ending in SourceSuffix to a file ending in DestSuffix
// produced by Converter.
type Rule struct {
	SourceSuffix string
	DestSuffix   string
	Converter    Converter
}

// String returns the rule as "<source> -> <dest>".
func (r Rule) String() string {
	return r.SourceSuffix + " -> " + r.DestSuffix
}

func (r Rule) validate() error {
	switch {
	case r.SourceSuffix == "":
		return fmt.Errorf("%w: empty source suffix", ErrInvalidRule)
	case r.DestSuffix == "":
		return fmt.Errorf("%w: empty destination suffix for %s", ErrInvalidRule, r.SourceSuffix)
	case r.Converter == nil:
		return fmt.Errorf("%w: no converter for %s", ErrInvalidRule, r.SourceSuffix)
	}
	return nil
}

// Registry is an ordered set of conversion rules.
type Registry struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewRegistry creates a registry holding rules in order.
func NewRegistry(rules ...Rule) (*Registry, error) {
	r := &Registry{}
	for _, rule := range rules {
		if err := r.Register(rule); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends rule. Source suffixes must not overlap: a new suffix may be
// neither a suffix of an existing one nor end with one.
func (r *Registry) Register(rule Rule) error {
	if err := rule.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.rules {
		if strings.HasSuffix(rule.SourceSuffix, existing.SourceSuffix) ||
			strings.HasSuffix(existing.SourceSuffix, rule.SourceSuffix) {
			return fmt.Errorf("%w: %q conflicts with %q", ErrOverlappingSuffix, rule.SourceSuffix, existing.SourceSuffix)
		}
	}
	r.rules = append(r.rules, rule)
	return nil
}

// Lookup returns the rule whose source suffix ends path. Rules are checked in
// registration order and the first match wins; since Register rejects
// overlapping suffixes at most one rule can match.
func (r *Registry) Lookup(path string) (Rule, bool) {
	if r == nil {
		return Rule{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rule := range r.rules {
		if strings.HasSuffix(path, rule.SourceSuffix) {
			return rule, true
		}
	}
	return Rule{}, false
}

// SourceSuffixes returns the source suffixes in registration order.
func (r *Registry) SourceSuffixes() []string {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	suffixes := make([]string, len(r.rules))
	for i, rule := range r.rules {
		suffixes[i] = rule.SourceSuffix
	}
	return suffixes
}

// Rules returns a copy of the registered rules.
func (r *Registry) Rules() []Rule {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Rule(nil), r.rules...)
}
