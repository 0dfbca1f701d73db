package routing

import (
	"github.com/avolkhin/image-moderation/pkg/types/errs"
)

// Predicate constrains a single attribute. A predicate against a missing
// attribute evaluates false unless it is an absence check.
type Predicate struct {
	Attribute string
	// Exists requires the attribute to be present with any value.
	Exists bool
	// Absent requires the attribute to be missing entirely.
	Absent bool
	// AnyOf, when non-empty, requires the value to equal one of the listed
	// strings (implies presence).
	AnyOf []string
}

// Exists builds a presence predicate.
func Exists(attribute string) Predicate {
	return Predicate{Attribute: attribute, Exists: true}
}

// Absent builds an absence predicate.
func Absent(attribute string) Predicate {
	return Predicate{Attribute: attribute, Absent: true}
}

// AnyOf builds an equals-one-of predicate.
func AnyOf(attribute string, values ...string) Predicate {
	return Predicate{Attribute: attribute, AnyOf: values}
}

func (p Predicate) matches(attrs map[string]string) bool {
	value, ok := attrs[p.Attribute]

	if p.Absent {
		return !ok
	}
	if !ok {
		return false
	}
	if len(p.AnyOf) == 0 {
		return true
	}

	for _, candidate := range p.AnyOf {
		if value == candidate {
			return true
		}
	}

	return false
}

// Filter is a conjunction of per-attribute predicates.
type Filter struct {
	Predicates []Predicate
}

func NewFilter(predicates ...Predicate) Filter {
	return Filter{Predicates: predicates}
}

// Validate rejects malformed filters at subscription-setup time, never at
// publish time.
func (f Filter) Validate() error {
	seen := make(map[string]Predicate, len(f.Predicates))

	for _, p := range f.Predicates {
		if p.Attribute == "" {
			return errs.NewConfiguration("filter predicate with empty attribute name")
		}
		if p.Absent && (p.Exists || len(p.AnyOf) > 0) {
			return errs.NewConfiguration("filter predicate on %q is both absent and present", p.Attribute)
		}
		if !p.Absent && !p.Exists && len(p.AnyOf) == 0 {
			return errs.NewConfiguration("filter predicate on %q constrains nothing", p.Attribute)
		}

		if prev, ok := seen[p.Attribute]; ok && prev.Absent != p.Absent {
			return errs.NewConfiguration("filter has contradictory predicates on %q", p.Attribute)
		}
		seen[p.Attribute] = p
	}

	return nil
}

// Matches evaluates the conjunction against an attribute mapping. An empty
// filter matches everything.
func (f Filter) Matches(attrs map[string]string) bool {
	for _, p := range f.Predicates {
		if !p.matches(attrs) {
			return false
		}
	}

	return true
}
