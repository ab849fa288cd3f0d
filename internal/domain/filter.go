package domain

import (
	"fmt"
	"regexp"
)

var monthTokenRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// IsMonthToken reports whether s has the canonical YYYY-MM form.
func IsMonthToken(s string) bool {
	return monthTokenRe.MatchString(s)
}

// Filter is an exact-match constraint over document metadata.
// An empty field leaves that key unconstrained.
type Filter struct {
	Commodity string
	Month     string
	Topic     string
}

// NewFilter validates and returns a filter. At least one field must be set and
// Month, when present, must be a month token.
func NewFilter(commodity, month, topic string) (Filter, error) {
	f := Filter{Commodity: commodity, Month: month, Topic: topic}
	if f.IsEmpty() {
		return Filter{}, fmt.Errorf("%w: no field set", ErrInvalidFilter)
	}
	if month != "" && !IsMonthToken(month) {
		return Filter{}, fmt.Errorf("%w: month %q is not YYYY-MM", ErrInvalidFilter, month)
	}
	return f, nil
}

// IsEmpty reports whether the filter constrains nothing.
func (f Filter) IsEmpty() bool {
	return f.Commodity == "" && f.Month == "" && f.Topic == ""
}

// Matches reports whether md satisfies every set field of the filter.
func (f Filter) Matches(md Metadata) bool {
	if f.Commodity != "" && f.Commodity != md.Commodity {
		return false
	}
	if f.Month != "" && f.Month != md.Month {
		return false
	}
	if f.Topic != "" && f.Topic != md.Topic {
		return false
	}
	return true
}

// Terms returns the set fields as metadata key/value pairs in a stable order
// (commodity, month, topic).
func (f Filter) Terms() []Term {
	terms := make([]Term, 0, 3)
	if f.Commodity != "" {
		terms = append(terms, Term{Key: "commodity", Value: f.Commodity})
	}
	if f.Month != "" {
		terms = append(terms, Term{Key: "month", Value: f.Month})
	}
	if f.Topic != "" {
		terms = append(terms, Term{Key: "topic", Value: f.Topic})
	}
	return terms
}

// Term is a single metadata equality constraint.
type Term struct {
	Key   string
	Value string
}
