package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"atslite/internal/matching"
)

// Single-string fields: a list of terms matches when any term matches.
var TextFields = []string{
	"title", "location", "full_name", "degree_major",
	"education_level", "work_preference", "visa_status",
}

// Multi-value fields: stored as ";"-joined tokens.
var MultiValueFields = []string{"skills", "languages", "citizenships", "tags"}

// Boolean-as-text fields.
var BoolFields = []string{"willing_to_relocate", "open_to_contract"}

// RangeFields lists the numeric fields that accept bounds, in evaluation order.
var RangeFields = []string{
	"years_experience", "desired_salary_usd", "remote_experience_years",
	"availability_weeks", "notice_period_weeks",
}

type bound int

const (
	boundMin bound = iota
	boundMax
)

type rangeKey struct {
	field string
	bound bound
}

// rangeKeys maps plan keys to a field and bound. Availability and notice
// period only take an upper bound. desired_salary_usd_* is accepted as an
// alias of desired_salary_*.
var rangeKeys = map[string]rangeKey{
	"years_experience_min":        {"years_experience", boundMin},
	"years_experience_max":        {"years_experience", boundMax},
	"desired_salary_min":          {"desired_salary_usd", boundMin},
	"desired_salary_max":          {"desired_salary_usd", boundMax},
	"desired_salary_usd_min":      {"desired_salary_usd", boundMin},
	"desired_salary_usd_max":      {"desired_salary_usd", boundMax},
	"remote_experience_years_min": {"remote_experience_years", boundMin},
	"remote_experience_years_max": {"remote_experience_years", boundMax},
	"availability_weeks_max":      {"availability_weeks", boundMax},
	"notice_period_weeks_max":     {"notice_period_weeks", boundMax},
}

// canonical key names used when writing a plan back out
var rangeKeyNames = map[string][2]string{
	"years_experience":        {"years_experience_min", "years_experience_max"},
	"desired_salary_usd":      {"desired_salary_min", "desired_salary_max"},
	"remote_experience_years": {"remote_experience_years_min", "remote_experience_years_max"},
	"availability_weeks":      {"", "availability_weeks_max"},
	"notice_period_weeks":     {"", "notice_period_weeks_max"},
}

// Range is an inclusive numeric bound pair. A nil bound is open.
type Range struct {
	Min *int
	Max *int
}

// Contains reports whether value lies in the range. A missing value never does.
func (r Range) Contains(value int, present bool) bool {
	if !present {
		return false
	}
	if r.Min != nil && value < *r.Min {
		return false
	}
	if r.Max != nil && value > *r.Max {
		return false
	}
	return true
}

// Criteria is one side (include or exclude) of a filter plan. Terms is keyed by
// text or multi-value field name, Ranges by numeric field name and Bools by
// boolean field name. Keys the engine does not know are kept in Unknown.
type Criteria struct {
	Terms   map[string]matching.Terms
	Ranges  map[string]Range
	Bools   map[string]bool
	Unknown []string
}

// NewCriteria returns empty criteria ready for the builder methods.
func NewCriteria() *Criteria {
	return &Criteria{
		Terms:  map[string]matching.Terms{},
		Ranges: map[string]Range{},
		Bools:  map[string]bool{},
	}
}

// IsEmpty reports whether no rule is present.
func (c *Criteria) IsEmpty() bool {
	return c == nil || (len(c.Terms) == 0 && len(c.Ranges) == 0 && len(c.Bools) == 0)
}

// Match adds terms for a text or multi-value field.
func (c *Criteria) Match(field string, raw ...string) *Criteria {
	c.Terms[field] = matching.ParseTerms(raw...)
	return c
}

// Between sets the bounds for a numeric field.
func (c *Criteria) Between(field string, min, max *int) *Criteria {
	c.Ranges[field] = Range{Min: min, Max: max}
	return c
}

// Flag requires a boolean field to equal v.
func (c *Criteria) Flag(field string, v bool) *Criteria {
	c.Bools[field] = v
	return c
}

// UnmarshalJSON decodes the flat key/value object used on the wire.
func (c *Criteria) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("criteria must be an object: %w", err)
	}

	*c = *NewCriteria()
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		value := raw[key]
		if isNull(value) {
			continue
		}

		switch {
		case slices.Contains(TextFields, key) || slices.Contains(MultiValueFields, key):
			var terms matching.Terms
			if err := json.Unmarshal(value, &terms); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			if len(terms) > 0 {
				c.Terms[key] = terms
			}

		case slices.Contains(BoolFields, key):
			b, err := decodeBool(value)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			c.Bools[key] = b

		default:
			rk, ok := rangeKeys[key]
			if !ok {
				c.Unknown = append(c.Unknown, key)
				continue
			}
			n, err := decodeBound(value, rk.bound)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			r := c.Ranges[rk.field]
			if rk.bound == boundMin {
				r.Min = &n
			} else {
				r.Max = &n
			}
			c.Ranges[rk.field] = r
		}
	}
	return nil
}

// MarshalJSON writes the flat key/value object used on the wire.
func (c *Criteria) MarshalJSON() ([]byte, error) {
	out := make(map[string]any)
	if c == nil {
		return json.Marshal(out)
	}
	for field, terms := range c.Terms {
		out[field] = terms
	}
	for field, r := range c.Ranges {
		names := rangeKeyNames[field]
		if r.Min != nil && names[0] != "" {
			out[names[0]] = *r.Min
		}
		if r.Max != nil {
			out[names[1]] = *r.Max
		}
	}
	for field, b := range c.Bools {
		out[field] = b
	}
	return json.Marshal(out)
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// decodeBound accepts a JSON number or a numeric string. Candidate values are
// integers, so a fractional min rounds up and a fractional max rounds down;
// the inclusive range keeps the same members.
func decodeBound(v json.RawMessage, b bound) (int, error) {
	f, err := decodeNumber(v)
	if err != nil {
		return 0, err
	}
	if b == boundMin {
		f = math.Ceil(f)
	} else {
		f = math.Floor(f)
	}
	return int(max(min(f, math.MaxInt32), math.MinInt32)), nil
}

func decodeNumber(v json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, fmt.Errorf("expected a number")
		}
		cleaned := strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(s))
		if f, err = strconv.ParseFloat(cleaned, 64); err != nil {
			return 0, fmt.Errorf("expected a number, got %s", strconv.Quote(s))
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return f, nil
}

// decodeBool accepts a JSON boolean or a boolean-as-text string.
func decodeBool(v json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return false, fmt.Errorf("expected a boolean")
	}
	return matching.ParseBool(s), nil
}
