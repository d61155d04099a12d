package plan

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"atslite/internal/candidates"
)

// ValidatePlan checks a ranking plan before it reaches the ranking engine and
// returns human-readable problems. An empty result means the plan is usable.
func ValidatePlan(p *RankingPlan) []string {
	var errs []string

	if p == nil {
		return []string{"Ranking plan cannot be null or undefined"}
	}
	if p.Primary == nil {
		return []string{"Ranking plan must have a primary ranking criteria"}
	}

	if p.Primary.Field == "" {
		errs = append(errs, "Primary ranking criteria must specify a field")
	} else if _, ok := candidates.LookupField(p.Primary.Field); !ok {
		errs = append(errs, fmt.Sprintf("Unknown ranking field %s", strconv.Quote(p.Primary.Field)))
	}
	if !p.Primary.Direction.Valid() {
		errs = append(errs, `Primary ranking criteria direction must be "asc" or "desc"`)
	}

	for i, tb := range p.TieBreakers {
		if tb.Field == "" {
			errs = append(errs, fmt.Sprintf("Tie-breaker %d must specify a field", i+1))
		} else if _, ok := candidates.LookupField(tb.Field); !ok {
			errs = append(errs, fmt.Sprintf("Unknown ranking field %s", strconv.Quote(tb.Field)))
		}
		if !tb.Direction.Valid() {
			errs = append(errs, fmt.Sprintf(`Tie-breaker %d direction must be "asc" or "desc"`, i+1))
		}
	}

	return errs
}

const plansSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["filter", "rank"],
  "properties": {
    "filter": {
      "type": "object",
      "properties": {
        "include": {"type": ["object", "null"]},
        "exclude": {"type": ["object", "null"]}
      }
    },
    "rank": {
      "type": "object",
      "required": ["primary"],
      "properties": {
        "primary": {"$ref": "#/definitions/criterion"},
        "tie_breakers": {
          "type": ["array", "null"],
          "items": {"$ref": "#/definitions/criterion"}
        }
      }
    }
  },
  "definitions": {
    "criterion": {
      "type": "object",
      "required": ["field", "direction"],
      "properties": {
        "field": {"type": "string", "minLength": 1},
        "direction": {"enum": ["asc", "desc"]}
      }
    }
  }
}`

var compiledPlansSchema = mustCompileSchema(plansSchema)

func mustCompileSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("plan: invalid embedded schema: %v", err))
	}
	return schema
}

// ValidatePlans checks a raw {filter, rank} document: its structure first, then
// the field names it references. An empty result means Decode will succeed.
func ValidatePlans(raw []byte) []string {
	result, err := compiledPlansSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return []string{fmt.Sprintf("Plans must be valid JSON: %v", err)}
	}

	if !result.Valid() {
		var errs []string
		for _, re := range result.Errors() {
			msg := describeSchemaError(re)
			if !slices.Contains(errs, msg) {
				errs = append(errs, msg)
			}
		}
		return errs
	}

	var plans Plans
	if err := json.Unmarshal(raw, &plans); err != nil {
		return []string{fmt.Sprintf("Plans could not be decoded: %v", err)}
	}
	return ValidatePlan(plans.Rank)
}

// Decode validates raw and decodes it. The returned error carries every
// validation problem.
func Decode(raw []byte) (Plans, error) {
	if errs := ValidatePlans(raw); len(errs) > 0 {
		return Plans{}, &ValidationError{Problems: errs}
	}
	var plans Plans
	if err := json.Unmarshal(raw, &plans); err != nil {
		return Plans{}, &ValidationError{Problems: []string{err.Error()}}
	}
	return plans, nil
}

// ValidationError lists the problems found in a plan.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "Plan validation failed: " + strings.Join(e.Problems, ", ")
}

func describeSchemaError(re gojsonschema.ResultError) string {
	field := re.Field()
	property, _ := re.Details()["property"].(string)

	switch re.Type() {
	case "required":
		return describeMissing(field, property)
	case "invalid_type":
		if re.Value() == nil {
			parent, name := splitField(field)
			return describeMissing(parent, name)
		}
		return describeWrongType(field)
	case "enum":
		return describeDirection(field)
	case "string_gte":
		return describeMissing(splitField(field))
	}
	return fmt.Sprintf("%s: %s", field, re.Description())
}

func describeMissing(parent, property string) string {
	path := property
	if parent != "" && parent != "(root)" {
		path = parent + "." + property
	}

	if idx, ok := tieBreakerIndex(parent); ok {
		if property == "direction" {
			return fmt.Sprintf(`Tie-breaker %d direction must be "asc" or "desc"`, idx)
		}
		return fmt.Sprintf("Tie-breaker %d must specify a field", idx)
	}

	switch path {
	case "filter":
		return "Missing filter object"
	case "rank":
		return "Missing rank object"
	case "rank.primary":
		return "Missing rank.primary object"
	case "rank.primary.field":
		return "rank.primary.field must be a non-empty string"
	case "rank.primary.direction":
		return `rank.primary.direction must be "asc" or "desc"`
	}
	return fmt.Sprintf("Missing %s", path)
}

func describeWrongType(field string) string {
	if idx, ok := tieBreakerIndex(field); ok {
		return fmt.Sprintf("Tie-breaker %d must be an object", idx)
	}
	if parent, name := splitField(field); name == "field" || name == "direction" {
		return describeMissing(parent, name)
	}

	switch field {
	case "(root)":
		return "Plans must be an object"
	case "filter":
		return "Filter must be an object"
	case "rank":
		return "Rank must be an object"
	case "rank.primary":
		return "rank.primary must be an object"
	case "rank.tie_breakers":
		return "rank.tie_breakers must be an array if provided"
	}
	return fmt.Sprintf("%s has the wrong type", field)
}

func describeDirection(field string) string {
	parent, _ := splitField(field)
	return describeMissing(parent, "direction")
}

func splitField(field string) (parent, name string) {
	i := strings.LastIndex(field, ".")
	if i < 0 {
		return "(root)", field
	}
	return field[:i], field[i+1:]
}

// tieBreakerIndex reads "rank.tie_breakers.N" as the 1-based index N+1.
func tieBreakerIndex(field string) (int, bool) {
	rest, ok := strings.CutPrefix(field, "rank.tie_breakers.")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n + 1, true
}
