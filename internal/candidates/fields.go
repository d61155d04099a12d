package candidates

import (
	"slices"
	"strconv"
)

// Kind classifies how a field is read and compared.
type Kind int

const (
	KindText Kind = iota
	KindMultiValue
	KindNumber
	KindBool
	KindID
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindMultiValue:
		return "multi_value"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindID:
		return "id"
	default:
		return "unknown"
	}
}

// ValueKind is the dynamic type of a Value.
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueString
	ValueNumber
)

// Value is a field value read through the registry: a string, an integer or null.
type Value struct {
	kind ValueKind
	str  string
	num  int
}

func NullValue() Value           { return Value{kind: ValueNull} }
func StringValue(s string) Value { return Value{kind: ValueString, str: s} }
func NumberValue(n int) Value    { return Value{kind: ValueNumber, num: n} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == ValueNull }

// Str returns the string payload. Only meaningful for ValueString.
func (v Value) Str() string { return v.str }

// Num returns the integer payload. Only meaningful for ValueNumber.
func (v Value) Num() int { return v.num }

// String renders the value as text; null renders empty.
func (v Value) String() string {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueNumber:
		return strconv.Itoa(v.num)
	default:
		return ""
	}
}

// Field is a registry entry: a column name, its kind and typed accessors.
type Field struct {
	Name string
	Kind Kind

	text   func(*Candidate) string
	number func(*Candidate) *int
	set    func(*Candidate, string)
}

// Value reads the field from c.
func (f Field) Value(c *Candidate) Value {
	switch f.Kind {
	case KindNumber:
		if p := f.number(c); p != nil {
			return NumberValue(*p)
		}
		return NullValue()
	case KindID:
		return NumberValue(c.ID)
	default:
		return StringValue(f.text(c))
	}
}

// Text returns the raw text of a text, multi-value or bool field.
func (f Field) Text(c *Candidate) string {
	if f.text == nil {
		return f.Value(c).String()
	}
	return f.text(c)
}

// Number returns the numeric value and whether it is present.
func (f Field) Number(c *Candidate) (int, bool) {
	switch f.Kind {
	case KindID:
		return c.ID, true
	case KindNumber:
		if p := f.number(c); p != nil {
			return *p, true
		}
	}
	return 0, false
}

func textField(name string, kind Kind, get func(*Candidate) *string) Field {
	return Field{
		Name: name,
		Kind: kind,
		text: func(c *Candidate) string { return *get(c) },
		set:  func(c *Candidate, raw string) { *get(c) = raw },
	}
}

func numberField(name string, get func(*Candidate) **int) Field {
	return Field{
		Name:   name,
		Kind:   KindNumber,
		number: func(c *Candidate) *int { return *get(c) },
		set:    func(c *Candidate, raw string) { *get(c) = ParseNumeric(raw) },
	}
}

// fillNumbers sets every numeric field the row did not provide to 0.
func fillNumbers(c *Candidate) {
	for _, name := range Columns {
		f := registry[name]
		if f.Kind == KindNumber && f.number(c) == nil {
			f.set(c, "")
		}
	}
}

// Columns lists the CSV columns in their canonical order.
var Columns = []string{
	"id", "full_name", "title", "location", "timezone", "years_experience",
	"skills", "languages", "education_level", "degree_major",
	"availability_weeks", "willing_to_relocate", "work_preference",
	"notice_period_weeks", "desired_salary_usd", "open_to_contract",
	"remote_experience_years", "visa_status", "citizenships", "summary",
	"tags", "last_active", "linkedin_url",
}

var registry = buildRegistry()

func buildRegistry() map[string]Field {
	fields := []Field{
		{
			Name: "id",
			Kind: KindID,
			set: func(c *Candidate, raw string) {
				c.ID = IntValue(ParseNumeric(raw))
			},
		},
		textField("full_name", KindText, func(c *Candidate) *string { return &c.FullName }),
		textField("title", KindText, func(c *Candidate) *string { return &c.Title }),
		textField("location", KindText, func(c *Candidate) *string { return &c.Location }),
		textField("timezone", KindText, func(c *Candidate) *string { return &c.Timezone }),
		numberField("years_experience", func(c *Candidate) **int { return &c.YearsExperience }),
		textField("skills", KindMultiValue, func(c *Candidate) *string { return &c.Skills }),
		textField("languages", KindMultiValue, func(c *Candidate) *string { return &c.Languages }),
		textField("education_level", KindText, func(c *Candidate) *string { return &c.EducationLevel }),
		textField("degree_major", KindText, func(c *Candidate) *string { return &c.DegreeMajor }),
		numberField("availability_weeks", func(c *Candidate) **int { return &c.AvailabilityWeeks }),
		textField("willing_to_relocate", KindBool, func(c *Candidate) *string { return &c.WillingToRelocate }),
		textField("work_preference", KindText, func(c *Candidate) *string { return &c.WorkPreference }),
		numberField("notice_period_weeks", func(c *Candidate) **int { return &c.NoticePeriodWeeks }),
		numberField("desired_salary_usd", func(c *Candidate) **int { return &c.DesiredSalaryUSD }),
		textField("open_to_contract", KindBool, func(c *Candidate) *string { return &c.OpenToContract }),
		numberField("remote_experience_years", func(c *Candidate) **int { return &c.RemoteExperienceYears }),
		textField("visa_status", KindText, func(c *Candidate) *string { return &c.VisaStatus }),
		textField("citizenships", KindMultiValue, func(c *Candidate) *string { return &c.Citizenships }),
		textField("summary", KindText, func(c *Candidate) *string { return &c.Summary }),
		textField("tags", KindMultiValue, func(c *Candidate) *string { return &c.Tags }),
		textField("last_active", KindText, func(c *Candidate) *string { return &c.LastActive }),
		textField("linkedin_url", KindText, func(c *Candidate) *string { return &c.LinkedInURL }),
	}

	reg := make(map[string]Field, len(fields))
	for _, f := range fields {
		reg[f.Name] = f
	}
	return reg
}

// LookupField resolves a column name to its registry entry.
func LookupField(name string) (Field, bool) {
	f, ok := registry[name]
	return f, ok
}

// MustField is LookupField for names known at compile time.
func MustField(name string) Field {
	f, ok := registry[name]
	if !ok {
		panic("candidates: unknown field " + strconv.Quote(name))
	}
	return f
}

// FieldNames returns every registered field name in column order.
func FieldNames() []string {
	return slices.Clone(Columns)
}
