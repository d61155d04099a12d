package candidates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCoversEveryColumn(t *testing.T) {
	for _, name := range Columns {
		f, ok := LookupField(name)
		require.True(t, ok, name)
		assert.Equal(t, name, f.Name)
	}

	_, ok := LookupField("favourite_colour")
	assert.False(t, ok)
}

func TestFieldKinds(t *testing.T) {
	tests := map[string]Kind{
		"id":                  KindID,
		"title":               KindText,
		"skills":              KindMultiValue,
		"tags":                KindMultiValue,
		"years_experience":    KindNumber,
		"desired_salary_usd":  KindNumber,
		"willing_to_relocate": KindBool,
		"open_to_contract":    KindBool,
	}

	for name, kind := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, kind, MustField(name).Kind)
		})
	}
}

func TestFieldValue(t *testing.T) {
	c := Candidate{ID: 9, Title: "Cloud Architect", YearsExperience: Int(11)}

	title := MustField("title").Value(&c)
	assert.Equal(t, ValueString, title.Kind())
	assert.Equal(t, "Cloud Architect", title.Str())

	years := MustField("years_experience").Value(&c)
	assert.Equal(t, ValueNumber, years.Kind())
	assert.Equal(t, 11, years.Num())
	assert.Equal(t, "11", years.String())

	salary := MustField("desired_salary_usd").Value(&c)
	assert.True(t, salary.IsNull())

	id, ok := MustField("id").Number(&c)
	assert.True(t, ok)
	assert.Equal(t, 9, id)
}

func TestResolveDropsUnknownIDs(t *testing.T) {
	idx := NewIndex([]Candidate{{ID: 1}, {ID: 2}, {ID: 3}})
	got := Resolve([]int{3, 99, 1}, idx)
	assert.Equal(t, []int{3, 1}, IDs(got))
}
