package candidates

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "atslite/internal/errors"
)

const sampleCSV = `id,full_name,title,location,years_experience,skills,desired_salary_usd,willing_to_relocate,availability_weeks,extra
12,Quinn Williams,Senior Backend Engineer,Cyprus,19,Spring;Kubernetes;JavaScript;TypeScript;React,"$120,000",Yes,2,ignored
5,Jess Garcia,Frontend Engineer,"Berlin, Germany",8,FastAPI;Ruby;GCP;Spring;Node.js;GraphQL;Angular;React,95000,No,,x

7,Ari Chen,Data Engineer,USA,n/a,Python,,no,4,
`

func TestParseCandidates(t *testing.T) {
	cands, headers, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, cands, 3)
	assert.Equal(t, "extra", headers[len(headers)-1])

	quinn := cands[0]
	assert.Equal(t, 12, quinn.ID)
	assert.Equal(t, "Quinn Williams", quinn.FullName)
	assert.Equal(t, 19, IntValue(quinn.YearsExperience))
	assert.Equal(t, 120000, IntValue(quinn.DesiredSalaryUSD))
	assert.Equal(t, "Yes", quinn.WillingToRelocate)

	jess := cands[1]
	assert.Equal(t, "Berlin, Germany", jess.Location)
	require.NotNil(t, jess.AvailabilityWeeks)
	assert.Equal(t, 0, *jess.AvailabilityWeeks, "empty numeric cell reads as zero")

	ari := cands[2]
	require.NotNil(t, ari.YearsExperience)
	assert.Equal(t, 0, *ari.YearsExperience, "unparseable numeric cell reads as zero")
	require.NotNil(t, ari.DesiredSalaryUSD)
	assert.Equal(t, 0, *ari.DesiredSalaryUSD)

	for _, c := range cands {
		require.NotNil(t, c.NoticePeriodWeeks, "column absent from the header reads as zero")
		assert.Equal(t, 0, *c.NoticePeriodWeeks)
		require.NotNil(t, c.RemoteExperienceYears)
	}
}

func TestParseShortRowFillsNumbers(t *testing.T) {
	cands, _, err := Parse(strings.NewReader("id,full_name,years_experience\n1,A\n2,B,3\n"))
	require.NoError(t, err)
	require.Len(t, cands, 2)

	require.NotNil(t, cands[0].YearsExperience)
	assert.Equal(t, 0, *cands[0].YearsExperience)
	assert.Equal(t, 3, IntValue(cands[1].YearsExperience))
}

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		raw  string
		want *int
	}{
		{"42", Int(42)},
		{" 42 ", Int(42)},
		{"$1,500", Int(1500)},
		{"3.5", Int(3)},
		{"-2", Int(-2)},
		{"abc", Int(0)},
		{"", Int(0)},
		{"   ", Int(0)},
		{"$", Int(0)},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseNumeric(tt.raw))
		})
	}
}

func TestParseRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		code string
	}{
		{name: "empty input", csv: "", code: apperrors.ErrCodeEmptyDataset},
		{name: "missing id column", csv: "full_name,title\nA,B\n", code: apperrors.ErrCodeInvalidFormat},
		{name: "duplicate id", csv: "id,full_name\n1,A\n1,B\n", code: apperrors.ErrCodeDuplicateID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(strings.NewReader(tt.csv))
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
		})
	}
}

func TestParseHandlesByteOrderMark(t *testing.T) {
	cands, headers, err := Parse(strings.NewReader("\ufeffid,full_name\n3,Kim\n"))
	require.NoError(t, err)
	assert.Equal(t, "id", headers[0])
	require.Len(t, cands, 1)
	assert.Equal(t, 3, cands[0].ID)
}

func TestLoadFile(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, _, err := LoadFile(filepath.Join(t.TempDir(), "nope.csv"))
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeIO))
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "candidates.csv")
		require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

		cands, _, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []int{12, 5, 7}, IDs(cands))
	})
}
