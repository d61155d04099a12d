package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atslite/internal/ai"
	"atslite/internal/candidates"
	"atslite/internal/config"
	"atslite/internal/errors"
	"atslite/internal/plan"
	"atslite/internal/types"
)

type stubPlanner struct {
	plans plan.Plans
	err   error
	calls int
}

func (p *stubPlanner) Think(_ context.Context, query string, headers []string) (plan.Plans, error) {
	p.calls++
	if p.err != nil {
		return plan.Plans{}, p.err
	}
	if _, err := plan.ValidateQuery(query, headers); err != nil {
		return plan.Plans{}, err
	}
	return p.plans, nil
}

func reactPlanner() *stubPlanner {
	return &stubPlanner{plans: plan.Plans{
		Filter: &plan.FilterPlan{Include: plan.NewCriteria().Match("skills", "React")},
		Rank:   plan.By("years_experience", plan.Desc),
	}}
}

func testDataset() *candidates.Dataset {
	cands := []candidates.Candidate{
		{ID: 1, FullName: "Ana Petrou", Title: "Senior React Engineer", Location: "Limassol, Cyprus", YearsExperience: candidates.Int(8), Skills: "React;TypeScript", DesiredSalaryUSD: candidates.Int(90000)},
		{ID: 2, FullName: "Luca Bianchi", Title: "Frontend Developer", Location: "Milan, Italy", YearsExperience: candidates.Int(5), Skills: "React;Vue", DesiredSalaryUSD: candidates.Int(70000)},
		{ID: 3, FullName: "Sam Okafor", Title: "Backend Engineer", Location: "Lagos, Nigeria", YearsExperience: candidates.Int(10), Skills: "Go", DesiredSalaryUSD: candidates.Int(80000)},
	}
	return candidates.NewDataset(cands, []string{"id", "full_name", "title", "location", "years_experience", "skills", "desired_salary_usd"}, "test.csv", time.Now())
}

func testLogger() *errors.Logger {
	return errors.NewWithWriter(io.Discard, slog.LevelError)
}

func TestBuildQueryResult(t *testing.T) {
	speaker := ai.NewSpeaker(nil, "", testLogger())

	t.Run("matches", func(t *testing.T) {
		result, err := buildQueryResult(context.Background(), reactPlanner(), speaker, testDataset(), "react developers", 1)
		require.NoError(t, err)

		assert.Equal(t, "react developers", result.Query)
		assert.Equal(t, 3, result.TotalCount)
		assert.Equal(t, 2, result.MatchedCount)
		assert.Equal(t, []int{1, 2}, result.RankedIDs)
		require.Len(t, result.Top, 1)
		assert.Equal(t, "Ana Petrou", result.Top[0].FullName)
		require.NotNil(t, result.Stats)
		assert.Equal(t, 2, result.Stats.Count)
		assert.Contains(t, result.Summary, "I found 2 matches")
	})

	t.Run("no matches", func(t *testing.T) {
		planner := &stubPlanner{plans: plan.Plans{
			Filter: &plan.FilterPlan{Include: plan.NewCriteria().Match("skills", "Haskell")},
			Rank:   plan.By("years_experience", plan.Desc),
		}}
		result, err := buildQueryResult(context.Background(), planner, speaker, testDataset(), "haskell", 10)
		require.NoError(t, err)
		assert.Equal(t, 0, result.MatchedCount)
		assert.Equal(t, []int{}, result.RankedIDs)
		assert.Nil(t, result.Stats)
		assert.Equal(t, ai.NoMatchSummary, result.Summary)
	})

	t.Run("empty dataset", func(t *testing.T) {
		_, err := buildQueryResult(context.Background(), reactPlanner(), speaker, candidates.NewDataset(nil, nil, "empty.csv", time.Now()), "react", 10)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeEmptyDataset))
	})

	t.Run("planner error", func(t *testing.T) {
		planner := &stubPlanner{err: errors.NewValidationError(errors.ErrCodeInvalidQuery, "Query cannot be empty", nil)}
		_, err := buildQueryResult(context.Background(), planner, speaker, testDataset(), "  ", 10)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidQuery))
	})
}

func TestBuildExportReport(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		req       exportRequest
		wantIDs   []int
		wantCount int
		wantCode  string
		thinks    bool
	}{
		{
			name:      "query",
			req:       exportRequest{Query: "react developers"},
			wantIDs:   []int{1, 2},
			wantCount: 2,
			thinks:    true,
		},
		{
			name:      "query with limit keeps full stats",
			req:       exportRequest{Query: "react developers", Limit: 1},
			wantIDs:   []int{1},
			wantCount: 2,
			thinks:    true,
		},
		{
			name:      "plan file",
			req:       exportRequest{RawPlan: []byte(`{"filter": {"exclude": {"skills": "React"}}, "rank": {"primary": {"field": "full_name", "direction": "asc"}}}`)},
			wantIDs:   []int{3},
			wantCount: 1,
		},
		{
			name:      "preset only",
			req:       exportRequest{Preset: "BY_SALARY_ASC"},
			wantIDs:   []int{2, 3, 1},
			wantCount: 3,
		},
		{
			name:      "preset overrides planned ranking",
			req:       exportRequest{Query: "react developers", Preset: "BY_SALARY_ASC"},
			wantIDs:   []int{2, 1},
			wantCount: 2,
			thinks:    true,
		},
		{
			name:     "invalid plan",
			req:      exportRequest{RawPlan: []byte(`{"filter": {}}`)},
			wantCode: errors.ErrCodeInvalidPlan,
		},
		{
			name:     "unknown preset",
			req:      exportRequest{Preset: "BY_VIBES"},
			wantCode: errors.ErrCodeInvalidPlan,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planner := reactPlanner()
			report, err := buildExportReport(ctx, planner, testDataset(), tt.req)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.wantIDs, candidates.IDs(report.Ranked))
			assert.Equal(t, tt.wantCount, report.Stats.Count)
			assert.False(t, report.GeneratedAt.IsZero())
			if tt.thinks {
				assert.Equal(t, 1, planner.calls)
			} else {
				assert.Zero(t, planner.calls)
			}
		})
	}
}

func TestValidateCSV(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
		return path
	}

	t.Run("valid with unknown column", func(t *testing.T) {
		path := write("ok.csv", "id,full_name,favourite_colour\n1,Ana,blue\n2,Luca,red\n")
		report := validateCSV(path)
		assert.True(t, report.Valid)
		assert.Equal(t, "csv", report.Kind)
		assert.Equal(t, 2, report.Records)
		assert.Equal(t, []string{"id", "full_name", "favourite_colour"}, report.Headers)
		assert.NotEmpty(t, report.Size)
		require.Len(t, report.Warnings, 1)
		assert.Contains(t, report.Warnings[0], "favourite_colour")
	})

	t.Run("missing id column", func(t *testing.T) {
		report := validateCSV(write("noid.csv", "full_name\nAna\n"))
		assert.False(t, report.Valid)
		require.Len(t, report.Problems, 1)
		assert.Contains(t, report.Problems[0], "id column")
	})

	t.Run("missing file", func(t *testing.T) {
		report := validateCSV(filepath.Join(dir, "nope.csv"))
		assert.False(t, report.Valid)
		assert.NotEmpty(t, report.Problems)
	})

	t.Run("odd extension warns", func(t *testing.T) {
		report := validateCSV(write("people.txt", "id,full_name\n1,Ana\n"))
		assert.True(t, report.Valid)
		assert.Contains(t, report.Warnings, `unexpected file extension ".txt"`)
	})
}

func TestValidatePlan(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantValid    bool
		wantProblems []string
		wantWarnings []string
	}{
		{
			name:      "valid",
			raw:       `{"filter": {"include": {"skills": "React"}}, "rank": {"primary": {"field": "years_experience", "direction": "desc"}}}`,
			wantValid: true,
		},
		{
			name:         "unknown filter key",
			raw:          `{"filter": {"include": {"favourite_colour": "blue"}}, "rank": {"primary": {"field": "full_name", "direction": "asc"}}}`,
			wantValid:    true,
			wantWarnings: []string{"filter key include.favourite_colour is not recognized and is ignored"},
		},
		{
			name:         "missing rank",
			raw:          `{"filter": {}}`,
			wantProblems: []string{"Missing rank object"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := validatePlan("plans.json", []byte(tt.raw))
			assert.Equal(t, tt.wantValid, report.Valid)
			assert.Equal(t, "plan", report.Kind)
			assert.Equal(t, tt.wantProblems, report.Problems)
			assert.Equal(t, tt.wantWarnings, report.Warnings)
		})
	}
}

func TestApplyServeOverrides(t *testing.T) {
	baseConfig := func() *config.Config {
		return &config.Config{
			AI:     config.AIConfig{Timeout: time.Second},
			Data:   config.DataConfig{CSVPath: "data/candidates.csv"},
			Server: config.ServerConfig{Host: "localhost", Port: "8080", MaxRequestSize: 1 << 20},
			App:    config.AppConfig{LogLevel: "info"},
		}
	}

	tests := []struct {
		name    string
		args    []string
		check   func(t *testing.T, cfg *config.Config)
		wantErr bool
	}{
		{
			name: "no flags keeps config",
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "8080", cfg.Server.Port)
				assert.False(t, cfg.Data.Watch)
			},
		},
		{
			name: "explicit flags override",
			args: []string{"--port", "9090", "--host", "0.0.0.0", "--csv", "other.csv", "--watch", "--phase-delay", "250ms"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "9090", cfg.Server.Port)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, "other.csv", cfg.Data.CSVPath)
				assert.True(t, cfg.Data.Watch)
				assert.Equal(t, 250*time.Millisecond, cfg.Server.PhaseDelay)
			},
		},
		{
			name:    "server tls without certificates",
			args:    []string{"--tls-mode", "server"},
			wantErr: true,
		},
		{
			name:    "unknown tls mode",
			args:    []string{"--tls-mode", "mutual", "--cert-file", "c.pem", "--key-file", "k.pem"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
			registerServeFlags(flags)
			require.NoError(t, flags.Parse(tt.args))

			cfg := baseConfig()
			err := applyServeOverrides(cfg, flags)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	_, err = newLogger(&buf, "verbose")
	assert.Error(t, err)
}

func TestContextHelpersWithoutInit(t *testing.T) {
	_, err := getConfigFromContext(context.Background())
	assert.Error(t, err)
	_, err = getLoggerFromContext(context.Background())
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, Execute(context.Background()))
	assert.Contains(t, out.String(), "atslite version dev")
}

func TestValidatePlanCommand(t *testing.T) {
	t.Setenv("ATSLITE_VAULT_ENABLED", "false")
	path := filepath.Join(t.TempDir(), "plans.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"filter": {}, "rank": {"primary": {"field": "title", "direction": "asc"}}}`), 0600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"validate", "plan", path, "--format", "json"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, Execute(context.Background()))

	var report types.ValidationReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.True(t, report.Valid)
	assert.Equal(t, "plan", report.Kind)
	assert.Equal(t, path, report.Source)
}
