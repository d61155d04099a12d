package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atslite/internal/ai"
	"atslite/internal/candidates"
	"atslite/internal/config"
	"atslite/internal/errors"
	"atslite/internal/plan"
	"atslite/internal/workflow"
)

type fakeData struct {
	ds  *candidates.Dataset
	err error
}

func (f *fakeData) Get(context.Context) (*candidates.Dataset, error) {
	return f.ds, f.err
}

func (f *fakeData) Stats() map[string]any {
	return map[string]any{"cached": f.ds != nil}
}

type stubPlanner struct {
	plans plan.Plans
}

func (p *stubPlanner) Think(_ context.Context, query string, headers []string) (plan.Plans, error) {
	if _, err := plan.ValidateQuery(query, headers); err != nil {
		return plan.Plans{}, err
	}
	return p.plans, nil
}

func testDataset() *candidates.Dataset {
	cands := []candidates.Candidate{
		{ID: 1, FullName: "Ana Petrou", Title: "Senior React Engineer", Location: "Limassol, Cyprus", YearsExperience: candidates.Int(8), Skills: "React;TypeScript"},
		{ID: 2, FullName: "Luca Bianchi", Title: "Frontend Developer", Location: "Milan, Italy", YearsExperience: candidates.Int(5), Skills: "React;Vue"},
		{ID: 3, FullName: "Sam Okafor", Title: "Backend Engineer", Location: "Lagos, Nigeria", YearsExperience: candidates.Int(10), Skills: "Go"},
	}
	loadedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return candidates.NewDataset(cands, []string{"id", "full_name", "title", "location", "years_experience", "skills"}, "test.csv", loadedAt)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:           "localhost",
			Port:           "0",
			MaxRequestSize: 1 << 20,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, data DatasetSource) *Server {
	t.Helper()
	logger := errors.NewWithWriter(io.Discard, slog.LevelError)
	planner := &stubPlanner{plans: plan.Plans{
		Filter: &plan.FilterPlan{Include: plan.NewCriteria().Match("skills", "React")},
		Rank:   plan.By("years_experience", plan.Desc),
	}}
	s := NewServer(cfg, "test", Dependencies{
		Data:       data,
		Planner:    planner,
		Summarizer: ai.NewSpeaker(nil, "", logger),
	}, logger)
	t.Cleanup(s.cleanupRateLimiter)
	return s
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestTestEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeData{ds: testDataset()})
	h := s.Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/test", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = doJSON(t, h, http.MethodHead, "/api/test", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/test", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestChatHandler(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeData{ds: testDataset()})
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/chat",
		`{"messages":[{"role":"user","content":"hi"},{"role":"user","content":"React developers"}]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	var chunks []workflow.Chunk
	scanner := bufio.NewScanner(bytes.NewReader(rec.Body.Bytes()))
	for scanner.Scan() {
		var c workflow.Chunk
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &c))
		chunks = append(chunks, c)
	}
	require.NotEmpty(t, chunks)

	last := chunks[len(chunks)-1]
	assert.Equal(t, workflow.ChunkComplete, last.Type)
	data, err := json.Marshal(last.Data)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"finalResults":[1,2]`)
	assert.Contains(t, string(data), `"filteredCount":2`)
}

func TestChatHandlerErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		data       *fakeData
		wantStatus int
		wantBody   string
	}{
		{
			name:       "no messages",
			body:       `{"messages":[]}`,
			data:       &fakeData{ds: testDataset()},
			wantStatus: http.StatusBadRequest,
			wantBody:   "No message content provided",
		},
		{
			name:       "last message empty",
			body:       `{"messages":[{"role":"user","content":"React"},{"role":"user"}]}`,
			data:       &fakeData{ds: testDataset()},
			wantStatus: http.StatusBadRequest,
			wantBody:   "No message content provided",
		},
		{
			name:       "unknown role",
			body:       `{"messages":[{"role":"robot","content":"React"}]}`,
			data:       &fakeData{ds: testDataset()},
			wantStatus: http.StatusBadRequest,
			wantBody:   "oneof",
		},
		{
			name:       "malformed json",
			body:       `{"messages":`,
			data:       &fakeData{ds: testDataset()},
			wantStatus: http.StatusBadRequest,
			wantBody:   "failed to parse JSON",
		},
		{
			name:       "dataset unavailable streams error chunk",
			body:       `{"messages":[{"role":"user","content":"React developers"}]}`,
			data:       &fakeData{err: errors.NewIOError(errors.ErrCodeFileNotFound, "missing", nil)},
			wantStatus: http.StatusOK,
			wantBody:   "No candidate data available",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(), tt.data)
			rec := doJSON(t, s.Handler(), http.MethodPost, "/api/chat", tt.body, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestChatHandlerRequiresJSON(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeData{ds: testDataset()})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "content-type must be application/json")
}

func TestThinkHandler(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeData{ds: testDataset()})
	h := s.Handler()

	t.Run("returns plans", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/think",
			`{"userMessage":"React developers","csvHeaders":["title","skills"]}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		got := decodeBody[plan.Plans](t, rec)
		require.NotNil(t, got.Rank)
		assert.Equal(t, "years_experience", got.Rank.Primary.Field)
		assert.Equal(t, plan.Desc, got.Rank.Primary.Direction)
	})

	t.Run("query validation", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/think",
			`{"userMessage":"ab","csvHeaders":["title"]}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Query too short. Minimum 3 characters required")
	})

	t.Run("missing headers", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/think", `{"userMessage":"React developers"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "CSV headers are required for query processing")
	})

	t.Run("blank header", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/think",
			`{"userMessage":"React developers","csvHeaders":["title",""]}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSpeakHandler(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeData{ds: testDataset()})
	h := s.Handler()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		want       string
	}{
		{
			name: "string average from browser",
			body: `{"originalQuery":"react devs in cyprus","topCandidates":[
				{"id":1,"full_name":"Ana Petrou","title":"Senior React Engineer","location":"Limassol, Cyprus"},
				{"id":2,"full_name":"Luca Bianchi","title":"Frontend Developer","location":"Milan, Italy"}],
				"stats":{"count":2,"avg_experience":"6.5","top_skills":[{"skill":"React","count":2}]}}`,
			wantStatus: http.StatusOK,
			want:       "I found 2 matches (avg 6.5 yrs experience). Here are the top 2: Ana Petrou, Luca Bianchi. Most common skill: React (2 candidates).",
		},
		{
			name:       "numeric average and no matches",
			body:       `{"originalQuery":"rust","topCandidates":[],"stats":{"count":0,"avg_experience":0,"top_skills":[]}}`,
			wantStatus: http.StatusOK,
			want:       ai.NoMatchSummary,
		},
		{
			name:       "missing query",
			body:       `{"stats":{"count":0}}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad average",
			body:       `{"originalQuery":"rust","stats":{"count":1,"avg_experience":"lots"}}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/speak", tt.body, nil)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.want != "" {
				got := decodeBody[SpeakResponse](t, rec)
				assert.True(t, strings.HasPrefix(got.Summary, tt.want), got.Summary)
			}
		})
	}
}

func TestRankHandler(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		data        *fakeData
		wantStatus  int
		wantIDs     []int
		wantMatched int
		wantDetail  string
	}{
		{
			name:        "filter and rank",
			body:        `{"filter":{"include":{"skills":"React"}},"rank":{"primary":{"field":"years_experience","direction":"asc"}}}`,
			data:        &fakeData{ds: testDataset()},
			wantStatus:  http.StatusOK,
			wantIDs:     []int{2, 1},
			wantMatched: 2,
		},
		{
			name:        "no matches",
			body:        `{"filter":{"include":{"title":"__NO_MATCH__"}},"rank":{"primary":{"field":"years_experience","direction":"desc"}}}`,
			data:        &fakeData{ds: testDataset()},
			wantStatus:  http.StatusOK,
			wantIDs:     []int{},
			wantMatched: 0,
		},
		{
			name:       "missing rank",
			body:       `{"filter":{}}`,
			data:       &fakeData{ds: testDataset()},
			wantStatus: http.StatusBadRequest,
			wantDetail: "Missing rank object",
		},
		{
			name:       "unknown field",
			body:       `{"filter":{},"rank":{"primary":{"field":"shoe_size","direction":"desc"}}}`,
			data:       &fakeData{ds: testDataset()},
			wantStatus: http.StatusBadRequest,
			wantDetail: `Unknown ranking field \"shoe_size\"`,
		},
		{
			name:       "dataset missing",
			body:       `{"filter":{},"rank":{"primary":{"field":"years_experience","direction":"desc"}}}`,
			data:       &fakeData{err: errors.NewIOError(errors.ErrCodeFileNotFound, "Candidate file not found", nil)},
			wantStatus: http.StatusServiceUnavailable,
			wantDetail: "Candidate file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(), tt.data)
			rec := doJSON(t, s.Handler(), http.MethodPost, "/api/rank", tt.body, nil)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantStatus != http.StatusOK {
				assert.Contains(t, rec.Body.String(), tt.wantDetail)
				return
			}
			got := decodeBody[RankResponse](t, rec)
			assert.Equal(t, tt.wantIDs, got.RankedIDs)
			assert.Equal(t, tt.wantMatched, got.MatchedCount)
			assert.Equal(t, 3, got.TotalCount)
			assert.Equal(t, tt.wantMatched, got.Stats.Count)
		})
	}
}

func TestCandidatesHandler(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeData{ds: testDataset()})

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/candidates", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[CandidatesResponse](t, rec)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, "2024-05-01T12:00:00Z", got.LoadedAt)
	assert.Contains(t, got.Headers, "years_experience")
}

func TestHealthAndStats(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := newTestServer(t, testConfig(), &fakeData{ds: testDataset()})
		rec := doJSON(t, s.Handler(), http.MethodGet, "/health", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		got := decodeBody[map[string]any](t, rec)
		assert.Equal(t, "healthy", got["status"])
		assert.Equal(t, "atslite", got["service"])
	})

	t.Run("degraded without data", func(t *testing.T) {
		s := newTestServer(t, testConfig(), &fakeData{err: errors.NewIOError(errors.ErrCodeFileNotFound, "missing", nil)})
		rec := doJSON(t, s.Handler(), http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "degraded")
	})

	t.Run("stats", func(t *testing.T) {
		s := newTestServer(t, testConfig(), &fakeData{ds: testDataset()})
		rec := doJSON(t, s.Handler(), http.MethodGet, "/stats", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		got := decodeBody[map[string]any](t, rec)
		assert.Equal(t, map[string]any{"enabled": false}, got["rate_limiting"])
		assert.Equal(t, map[string]any{"cached": true}, got["dataset"])
	})
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.Server.APIKeys = []string{"secret-key-123"}
	s := newTestServer(t, cfg, &fakeData{ds: testDataset()})
	h := s.Handler()

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
	}{
		{name: "missing key", wantStatus: http.StatusUnauthorized},
		{name: "invalid key", headers: map[string]string{"X-API-Key": "nope"}, wantStatus: http.StatusUnauthorized},
		{name: "header key", headers: map[string]string{"X-API-Key": "secret-key-123"}, wantStatus: http.StatusOK},
		{name: "bearer token", headers: map[string]string{"Authorization": "Bearer secret-key-123"}, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodGet, "/api/candidates", "", tt.headers)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	t.Run("health stays public", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequestSizeLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxRequestSize = 64
	s := newTestServer(t, cfg, &fakeData{ds: testDataset()})

	body := `{"messages":[{"role":"user","content":"` + strings.Repeat("x", 200) + `"}]}`
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/chat", body, nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "request body too large (limit is 64 bytes)")
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 2, ByIP: true}
	s := newTestServer(t, cfg, &fakeData{ds: testDataset()})
	h := s.Handler()

	for i := range 2 {
		rec := doJSON(t, h, http.MethodGet, "/api/candidates", "", nil)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec := doJSON(t, h, http.MethodGet, "/api/candidates", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	rec = doJSON(t, h, http.MethodGet, "/api/candidates", "", map[string]string{"X-Forwarded-For": "10.0.0.9"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartAndShutdown(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeData{ds: testDataset()})
	httpServer := s.newHTTPServer()
	ln, err := netListen(t)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, httpServer, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/test")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", errors.NewValidationError(errors.ErrCodeInvalidQuery, "bad", nil), http.StatusBadRequest},
		{"missing file", errors.NewIOError(errors.ErrCodeFileNotFound, "gone", nil), http.StatusServiceUnavailable},
		{"unreadable file", errors.NewIOError(errors.ErrCodeFileNotReadable, "perm", nil), http.StatusInternalServerError},
		{"ai", errors.NewAIError(errors.ErrCodeAIServiceFailed, "down", nil), http.StatusBadGateway},
		{"explicit status", errors.NewValidationError(errors.ErrCodeInvalidRequest, "big", nil).WithContext("status", http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"plain", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestFlexFloat(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: `4.5`, want: 4.5},
		{in: `"4.5"`, want: 4.5},
		{in: `" 3 "`, want: 3},
		{in: `""`, want: 0},
		{in: `"n/a"`, wantErr: true},
		{in: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f flexFloat
			err := json.Unmarshal([]byte(tt.in), &f)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, float64(f), 1e-9)
		})
	}
}
