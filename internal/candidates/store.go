package candidates

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"atslite/internal/errors"
)

// Dataset is an immutable snapshot of the loaded candidate file.
type Dataset struct {
	Candidates []Candidate
	Headers    []string
	Index      Index
	Source     string
	LoadedAt   time.Time
}

// NewDataset wraps already parsed candidates.
func NewDataset(cands []Candidate, headers []string, source string, loadedAt time.Time) *Dataset {
	return &Dataset{
		Candidates: cands,
		Headers:    headers,
		Index:      NewIndex(cands),
		Source:     source,
		LoadedAt:   loadedAt,
	}
}

// LoadFunc produces a fresh dataset.
type LoadFunc func(ctx context.Context) (*Dataset, error)

// ReloadHook observes every load attempt.
type ReloadHook func(ctx context.Context, count int, duration time.Duration, err error)

// Store caches the candidate dataset for a fixed TTL. Concurrent callers that
// miss the cache share a single load. A TTL of zero or less keeps the dataset
// until Invalidate is called.
type Store struct {
	ttl    time.Duration
	load   LoadFunc
	logger *errors.Logger
	now    func() time.Time
	hook   ReloadHook

	mu      sync.RWMutex
	current *Dataset
	loads   int
	group   singleflight.Group
}

// NewStore creates a Store backed by the CSV file at path.
func NewStore(path string, ttl time.Duration, logger *errors.Logger) *Store {
	s := &Store{ttl: ttl, logger: logger, now: time.Now}
	s.load = func(ctx context.Context) (*Dataset, error) {
		cands, headers, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		return NewDataset(cands, headers, path, s.now()), nil
	}
	return s
}

// NewStoreWithLoader creates a Store backed by an arbitrary loader.
func NewStoreWithLoader(load LoadFunc, ttl time.Duration, logger *errors.Logger) *Store {
	return &Store{ttl: ttl, load: load, logger: logger, now: time.Now}
}

// SetReloadHook registers a callback invoked after every load attempt.
func (s *Store) SetReloadHook(hook ReloadHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// Get returns the cached dataset, loading it when absent or expired.
func (s *Store) Get(ctx context.Context) (*Dataset, error) {
	if ds := s.fresh(); ds != nil {
		return ds, nil
	}

	ch := s.group.DoChan("dataset", func() (any, error) {
		// Another caller may have finished a load while we waited for the slot.
		if ds := s.fresh(); ds != nil {
			return ds, nil
		}
		return s.reload(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Dataset), nil
	}
}

func (s *Store) fresh() *Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	if s.ttl > 0 && s.now().Sub(s.current.LoadedAt) >= s.ttl {
		return nil
	}
	return s.current
}

func (s *Store) reload(ctx context.Context) (*Dataset, error) {
	start := time.Now()
	ds, err := s.load(ctx)
	duration := time.Since(start)

	s.mu.Lock()
	hook := s.hook
	if err == nil {
		s.current = ds
		s.loads++
	}
	s.mu.Unlock()

	count := 0
	if ds != nil {
		count = len(ds.Candidates)
	}
	if hook != nil {
		hook(ctx, count, duration, err)
	}

	if err != nil {
		if s.logger != nil {
			s.logger.LogError(err, "Failed to load candidate dataset")
		}
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("Candidate dataset loaded",
			"source", ds.Source,
			"candidates", count,
			"duration", duration)
	}
	return ds, nil
}

// Invalidate drops the cached dataset so the next Get reloads it.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Debug("Candidate dataset cache invalidated")
	}
}

// Stats reports cache state for the stats endpoint.
func (s *Store) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"ttl":    s.ttl.String(),
		"loads":  s.loads,
		"cached": s.current != nil,
	}
	if s.current != nil {
		stats["candidates"] = len(s.current.Candidates)
		stats["loaded_at"] = s.current.LoadedAt
		stats["source"] = s.current.Source
	}
	return stats
}
