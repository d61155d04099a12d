package workflow

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// ChunkType discriminates stream chunks.
type ChunkType string

const (
	ChunkPhase    ChunkType = "phase"
	ChunkContent  ChunkType = "content"
	ChunkComplete ChunkType = "complete"
	ChunkError    ChunkType = "error"
	ChunkProgress ChunkType = "progress"
)

// Phase names a pipeline stage.
type Phase string

const (
	PhaseThink  Phase = "think"
	PhaseFilter Phase = "filter"
	PhaseRank   Phase = "rank"
	PhaseSpeak  Phase = "speak"
)

// Chunk is one line of the chat stream. Which fields are set depends on Type.
type Chunk struct {
	Type        ChunkType `json:"type"`
	Phase       Phase     `json:"phase,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content,omitempty"`
	Progress    *int      `json:"progress,omitempty"`
	Message     string    `json:"message,omitempty"`
	Data        any       `json:"data,omitempty"`
	Error       string    `json:"error,omitempty"`
	Code        string    `json:"code,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	SessionID   string    `json:"sessionId,omitempty"`
}

// CompleteData is the payload of the final chunk.
type CompleteData struct {
	TotalCandidates int   `json:"totalCandidates"`
	FilteredCount   int   `json:"filteredCount"`
	FinalResults    []int `json:"finalResults"`
	// Duration is the wall time of the run in milliseconds.
	Duration int64 `json:"duration"`
}

// RankStats is the short statistics block attached to "Ranking Complete".
type RankStats struct {
	AvgExperience float64  `json:"avgExperience"`
	TopSkills     []string `json:"topSkills"`
	Locations     []string `json:"locations"`
}

// Emitter receives chunks in order. An error stops the run.
type Emitter func(Chunk) error

// NDJSON returns an Emitter that writes one JSON document per line to w.
// flush, when non-nil, runs after every chunk.
func NDJSON(w io.Writer, flush func()) Emitter {
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return func(c Chunk) error {
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(c); err != nil {
			return err
		}
		if flush != nil {
			flush()
		}
		return nil
	}
}
