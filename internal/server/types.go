package server

import (
	"encoding/json"
	"strconv"
	"strings"

	"atslite/internal/candidates"
	"atslite/internal/stats"
)

// ChatMessage is one turn of the chat transcript.
type ChatMessage struct {
	Role    string `json:"role" validate:"omitempty,oneof=user assistant system"`
	Content string `json:"content"`
}

// ChatRequest is the body of /api/chat. The last message is the query.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages" validate:"dive"`
}

// ThinkRequest is the body of /api/think
type ThinkRequest struct {
	UserMessage string   `json:"userMessage"`
	CSVHeaders  []string `json:"csvHeaders" validate:"dive,required"`
}

// SpeakRequest is the body of /api/speak
type SpeakRequest struct {
	OriginalQuery string                 `json:"originalQuery" validate:"required"`
	TopCandidates []candidates.Candidate `json:"topCandidates"`
	Stats         SpeakStats             `json:"stats"`
}

// SpeakStats is the client's view of the shortlist statistics. Browsers send
// avg_experience already formatted as a string.
type SpeakStats struct {
	Count         int                `json:"count" validate:"gte=0"`
	AvgExperience flexFloat          `json:"avg_experience"`
	TopSkills     []stats.SkillCount `json:"top_skills"`
	Locations     []string           `json:"locations"`
}

func (s SpeakStats) toStats() stats.Stats {
	return stats.Stats{
		Count:         s.Count,
		AvgExperience: float64(s.AvgExperience),
		TopSkills:     s.TopSkills,
		Locations:     s.Locations,
	}
}

// SpeakResponse is the reply of /api/speak
type SpeakResponse struct {
	Summary string `json:"summary"`
}

// RankResponse is the reply of /api/rank
type RankResponse struct {
	MatchedCount int         `json:"matchedCount"`
	TotalCount   int         `json:"totalCount"`
	RankedIDs    []int       `json:"rankedIds"`
	Stats        stats.Stats `json:"stats"`
}

// CandidatesResponse describes the loaded dataset
type CandidatesResponse struct {
	Count    int      `json:"count"`
	Headers  []string `json:"headers"`
	LoadedAt string   `json:"loadedAt"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}
