package ai

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"atslite/internal/errors"
)

const (
	streamMaxTokens  = 500
	noMatchMaxTokens = 150
	briefMaxTokens   = 200

	// NoMatchSummary is the offline reply for an empty shortlist.
	NoMatchSummary = "No candidates match your criteria. Try adjusting your search terms or expanding your requirements."
	noMatchDefault = "No candidates match your criteria. Try adjusting your search."
	briefDefault   = "Summary generated successfully."
)

// Speaker implements Summarizer. Without a Generator, or when the model
// fails before producing output, it answers with OfflineSummary.
type Speaker struct {
	gen          Generator
	systemPrompt string
	logger       *errors.Logger
	recorder     Recorder
}

// NewSpeaker creates a Speaker. gen may be nil for offline use.
func NewSpeaker(gen Generator, systemPrompt string, logger *errors.Logger) *Speaker {
	return &Speaker{gen: gen, systemPrompt: systemPrompt, logger: logger, recorder: noopRecorder{}}
}

// SetRecorder installs a telemetry sink.
func (s *Speaker) SetRecorder(r Recorder) {
	if r != nil {
		s.recorder = r
	}
}

// Online reports whether a model backs the speaker.
func (s *Speaker) Online() bool {
	return s.gen != nil
}

// Speak returns a short plain summary.
func (s *Speaker) Speak(ctx context.Context, req SpeakRequest) (string, error) {
	if s.gen == nil {
		s.recorder.RecordFallback(ctx, "speak")
		return OfflineSummary(req), nil
	}

	gr := GenerateRequest{
		Operation:       "speak",
		System:          DefaultSystemPrompts.Brief,
		Prompt:          briefPrompt(req),
		MaxOutputTokens: briefMaxTokens,
	}
	empty := briefDefault
	if req.Stats.Count == 0 {
		gr.System = "You are ATS-Lite, a helpful ATS assistant. Provide concise, professional responses to recruiters."
		gr.MaxOutputTokens = noMatchMaxTokens
		empty = noMatchDefault
	}

	start := time.Now()
	text, usage, err := s.gen.Generate(ctx, gr)
	if errors.IsCode(err, errors.ErrCodeAIEmptyResponse) {
		err = nil
	}
	s.recorder.RecordAIOperation(ctx, gr.Operation, time.Since(start), usage, err)
	if err != nil {
		s.logger.LogError(err, "Summary generation failed, using offline summary")
		s.recorder.RecordFallback(ctx, "speak")
		return OfflineSummary(req), nil
	}

	if text = strings.TrimSpace(text); text == "" {
		return empty, nil
	}
	return text, nil
}

// SpeakStream streams the markdown summary through emit. If the model fails
// before any text was emitted the offline summary is emitted instead; a
// failure after that is returned.
func (s *Speaker) SpeakStream(ctx context.Context, req SpeakRequest, emit func(string) error) error {
	if s.gen == nil || req.Stats.Count == 0 {
		s.recorder.RecordFallback(ctx, "speak_stream")
		return emit(OfflineSummary(req))
	}

	gr := GenerateRequest{
		Operation:       "speak_stream",
		System:          s.streamPrompt(),
		Prompt:          speakContextPrompt(req),
		MaxOutputTokens: streamMaxTokens,
	}

	emitted := false
	start := time.Now()
	usage, err := s.gen.GenerateStream(ctx, gr, func(chunk string) error {
		emitted = true
		return emit(chunk)
	})
	s.recorder.RecordAIOperation(ctx, gr.Operation, time.Since(start), usage, err)

	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, errEmit), ctx.Err() != nil:
		return err
	case emitted:
		return fmt.Errorf("summary stream interrupted: %w", err)
	default:
		s.logger.LogError(err, "Summary stream failed, using offline summary")
		s.recorder.RecordFallback(ctx, "speak_stream")
		return emit(OfflineSummary(req))
	}
}

func (s *Speaker) streamPrompt() string {
	if s.systemPrompt != "" {
		return s.systemPrompt
	}
	return DefaultSystemPrompts.Speak
}

// OfflineSummary is the deterministic summary used when no model is available.
func OfflineSummary(req SpeakRequest) string {
	if req.Stats.Count == 0 {
		return NoMatchSummary
	}

	top := req.TopCandidates[:min(5, len(req.TopCandidates))]
	var names []string
	for _, c := range top[:min(3, len(top))] {
		names = append(names, c.FullName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I found %d matches (avg %s yrs experience).", req.Stats.Count, formatYears(req.Stats.AvgExperience))
	if len(names) > 0 {
		fmt.Fprintf(&b, " Here are the top %d: %s.", len(names), strings.Join(names, ", "))
	}
	if len(req.Stats.TopSkills) > 0 {
		top := req.Stats.TopSkills[0]
		fmt.Fprintf(&b, " Most common skill: %s (%d candidates).", top.Skill, top.Count)
	}

	query := strings.ToLower(req.Query)
	if strings.Contains(query, "cyprus") {
		if n := countCandidates(req, func(location, _ string) bool { return strings.Contains(location, "Cyprus") }); n > 0 {
			fmt.Fprintf(&b, " %d are based in Cyprus.", n)
		}
	}
	if strings.Contains(query, "react") {
		if n := countCandidates(req, func(_, title string) bool { return strings.Contains(title, "React") }); n > 0 {
			fmt.Fprintf(&b, " %d are React specialists.", n)
		}
	}
	return b.String()
}

func countCandidates(req SpeakRequest, match func(location, title string) bool) int {
	n := 0
	for _, c := range req.TopCandidates {
		if match(c.Location, c.Title) {
			n++
		}
	}
	return n
}
