// Package mock provides a scripted transcript source for running the
// service without a recognizer. It simulates realistic recognizer framing:
// progressive interim readings, then a re-sent completed prefix with new
// interim tails, exactly the shape a live session produces.
package mock

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"live-transcript-reconciler/internal/models"
	"live-transcript-reconciler/internal/source"
)

// Step is one scripted update: a speaker re-sending their current segment
// window.
type Step struct {
	SpeakerID   string
	SpeakerName string
	Segments    []models.Segment
}

// DefaultScript interleaves two speakers, each refined across several
// updates the way a streaming recognizer frames them.
var DefaultScript = []Step{
	{"speaker-alice", "Alice", []models.Segment{
		{Start: 0, End: 1.2, Text: "I want", Completed: false},
	}},
	{"speaker-bob", "Bob", []models.Segment{
		{Start: 0, End: 0.8, Text: "Hello", Completed: false},
	}},
	{"speaker-alice", "Alice", []models.Segment{
		{Start: 0, End: 1.9, Text: "I want to cancel", Completed: false},
	}},
	{"speaker-bob", "Bob", []models.Segment{
		{Start: 0, End: 1.5, Text: "Hello how can I help", Completed: true},
	}},
	{"speaker-alice", "Alice", []models.Segment{
		{Start: 0, End: 2.4, Text: "I want to cancel", Completed: true},
		{Start: 2.4, End: 3.4, Text: "my sub", Completed: false},
	}},
	{"speaker-bob", "Bob", []models.Segment{
		{Start: 0, End: 1.5, Text: "Hello how can I help", Completed: true},
		{Start: 1.5, End: 2.9, Text: "you today", Completed: true},
	}},
	{"speaker-alice", "Alice", []models.Segment{
		{Start: 0, End: 2.4, Text: "I want to cancel", Completed: true},
		{Start: 2.4, End: 4.1, Text: "my subscription", Completed: true},
	}},
}

// Source plays a script of updates at a fixed cadence, then idles until its
// context is cancelled, like a recognizer session staying open after speech
// stops.
type Source struct {
	script   []Step
	interval time.Duration
	stamper  *source.Stamper
	ready    atomic.Bool
}

// New creates a mock source. A nil script plays DefaultScript.
func New(script []Step, interval time.Duration) *Source {
	if script == nil {
		script = DefaultScript
	}
	return &Source{
		script:   script,
		interval: interval,
		stamper:  source.NewStamper(),
	}
}

// Name identifies the source in logs and metrics.
func (s *Source) Name() string { return "mock" }

// Ready reports whether the source is producing.
func (s *Source) Ready() bool { return s.ready.Load() }

// Run plays the script into cb, one step per interval, and then blocks
// until ctx is cancelled.
func (s *Source) Run(ctx context.Context, cb source.Callback) error {
	s.ready.Store(true)
	defer s.ready.Store(false)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	announced := make(map[string]bool)
	for _, step := range s.script {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if !announced[step.SpeakerID] {
			announced[step.SpeakerID] = true
			cb.OnLanguageDetected(step.SpeakerID, "en", 0.99)
		}

		u := models.Update{
			SpeakerID:   step.SpeakerID,
			SpeakerName: step.SpeakerName,
			Segments:    slices.Clone(step.Segments),
			Timestamp:   time.Now().UnixMilli(),
		}
		s.stamper.Stamp(&u)
		cb.OnUpdate(u)
	}

	<-ctx.Done()
	return ctx.Err()
}
