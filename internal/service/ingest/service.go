// Package ingest coordinates transcript sources, the reconciler, event
// publishing, and the live display.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"live-transcript-reconciler/internal/events"
	"live-transcript-reconciler/internal/models"
	"live-transcript-reconciler/internal/observability/logging"
	"live-transcript-reconciler/internal/observability/metrics"
	"live-transcript-reconciler/internal/reconcile"
	"live-transcript-reconciler/internal/source"
)

// Broadcaster fans committed records out to live viewers.
type Broadcaster interface {
	// BroadcastRecord pushes one committed record state.
	BroadcastRecord(rec models.TranscriptRecord)

	// BroadcastClear tells viewers every record was discarded.
	BroadcastClear()
}

// Service owns the reconciler and performs the full accept path for every
// inbound update: reconcile, publish, broadcast. It is safe for concurrent
// use by multiple sources.
type Service struct {
	reconciler  *reconcile.Reconciler
	publisher   *events.Publisher
	broadcaster Broadcaster
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// New creates the ingest service. publisher and broadcaster may be nil; the
// corresponding side effects are skipped.
func New(rec *reconcile.Reconciler, pub *events.Publisher, b Broadcaster) *Service {
	return &Service{
		reconciler:  rec,
		publisher:   pub,
		broadcaster: b,
		metrics:     metrics.DefaultMetrics,
		logger:      logging.WithComponent("ingest"),
	}
}

// ApplyUpdate reconciles one update from the named source. Malformed
// updates return an error; stale updates are counted and dropped quietly;
// accepted updates are published and broadcast before returning.
func (s *Service) ApplyUpdate(sourceName string, u models.Update) (reconcile.ApplyResult, error) {
	s.metrics.RecordUpdateReceived(sourceName)

	start := time.Now()
	res, err := s.reconciler.Apply(u)
	if err != nil {
		s.metrics.RecordUpdateRejected(rejectReason(err))
		s.logger.Warn().
			Err(err).
			Str("source", sourceName).
			Str("speakerId", u.SpeakerID).
			Msg("Rejected malformed update")
		return reconcile.ApplyResult{}, err
	}

	s.commit(sourceName, res, start)
	return res, nil
}

// commit performs the post-reconcile side effects for one applied update.
func (s *Service) commit(sourceName string, res reconcile.ApplyResult, start time.Time) {
	s.metrics.RecordApply(res.Outcome.String(), time.Since(start).Seconds(), len(res.Record.Segments))

	if res.Outcome == reconcile.OutcomeStale {
		s.logger.Debug().
			Str("source", sourceName).
			Str("speakerId", res.Record.SpeakerID).
			Msg("Ignored stale update")
		return
	}

	s.metrics.SetRecordsActive(s.reconciler.Len())
	if res.Record.IsFinal {
		s.metrics.RecordFinalized()
	}

	s.publishRecord(res.Record)
	if s.broadcaster != nil {
		s.broadcaster.BroadcastRecord(res.Record)
	}

	s.logger.Debug().
		Str("source", sourceName).
		Str("speakerId", res.Record.SpeakerID).
		Str("outcome", res.Outcome.String()).
		Int("segments", len(res.Record.Segments)).
		Bool("isFinal", res.Record.IsFinal).
		Msg("Applied update")
}

// rejectReason maps a rejection error to its metrics label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, reconcile.ErrMissingSpeaker):
		return "missing_speaker"
	case errors.Is(err, reconcile.ErrInvalidInterval):
		return "invalid_interval"
	default:
		return "malformed"
	}
}

// publishRecord emits the updated event, plus the final event when the
// record is fully finalized. Publish failures are logged, never propagated;
// a broker outage must not stall reconciliation.
func (s *Service) publishRecord(rec models.TranscriptRecord) {
	if s.publisher == nil {
		return
	}
	ctx := context.Background()
	if err := s.publisher.PublishUpdated(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("speakerId", rec.SpeakerID).Msg("Failed to publish updated event")
	}
	if rec.IsFinal {
		if err := s.publisher.PublishFinal(ctx, rec); err != nil {
			s.logger.Error().Err(err).Str("speakerId", rec.SpeakerID).Msg("Failed to publish final event")
		}
	}
}

// ClearAll discards every record and notifies viewers. Returns how many
// records were discarded.
func (s *Service) ClearAll() int {
	n := s.reconciler.Len()
	s.reconciler.ClearAll()
	s.metrics.RecordCleared(n)
	s.metrics.SetRecordsActive(0)
	if s.broadcaster != nil {
		s.broadcaster.BroadcastClear()
	}
	s.logger.Info().Int("records", n).Msg("Cleared all transcript records")
	return n
}

// Get returns a copy of one speaker's record.
func (s *Service) Get(speakerID string) (models.TranscriptRecord, bool) {
	return s.reconciler.Get(speakerID)
}

// Len returns the number of speakers with a record.
func (s *Service) Len() int {
	return s.reconciler.Len()
}

// Records returns a snapshot of every record in creation order. The result
// is never nil so callers can encode it directly.
func (s *Service) Records() []models.TranscriptRecord {
	out := make([]models.TranscriptRecord, 0, s.reconciler.Len())
	for rec := range s.reconciler.Snapshot() {
		out = append(out, rec)
	}
	return out
}

// CallbackFor returns the source.Callback a source should deliver into,
// bound to the source's name for logs and metrics.
func (s *Service) CallbackFor(sourceName string) source.Callback {
	return &boundCallback{svc: s, source: sourceName}
}

// boundCallback adapts the service to source.Callback for one named source.
type boundCallback struct {
	svc    *Service
	source string
}

func (b *boundCallback) OnUpdate(u models.Update) {
	// Errors are already logged and counted; a bad update from a stream
	// must not take the stream down.
	_, _ = b.svc.ApplyUpdate(b.source, u)
}

func (b *boundCallback) OnLanguageDetected(speakerId, language string, probability float64) {
	b.svc.logger.Info().
		Str("source", b.source).
		Str("speakerId", speakerId).
		Str("language", language).
		Float64("probability", probability).
		Msg("Language detected")

	// Fold the language into an existing record only. A speaker without a
	// record yet gets the language from their first real update instead.
	start := time.Now()
	res, ok, err := b.svc.reconciler.ApplyToExisting(models.Update{
		SpeakerID: speakerId,
		Language:  language,
	})
	if err != nil {
		b.svc.metrics.RecordUpdateRejected(rejectReason(err))
		return
	}
	if !ok {
		return
	}
	b.svc.metrics.RecordUpdateReceived(b.source)
	b.svc.commit(b.source, res, start)
}

func (b *boundCallback) OnError(err error) {
	b.svc.metrics.RecordSourceError(b.source, "stream")
	b.svc.logger.Warn().
		Err(err).
		Str("source", b.source).
		Msg("Transcript source error")
}
