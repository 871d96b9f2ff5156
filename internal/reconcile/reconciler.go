// Package reconcile maintains one monotonically improving transcript record
// per speaker from a stream of partial, overlapping, possibly out-of-order
// recognizer updates.
package reconcile

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"live-transcript-reconciler/internal/models"
)

// Errors returned for updates that are rejected before touching any record.
var (
	ErrMissingSpeaker  = errors.New("update carries no speaker identity")
	ErrInvalidInterval = errors.New("segment interval ends before it starts")
)

// ApplyResult reports what an Apply call did and the record state after it.
// Record is a deep copy; callers may hold or mutate it freely.
type ApplyResult struct {
	Record  models.TranscriptRecord
	Outcome Outcome
}

// slot holds one speaker's record behind its own lock, so updates for
// distinct speakers merge in parallel while updates for the same speaker
// serialize.
type slot struct {
	mu     sync.Mutex
	record models.TranscriptRecord
}

// Reconciler owns every speaker's transcript record. All methods are safe
// for concurrent use.
type Reconciler struct {
	mu    sync.RWMutex
	slots map[string]*slot
	order []*slot
}

// New returns an empty Reconciler.
func New() *Reconciler {
	return &Reconciler{slots: make(map[string]*slot)}
}

// Apply folds one update into the speaker's record, creating the record on
// the speaker's first update.
//
// Malformed updates (no speaker identity, or a segment whose interval ends
// before it starts) are rejected with an error and mutate nothing. Updates
// whose sequence number regresses against the stored record are ignored and
// reported as OutcomeStale; that is a no-op, not an error. Everything else
// merges and returns the committed record.
func (r *Reconciler) Apply(u models.Update) (ApplyResult, error) {
	if err := validateUpdate(u); err != nil {
		return ApplyResult{}, err
	}

	r.mu.RLock()
	sl := r.slots[u.SpeakerID]
	r.mu.RUnlock()

	if sl == nil {
		r.mu.Lock()
		sl = r.slots[u.SpeakerID]
		if sl == nil {
			sl = &slot{record: newRecord(u)}
			r.slots[u.SpeakerID] = sl
			r.order = append(r.order, sl)
			rec := sl.record.Clone()
			r.mu.Unlock()
			return ApplyResult{Record: rec, Outcome: OutcomeCreated}, nil
		}
		r.mu.Unlock()
	}

	return applySlot(sl, u), nil
}

// ApplyToExisting folds u into the speaker's record when one exists and
// reports whether it did. Unlike Apply it never creates a record, so a
// metadata refinement such as a late language detection cannot materialize
// a speaker on its own.
func (r *Reconciler) ApplyToExisting(u models.Update) (ApplyResult, bool, error) {
	if err := validateUpdate(u); err != nil {
		return ApplyResult{}, false, err
	}

	r.mu.RLock()
	sl := r.slots[u.SpeakerID]
	r.mu.RUnlock()
	if sl == nil {
		return ApplyResult{}, false, nil
	}

	return applySlot(sl, u), true, nil
}

// validateUpdate rejects updates that must not touch any record.
func validateUpdate(u models.Update) error {
	if u.SpeakerID == "" {
		return fmt.Errorf("apply update: %w", ErrMissingSpeaker)
	}
	for _, seg := range u.Segments {
		if seg.End < seg.Start {
			return fmt.Errorf("apply update for %q: segment [%v, %v): %w",
				u.SpeakerID, seg.Start, seg.End, ErrInvalidInterval)
		}
	}
	return nil
}

// applySlot folds u into one speaker's slot under its lock.
func applySlot(sl *slot, u models.Update) ApplyResult {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if stale(sl.record, u) {
		return ApplyResult{Record: sl.record.Clone(), Outcome: OutcomeStale}
	}

	// Build the next state fully, then commit. A record is never left
	// half-updated.
	next := merge(sl.record, u)
	sl.record = next
	return ApplyResult{Record: next.Clone(), Outcome: OutcomeMerged}
}

// stale reports whether the update loses the sequence race: both sides carry
// a sequence number and the incoming one is strictly lower. Equal sequences
// are accepted so that re-delivered duplicates stay idempotent.
func stale(rec models.TranscriptRecord, u models.Update) bool {
	return rec.Sequence != nil && u.Sequence != nil && *u.Sequence < *rec.Sequence
}

// newRecord builds the record for a speaker's first update. The record's
// timestamp is fixed here and never changes afterwards.
func newRecord(u models.Update) models.TranscriptRecord {
	rec := models.TranscriptRecord{
		ID:          uuid.NewString(),
		SpeakerID:   u.SpeakerID,
		SpeakerName: u.SpeakerName,
		Language:    u.Language,
		Timestamp:   u.Timestamp,
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
	if u.Sequence != nil {
		seq := *u.Sequence
		rec.Sequence = &seq
	}

	if len(u.Segments) > 0 {
		segs := slices.Clone(u.Segments)
		slices.SortFunc(segs, compareSegments)
		segs = normalizeSegments(segs)
		rec.Segments = segs
		rec.Text = flattenText(segs)
		rec.IsFinal = allCompleted(segs)
	} else {
		rec.Text = u.Text
	}
	if u.IsFinal != nil {
		rec.IsFinal = *u.IsFinal
	}
	return rec
}

// merge computes the record state after folding u into rec. Pure: neither
// input is mutated.
func merge(rec models.TranscriptRecord, u models.Update) models.TranscriptRecord {
	next := rec.Clone()
	if u.Sequence != nil {
		seq := *u.Sequence
		next.Sequence = &seq
	}
	if u.IsFinal != nil {
		next.IsFinal = *u.IsFinal
	}
	if u.Language != "" {
		next.Language = u.Language
	}
	if u.SpeakerName != "" {
		next.SpeakerName = u.SpeakerName
	}

	switch {
	case len(u.Segments) > 0:
		incoming := slices.Clone(u.Segments)
		slices.SortFunc(incoming, compareSegments)
		merged := normalizeSegments(mergeSegments(next.Segments, incoming, next.Text))
		next.Segments = merged
		next.Text = flattenText(merged)
		if u.IsFinal == nil {
			next.IsFinal = allCompleted(merged)
		}
	case u.Text != "":
		// Flat-text updates overwrite the flattened text directly and
		// leave stored segments alone; they are not reconciled at the
		// segment level.
		next.Text = u.Text
	}
	return next
}

// Get returns a deep copy of the speaker's record, if one exists.
func (r *Reconciler) Get(speakerID string) (models.TranscriptRecord, bool) {
	r.mu.RLock()
	sl := r.slots[speakerID]
	r.mu.RUnlock()
	if sl == nil {
		return models.TranscriptRecord{}, false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.record.Clone(), true
}

// Len returns the number of speakers with a record.
func (r *Reconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots)
}

// ClearAll discards every record, returning the reconciler to its empty
// initial state.
func (r *Reconciler) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots = make(map[string]*slot)
	r.order = nil
}

// Snapshot returns a lazy sequence over every current record in creation
// order. The speaker set is captured when Snapshot is called; each record is
// deep-copied under its speaker's lock as the sequence reaches it, so
// iteration is safe while updates keep arriving and never observes a record
// mid-merge.
func (r *Reconciler) Snapshot() iter.Seq[models.TranscriptRecord] {
	r.mu.RLock()
	slots := slices.Clone(r.order)
	r.mu.RUnlock()

	return func(yield func(models.TranscriptRecord) bool) {
		for _, sl := range slots {
			sl.mu.Lock()
			rec := sl.record.Clone()
			sl.mu.Unlock()
			if !yield(rec) {
				return
			}
		}
	}
}
