// Package schema guards the service boundary: structural validation of
// transcript updates arriving from external producers, applied before an
// update reaches the reconciliation engine.
package schema

import (
	"errors"
	"fmt"

	"live-transcript-reconciler/internal/models"
)

// Caps on inbound updates. Anything past these is a misbehaving producer,
// not real speech.
const (
	MaxSpeakerIDLen = 128
	MaxSegments     = 256
	MaxTextBytes    = 16 * 1024
)

var (
	ErrNoSpeaker        = errors.New("update carries no speaker id")
	ErrSpeakerTooLong   = errors.New("speaker id exceeds limit")
	ErrNegativeSequence = errors.New("sequence is negative")
	ErrTooManySegments  = errors.New("update carries too many segments")
	ErrTextTooLarge     = errors.New("update text exceeds limit")
	ErrInvalidInterval  = errors.New("segment interval ends before it starts")
)

// Validator checks inbound updates against the wire contract.
type Validator struct{}

// New creates a validator.
func New() *Validator {
	return &Validator{}
}

// Validate reports the first structural problem with an update, or nil.
// It only enforces the wire contract; domain rules live in the engine.
func (v *Validator) Validate(u *models.Update) error {
	if u.SpeakerID == "" {
		return ErrNoSpeaker
	}
	if len(u.SpeakerID) > MaxSpeakerIDLen {
		return fmt.Errorf("%w: %d bytes", ErrSpeakerTooLong, len(u.SpeakerID))
	}
	if u.Sequence != nil && *u.Sequence < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeSequence, *u.Sequence)
	}
	if len(u.Segments) > MaxSegments {
		return fmt.Errorf("%w: %d", ErrTooManySegments, len(u.Segments))
	}

	total := len(u.Text)
	for i, seg := range u.Segments {
		if seg.End < seg.Start {
			return fmt.Errorf("segment %d [%v, %v): %w", i, seg.Start, seg.End, ErrInvalidInterval)
		}
		total += len(seg.Text)
	}
	if total > MaxTextBytes {
		return fmt.Errorf("%w: %d bytes", ErrTextTooLarge, total)
	}
	return nil
}
