package source

import (
	"sync"

	"live-transcript-reconciler/internal/models"
)

// Stamper assigns per-speaker monotonic sequence numbers to updates from
// providers whose wire format does not carry one. Stamping at the source
// lets the reconciler's staleness guard work even when the provider has no
// ordering concept of its own.
type Stamper struct {
	mu   sync.Mutex
	next map[string]int64
}

// NewStamper returns a Stamper with all speakers at zero.
func NewStamper() *Stamper {
	return &Stamper{next: make(map[string]int64)}
}

// Stamp fills u.Sequence with the speaker's next number. Updates that
// already carry a sequence keep it.
func (s *Stamper) Stamp(u *models.Update) {
	if u.Sequence != nil || u.SpeakerID == "" {
		return
	}
	s.mu.Lock()
	n := s.next[u.SpeakerID]
	s.next[u.SpeakerID] = n + 1
	s.mu.Unlock()
	u.Sequence = &n
}
