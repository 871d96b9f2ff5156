// Package models defines the data structures exchanged between transcript
// sources, the reconciler, and downstream consumers.
package models

// Segment is an atomic span of recognized speech on a speaker's timeline.
// Start and End are seconds from the beginning of the speaker's audio.
type Segment struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Text      string  `json:"text"`
	Completed bool    `json:"completed"`
}

// Overlaps reports whether the half-open intervals [s.Start, s.End) and
// [other.Start, other.End) intersect. Touching endpoints do not overlap,
// and a zero-width segment overlaps nothing.
func (s Segment) Overlaps(other Segment) bool {
	return max(s.Start, other.Start) < min(s.End, other.End)
}

// Update is one inbound transcript revision for a single speaker. Updates
// may arrive out of order and may overlap previously applied ones; the
// reconciler decides what survives.
//
// Sequence and IsFinal are pointers because absence carries meaning: an
// update without a sequence number bypasses the staleness guard, and an
// update without an explicit finality flag has it derived from segment
// completion.
type Update struct {
	SpeakerID   string    `json:"speakerId"`
	SpeakerName string    `json:"speakerName,omitempty"`
	Sequence    *int64    `json:"sequence,omitempty"`
	IsFinal     *bool     `json:"isFinal,omitempty"`
	Language    string    `json:"language,omitempty"`
	Text        string    `json:"text,omitempty"`
	Segments    []Segment `json:"segments,omitempty"`
	Timestamp   int64     `json:"timestamp,omitempty"`
}

// TranscriptRecord is the reconciled transcript for one speaker: the best
// current view assembled from every update accepted so far. Segments are
// sorted by start time and non-overlapping; Text is the flattened segment
// text. Timestamp is set when the record is created and never changes.
type TranscriptRecord struct {
	ID          string    `json:"id"`
	SpeakerID   string    `json:"speakerId"`
	SpeakerName string    `json:"speakerName,omitempty"`
	Text        string    `json:"text"`
	Segments    []Segment `json:"segments,omitempty"`
	IsFinal     bool      `json:"isFinal"`
	Language    string    `json:"language,omitempty"`
	Sequence    *int64    `json:"sequence,omitempty"`
	Timestamp   int64     `json:"timestamp"`
}

// Clone returns a deep copy of the record. Mutating the copy, including
// its segment slice and sequence pointer, leaves the original untouched.
func (r TranscriptRecord) Clone() TranscriptRecord {
	out := r
	if r.Segments != nil {
		out.Segments = make([]Segment, len(r.Segments))
		copy(out.Segments, r.Segments)
	}
	if r.Sequence != nil {
		seq := *r.Sequence
		out.Sequence = &seq
	}
	return out
}

// Event types attached to published record envelopes.
const (
	EventRecordUpdated = "record.updated"
	EventRecordFinal   = "record.final"
)

// RecordEvent is the envelope published to downstream consumers after an
// update is accepted into a record.
type RecordEvent struct {
	EventType string           `json:"eventType"`
	Record    TranscriptRecord `json:"record"`
	EmittedAt int64            `json:"emittedAt"`
}
