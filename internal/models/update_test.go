package models

import (
	"encoding/json"
	"testing"
)

func TestSegmentOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Segment
		want bool
	}{
		{"disjoint", Segment{Start: 0, End: 5}, Segment{Start: 10, End: 15}, false},
		{"touching endpoints", Segment{Start: 0, End: 10}, Segment{Start: 10, End: 20}, false},
		{"partial overlap", Segment{Start: 0, End: 12}, Segment{Start: 10, End: 20}, true},
		{"contained", Segment{Start: 5, End: 8}, Segment{Start: 0, End: 10}, true},
		{"identical", Segment{Start: 3, End: 7}, Segment{Start: 3, End: 7}, true},
		{"zero width inside", Segment{Start: 5, End: 5}, Segment{Start: 0, End: 10}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			// Overlap is symmetric.
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps(%v, %v) = %v, want %v", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestUpdateDecodesWireShape(t *testing.T) {
	payload := []byte(`{
		"speakerId": "speaker-1",
		"speakerName": "Ada",
		"sequence": 7,
		"language": "en",
		"segments": [
			{"start": 0.0, "end": 1.4, "text": "hello", "completed": true},
			{"start": 1.4, "end": 2.1, "text": "wor", "completed": false}
		]
	}`)

	var u Update
	if err := json.Unmarshal(payload, &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.SpeakerID != "speaker-1" || u.SpeakerName != "Ada" {
		t.Errorf("speaker fields = %q/%q", u.SpeakerID, u.SpeakerName)
	}
	if u.Sequence == nil || *u.Sequence != 7 {
		t.Errorf("sequence = %v, want 7", u.Sequence)
	}
	if u.IsFinal != nil {
		t.Errorf("isFinal should be absent, got %v", *u.IsFinal)
	}
	if len(u.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(u.Segments))
	}
	if u.Segments[0].Text != "hello" || !u.Segments[0].Completed {
		t.Errorf("first segment = %+v", u.Segments[0])
	}
	if u.Segments[1].End != 2.1 || u.Segments[1].Completed {
		t.Errorf("second segment = %+v", u.Segments[1])
	}
}

func TestTranscriptRecordCloneIsDeep(t *testing.T) {
	seq := int64(3)
	orig := TranscriptRecord{
		ID:        "rec-1",
		SpeakerID: "speaker-1",
		Text:      "hello world",
		Segments: []Segment{
			{Start: 0, End: 1, Text: "hello", Completed: true},
			{Start: 1, End: 2, Text: "world", Completed: false},
		},
		Sequence:  &seq,
		Timestamp: 1700000000000,
	}

	clone := orig.Clone()
	clone.Segments[0].Text = "mutated"
	*clone.Sequence = 99

	if orig.Segments[0].Text != "hello" {
		t.Errorf("original segment mutated through clone: %q", orig.Segments[0].Text)
	}
	if *orig.Sequence != 3 {
		t.Errorf("original sequence mutated through clone: %d", *orig.Sequence)
	}
}

func TestTranscriptRecordCloneNilFields(t *testing.T) {
	orig := TranscriptRecord{ID: "rec-2", SpeakerID: "speaker-2"}
	clone := orig.Clone()
	if clone.Segments != nil {
		t.Errorf("clone segments = %v, want nil", clone.Segments)
	}
	if clone.Sequence != nil {
		t.Errorf("clone sequence = %v, want nil", clone.Sequence)
	}
}
