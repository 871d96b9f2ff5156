package reconcile

import (
	"slices"
	"testing"

	"live-transcript-reconciler/internal/models"
)

func seg(start, end float64, text string, completed bool) models.Segment {
	return models.Segment{Start: start, End: end, Text: text, Completed: completed}
}

func TestMergeSegments_ConfirmedPrefixExtends(t *testing.T) {
	existing := []models.Segment{seg(0, 10, "hello", true)}
	incoming := []models.Segment{
		seg(0, 10, "hello", true),
		seg(10, 20, "world", false),
	}

	got := mergeSegments(existing, incoming, "hello")

	want := []models.Segment{
		seg(0, 10, "hello", true),
		seg(10, 20, "world", false),
	}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMergeSegments_ConfirmedPrefixReplacesInterimTail(t *testing.T) {
	existing := []models.Segment{
		seg(0, 10, "hello", true),
		seg(10, 20, "world", false),
	}
	incoming := []models.Segment{
		seg(0, 10, "hello", true),
		seg(10, 25, "world wide", true),
	}

	got := mergeSegments(existing, incoming, "hello world")

	want := []models.Segment{
		seg(0, 10, "hello", true),
		seg(10, 25, "world wide", true),
	}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMergeSegments_ConfirmedPrefixDropsReOverlap(t *testing.T) {
	existing := []models.Segment{seg(0, 10, "hello", true)}
	incoming := []models.Segment{
		seg(0, 10, "hello", true),
		// Reaches back into the confirmed head, must not survive.
		seg(8, 12, "hel lo", false),
		seg(10, 15, "there", false),
	}

	got := mergeSegments(existing, incoming, "hello")

	want := []models.Segment{
		seg(0, 10, "hello", true),
		seg(10, 15, "there", false),
	}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMergeSegments_CorrectionCutsAtFirstIncomplete(t *testing.T) {
	existing := []models.Segment{
		seg(0, 5, "one", true),
		seg(5, 8, "two", false),
		seg(8, 12, "three", false),
	}
	incoming := []models.Segment{
		seg(5, 9, "too", true),
		seg(9, 14, "threes", false),
	}

	got := mergeSegments(existing, incoming, "one two three")

	want := []models.Segment{
		seg(0, 5, "one", true),
		seg(5, 9, "too", true),
		seg(9, 14, "threes", false),
	}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMergeSegments_InterimNeverDisturbsCompleted(t *testing.T) {
	existing := []models.Segment{
		seg(0, 5, "one", true),
		seg(5, 8, "two", false),
	}
	incoming := []models.Segment{
		// Interim re-reading starting inside the completed prefix.
		seg(3, 9, "one two-ish", false),
		seg(9, 11, "more", false),
	}

	got := mergeSegments(existing, incoming, "one two")

	// The completed prefix survives; only segments clearing its trailing
	// edge are taken.
	want := []models.Segment{
		seg(0, 5, "one", true),
		seg(9, 11, "more", false),
	}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMergeSegments_FullyCompletedListAppendsBeyondEdge(t *testing.T) {
	existing := []models.Segment{
		seg(0, 5, "one", true),
		seg(5, 10, "two", true),
	}
	incoming := []models.Segment{
		seg(2, 6, "rewrite", true),
		seg(10, 14, "three", false),
	}

	got := mergeSegments(existing, incoming, "one two")

	want := []models.Segment{
		seg(0, 5, "one", true),
		seg(5, 10, "two", true),
		seg(10, 14, "three", false),
	}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMergeSegments_EmptyExistingMatchesFlatText(t *testing.T) {
	incoming := []models.Segment{
		seg(0, 5, "hi", true),
		seg(5, 9, "there", false),
	}

	got := mergeSegments(nil, incoming, "hi")

	want := []models.Segment{
		seg(0, 5, "hi", true),
		seg(5, 9, "there", false),
	}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMergeSegments_EmptyExistingNoMatchTakesIncoming(t *testing.T) {
	incoming := []models.Segment{seg(0, 5, "different", false)}

	got := mergeSegments(nil, incoming, "hello")

	want := []models.Segment{seg(0, 5, "different", false)}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMergeSegments_NoIncomingKeepsExisting(t *testing.T) {
	existing := []models.Segment{seg(0, 10, "hello", true)}

	got := mergeSegments(existing, nil, "hello")

	if !slices.Equal(got, existing) {
		t.Errorf("expected %v, got %v", existing, got)
	}

	// The result is a copy, not an alias of the stored list.
	got[0].Text = "mutated"
	if existing[0].Text != "hello" {
		t.Error("expected existing list to be unaffected by mutating the result")
	}
}

func TestOverlaySegment(t *testing.T) {
	tests := []struct {
		name string
		segs []models.Segment
		in   models.Segment
		want []models.Segment
	}{
		{
			"into empty",
			nil,
			seg(0, 5, "a", false),
			[]models.Segment{seg(0, 5, "a", false)},
		},
		{
			"evicts overlapped",
			[]models.Segment{seg(0, 5, "a", true), seg(5, 10, "b", false)},
			seg(4, 11, "ab", true),
			[]models.Segment{seg(4, 11, "ab", true)},
		},
		{
			"inserts sorted between",
			[]models.Segment{seg(0, 2, "a", true), seg(8, 10, "c", true)},
			seg(3, 6, "b", true),
			[]models.Segment{seg(0, 2, "a", true), seg(3, 6, "b", true), seg(8, 10, "c", true)},
		},
		{
			"touching endpoints kept",
			[]models.Segment{seg(0, 5, "a", true)},
			seg(5, 10, "b", false),
			[]models.Segment{seg(0, 5, "a", true), seg(5, 10, "b", false)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := overlaySegment(tt.segs, tt.in)
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNormalizeSegments(t *testing.T) {
	tests := []struct {
		name string
		in   []models.Segment
		want []models.Segment
	}{
		{
			"collapses adjacent identical",
			[]models.Segment{seg(0, 5, "a", true), seg(5, 9, "a", true), seg(9, 12, "b", false)},
			[]models.Segment{seg(0, 9, "a", true), seg(9, 12, "b", false)},
		},
		{
			"sorts before collapsing",
			[]models.Segment{seg(9, 12, "b", false), seg(0, 5, "a", true), seg(5, 9, "a", true)},
			[]models.Segment{seg(0, 9, "a", true), seg(9, 12, "b", false)},
		},
		{
			"different completed flag not collapsed",
			[]models.Segment{seg(0, 5, "a", true), seg(5, 9, "a", false)},
			[]models.Segment{seg(0, 5, "a", true), seg(5, 9, "a", false)},
		},
		{
			"exact duplicate collapses to one",
			[]models.Segment{seg(0, 5, "a", true), seg(0, 5, "a", true)},
			[]models.Segment{seg(0, 5, "a", true)},
		},
		{
			"empty stays empty",
			nil,
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeSegments(tt.in)
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFlattenText(t *testing.T) {
	tests := []struct {
		name string
		in   []models.Segment
		want string
	}{
		{"joins with single space", []models.Segment{seg(0, 1, "hello", true), seg(1, 2, "world", true)}, "hello world"},
		{"collapses inner whitespace", []models.Segment{seg(0, 1, "  hello ", true), seg(1, 2, "world  wide", true)}, "hello world wide"},
		{"empty list", nil, ""},
		{"whitespace only", []models.Segment{seg(0, 1, "   ", true)}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := flattenText(tt.in); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestAllCompleted(t *testing.T) {
	tests := []struct {
		name string
		in   []models.Segment
		want bool
	}{
		{"empty list", nil, false},
		{"all completed", []models.Segment{seg(0, 1, "a", true), seg(1, 2, "b", true)}, true},
		{"one interim", []models.Segment{seg(0, 1, "a", true), seg(1, 2, "b", false)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := allCompleted(tt.in); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
