package reconcile

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"live-transcript-reconciler/internal/models"
)

// compareSegments orders segments by (start, end).
func compareSegments(a, b models.Segment) int {
	if c := cmp.Compare(a.Start, b.Start); c != 0 {
		return c
	}
	return cmp.Compare(a.End, b.End)
}

// mergeSegments folds one incoming segment batch into the existing list.
// Recognizers re-send a stable completed prefix ahead of each new chunk, so
// the relationship between the first incoming segment and the head of the
// stored list decides how much of the stored list survives.
//
// Rules, in priority order, for the first incoming segment f:
//
//  1. f is completed and its text equals the head of the stored list (or the
//     record's flat text when nothing is stored): f re-confirms the prefix.
//     The stored list is kept, and segments after f are overlaid onto it,
//     skipping any that reach back into the confirmed head.
//  2. f is completed with different text: a correction. The stored list is
//     cut at its first incomplete segment; incoming segments are appended
//     after the kept prefix's trailing edge.
//  3. f is not completed: same cut as rule 2. An interim reading never
//     disturbs already-completed content.
//  4. Overlay fallback: each incoming segment evicts whatever it overlaps
//     and is inserted in sorted position (overlaySegment / overlayTail).
//  5. No incoming segments: the stored list is kept unchanged.
//
// flatText is the record's current flattened text, used as the comparison
// target when the stored list is empty. Both inputs must be sorted by
// (start, end); the result is sorted but not yet normalized.
func mergeSegments(existing, incoming []models.Segment, flatText string) []models.Segment {
	if len(incoming) == 0 {
		return slices.Clone(existing)
	}

	first := incoming[0]
	target := flatText
	if len(existing) > 0 {
		target = existing[0].Text
	}

	if first.Completed && first.Text == target {
		return confirmPrefix(existing, incoming)
	}
	return replaceFromInterim(existing, incoming)
}

// confirmPrefix handles a re-confirmed head: the stored list stays, and the
// rest of the incoming batch is overlaid after the confirmed segment's end.
func confirmPrefix(existing, incoming []models.Segment) []models.Segment {
	merged := slices.Clone(existing)
	base := incoming[0]
	if len(existing) > 0 {
		base = existing[0]
	} else {
		merged = append(merged, base)
	}

	tail := make([]models.Segment, 0, len(incoming)-1)
	for _, seg := range incoming[1:] {
		// Anything reaching back into the confirmed head is a stale
		// re-send, not new content.
		if seg.Start < base.End {
			continue
		}
		tail = append(tail, seg)
	}
	return overlayTail(merged, tail)
}

// replaceFromInterim keeps the completed prefix of the stored list and
// rebuilds everything from its first incomplete segment out of the incoming
// batch. Incoming segments that start before the kept prefix ends are
// dropped rather than allowed to rewrite completed content.
func replaceFromInterim(existing, incoming []models.Segment) []models.Segment {
	cut := len(existing)
	for i, seg := range existing {
		if !seg.Completed {
			cut = i
			break
		}
	}

	merged := slices.Clone(existing[:cut])
	edge := math.Inf(-1)
	if len(merged) > 0 {
		edge = merged[len(merged)-1].End
	}
	for _, seg := range incoming {
		if seg.Start >= edge {
			merged = append(merged, seg)
		}
	}
	return merged
}

// overlayTail applies overlaySegment for each segment in order.
func overlayTail(segs []models.Segment, tail []models.Segment) []models.Segment {
	for _, seg := range tail {
		segs = overlaySegment(segs, seg)
	}
	return segs
}

// overlaySegment removes every stored segment whose interval overlaps seg,
// then inserts seg keeping the list sorted by (start, end).
func overlaySegment(segs []models.Segment, seg models.Segment) []models.Segment {
	out := make([]models.Segment, 0, len(segs)+1)
	for _, s := range segs {
		if s.Overlaps(seg) {
			continue
		}
		out = append(out, s)
	}

	at := slices.IndexFunc(out, func(s models.Segment) bool {
		return compareSegments(seg, s) < 0
	})
	if at < 0 {
		return append(out, seg)
	}
	return slices.Insert(out, at, seg)
}

// normalizeSegments sorts the list by (start, end) and collapses adjacent
// entries with identical text and completed flag into one, widening the
// survivor to cover the whole run.
func normalizeSegments(segs []models.Segment) []models.Segment {
	if len(segs) == 0 {
		return segs
	}

	sorted := slices.Clone(segs)
	slices.SortFunc(sorted, compareSegments)

	out := make([]models.Segment, 0, len(sorted))
	out = append(out, sorted[0])
	for _, seg := range sorted[1:] {
		last := &out[len(out)-1]
		if seg.Text == last.Text && seg.Completed == last.Completed {
			// The list is sorted, so the run's first entry already
			// carries its minimum start; only the end can widen.
			if seg.End > last.End {
				last.End = seg.End
			}
			continue
		}
		out = append(out, seg)
	}
	return out
}

// flattenText joins segment texts with single spaces, collapsing any run of
// whitespace and trimming the ends.
func flattenText(segs []models.Segment) string {
	parts := make([]string, 0, len(segs))
	for _, seg := range segs {
		parts = append(parts, seg.Text)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// allCompleted returns true if the list is non-empty and every segment in it
// is completed.
func allCompleted(segs []models.Segment) bool {
	for _, seg := range segs {
		if !seg.Completed {
			return false
		}
	}
	return len(segs) > 0
}
