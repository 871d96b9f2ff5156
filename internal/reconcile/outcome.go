package reconcile

import "fmt"

// Outcome classifies what Apply did with an update.
type Outcome int

const (
	// OutcomeCreated - first update for a speaker, a new record was created.
	OutcomeCreated Outcome = iota
	// OutcomeMerged - update was folded into the speaker's existing record.
	OutcomeMerged
	// OutcomeStale - update lost the sequence race and was ignored.
	OutcomeStale
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "CREATED"
	case OutcomeMerged:
		return "MERGED"
	case OutcomeStale:
		return "STALE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", o)
	}
}

// Mutated returns true if the outcome changed stored state.
func (o Outcome) Mutated() bool {
	return o == OutcomeCreated || o == OutcomeMerged
}
