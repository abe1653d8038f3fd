package record

import "fmt"

// State is the lifecycle state of a phone record.
type State string

const (
	StateReady    State = "ready"
	StateUploaded State = "uploaded"
	StateCleared  State = "cleared"
	StateBroken   State = "broken"
)

// States lists every state in lifecycle order.
var States = []State{StateReady, StateUploaded, StateCleared, StateBroken}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateCleared || s == StateBroken
}

// Record is one row of the phones table.
type Record struct {
	Phone          string `db:"phone"`
	State          State  `db:"state"`
	PurchaseID     *int64 `db:"purchase_id"`
	FailedToUpload bool   `db:"failed_to_upload"`
	FailedToClear  bool   `db:"failed_to_clear"`
}

// CanTransition reports whether from → to is a legal state transition.
func CanTransition(from, to State) bool {
	switch from {
	case StateReady:
		return to == StateUploaded || to == StateBroken || to == StateCleared
	case StateUploaded:
		return to == StateCleared
	}
	return false
}

// Count keys for flags; state keys use the State value itself.
const (
	FlagFailedToUpload = "failed_to_upload"
	FlagFailedToClear  = "failed_to_clear"
)

// Counts maps a state or flag name to the number of records carrying it.
// Zero entries are omitted.
type Counts map[string]int

// String renders counts in lifecycle order, e.g. "ready=3 uploaded=2".
func (c Counts) String() string {
	keys := make([]string, 0, len(States)+2)
	for _, s := range States {
		keys = append(keys, string(s))
	}
	keys = append(keys, FlagFailedToUpload, FlagFailedToClear)

	out := ""
	for _, k := range keys {
		n, ok := c[k]
		if !ok {
			continue
		}
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%s=%d", k, n)
	}
	if out == "" {
		return "empty"
	}
	return out
}
