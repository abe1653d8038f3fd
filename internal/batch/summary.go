package batch

import (
	"sync"

	"github.com/roach88/cashier/internal/record"
)

// Summary describes one finished batch run.
type Summary struct {
	RunID string `json:"run_id"`
	Total int    `json:"total"`

	// Outcomes counts applied outcomes by kind, e.g. "registered": 2.
	Outcomes map[string]int `json:"outcomes"`

	// StoreErrors counts items whose outcome could not be written.
	StoreErrors int `json:"store_errors,omitempty"`

	// Interrupted counts items abandoned because the run was cancelled.
	// They keep their previous state and flags.
	Interrupted int `json:"interrupted,omitempty"`
}

// tally accumulates a Summary from concurrent workers.
type tally struct {
	mu sync.Mutex
	s  Summary
}

func newTally(runID string, total int) *tally {
	return &tally{s: Summary{RunID: runID, Total: total, Outcomes: map[string]int{}}}
}

func (t *tally) outcome(kind record.OutcomeKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Outcomes[kind.String()]++
}

func (t *tally) storeError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.StoreErrors++
}

func (t *tally) interrupted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Interrupted++
}

func (t *tally) summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.s
	out.Outcomes = make(map[string]int, len(t.s.Outcomes))
	for k, v := range t.s.Outcomes {
		out.Outcomes[k] = v
	}
	return out
}
