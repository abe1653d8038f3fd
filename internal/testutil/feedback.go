package testutil

import (
	"context"
	"strings"
	"sync"
)

// RecordingFeedback keeps every message it receives.
// Err, when set, is returned from every Notify after recording.
type RecordingFeedback struct {
	mu       sync.Mutex
	messages []string
	Err      error
}

// Notify implements batch.Feedback.
func (r *RecordingFeedback) Notify(_ context.Context, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return r.Err
}

// Messages returns a copy of the recorded messages.
func (r *RecordingFeedback) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Contains reports whether any message contains substr.
func (r *RecordingFeedback) Contains(substr string) bool {
	for _, m := range r.Messages() {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}
