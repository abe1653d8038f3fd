package batch

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Feedback receives user-facing progress and per-item messages.
type Feedback interface {
	Notify(ctx context.Context, msg string) error
}

// FeedbackFunc adapts a function to Feedback.
type FeedbackFunc func(ctx context.Context, msg string) error

// Notify calls f.
func (f FeedbackFunc) Notify(ctx context.Context, msg string) error {
	return f(ctx, msg)
}

// WriterFeedback writes one line per message to w.
// Safe for concurrent use.
func WriterFeedback(w io.Writer) Feedback {
	var mu sync.Mutex
	return FeedbackFunc(func(_ context.Context, msg string) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := fmt.Fprintln(w, msg)
		return err
	})
}

// DiscardFeedback drops every message.
var DiscardFeedback Feedback = FeedbackFunc(func(context.Context, string) error { return nil })

// notify delivers msg best-effort: a failing sink is logged, never returned.
func notify(ctx context.Context, fb Feedback, logger *zap.Logger, msg string) {
	if err := fb.Notify(ctx, msg); err != nil {
		logger.Warn("feedback failed", zap.String("message", msg), zap.Error(err))
	}
}
