package batch

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Options configures a driver.
type Options struct {
	// Workers is the number of concurrent workers. Must be positive.
	Workers int

	// ProgressInterval is the period of "N left" reports. Defaults to one second.
	ProgressInterval time.Duration

	// Feedback receives user-facing messages. Defaults to DiscardFeedback.
	Feedback Feedback

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// RunIDs defaults to UUIDv7Generator.
	RunIDs RunIDGenerator
}

func (o Options) withDefaults() (Options, error) {
	if o.Workers <= 0 {
		return o, fmt.Errorf("workers must be positive, got %d", o.Workers)
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = time.Second
	}
	if o.Feedback == nil {
		o.Feedback = DiscardFeedback
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.RunIDs == nil {
		o.RunIDs = UUIDv7Generator{}
	}
	return o, nil
}
