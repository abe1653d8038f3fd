package batch

import (
	"context"
	"sync"
	"time"
)

// sizer is the part of Pool the progress reporter needs.
type sizer interface {
	Len() int
}

// startProgress reports the pool size immediately and then every interval
// until the pool drains or stop is called. stop cancels the reporter and
// waits for its goroutine to exit; it is safe to call more than once.
func startProgress(ctx context.Context, interval time.Duration, pool sizer, report func(ctx context.Context, left int)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			left := pool.Len()
			if left == 0 {
				return
			}
			report(ctx, left)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
