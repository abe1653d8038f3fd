package batch

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/cashier/internal/record"
	"github.com/roach88/cashier/internal/remote"
)

// UploadClient is the cashier API as seen by the upload driver.
type UploadClient interface {
	CheckExists(ctx context.Context, phone string) (bool, error)
	RegisterPurchase(ctx context.Context, phone, amount string) (int64, error)
}

// UploadStore persists upload outcomes.
type UploadStore interface {
	ApplyUploadOutcome(ctx context.Context, phone string, outcome record.Outcome) error
}

// UploadDriver registers ready phones with the cashier API.
type UploadDriver struct {
	client UploadClient
	store  UploadStore
	amount string
	opts   Options
}

// NewUploadDriver creates an upload driver registering purchases of amount.
func NewUploadDriver(client UploadClient, store UploadStore, amount string, opts Options) (*UploadDriver, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("upload driver: %w", err)
	}
	return &UploadDriver{client: client, store: store, amount: amount, opts: opts}, nil
}

// Run drains pool with the configured number of workers and returns once
// every worker has exited. Per-item failures are recorded, never returned.
// The run stops early, leaving the remaining phones untouched, when ctx is
// cancelled (ctx.Err() is returned) or when the cashier rejects the token
// (the AUTH_FAILED error is returned).
func (d *UploadDriver) Run(ctx context.Context, pool *Pool[string]) (Summary, error) {
	runID := d.opts.RunIDs.Generate()
	logger := d.opts.Logger.With(zap.String("run_id", runID))
	t := newTally(runID, pool.Len())

	logger.Info("upload started", zap.Int("phones", pool.Len()), zap.Int("workers", d.opts.Workers))

	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	stop := startProgress(runCtx, d.opts.ProgressInterval, pool, func(ctx context.Context, left int) {
		notify(ctx, d.opts.Feedback, logger, fmt.Sprintf("%d phones left to upload", left))
	})
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < d.opts.Workers; i++ {
		worker := logger.With(zap.Int("worker", i))
		g.Go(func() error {
			for gctx.Err() == nil {
				phone, ok := pool.Pop()
				if !ok {
					return nil
				}
				d.handle(gctx, worker, t, phone, abort)
			}
			return nil
		})
	}
	_ = g.Wait() // workers never fail

	summary := t.summary()
	logger.Info("upload finished", zap.Any("outcomes", summary.Outcomes),
		zap.Int("store_errors", summary.StoreErrors), zap.Int("interrupted", summary.Interrupted))
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, context.Cause(runCtx)
}

// handle processes one phone end to end.
func (d *UploadDriver) handle(ctx context.Context, logger *zap.Logger, t *tally, phone string, abort context.CancelCauseFunc) {
	outcome, fatal := d.outcomeFor(ctx, phone)
	if fatal != nil {
		logger.Error("cashier rejected the token, stopping upload", zap.String("phone", phone), zap.Error(fatal))
		abort(fatal)
		t.interrupted()
		notify(context.WithoutCancel(ctx), d.opts.Feedback, logger, fmt.Sprintf("Upload stopped: %v", fatal))
		return
	}

	if outcome.Kind == record.TransientFailure && ctx.Err() != nil {
		logger.Info("upload interrupted", zap.String("phone", phone))
		t.interrupted()
		return
	}

	// The write completes even if the run is cancelled meanwhile.
	if err := d.store.ApplyUploadOutcome(context.WithoutCancel(ctx), phone, outcome); err != nil {
		logger.Error("record upload outcome",
			zap.String("phone", phone), zap.Stringer("outcome", outcome.Kind), zap.Error(err))
		notify(ctx, d.opts.Feedback, logger, fmt.Sprintf("Could not record %s for %s: %v", outcome.Kind, phone, err))
		t.storeError()
		return
	}
	t.outcome(outcome.Kind)

	logger.Debug("phone processed", zap.String("phone", phone), zap.Stringer("outcome", outcome.Kind))
	notify(ctx, d.opts.Feedback, logger, uploadMessage(phone, outcome))
}

// outcomeFor talks to the cashier API and classifies the result. A rejected
// token is returned as fatal instead of an outcome. A panicking client is
// treated like any other transient failure.
func (d *UploadDriver) outcomeFor(ctx context.Context, phone string) (outcome record.Outcome, fatal error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = record.TransientOutcome(fmt.Errorf("panic: %v", r))
		}
	}()

	exists, err := d.client.CheckExists(ctx, phone)
	switch {
	case remote.IsAuthError(err):
		return record.Outcome{}, err
	case remote.IsInvalidPhone(err):
		return record.BrokenOutcome(err.Error()), nil
	case err != nil:
		return record.TransientOutcome(err), nil
	case exists:
		return record.AlreadyExistsOutcome(), nil
	}

	purchaseID, err := d.client.RegisterPurchase(ctx, phone, d.amount)
	switch {
	case remote.IsAuthError(err):
		return record.Outcome{}, err
	case err != nil:
		return record.TransientOutcome(err), nil
	}
	return record.RegisteredOutcome(purchaseID), nil
}

func uploadMessage(phone string, o record.Outcome) string {
	switch o.Kind {
	case record.AlreadyExists:
		return fmt.Sprintf("%s already exists.", phone)
	case record.Registered:
		return fmt.Sprintf("%s is uploaded as purchase %d.", phone, o.PurchaseID)
	case record.Broken:
		return fmt.Sprintf("%s is not a valid phone: %s", phone, o.Reason)
	}
	return fmt.Sprintf("Unexpected error while uploading %s: %s", phone, o.Reason)
}
