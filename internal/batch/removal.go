package batch

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/cashier/internal/record"
	"github.com/roach88/cashier/internal/remote"
)

// RemovalClient is the admin API as seen by the removal driver.
type RemovalClient interface {
	RemovePurchase(ctx context.Context, companyID, purchaseID int64) (remote.RemovalStatus, error)
}

// RemovalStore persists removal outcomes.
type RemovalStore interface {
	ApplyRemovalOutcome(ctx context.Context, purchaseID int64, outcome record.Outcome) error
}

// CompanyResolver returns the company the admin session acts for.
type CompanyResolver func(ctx context.Context) (int64, error)

// RemovalDriver removes uploaded purchases through the admin API on behalf
// of one company.
type RemovalDriver struct {
	client    RemovalClient
	store     RemovalStore
	companyID int64
	opts      Options
}

// OpenRemoval resolves the session's company id, exactly once, and returns a
// driver bound to it. A resolution failure aborts before any purchase is
// touched.
func OpenRemoval(ctx context.Context, resolve CompanyResolver, client RemovalClient, store RemovalStore, opts Options) (*RemovalDriver, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("removal driver: %w", err)
	}

	companyID, err := resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("removal driver: resolve company: %w", err)
	}
	opts.Logger.Debug("admin session opened", zap.Int64("company_id", companyID))

	return &RemovalDriver{client: client, store: store, companyID: companyID, opts: opts}, nil
}

// CompanyID returns the company the driver removes purchases for.
func (d *RemovalDriver) CompanyID() int64 {
	return d.companyID
}

// Run drains pool of purchase ids. Like UploadDriver.Run, per-item failures
// are recorded and never returned, and a rejected admin token stops the run
// with the AUTH_FAILED error.
func (d *RemovalDriver) Run(ctx context.Context, pool *Pool[int64]) (Summary, error) {
	runID := d.opts.RunIDs.Generate()
	logger := d.opts.Logger.With(zap.String("run_id", runID), zap.Int64("company_id", d.companyID))
	t := newTally(runID, pool.Len())

	logger.Info("removal started", zap.Int("purchases", pool.Len()), zap.Int("workers", d.opts.Workers))

	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	stop := startProgress(runCtx, d.opts.ProgressInterval, pool, func(ctx context.Context, left int) {
		notify(ctx, d.opts.Feedback, logger, fmt.Sprintf("%d purchases left to remove", left))
	})
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < d.opts.Workers; i++ {
		worker := logger.With(zap.Int("worker", i))
		g.Go(func() error {
			for gctx.Err() == nil {
				purchaseID, ok := pool.Pop()
				if !ok {
					return nil
				}
				d.handle(gctx, worker, t, purchaseID, abort)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := t.summary()
	logger.Info("removal finished", zap.Any("outcomes", summary.Outcomes),
		zap.Int("store_errors", summary.StoreErrors), zap.Int("interrupted", summary.Interrupted))
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, context.Cause(runCtx)
}

func (d *RemovalDriver) handle(ctx context.Context, logger *zap.Logger, t *tally, purchaseID int64, abort context.CancelCauseFunc) {
	outcome, msg, fatal := d.outcomeFor(ctx, purchaseID)
	if fatal != nil {
		logger.Error("admin rejected the token, stopping removal", zap.Int64("purchase_id", purchaseID), zap.Error(fatal))
		abort(fatal)
		t.interrupted()
		notify(context.WithoutCancel(ctx), d.opts.Feedback, logger, fmt.Sprintf("Removal stopped: %v", fatal))
		return
	}

	if outcome.Kind == record.TransientFailure && ctx.Err() != nil {
		logger.Info("removal interrupted", zap.Int64("purchase_id", purchaseID))
		t.interrupted()
		return
	}

	if err := d.store.ApplyRemovalOutcome(context.WithoutCancel(ctx), purchaseID, outcome); err != nil {
		logger.Error("record removal outcome",
			zap.Int64("purchase_id", purchaseID), zap.Stringer("outcome", outcome.Kind), zap.Error(err))
		notify(ctx, d.opts.Feedback, logger, fmt.Sprintf("Could not record %s for %d: %v", outcome.Kind, purchaseID, err))
		t.storeError()
		return
	}
	t.outcome(outcome.Kind)
	notify(ctx, d.opts.Feedback, logger, msg)
}

// outcomeFor calls the admin API. A missing purchase counts as removed; a
// rejected token is returned as fatal.
func (d *RemovalDriver) outcomeFor(ctx context.Context, purchaseID int64) (outcome record.Outcome, msg string, fatal error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = record.TransientOutcome(fmt.Errorf("panic: %v", r))
			msg = fmt.Sprintf("There was an error while removing %d: %s", purchaseID, outcome.Reason)
		}
	}()

	status, err := d.client.RemovePurchase(ctx, d.companyID, purchaseID)
	switch {
	case remote.IsAuthError(err):
		return record.Outcome{}, "", err
	case err != nil:
		return record.TransientOutcome(err), fmt.Sprintf("There was an error while removing %d: %v", purchaseID, err), nil
	case status == remote.NotFound:
		return record.RemovedOutcome(), fmt.Sprintf("%d is already removed.", purchaseID), nil
	}
	return record.RemovedOutcome(), fmt.Sprintf("%d is removed.", purchaseID), nil
}
