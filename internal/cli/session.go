package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/cashier/internal/admin"
	"github.com/roach88/cashier/internal/batch"
	"github.com/roach88/cashier/internal/cashier"
	"github.com/roach88/cashier/internal/config"
	"github.com/roach88/cashier/internal/store"
)

// session is everything a command needs once flags are parsed.
type session struct {
	opts   *RootOptions
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	out    *OutputFormatter
}

// openSession loads config, builds the logger and opens the database.
// The caller must Close the session.
func (o *RootOptions) openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := o.newLogger()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to initialize logger", err)
	}

	logger.Debug("opening database", zap.String("path", cfg.Database))
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	return &session{
		opts:   o,
		cfg:    cfg,
		logger: logger,
		store:  st,
		out: &OutputFormatter{
			Format:    o.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   o.Verbose,
		},
	}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", zap.Error(err))
	}
	_ = s.logger.Sync()
}

func (s *session) cashierClient(token string) *cashier.Client {
	return cashier.New(cashier.Config{
		Site:              s.cfg.Cashier.Site,
		LoginPath:         s.cfg.Cashier.LoginPath,
		UserInfoPath:      s.cfg.Cashier.UserInfoPath,
		PurchasePath:      s.cfg.Cashier.PurchasePath,
		InvalidPhoneCodes: s.cfg.Cashier.InvalidPhoneCodes,
		Timeout:           s.cfg.HTTPTimeout,
	}, token, s.logger)
}

func (s *session) adminClient(token string) *admin.Client {
	return admin.New(admin.Config{
		Site:        s.cfg.Admin.Site,
		LoginURL:    s.cfg.Admin.LoginURL,
		TokenPath:   s.cfg.Admin.TokenPath,
		CompanyPath: s.cfg.Admin.CompanyPath,
		RemovePath:  s.cfg.Admin.RemovePath,
		Timeout:     s.cfg.HTTPTimeout,
	}, token, s.logger)
}

// batchOptions returns driver options writing feedback to the formatter.
func (s *session) batchOptions(workers int) batch.Options {
	return batch.Options{
		Workers:          workers,
		ProgressInterval: s.cfg.ProgressInterval,
		Feedback:         batch.WriterFeedback(s.out.FeedbackWriter()),
		Logger:           s.logger,
		RunIDs:           s.opts.RunIDs,
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM, or when
// the parent is cancelled. stop releases the signal handler.
func (s *session) signalContext(parent context.Context) (ctx context.Context, stop func()) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case sig := <-sigChan:
			s.logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
		<-done
	}
}
