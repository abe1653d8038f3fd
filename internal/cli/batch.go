package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/cashier/internal/batch"
	"github.com/roach88/cashier/internal/store"
)

// UploadOptions holds flags for the upload command.
type UploadOptions struct {
	*RootOptions
	Token   string
	Limit   int
	Workers int
}

// NewUploadCommand creates the upload command.
func NewUploadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UploadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "upload",
		Aliases: []string{"start_uploading"},
		Short:   "Register ready phones as purchases",
		Long: `Register every ready phone with the cashier API. Phones that are
already participants are cleared, invalid phones are marked broken and
transient failures are flagged for a later retry.

Interrupting the run (Ctrl-C) lets in-flight phones finish; the rest stay ready.

Example:
  cashier upload --workers 5
  cashier upload --token <cashier token> --limit 100`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := s.signalContext(cmd.Context())
			defer stop()

			summary, err := s.upload(ctx, opts.Token, opts.Limit, opts.Workers)
			if err != nil && summary == nil {
				return err
			}
			if emitErr := s.out.Emit(summary, summaryText("Upload", *summary)); emitErr != nil {
				return emitErr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Token, "token", "", "cashier token (default: the stored one)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "upload at most this many phones (0 = all)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent uploads (default from config)")

	return cmd
}

// RemoveOptions holds flags for the remove command.
type RemoveOptions struct {
	*RootOptions
	Token         string
	Workers       int
	IncludeFailed bool
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RemoveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "remove",
		Aliases: []string{"remove_purchases"},
		Short:   "Remove uploaded purchases through the admin API",
		Long: `Remove the purchase of every uploaded phone. Removed purchases (and
purchases the admin API no longer knows) are cleared; failures are flagged
and skipped by later runs unless --include-failed is given.

The admin API does not cope with parallel removals; keep --workers small.

Example:
  cashier remove
  cashier remove --include-failed --workers 1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := s.signalContext(cmd.Context())
			defer stop()

			summary, err := s.remove(ctx, opts.Token, opts.Workers, opts.IncludeFailed)
			if err != nil && summary == nil {
				return err
			}
			if emitErr := s.out.Emit(summary, summaryText("Removal", *summary)); emitErr != nil {
				return emitErr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Token, "token", "", "admin token (default: the stored one)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent removals (default from config)")
	cmd.Flags().BoolVar(&opts.IncludeFailed, "include-failed", false, "also retry purchases flagged failed_to_clear")

	return cmd
}

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
}

// runResult is the JSON payload of the run command.
type runResult struct {
	Upload  *batch.Summary `json:"upload"`
	Removal *batch.Summary `json:"removal,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Upload ready phones, then remove uploaded purchases",
		Long: `Run an upload batch followed by a removal batch, both with the stored
tokens and configured worker counts. The removal batch is skipped when the
upload batch is interrupted.

Example:
  cashier run --db ./phones.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := s.signalContext(cmd.Context())
			defer stop()

			var res runResult
			res.Upload, err = s.upload(ctx, "", 0, 0)
			if err == nil {
				res.Removal, err = s.remove(ctx, "", 0, false)
			}
			if res.Upload == nil {
				return err
			}

			lines := []string{summaryText("Upload", *res.Upload)}
			if res.Removal != nil {
				lines = append(lines, summaryText("Removal", *res.Removal))
			}
			if emitErr := s.out.Emit(res, strings.Join(lines, "\n")); emitErr != nil {
				return emitErr
			}
			return err
		},
	}

	return cmd
}

// upload runs one upload batch. A nil summary means the batch never started.
func (s *session) upload(ctx context.Context, token string, limit, workers int) (*batch.Summary, error) {
	if token == "" {
		var err error
		if token, err = s.store.CashierToken(ctx); err != nil {
			return nil, tokenError(err)
		}
	}
	if workers <= 0 {
		workers = s.cfg.Upload.Workers
	}

	records, err := s.store.ListReady(ctx, limit)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to list ready phones", err)
	}
	phones := make([]string, len(records))
	for i, r := range records {
		phones[i] = r.Phone
	}

	driver, err := batch.NewUploadDriver(s.cashierClient(token), s.store, s.cfg.Upload.Amount, s.batchOptions(workers))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid upload options", err)
	}
	summary, err := driver.Run(ctx, batch.NewPool(phones))
	if err != nil {
		return &summary, WrapExitError(ExitFailure, "upload interrupted", err)
	}
	return &summary, nil
}

// remove runs one removal batch. A nil summary means the batch never started.
func (s *session) remove(ctx context.Context, token string, workers int, includeFailed bool) (*batch.Summary, error) {
	if token == "" {
		cred, err := s.store.AdminToken(ctx)
		if err != nil {
			return nil, tokenError(err)
		}
		token = cred.Token.String
	}
	if workers <= 0 {
		workers = s.cfg.Removal.Workers
	}

	ids, err := s.store.ListUploadedPurchaseIDs(ctx, includeFailed)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to list uploaded purchases", err)
	}

	client := s.adminClient(token)
	resolve := func(ctx context.Context) (int64, error) {
		return client.CompanyID(ctx, s.store)
	}
	driver, err := batch.OpenRemoval(ctx, resolve, client, s.store, s.batchOptions(workers))
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to open admin session", err)
	}
	s.logger.Debug("removing purchases", zap.Int64("company_id", driver.CompanyID()), zap.Int("purchases", len(ids)))

	summary, err := driver.Run(ctx, batch.NewPool(ids))
	if err != nil {
		return &summary, WrapExitError(ExitFailure, "removal interrupted", err)
	}
	return &summary, nil
}

func tokenError(err error) error {
	switch {
	case errors.Is(err, store.ErrNoCredentials):
		return WrapExitError(ExitCommandError, "Token is not defined.", err)
	case errors.Is(err, store.ErrAmbiguousCredentials):
		return WrapExitError(ExitCommandError, "several tokens are stored, pass --token", err)
	default:
		return WrapExitError(ExitFailure, "failed to read token", err)
	}
}

// summaryText renders a summary as one line, e.g.
// "Upload run r1: total=3 (already_exists=1 registered=2)."
func summaryText(kind string, s batch.Summary) string {
	keys := make([]string, 0, len(s.Outcomes))
	for k := range s.Outcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+2)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, s.Outcomes[k]))
	}
	if s.StoreErrors > 0 {
		parts = append(parts, fmt.Sprintf("store_errors=%d", s.StoreErrors))
	}
	if s.Interrupted > 0 {
		parts = append(parts, fmt.Sprintf("interrupted=%d", s.Interrupted))
	}

	text := fmt.Sprintf("%s run %s: total=%d", kind, s.RunID, s.Total)
	if len(parts) > 0 {
		text += " (" + strings.Join(parts, " ") + ")"
	}
	return text + "."
}
