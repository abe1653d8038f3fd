package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/cashier/internal/ingest"
	"github.com/roach88/cashier/internal/record"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "init",
		Aliases: []string{"create_db"},
		Short:   "Create the database schema",
		Long: `Create the SQLite database and its tables if they do not exist yet.
Existing databases are migrated to the current schema.

Example:
  cashier init --db ./phones.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			return s.out.Emit(
				map[string]string{"database": s.cfg.Database},
				fmt.Sprintf("Database %s is ready.", s.cfg.Database),
			)
		},
	}
}

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Path string
}

// ingestResult is the JSON payload of the ingest command.
type ingestResult struct {
	ingest.Result
	Counts record.Counts `json:"counts"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "ingest",
		Aliases: []string{"upload_file"},
		Short:   "Add phones from a file as ready records",
		Long: `Read a text file with one phone per line and add every phone not yet
known as a ready record. Lines without a phone are reported and skipped.

Example:
  cashier ingest --path ./phones.txt`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := ingest.File(cmd.Context(), s.store, opts.Path)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to ingest phones", err)
			}
			for _, line := range res.Invalid {
				s.logger.Warn("skipped line without phone", zap.String("line", line))
				fmt.Fprintf(s.out.Diag(), "%s is not a valid phone\n", line)
			}

			counts, err := s.store.Counts(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to count records", err)
			}
			return s.out.Emit(
				ingestResult{Result: res, Counts: counts},
				fmt.Sprintf("%d new phones are added.\n%s", res.Added, counts),
			)
		},
	}

	cmd.Flags().StringVar(&opts.Path, "path", "", "file with one phone per line (required)")
	_ = cmd.MarkFlagRequired("path")

	return cmd
}

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show record counts per state",
		Long: `Show how many records are in each state and how many carry a
failure flag.

Example:
  cashier info --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			counts, err := s.store.Counts(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to count records", err)
			}
			return s.out.Emit(counts, counts.String())
		},
	}
}

// RetryOptions holds flags for the retry command.
type RetryOptions struct {
	*RootOptions
	Upload bool
	Clear  bool
}

// NewRetryCommand creates the retry command.
func NewRetryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RetryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Reset failure flags so records are attempted again",
		Long: `Reset the failed_to_upload and/or failed_to_clear flags. Without
--upload or --clear both flags are reset. States are never changed.

Example:
  cashier retry --clear`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			resetUpload, resetClear := opts.Upload, opts.Clear
			if !resetUpload && !resetClear {
				resetUpload, resetClear = true, true
			}
			n, err := s.store.ResetFailed(cmd.Context(), resetUpload, resetClear)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to reset flags", err)
			}
			return s.out.Emit(map[string]int64{"reset": n}, fmt.Sprintf("%d records reset.", n))
		},
	}

	cmd.Flags().BoolVar(&opts.Upload, "upload", false, "reset failed_to_upload")
	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "reset failed_to_clear")

	return cmd
}
