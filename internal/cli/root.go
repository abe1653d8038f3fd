package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/cashier/internal/batch"
	"github.com/roach88/cashier/internal/config"
	"github.com/roach88/cashier/internal/remote"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Database   string // overrides the configured database path
	ConfigPath string

	// Config, when set, is used instead of loading ConfigPath (for testing).
	Config *config.Config

	// Logger, when set, replaces the production logger (for testing).
	Logger *zap.Logger

	// RunIDs overrides the driver run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs batch.RunIDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cashier CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cashier",
		Short: "Register phone purchases with the cashier and clear them through admin",
		Long: `cashier drives a local SQLite list of phone numbers through their lifecycle:

  ready -> uploaded -> cleared
  ready -> broken | cleared (already a participant)

Phones are ingested from a file, registered as purchases with the cashier API,
and later removed again through the admin API.`,
		// Unknown methods are reported, not rejected, along with whatever
		// --key=value arguments follow them.
		Args:               cobra.ArbitraryArgs,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Method %s was not found.\n", args[0])
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "cashier.yaml", "path to YAML config file")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewInfoCommand(opts))
	cmd.AddCommand(NewAuthCommand(opts))
	cmd.AddCommand(NewAdminAuthCommand(opts))
	cmd.AddCommand(NewUploadCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewRetryCommand(opts))

	return cmd
}

// Execute runs the CLI with ctx, reporting a failure on stderr in the
// selected format. The returned error carries the exit code.
func Execute(ctx context.Context, args []string) error {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.ErrOrStderr(), Verbose: opts.Verbose}
		if !isValidFormat(f.Format) {
			f.Format = "text"
		}
		_ = f.Error(errorCode(err), err.Error(), nil)
	}
	return err
}

// errorCode maps an error to the code shown to the user.
func errorCode(err error) string {
	switch {
	case remote.IsAuthError(err):
		return string(remote.ErrCodeAuth)
	case remote.IsRemoteError(err):
		return string(remote.ErrCodeRemote)
	case GetExitCode(err) == ExitCommandError:
		return "COMMAND"
	default:
		return "FAILURE"
	}
}

// newLogger builds the process logger: production JSON on stderr, debug
// level with --verbose.
func (o *RootOptions) newLogger() (*zap.Logger, error) {
	if o.Logger != nil {
		return o.Logger, nil
	}
	cfg := zap.NewProductionConfig()
	if o.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// loadConfig returns the effective configuration with --db applied.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg := o.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(o.ConfigPath); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}
	if o.Database != "" {
		clone := *cfg
		clone.Database = o.Database
		cfg = &clone
	}
	return cfg, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
