package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/backend"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/catalog"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/config"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	CatalogDir string
	// MetricsFile receives backend metrics after the command when set.
	MetricsFile string

	viper *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the meadowlark CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

// Execute runs the CLI with args and returns the process exit code. Errors
// not already written by the failing command are reported on stdout as a
// CLIResponse with --format json, and on stderr otherwise.
func Execute(args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err != nil {
		reportError(opts, err, stdout, stderr)
	}
	return GetExitCode(err)
}

func reportError(opts *RootOptions, err error, stdout, stderr io.Writer) {
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		exitErr = &ExitError{Message: err.Error()}
	}
	if exitErr.reported {
		return
	}

	f := &OutputFormatter{Format: "text", Writer: stderr, Verbose: opts.Verbose}
	if opts.Format == "json" {
		f = &OutputFormatter{Format: "json", Writer: stdout, ErrWriter: stderr, Verbose: opts.Verbose}
	}

	var details any
	if exitErr.Err != nil {
		details = exitErr.Err.Error()
	}
	if err := f.Error(exitErr.errCode(), exitErr.Error(), details); err != nil {
		fmt.Fprintln(stderr, "Error:", exitErr.Error())
	}
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meadowlark",
		Short: "Meadowlark document store",
		Long: `Meadowlark stores Ed-Fi API documents in SQLite with reference
validation, superclass aliases and optimistic concurrency control.

Configuration is read from flags, MEADOWLARK_* environment variables and an
optional YAML file given with --config, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.initConfig(cmd)
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVarP(&opts.ConfigFile, "config", "c", "", "YAML configuration file")
	flags.StringVar(&opts.CatalogDir, "catalog", "", "directory of CUE resource definitions (default: embedded Ed-Fi catalog)")
	flags.StringVar(&opts.MetricsFile, "metrics", "", "write backend metrics in Prometheus text format to this file")

	// Configuration flags, bound to viper keys of the same name
	flags.String(config.FlagName(config.KeyConnection), ".", `database directory, or ":memory:"`)
	flags.String(config.FlagName(config.KeyDatabaseName), "meadowlark", "database file name without extension")
	flags.String(config.FlagName(config.KeyWriteConsistency), "normal", "SQLite synchronous level (off|normal|full|extra)")
	flags.String(config.FlagName(config.KeyReadConsistency), "immediate", "transaction lock mode (deferred|immediate|exclusive)")
	flags.Int(config.FlagName(config.KeyMaxNumberOfRetries), 1, "retries of the final write on a write conflict")
	flags.Int(config.FlagName(config.KeyMaxConnections), 4, "connection pool size")
	flags.Duration(config.FlagName(config.KeyBusyTimeout), 5*time.Second, "wait on a locked database before failing")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewUpsertCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewIdCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// initConfig layers the config file, environment and flags into viper.
func (o *RootOptions) initConfig(cmd *cobra.Command) error {
	o.viper = config.New()
	if o.ConfigFile != "" {
		if err := config.ReadFile(o.viper, o.ConfigFile); err != nil {
			return WrapExitError(ExitCommandError, "failed to read configuration", err).WithErrCode(ErrCodeConfig)
		}
	}
	if err := config.BindFlags(o.viper, cmd.Flags()); err != nil {
		return WrapExitError(ExitCommandError, "failed to bind flags", err).WithErrCode(ErrCodeConfig)
	}
	return nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// loadConfig validates the layered configuration.
func (o *RootOptions) loadConfig() (config.Config, error) {
	if o.viper == nil {
		o.viper = config.New()
	}
	cfg, err := config.Load(o.viper)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err).WithErrCode(ErrCodeConfig)
	}
	return cfg, nil
}

func (o *RootOptions) loadCatalog() (*catalog.Catalog, error) {
	var (
		c   *catalog.Catalog
		err error
	)
	if o.CatalogDir == "" {
		c, err = catalog.Default()
	} else {
		c, err = catalog.Load(o.CatalogDir)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load catalog", err).WithErrCode(ErrCodeCatalog)
	}
	return c, nil
}

// openBackend opens the process-wide store and wraps it in a backend. The
// returned release function writes metrics when --metrics is set and closes
// the store.
func (o *RootOptions) openBackend(cmd *cobra.Command) (*backend.Backend, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger := o.logger(cmd)
	logger.Debug("opening database", "path", cfg.DatabasePath())

	sink, err := o.openMetrics(logger)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Shared(cfg.StoreConfig())
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err).WithErrCode(ErrCodeDatabase)
	}
	release := func() {
		sink.flush()
		if err := store.ResetShared(); err != nil {
			logger.Error("error closing database", "error", err)
		}
	}

	b := backend.New(st,
		backend.WithLogger(logger),
		backend.WithMaxRetries(cfg.MaxNumberOfRetries),
		backend.WithMetrics(sink.backendMetrics()),
	)
	return b, release, nil
}
