package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/store"
)

// InitResult is the output of the init command.
type InitResult struct {
	Path          string `json:"path"`
	SchemaVersion int    `json:"schemaVersion"`
	Documents     int    `json:"documents"`
}

func (r InitResult) String() string {
	return fmt.Sprintf("Database ready: %s (schema v%d, %d documents)", r.Path, r.SchemaVersion, r.Documents)
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the database",
		Long: `Create the database if it does not exist and apply any pending
migrations. Safe to run repeatedly.

Example:
  meadowlark init --connection /var/lib/meadowlark`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}

	return cmd
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	f := opts.formatter(cmd)
	f.VerboseLog("opening %s", cfg.DatabasePath())

	st, err := store.OpenWithConfig(cfg.StoreConfig())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err).WithErrCode(ErrCodeDatabase)
	}
	defer st.Close()

	ctx := cmd.Context()
	version, err := st.SchemaVersion(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read schema version", err).WithErrCode(ErrCodeDatabase)
	}
	count, err := st.CountDocuments(ctx, "")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count documents", err).WithErrCode(ErrCodeDatabase)
	}

	f.VerboseLog("schema version %d", version)
	return f.Success(InitResult{
		Path:          cfg.DatabasePath(),
		SchemaVersion: version,
		Documents:     count,
	})
}
