package cli

import (
	"github.com/spf13/cobra"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/request"
)

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	NoValidate bool
	TraceId    string
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <resource> <document-uuid>",
		Short: "Delete a document",
		Long: `Delete a document by uuid.

Unless --no-validate is given, the delete fails while other documents
reference the document or any of its superclass identities.

Example:
  meadowlark delete School 0190c8a2-7f4e-7c1a-9d2b-3f5e6a7b8c9d`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, args[0], model.DocumentUuid(args[1]), cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.NoValidate, "no-validate", false, "delete even if other documents reference it")
	cmd.Flags().StringVar(&opts.TraceId, "trace-id", "", "trace id for log correlation (default: generated)")

	return cmd
}

func runDelete(opts *DeleteOptions, resource string, documentUuid model.DocumentUuid, cmd *cobra.Command) error {
	c, err := opts.loadCatalog()
	if err != nil {
		return err
	}
	traceId := resolveTraceId(opts.TraceId)

	req, err := request.NewBuilder(c, "").Delete(resource, documentUuid, !opts.NoValidate, traceId)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid request", err).WithErrCode(ErrCodeRequest)
	}

	b, release, err := opts.openBackend(cmd)
	if err != nil {
		return err
	}
	defer release()

	return opts.formatter(cmd).Outcome(b.Delete(cmd.Context(), req), string(traceId))
}
