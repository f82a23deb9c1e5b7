package cli

import (
	"github.com/spf13/cobra"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/request"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	var traceId string

	cmd := &cobra.Command{
		Use:   "get <resource> <document-uuid>",
		Short: "Read a document",
		Long: `Read a document by uuid. The stored document is returned with its
uuid in the "id" field.

Example:
  meadowlark get School 0190c8a2-7f4e-7c1a-9d2b-3f5e6a7b8c9d --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, args[0], model.DocumentUuid(args[1]), traceId, cmd)
		},
	}

	cmd.Flags().StringVar(&traceId, "trace-id", "", "trace id for log correlation (default: generated)")

	return cmd
}

func runGet(opts *RootOptions, resource string, documentUuid model.DocumentUuid, traceIdFlag string, cmd *cobra.Command) error {
	c, err := opts.loadCatalog()
	if err != nil {
		return err
	}
	traceId := resolveTraceId(traceIdFlag)

	req, err := request.NewBuilder(c, "").Get(resource, documentUuid, traceId)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid request", err).WithErrCode(ErrCodeRequest)
	}

	b, release, err := opts.openBackend(cmd)
	if err != nil {
		return err
	}
	defer release()

	return opts.formatter(cmd).Outcome(b.Get(cmd.Context(), req), string(traceId))
}
