package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/backend"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/request"
)

// DefaultCreatedBy is stamped on documents written from the CLI.
const DefaultCreatedBy = "meadowlark-cli"

// WriteOptions holds flags shared by the upsert and update commands.
type WriteOptions struct {
	*RootOptions
	NoValidate bool
	CreatedBy  string
	TraceId    string
}

func (o *WriteOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.NoValidate, "no-validate", false, "skip reference validation")
	cmd.Flags().StringVar(&o.CreatedBy, "created-by", DefaultCreatedBy, "client recorded as the document creator")
	cmd.Flags().StringVar(&o.TraceId, "trace-id", "", "trace id for log correlation (default: generated)")
}

// UpsertOptions holds flags for the upsert command.
type UpsertOptions struct {
	WriteOptions
	DocumentUuid string
}

// NewUpsertCommand creates the upsert command.
func NewUpsertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpsertOptions{WriteOptions: WriteOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "upsert <document-file>",
		Short: "Insert a document or replace the one with the same identity",
		Long: `Insert a document, or replace the document with the same identity.

The document file is YAML or JSON naming the resource, its identity and
its references. Use - to read from stdin.

Example document:
  resource: AcademicWeek
  identity: { schoolId: "123", weekIdentifier: "W1" }
  references:
    - resource: School
      identity: { schoolId: "123" }
  body: { totalInstructionalDays: 5 }

Example:
  meadowlark upsert week.yaml
  meadowlark upsert --no-validate --format json week.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpsert(opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.DocumentUuid, "uuid", "", "document uuid to use if the upsert inserts")

	return cmd
}

func runUpsert(opts *UpsertOptions, path string, cmd *cobra.Command) error {
	builder, doc, err := opts.prepare(path, cmd)
	if err != nil {
		return err
	}
	traceId := opts.traceId()

	req, err := builder.Upsert(doc, !opts.NoValidate, 0, traceId)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid document", err).WithErrCode(ErrCodeRequest)
	}
	if opts.DocumentUuid != "" {
		if !backend.IsValidDocumentUuid(model.DocumentUuid(opts.DocumentUuid)) {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid --uuid %q", opts.DocumentUuid)).WithErrCode(ErrCodeRequest)
		}
		req.DocumentUuidForInsert = model.DocumentUuid(opts.DocumentUuid)
	}

	b, release, err := opts.openBackend(cmd)
	if err != nil {
		return err
	}
	defer release()

	return opts.formatter(cmd).Outcome(b.Upsert(cmd.Context(), req), string(traceId))
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <document-uuid> <document-file>",
		Short: "Replace the document with the given uuid",
		Long: `Replace the document with the given uuid.

The identity may change only for resources that allow identity updates,
and only when no other document references the old identity.

Example:
  meadowlark update 0190c8a2-7f4e-7c1a-9d2b-3f5e6a7b8c9d session.yaml`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(opts, model.DocumentUuid(args[0]), args[1], cmd)
		},
	}

	opts.addFlags(cmd)

	return cmd
}

func runUpdate(opts *WriteOptions, documentUuid model.DocumentUuid, path string, cmd *cobra.Command) error {
	builder, doc, err := opts.prepare(path, cmd)
	if err != nil {
		return err
	}
	traceId := opts.traceId()

	req, err := builder.Update(documentUuid, doc, !opts.NoValidate, 0, traceId)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid document", err).WithErrCode(ErrCodeRequest)
	}

	b, release, err := opts.openBackend(cmd)
	if err != nil {
		return err
	}
	defer release()

	return opts.formatter(cmd).Outcome(b.Update(cmd.Context(), req), string(traceId))
}

// prepare loads the catalog and the document file.
func (o *WriteOptions) prepare(path string, cmd *cobra.Command) (*request.Builder, request.Document, error) {
	c, err := o.loadCatalog()
	if err != nil {
		return nil, request.Document{}, err
	}
	doc, err := readDocument(path, cmd.InOrStdin())
	if err != nil {
		return nil, request.Document{}, WrapExitError(ExitCommandError, "failed to read document", err).WithErrCode(ErrCodeRequest)
	}
	return request.NewBuilder(c, o.CreatedBy), doc, nil
}

func (o *WriteOptions) traceId() model.TraceId {
	return resolveTraceId(o.TraceId)
}

func resolveTraceId(traceId string) model.TraceId {
	if traceId != "" {
		return model.TraceId(traceId)
	}
	return model.TraceId(backend.UUIDv7Generator{}.Generate())
}

// readDocument parses a YAML or JSON document file. Unknown fields are
// rejected.
func readDocument(path string, stdin io.Reader) (request.Document, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return request.Document{}, err
	}

	var doc request.Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return request.Document{}, fmt.Errorf("failed to parse document: %w", err)
	}
	if doc.Resource == "" {
		return request.Document{}, fmt.Errorf("resource is required")
	}
	return doc, nil
}
