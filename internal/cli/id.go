package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/identity"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
)

// IdResult is the output of the id command.
type IdResult struct {
	Resource     string               `json:"resource"`
	MeadowlarkId model.MeadowlarkId   `json:"meadowlarkId"`
	Aliases      []model.MeadowlarkId `json:"aliases"`
}

func (r IdResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", r.Resource, r.MeadowlarkId)
	for _, alias := range r.Aliases[1:] {
		fmt.Fprintf(&b, "\n  alias %s", alias)
	}
	return b.String()
}

// NewIdCommand creates the id command.
func NewIdCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "id <resource> <name=value>...",
		Short: "Compute the MeadowlarkId of a document identity",
		Long: `Compute the MeadowlarkId of a document identity without touching the
database. Subclass resources also print their superclass alias.

Example:
  meadowlark id School schoolId=123
  meadowlark id AcademicWeek schoolId=123 weekIdentifier=W1`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runId(rootOpts, args[0], args[1:], cmd)
		},
	}

	return cmd
}

func runId(opts *RootOptions, resourceName string, pairs []string, cmd *cobra.Command) error {
	c, err := opts.loadCatalog()
	if err != nil {
		return err
	}
	resource, ok := c.Lookup(resourceName)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown resource %q", resourceName)).WithErrCode(ErrCodeRequest)
	}

	values, err := parsePairs(pairs)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid identity", err).WithErrCode(ErrCodeRequest)
	}

	info, err := resource.DocumentInfo(values, nil, nil, 0)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid identity", err).WithErrCode(ErrCodeRequest)
	}

	result := IdResult{
		Resource:     resource.Info.ResourceName,
		MeadowlarkId: identity.ForDocument(resource.Info, info.DocumentIdentity),
		Aliases:      identity.Aliases(resource.Info, info),
	}
	return opts.formatter(cmd).Success(result)
}

// parsePairs parses name=value arguments. Values may contain '='.
func parsePairs(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=value, got %q", pair)
		}
		if _, dup := values[name]; dup {
			return nil, fmt.Errorf("duplicate identity element %q", name)
		}
		values[name] = value
	}
	return values, nil
}
