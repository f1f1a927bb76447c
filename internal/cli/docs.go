package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// DocEntry is one public alias in the JSON output of docs.
type DocEntry struct {
	Alias        string   `json:"alias"`
	Path         string   `json:"path"`
	Type         string   `json:"type,omitempty"`
	Operators    []string `json:"operators"`
	Ordering     bool     `json:"ordering"`
	Relationship bool     `json:"relationship,omitempty"`
}

// NewDocsCommand creates the docs command.
func NewDocsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ModelOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "docs",
		Short:         "Print the public fields of a rule set",
		Long:          "Print every alias of a rule set, with its operators and whether it can be ordered by, as a markdown table.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocs(opts, cmd)
		},
	}

	opts.register(cmd)

	return cmd
}

func runDocs(opts *ModelOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return formatter.fail(ExitCommandError, err)
	}
	m, err := cfg.ModelRules(opts.Dialect, opts.Model)
	if err != nil {
		return formatter.fail(ExitCommandError, err)
	}

	if !formatter.JSON() {
		fmt.Fprint(formatter.Writer, m.Documentation())
		return nil
	}

	entries := []DocEntry{}
	for _, e := range m.Entries() {
		entry := DocEntry{
			Alias:        e.Alias,
			Path:         e.Path,
			Operators:    e.Operators.Names(),
			Ordering:     e.Ordering,
			Relationship: e.Relationship,
		}
		if !e.Relationship {
			entry.Type = e.Type.String()
		}
		entries = append(entries, entry)
	}
	return formatter.Success(entries)
}
