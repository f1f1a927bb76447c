// Package cli implements the rqlc command line tool.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/nlstn/go-rql"
	"github.com/nlstn/go-rql/builders/goqubuilder"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for rqlc.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rqlc",
		Short: "Compile RQL queries to SQL",
		Long:  "rqlc compiles RQL query strings against a YAML schema and rule sets, prints rule documentation and dumps parse trees.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log compilation to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewDocsCommand(opts))
	cmd.AddCommand(NewParseCommand(opts))

	return cmd
}

// ModelOptions are the flags shared by commands that load a config.
type ModelOptions struct {
	*RootOptions
	Config  string
	Model   string
	Dialect string
}

func (o *ModelOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Config, "config", "c", "", "YAML schema and rules file")
	cmd.Flags().StringVarP(&o.Model, "model", "m", "", "rule set or table to query")
	cmd.Flags().StringVarP(&o.Dialect, "dialect", "d", "postgres", fmt.Sprintf("SQL dialect %v", goqubuilder.Dialects))
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("model")
}

// builderOptions returns the builder options for the command: a debug logger
// on stderr when verbose, and no cache since each run compiles one query.
func (o *ModelOptions) builderOptions(stderr io.Writer) []rql.Option {
	opts := []rql.Option{rql.WithoutParseCache()}
	if o.Verbose {
		logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, rql.WithLogger(logger))
	}
	return opts
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
}
