package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	ModelOptions
	Prepared bool
}

// CompileResult is the JSON payload of compile.
type CompileResult struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{ModelOptions: ModelOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "compile <query>",
		Short: "Compile an RQL query to SQL",
		Long: `Compile an RQL query against the schema and rule sets of a config file.

When --model names a rule set the query is checked against its aliases,
operators and ordering rules. Otherwise --model names a table, and every
column and relation of the schema is queryable.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVarP(&opts.Prepared, "prepared", "p", false, "emit placeholders and a separate argument list")

	return cmd
}

func runCompile(opts *CompileOptions, query string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return formatter.fail(ExitCommandError, err)
	}
	builder, err := cfg.Builder(opts.Dialect, opts.Model, opts.builderOptions(cmd.ErrOrStderr())...)
	if err != nil {
		return formatter.fail(ExitCommandError, err)
	}

	ds, err := builder.BuildQuery(cmd.Context(), query)
	if err != nil {
		return formatter.fail(ExitQueryError, err)
	}
	sql, args, err := ds.Prepared(opts.Prepared).ToSQL()
	if err != nil {
		return formatter.fail(ExitQueryError, err)
	}

	result := CompileResult{SQL: sql, Args: args}
	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, result.SQL)
	for i, arg := range result.Args {
		fmt.Fprintf(formatter.Writer, "-- arg %d: %v\n", i+1, arg)
	}
	return nil
}
