package cli

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/nlstn/go-rql/internal/parser"
)

// TreeNode is the JSON form of a parse tree node. Value is nil for null
// literals and for every node that is not a literal.
type TreeNode struct {
	Type         string      `json:"type"`
	Op           string      `json:"op,omitempty"`
	Property     string      `json:"property,omitempty"`
	Relationship string      `json:"relationship,omitempty"`
	Kind         string      `json:"kind,omitempty"`
	Value        *any        `json:"value,omitempty"`
	Args         []*TreeNode `json:"args,omitempty"`
	Items        []OrderItem `json:"items,omitempty"`
}

// OrderItem is one property of an order_by node.
type OrderItem struct {
	Property  string `json:"property"`
	Direction string `json:"direction"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "parse <query>",
		Short:         "Print the parse tree of an RQL query",
		Long:          "Parse an RQL query without a schema and print its tree as indented JSON.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runParse(opts *RootOptions, query string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	q, err := parser.Parse(query)
	if err != nil {
		return formatter.fail(ExitQueryError, err)
	}

	tree := make([]*TreeNode, len(q.Expressions))
	for i, expr := range q.Expressions {
		tree[i] = treeOf(expr)
	}

	if formatter.JSON() {
		return formatter.Success(tree)
	}
	enc := json.NewEncoder(formatter.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(tree)
}

func treeOf(node parser.Node) *TreeNode {
	switch n := node.(type) {
	case *parser.Comparison:
		return &TreeNode{Type: "comparison", Op: n.Op, Property: n.Property, Args: []*TreeNode{treeOf(n.Value)}}
	case *parser.Logical:
		t := &TreeNode{Type: "logical", Op: n.Op}
		for _, arg := range n.Args {
			t.Args = append(t.Args, treeOf(arg))
		}
		return t
	case *parser.Any:
		return &TreeNode{Type: "any", Relationship: n.Relationship, Args: []*TreeNode{treeOf(n.Condition)}}
	case *parser.OrderBy:
		t := &TreeNode{Type: "order_by"}
		for _, item := range n.Items {
			direction := "asc"
			if item.Descending {
				direction = "desc"
			}
			t.Items = append(t.Items, OrderItem{Property: item.Property, Direction: direction})
		}
		return t
	case *parser.Tuple:
		t := &TreeNode{Type: "tuple"}
		for i := range n.Items {
			t.Args = append(t.Args, treeOf(&n.Items[i]))
		}
		return t
	case *parser.Literal:
		return literalNode(n)
	}
	return &TreeNode{Type: "unknown"}
}

func literalNode(l *parser.Literal) *TreeNode {
	t := &TreeNode{Type: "literal", Kind: l.Kind.String()}
	var value any
	switch v := l.Value.(type) {
	case nil:
		return t
	case parser.Date:
		value = v.String()
	case time.Time:
		value = v.Format(time.RFC3339Nano)
	default:
		value = v
	}
	t.Value = &value
	return t
}
