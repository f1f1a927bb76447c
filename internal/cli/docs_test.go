package cli

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocs(t *testing.T) {
	out, err := execute(t, "docs", "-c", configPath, "-m", "users")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "docs_users", []byte(out))
}

func TestDocsJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "docs", "-c", configPath, "-m", "accounts")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   []DocEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []DocEntry{
		{Alias: "id", Path: "id", Type: "integer", Operators: []string{"eq", "gt", "gte", "in", "lt", "lte", "ne", "out"}, Ordering: true},
		{Alias: "status", Path: "status", Type: "enum", Operators: []string{"eq", "in", "ne", "out"}, Ordering: true},
		{Alias: "title", Path: "name", Type: "string", Operators: []string{"eq", "ilike", "in", "like", "ne", "out"}, Ordering: true},
	}, resp.Data)
}

func TestDocsRequiresRuleSet(t *testing.T) {
	out, err := execute(t, "docs", "-c", configPath, "-m", "User")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "rule set 'User' not found in config")
}
