package goqubuilder

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlstn/go-rql"
)

func loadSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := LoadSchema("testdata/schema.yaml")
	require.NoError(t, err)
	return s
}

func TestLoadSchema(t *testing.T) {
	s := loadSchema(t)
	require.Len(t, s.Tables, 5)

	users, ok := s.Table("users")
	require.True(t, ok)
	byModel, ok := s.Table("User")
	require.True(t, ok)
	assert.Same(t, users, byModel)

	role, ok := users.column("role")
	require.True(t, ok)
	assert.Equal(t, rql.TypeEnum, role.fieldType())
	assert.Equal(t, "ADMIN", role.Enum["admin"])

	account, ok := users.relation("account")
	require.True(t, ok)
	accounts, _ := s.Table("accounts")
	local, remote := account.keys(users, accounts)
	assert.Equal(t, "account_id", local)
	assert.Equal(t, "id", remote)

	posts, ok := users.relation("posts")
	require.True(t, ok)
	local, remote = posts.keys(users, nil)
	assert.Equal(t, "id", local)
	assert.Equal(t, "user_id", remote)

	_, err := LoadSchema("testdata/missing.yaml")
	assert.Error(t, err)
}

func TestDecodeSchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		message string
	}{
		{
			name:    "empty",
			yaml:    "",
			message: "schema declares no tables",
		},
		{
			name:    "unknown key",
			yaml:    "tables:\n  - name: users\n    colums: []\n",
			message: "failed to decode schema",
		},
		{
			name:    "duplicate table",
			yaml:    "tables:\n  - {name: users, columns: [{name: id, type: integer}]}\n  - {name: users, columns: [{name: id, type: integer}]}\n",
			message: "table 'users' is declared twice",
		},
		{
			name:    "bad column type",
			yaml:    "tables:\n  - {name: users, columns: [{name: data, type: json}]}\n",
			message: "column 'data' of table 'users' has unsupported type 'json'",
		},
		{
			name:    "enum without members",
			yaml:    "tables:\n  - {name: users, columns: [{name: role, type: enum}]}\n",
			message: "column 'role' of table 'users' has unsupported type 'enum'",
		},
		{
			name:    "unknown kind",
			yaml:    "tables:\n  - {name: users, columns: [], relations: [{name: account, kind: owns, table: users}]}\n",
			message: "relation 'account' of table 'users' has unknown kind 'owns'",
		},
		{
			name:    "missing remote key",
			yaml:    "tables:\n  - {name: users, columns: [], relations: [{name: posts, kind: has_many, table: users}]}\n",
			message: "relation 'posts' of table 'users' needs a remote_key",
		},
		{
			name:    "unknown target",
			yaml:    "tables:\n  - {name: users, columns: [], relations: [{name: account, kind: belongs_to, table: accounts}]}\n",
			message: "relation 'account' of table 'users' targets unknown table 'accounts'",
		},
		{
			name:    "relation shadows column",
			yaml:    "tables:\n  - {name: users, columns: [{name: account, type: string}], relations: [{name: account, kind: belongs_to, table: users}]}\n",
			message: "relation 'account' of table 'users' shadows a column",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSchema(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	s := &Schema{Tables: []*Table{{
		Name:    "users",
		Columns: []Column{{Name: "a", Type: "nope"}, {Name: "a", Type: "string"}},
	}}}

	err := s.Validate()
	var verr *rql.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Errors, 2)
	assert.ErrorIs(t, err, rql.ErrRuleDefinition)
}
