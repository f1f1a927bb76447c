package rules

import (
	"context"
	"sync"
	"testing"

	"github.com/nlstn/go-rql"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ruleSets struct {
	users    *Set
	accounts *Set
}

func newRuleSets() ruleSets {
	user, account, _ := newSchema()
	accounts := &Set{
		Name:  "AccountRules",
		Model: account,
		Fields: []FieldRule{
			Field("name"),
			Field("description").Unordered(),
			Field("status"),
			Field("balance"),
			Field("created_at").As("events.created.at"),
		},
	}
	users := &Set{
		Name:  "UserRules",
		Model: user,
		Fields: []FieldRule{
			Field("name"),
			Field("role").Allow(rql.OpIn, rql.OpOut),
			Field("is_active"),
			Field("birth_date").As("events.born.at"),
		},
		Relationships: []RelationshipRule{
			Relationship("account", accounts),
		},
	}
	accounts.Relationships = []RelationshipRule{Relationship("users", users)}
	return ruleSets{users: users, accounts: accounts}
}

func mustNew(t *testing.T, set *Set) *ModelRules[[]string, string] {
	t.Helper()
	m, err := New(set, schemaFactory, rql.WithoutParseCache())
	require.NoError(t, err)
	return m
}

func TestNew(t *testing.T) {
	sets := newRuleSets()
	users := mustNew(t, sets.users)
	assert.Equal(t, "User", users.Model())
	assert.Equal(t, "User", users.Backend().Model())

	// Declarations are left untouched by operator inference.
	assert.Nil(t, sets.users.Fields[0].Operators)
}

func TestResolve(t *testing.T) {
	users := mustNew(t, newRuleSets().users)

	tests := []struct {
		alias string
		want  string
	}{
		{"name", "name"},
		{"events.born.at", "birth_date"},
		{"birth_date", "birth_date"},
		{"account", "account"},
		{"account.name", "account.name"},
		{"account.events.created.at", "account.created_at"},
		{"account.users", "account.users"},
		{"account.users.account.events.created.at", "account.users.account.created_at"},
	}
	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			got, err := users.Resolve(tt.alias)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveUnknown(t *testing.T) {
	users := mustNew(t, newRuleSets().users)

	tests := []struct {
		alias   string
		message string
	}{
		{"banana", "field 'banana' not found in model 'User'"},
		{"account.banana", "field 'account.banana' not found in model 'User'"},
		{"accountname", "field 'accountname' not found in model 'User'"},
		{"account.", "field 'account.' not found in model 'User'"},
		{"age", "field 'age' not found in model 'User'"},
	}
	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			_, err := users.Resolve(tt.alias)
			require.ErrorIs(t, err, rql.ErrUnknownField)
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestResolveAmbiguous(t *testing.T) {
	user, account, tenant := newSchema()
	tenants := &Set{Model: tenant, Fields: []FieldRule{Field("name")}}
	users := &Set{Model: user, Fields: []FieldRule{Field("name")}}
	accounts := &Set{
		Model:  account,
		Fields: []FieldRule{Field("name")},
		Relationships: []RelationshipRule{
			Relationship("tenant", tenants).As("org"),
			Relationship("users", users).As("org.members"),
		},
	}
	m := mustNew(t, accounts)

	_, err := m.Resolve("org.members.name")
	assert.ErrorIs(t, err, rql.ErrAmbiguousField)

	got, err := m.Resolve("org.name")
	require.NoError(t, err)
	assert.Equal(t, "tenant.name", got)

	got, err = m.Resolve("org.members")
	require.NoError(t, err)
	assert.Equal(t, "users", got)

	// A relationship alias only prefixes a path up to a '.'.
	m = mustNew(t, &Set{
		Model: account,
		Relationships: []RelationshipRule{
			Relationship("tenant", tenants).As("org"),
			Relationship("users", users).As("organization"),
		},
	})
	got, err = m.Resolve("organization.name")
	require.NoError(t, err)
	assert.Equal(t, "users.name", got)

	got, err = m.Resolve("org.name")
	require.NoError(t, err)
	assert.Equal(t, "tenant.name", got)

	_, err = m.Resolve("organ.name")
	assert.ErrorIs(t, err, rql.ErrUnknownField)
}

func TestAliasResolvesLikeDirectName(t *testing.T) {
	_, account, _ := newSchema()
	aliased := mustNew(t, &Set{Model: account, Fields: []FieldRule{Field("created_at").As("events.created.at")}})
	plain := mustNew(t, &Set{Model: account, Fields: []FieldRule{Field("created_at")}})

	ctx := context.Background()
	viaAlias, err := aliased.BuildQuery(ctx, "eq(events.created.at,2024-01-01)")
	require.NoError(t, err)
	direct, err := plain.BuildQuery(ctx, "eq(created_at,2024-01-01)")
	require.NoError(t, err)

	assert.Equal(t, direct, viaAlias)
	assert.Equal(t, []string{"FROM Account", "WHERE created_at = 2024-01-01"}, direct)
}

func TestValidateOperator(t *testing.T) {
	users := mustNew(t, newRuleSets().users)

	tests := []struct {
		name    string
		alias   string
		op      rql.Operator
		message string
	}{
		{"Restricted field accepts in", "role", rql.OpIn, ""},
		{"Restricted field accepts out", "role", rql.OpOut, ""},
		{"Restricted field rejects eq", "role", rql.OpEq, "operator 'eq' is not allowed for field 'role'"},
		{"Default string operators", "name", rql.OpIlike, ""},
		{"Boolean rejects gt", "is_active", rql.OpGt, "operator 'gt' is not allowed for field 'is_active'"},
		{"Field rejects any", "name", rql.OpAny, "operator 'any' is not allowed for field 'name'"},
		{"Nested alias", "account.events.created.at", rql.OpGte, ""},
		{"Nested enum rejects like", "account.status", rql.OpLike, "operator 'like' is not allowed for field 'account.status'"},
		{"Relationship eq", "account", rql.OpEq, ""},
		{"Relationship ne", "account", rql.OpNe, ""},
		{"Relationship any", "account.users", rql.OpAny, ""},
		{"Relationship rejects gt", "account", rql.OpGt, "operator 'gt' is not allowed for relationship 'account'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := users.ValidateOperator(tt.alias, tt.op)
			if tt.message == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, rql.ErrOperatorNotAllowed)
			assert.Equal(t, tt.message, err.Error())

			var rqlErr *rql.Error
			require.ErrorAs(t, err, &rqlErr)
			assert.Equal(t, tt.alias, rqlErr.Field)
			assert.Equal(t, tt.op.String(), rqlErr.Operator)
		})
	}

	assert.ErrorIs(t, users.ValidateOperator("banana", rql.OpEq), rql.ErrUnknownField)
}

func TestValidateOrdering(t *testing.T) {
	users := mustNew(t, newRuleSets().users)

	assert.NoError(t, users.ValidateOrdering("name"))
	assert.NoError(t, users.ValidateOrdering("account.events.created.at"))

	for _, alias := range []string{"account.description", "account"} {
		err := users.ValidateOrdering(alias)
		require.ErrorIs(t, err, rql.ErrOrderingNotAllowed)
		assert.Equal(t, "order by '"+alias+"' is not allowed", err.Error())
	}
	assert.ErrorIs(t, users.ValidateOrdering("banana"), rql.ErrUnknownField)
}

func TestValidationAggregatesErrors(t *testing.T) {
	user, _, _ := newSchema()
	set := &Set{
		Model: user,
		Fields: []FieldRule{
			Field("name"),
			Field("banana"),
			Field("role").Allow(rql.OpGte, rql.OpLte, rql.OpIn),
		},
	}

	_, err := New(set, schemaFactory)
	require.Error(t, err)

	var validation *rql.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "User", validation.Model)
	require.Len(t, validation.Errors, 2)
	assert.Equal(t, "field 'banana' not found in model 'User'", validation.Errors[0].Error())
	assert.Equal(t, "invalid operators 'gte', 'lte' for field 'role' of type 'UserRole'", validation.Errors[1].Error())

	assert.ErrorIs(t, err, rql.ErrRuleDefinition)
	assert.ErrorIs(t, err, rql.ErrUnknownField)
	assert.Contains(t, err.Error(), "model validation failed for 'User'")
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		set     func() *Set
		kind    error
		message string
	}{
		{
			name: "Missing model",
			set: func() *Set {
				return &Set{Name: "Orphan", Fields: []FieldRule{Field("name")}}
			},
			kind:    rql.ErrRuleDefinition,
			message: "rule set 'Orphan' has no model",
		},
		{
			name: "Unsupported type",
			set: func() *Set {
				_, account, _ := newSchema()
				return &Set{Model: account, Fields: []FieldRule{Field("settings")}}
			},
			kind:    rql.ErrUnsupportedType,
			message: "cannot infer default operators for field 'settings' of type 'Settings'",
		},
		{
			name: "Declared operators on unsupported type",
			set: func() *Set {
				_, account, _ := newSchema()
				return &Set{Model: account, Fields: []FieldRule{Field("settings").Allow(rql.OpEq)}}
			},
			kind:    rql.ErrRuleDefinition,
			message: "invalid operators 'eq' for field 'settings' of type 'Settings'",
		},
		{
			name: "Duplicate alias",
			set: func() *Set {
				user, _, _ := newSchema()
				return &Set{Model: user, Fields: []FieldRule{Field("name"), Field("email").As("name")}}
			},
			kind:    rql.ErrRuleDefinition,
			message: "alias 'name' of 'email' is already used by 'name' in model 'User'",
		},
		{
			name: "Unknown relationship",
			set: func() *Set {
				user, _, tenant := newSchema()
				return &Set{Model: user, Relationships: []RelationshipRule{
					Relationship("tenant", &Set{Model: tenant}),
				}}
			},
			kind:    rql.ErrUnknownField,
			message: "relationship 'tenant' not found in model 'User'",
		},
		{
			name: "Relationship without rules",
			set: func() *Set {
				user, _, _ := newSchema()
				return &Set{Model: user, Relationships: []RelationshipRule{{Name: "account"}}}
			},
			kind:    rql.ErrRuleDefinition,
			message: "relationship 'account' of model 'User' has no rules",
		},
		{
			name: "Nested errors",
			set: func() *Set {
				user, account, _ := newSchema()
				accounts := &Set{Model: account, Fields: []FieldRule{Field("owner")}}
				return &Set{Model: user, Relationships: []RelationshipRule{Relationship("account", accounts)}}
			},
			kind:    rql.ErrUnknownField,
			message: "field 'owner' not found in model 'Account'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.set(), schemaFactory)
			require.Error(t, err)
			assert.ErrorIs(t, err, rql.ErrRuleDefinition)
			assert.ErrorIs(t, err, tt.kind)
			assert.Contains(t, err.Error(), tt.message)
		})
	}

	_, err := New[[]string, string](nil, schemaFactory)
	assert.ErrorIs(t, err, rql.ErrRuleDefinition)
}

func TestComposition(t *testing.T) {
	user, _, _ := newSchema()
	contact := &Set{
		Name:   "Contact",
		Fields: []FieldRule{Field("email"), Field("name").As("full_name")},
	}
	audit := &Set{
		Name:     "Audit",
		Fields:   []FieldRule{Field("birth_date").As("born"), Field("email").Unordered()},
		Includes: []*Set{contact},
	}
	set := &Set{
		Model:    user,
		Fields:   []FieldRule{Field("name")},
		Includes: []*Set{audit, contact},
	}
	m := mustNew(t, set)

	got, err := m.Resolve("name")
	require.NoError(t, err)
	assert.Equal(t, "name", got)

	_, err = m.Resolve("full_name")
	assert.ErrorIs(t, err, rql.ErrUnknownField, "own declaration wins over the included one")

	got, err = m.Resolve("born")
	require.NoError(t, err)
	assert.Equal(t, "birth_date", got)

	// audit is included before contact, so its email rule wins.
	assert.ErrorIs(t, m.ValidateOrdering("email"), rql.ErrOrderingNotAllowed)

	aliases := make([]string, 0)
	for _, e := range m.Entries() {
		aliases = append(aliases, e.Alias)
	}
	assert.Equal(t, []string{"born", "email", "name"}, aliases)
}

func TestCompositionNearestIncludeWins(t *testing.T) {
	user, _, _ := newSchema()
	grand := &Set{
		Name:   "Grand",
		Fields: []FieldRule{Field("email").Unordered(), Field("age")},
	}
	set := &Set{
		Model: user,
		Includes: []*Set{
			{Name: "A", Includes: []*Set{grand}},
			{Name: "B", Fields: []FieldRule{Field("email")}},
		},
	}
	m := mustNew(t, set)

	// B is one level away, Grand two.
	assert.NoError(t, m.ValidateOrdering("email"))
	assert.NoError(t, m.ValidateOrdering("age"))
}

func TestBuildQuery(t *testing.T) {
	users := mustNew(t, newRuleSets().users)
	ctx := context.Background()

	got, err := users.BuildQuery(ctx, "eq(account.name,My Account)&order_by(name)")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"FROM User",
		"WHERE account.name = My Account",
		"ORDER BY +name",
		"JOIN account",
	}, got)

	got, err = users.BuildQuery(ctx, "in(role,(admin,guest))&eq(account,null())")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"FROM User",
		"WHERE role IN [admin guest]",
		"WHERE account IS NULL",
	}, got)

	got, err = users.BuildQueryFrom(ctx, "order_by(-events.born.at)", []string{"FROM active_users"})
	require.NoError(t, err)
	assert.Equal(t, []string{"FROM active_users", "ORDER BY -birth_date"}, got)
}

func TestBuildQueryAny(t *testing.T) {
	accounts := mustNew(t, newRuleSets().accounts)

	got, err := accounts.BuildQuery(context.Background(), "any(users,and(eq(users.name,John),eq(users.events.born.at,2000-01-01)))")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"FROM Account",
		"WHERE EXISTS(users: (users.name = John AND users.birth_date = 2000-01-01))",
	}, got)
}

func TestBuildQueryErrors(t *testing.T) {
	users := mustNew(t, newRuleSets().users)

	tests := []struct {
		name  string
		input string
		kind  error
	}{
		{"Operator not allowed", "eq(role,admin)", rql.ErrOperatorNotAllowed},
		{"Unknown field", "eq(banana,1)", rql.ErrUnknownField},
		{"Ordering not allowed", "order_by(account.description)", rql.ErrOrderingNotAllowed},
		{"Relationship compared to value", "eq(account,John)", rql.ErrRelationshipComparison},
		{"Error after valid filter", "eq(name,John)&gt(is_active,true)", rql.ErrOperatorNotAllowed},
		{"Syntax", "eq(name,John", rql.ErrSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := users.BuildQuery(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.kind)
			assert.Nil(t, got)
		})
	}
}

func TestDocumentation(t *testing.T) {
	users := mustNew(t, newRuleSets().users)

	g := goldie.New(t)
	g.Assert(t, "user_rules", []byte(users.Documentation()))
}

func TestEntries(t *testing.T) {
	users := mustNew(t, newRuleSets().users)

	var account, created *Entry
	entries := users.Entries()
	for i := range entries {
		switch entries[i].Alias {
		case "account":
			account = &entries[i]
		case "account.events.created.at":
			created = &entries[i]
		}
	}
	require.NotNil(t, account)
	require.NotNil(t, created)

	assert.True(t, account.Relationship)
	assert.False(t, account.Ordering)
	assert.Equal(t, "account.created_at", created.Path)
	assert.Equal(t, rql.TypeDateTime, created.Type)
	assert.True(t, created.Ordering)
}

func TestConcurrentBuilds(t *testing.T) {
	users := mustNew(t, newRuleSets().users)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := users.BuildQuery(context.Background(), "and(eq(account.name,x),in(role,(admin)))&order_by(-name)"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
