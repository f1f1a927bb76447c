package gormbuilder

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/nlstn/go-rql"
)

func buildUserSQL(t *testing.T, db *gorm.DB, text string) (string, []any) {
	t.Helper()
	q, err := newUserBuilder(t, db).BuildQuery(context.Background(), text)
	require.NoError(t, err, text)
	return dryRun(t, q, &[]User{})
}

func TestSingleJoin(t *testing.T) {
	sql, vars := buildUserSQL(t, openDB(t), "eq(account.name,My Account)&order_by(name)")

	assert.Equal(t, 1, strings.Count(sql, "JOIN"), sql)
	assert.Contains(t, sql, "INNER JOIN `accounts` `rql_account` ON `rql_account`.`id` = `users`.`account_id`")
	assert.Contains(t, sql, "WHERE `rql_account`.`name` = ?")
	assert.Contains(t, sql, "ORDER BY `users`.`name`")
	assert.Equal(t, []any{"My Account"}, vars)
}

func TestJoinDedupe(t *testing.T) {
	sql, _ := buildUserSQL(t, openDB(t), "eq(account.name,A)&gt(account.id,1)&or(eq(account.name,B),lt(account.id,5))&order_by(-account.name)")

	assert.Equal(t, 1, strings.Count(sql, "JOIN"), sql)
	assert.Contains(t, sql, "ORDER BY `rql_account`.`name` DESC")
}

func TestNestedJoin(t *testing.T) {
	sql, vars := buildUserSQL(t, openDB(t), "eq(account.tenant.name,Acme Corp)")

	account := strings.Index(sql, "INNER JOIN `accounts` `rql_account` ON `rql_account`.`id` = `users`.`account_id`")
	tenant := strings.Index(sql, "LEFT JOIN `tenants` `rql_account__tenant` ON `rql_account__tenant`.`id` = `rql_account`.`tenant_id`")
	require.GreaterOrEqual(t, account, 0, sql)
	require.GreaterOrEqual(t, tenant, 0, sql)
	assert.Less(t, account, tenant, "joins keep discovery order")
	assert.Contains(t, sql, "WHERE `rql_account__tenant`.`name` = ?")
	assert.Equal(t, []any{"Acme Corp"}, vars)
}

func TestOperatorSQL(t *testing.T) {
	db := openDB(t)

	tests := []struct {
		name  string
		query string
		sql   string
		vars  []any
	}{
		{"eq", "eq(name,John)", "`users`.`name` = ?", []any{"John"}},
		{"eq null", "eq(email,null())", "`users`.`email` IS NULL", nil},
		{"eq empty", "eq(email,empty())", "`users`.`email` = ?", []any{""}},
		{"ne", "ne(name,John)", "`users`.`name` <> ?", []any{"John"}},
		{"ne null", "ne(email,null())", "`users`.`email` IS NOT NULL", nil},
		{"gt", "gt(age,30)", "`users`.`age` > ?", []any{int64(30)}},
		{"lt", "lt(age,30)", "`users`.`age` < ?", []any{int64(30)}},
		{"gte", "gte(age,30)", "`users`.`age` >= ?", []any{int64(30)}},
		{"lte", "lte(age,30)", "`users`.`age` <= ?", []any{int64(30)}},
		{"integer from string", "gt(age,'30')", "`users`.`age` > ?", []any{int64(30)}},
		{"in", "in(age,(25,30,35))", "`users`.`age` IN (?,?,?)", []any{int64(25), int64(30), int64(35)}},
		{"out", "out(age,(25,30,35))", "`users`.`age` NOT IN (?,?,?)", []any{int64(25), int64(30), int64(35)}},
		{"in scalar", "in(age,25)", "`users`.`age` = ?", []any{int64(25)}},
		{"in null", "in(age,(25,null()))", "(`users`.`age` = ? OR `users`.`age` IS NULL)", []any{int64(25)}},
		{"out null", "out(age,(25,null()))", "`users`.`age` <> ? AND `users`.`age` IS NOT NULL", []any{int64(25)}},
		{"like", "like(name,Jo*)", "`users`.`name` LIKE ? ESCAPE ?", []any{"Jo%", rql.LikeEscape}},
		{"like escapes", "like(name,'*5%*')", "`users`.`name` LIKE ? ESCAPE ?", []any{`%5\%%`, rql.LikeEscape}},
		{"ilike", "ilike(name,jo*)", "LOWER(`users`.`name`) LIKE LOWER(?) ESCAPE ?", []any{"jo%", rql.LikeEscape}},
		{"not", "not(eq(name,John))", "NOT (`users`.`name` = ?)", []any{"John"}},
		{"or", "or(eq(name,John),eq(name,Jane))", "(`users`.`name` = ? OR `users`.`name` = ?)", []any{"John", "Jane"}},
		{"and", "and(eq(name,John),gt(age,30))", "`users`.`name` = ? AND `users`.`age` > ?", []any{"John", int64(30)}},
		{"nested", "or(and(eq(name,John),gt(age,30)),eq(name,Jane))", "((`users`.`name` = ? AND `users`.`age` > ?) OR `users`.`name` = ?)", []any{"John", int64(30), "Jane"}},
		{"string enum", "eq(role,admin)", "`users`.`role` = ?", []any{"ADMIN"}},
		{"string enum value", "in(role,(MEMBER,admin))", "`users`.`role` IN (?,?)", []any{"MEMBER", "ADMIN"}},
		{"integer enum", "eq(account.status,suspended)", "`rql_account`.`status` = ?", []any{int64(2)}},
		{"integer enum value", "eq(account.status,1)", "`rql_account`.`status` = ?", []any{int64(1)}},
		{"date", "eq(birth_date,1989-05-01)", "`users`.`birth_date` = ?", []any{date(1989, 5, 1)}},
		{"uuid", "eq(external_id,6ba7b810-9dad-11d1-80b4-00c04fd430c8)", "`users`.`external_id` = ?", []any{johnID}},
		{"boolean", "eq(is_active,true)", "`users`.`is_active` = ?", []any{true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, vars := buildUserSQL(t, db, tt.query)
			assert.Contains(t, sql, tt.sql)
			if tt.vars == nil {
				assert.Empty(t, vars)
				return
			}
			assert.Equal(t, tt.vars, vars)
		})
	}
}

func TestDecimalValue(t *testing.T) {
	sql, vars := buildUserSQL(t, openDB(t), "gt(account.balance,10.5)")
	assert.Contains(t, sql, "`rql_account`.`balance` > ?")
	require.Len(t, vars, 1)
	d, ok := vars[0].(decimal.Decimal)
	require.True(t, ok, "balance is bound as %T", vars[0])
	assert.True(t, d.Equal(decimal.NewFromFloat(10.5)))
}

func TestAnySQL(t *testing.T) {
	db := openDB(t)

	tests := []struct {
		name  string
		query string
		sql   string
	}{
		{
			name:  "has many",
			query: "any(posts,eq(posts.published,true))",
			sql:   "EXISTS (SELECT 1 FROM `posts` `rql_posts` WHERE (`rql_posts`.`user_id` = `users`.`id` AND `rql_posts`.`published` = ?))",
		},
		{
			name:  "many to many",
			query: "any(tags,eq(tags.name,go))",
			sql:   "EXISTS (SELECT 1 FROM `tags` `rql_tags` INNER JOIN `user_tags` `rqllink_tags` ON `rqllink_tags`.`tag_id` = `rql_tags`.`id` WHERE (`rqllink_tags`.`user_id` = `users`.`id` AND `rql_tags`.`name` = ?))",
		},
		{
			name:  "below a join",
			query: "any(account.users,eq(account.users.name,Jane))",
			sql:   "EXISTS (SELECT 1 FROM `users` `rql_account__users` WHERE (`rql_account__users`.`account_id` = `rql_account`.`id` AND `rql_account__users`.`name` = ?))",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, _ := buildUserSQL(t, db, tt.query)
			assert.Contains(t, sql, tt.sql)
		})
	}
}

func TestAnyMovesJoinsIntoSubquery(t *testing.T) {
	b, err := New(openDB(t), &Account{})
	require.NoError(t, err)
	q, err := rql.NewBuilder[*gorm.DB, clause.Expression](b).BuildQuery(context.Background(), "any(users,eq(users.profile.bio,Gopher))")
	require.NoError(t, err)

	sql, vars := dryRun(t, q, &[]Account{})
	assert.Equal(t, 1, strings.Count(sql, "JOIN"), sql)
	assert.Contains(t, sql, "EXISTS (SELECT 1 FROM `users` `rql_users` LEFT JOIN `profiles` `rql_users__profile` ON `rql_users__profile`.`user_id` = `rql_users`.`id` WHERE (`rql_users`.`account_id` = `accounts`.`id` AND `rql_users__profile`.`bio` = ?))")
	assert.Equal(t, []any{"Gopher"}, vars)
}

func TestRelationshipNullSQL(t *testing.T) {
	db := openDB(t)

	tests := []struct {
		query string
		sql   string
	}{
		{"eq(account,null())", "`users`.`account_id` IS NULL"},
		{"ne(account,null())", "`users`.`account_id` IS NOT NULL"},
		{"eq(profile,null())", "NOT (EXISTS (SELECT 1 FROM `profiles` `rql_profile` WHERE `rql_profile`.`user_id` = `users`.`id`))"},
		{"ne(posts,null())", "EXISTS (SELECT 1 FROM `posts` `rql_posts` WHERE `rql_posts`.`user_id` = `users`.`id`)"},
		{"eq(account.tenant,null())", "`rql_account`.`tenant_id` IS NULL"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			sql, vars := buildUserSQL(t, db, tt.query)
			assert.Contains(t, sql, tt.sql)
			assert.Empty(t, vars)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	b := newUserBuilder(t, openDB(t))

	tests := []struct {
		name    string
		query   string
		kind    error
		message string
	}{
		{"unknown field", "eq(missing,1)", rql.ErrUnknownField, "field 'missing' not found in model 'User'"},
		{"unknown nested field", "eq(account.missing,1)", rql.ErrUnknownField, ""},
		{"relationship value", "eq(account,1)", rql.ErrRelationshipComparison, "`eq` can be applied to relationship only to test for null"},
		{"relationship operator", "like(account,x)", rql.ErrRelationshipComparison, ""},
		{"to-many outside any", "eq(posts.title,Draft)", rql.ErrRelationshipComparison, "relationship 'posts' can only be filtered with any()"},
		{"to-many before any", "eq(posts.title,Draft)&any(posts,eq(posts.title,Go))", rql.ErrRelationshipComparison, "relationship 'posts' can only be filtered with any()"},
		{"to-many after any", "any(posts,eq(posts.title,Go))&eq(posts.title,Draft)", rql.ErrRelationshipComparison, "relationship 'posts' can only be filtered with any()"},
		{"to-many beside any", "and(eq(posts.title,Draft),any(posts,eq(posts.published,true)))", rql.ErrRelationshipComparison, ""},
		{"any on a field", "any(name,eq(name,x))", rql.ErrRelationshipComparison, ""},
		{"order by relationship", "order_by(account)", rql.ErrOrderingNotAllowed, ""},
		{"order by to-many", "order_by(posts.title)", rql.ErrOrderingNotAllowed, ""},
		{"null comparison", "gt(age,null())", rql.ErrInvalidValue, "operator 'gt' does not accept null()"},
		{"list comparison", "eq(age,(1,2))", rql.ErrInvalidValue, ""},
		{"bad integer", "gt(age,abc)", rql.ErrInvalidValue, ""},
		{"bad enum", "eq(role,owner)", rql.ErrInvalidValue, "value 'owner' is not a member of enum 'UserRole'"},
		{"bad uuid", "eq(external_id,nope)", rql.ErrInvalidValue, ""},
		{"null like", "like(name,null())", rql.ErrInvalidValue, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := b.BuildQuery(context.Background(), tt.query)
			require.Error(t, err)
			assert.Nil(t, q)
			assert.ErrorIs(t, err, tt.kind)
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
		})
	}
}

func TestIlikePostgres(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=rql dbname=rql sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, Logger: logger.Discard})
	require.NoError(t, err)

	sql, vars := buildUserSQL(t, db, "ilike(name,jo*)")
	assert.Contains(t, sql, `"users"."name" ILIKE $1 ESCAPE $2`)
	assert.Equal(t, []any{"jo%", rql.LikeEscape}, vars)
}
