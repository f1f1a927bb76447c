package gormbuilder

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/nlstn/go-rql"
)

type Tenant struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

type AccountStatus int

const (
	AccountActive AccountStatus = iota + 1
	AccountSuspended
)

func (AccountStatus) EnumMembers() map[string]AccountStatus {
	return map[string]AccountStatus{
		"active":    AccountActive,
		"suspended": AccountSuspended,
	}
}

type Account struct {
	ID          uint `gorm:"primaryKey"`
	Name        string
	Description *string
	Status      AccountStatus
	Balance     decimal.Decimal
	CreatedAt   time.Time
	TenantID    *uint
	Tenant      *Tenant
	Users       []User
}

type UserRole string

const (
	RoleAdmin  UserRole = "ADMIN"
	RoleMember UserRole = "MEMBER"
)

func init() {
	if err := RegisterEnum(map[string]UserRole{"admin": RoleAdmin, "member": RoleMember}); err != nil {
		panic(err)
	}
}

type User struct {
	ID         uint `gorm:"primaryKey"`
	ExternalID uuid.UUID
	Name       string
	Email      *string
	Age        int
	Role       UserRole
	IsActive   bool
	BirthDate  time.Time `gorm:"type:date"`
	AccountID  uint      `gorm:"not null"`
	Account    Account
	Profile    *Profile
	Posts      []Post
	Tags       []Tag `gorm:"many2many:user_tags"`
}

type Profile struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint
	Bio    string
}

type Post struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint
	Title     string
	Published bool
}

type Tag struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

var (
	johnID  = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	aliceID = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")
)

func ptr[T any](v T) *T { return &v }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

// setupTestDB returns an in-memory database seeded with tenants, accounts,
// users, profiles, posts and tags.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := openDB(t)
	require.NoError(t, db.AutoMigrate(&Tenant{}, &Account{}, &User{}, &Profile{}, &Post{}, &Tag{}))

	tenants := []Tenant{{ID: 1, Name: "Acme Corp"}, {ID: 2, Name: "Globex"}}
	require.NoError(t, db.Create(&tenants).Error)

	accounts := []Account{
		{ID: 1, Name: "My Account", Description: ptr("Primary"), Status: AccountActive, Balance: decimal.NewFromFloat(100.5), TenantID: ptr[uint](1)},
		{ID: 2, Name: "Other Account", Status: AccountSuspended, Balance: decimal.NewFromInt(20)},
		{ID: 3, Name: "Third Account", Description: ptr(""), Status: AccountActive, Balance: decimal.Zero, TenantID: ptr[uint](2)},
		{ID: 4, Name: "Empty Account", Status: AccountSuspended, Balance: decimal.Zero},
	}
	require.NoError(t, db.Create(&accounts).Error)

	users := []User{
		{ID: 1, ExternalID: johnID, Name: "John", Email: ptr("john@example.com"), Age: 35, Role: RoleAdmin, IsActive: true, BirthDate: date(1989, 5, 1), AccountID: 1},
		{ID: 2, ExternalID: uuid.New(), Name: "Jane", Age: 28, Role: RoleMember, IsActive: true, BirthDate: date(1996, 2, 10), AccountID: 1},
		{ID: 3, ExternalID: uuid.New(), Name: "Bob", Email: ptr(""), Age: 42, Role: RoleMember, BirthDate: date(1982, 11, 30), AccountID: 2},
		{ID: 4, ExternalID: aliceID, Name: "Alice", Email: ptr("alice@example.com"), Age: 30, Role: RoleAdmin, IsActive: true, BirthDate: date(1994, 7, 15), AccountID: 2},
		{ID: 5, ExternalID: uuid.New(), Name: "100% Real", Age: 25, Role: RoleMember, IsActive: true, BirthDate: date(2000, 1, 1), AccountID: 3},
	}
	require.NoError(t, db.Create(&users).Error)

	profiles := []Profile{{ID: 1, UserID: 1, Bio: "Gopher"}, {ID: 2, UserID: 4, Bio: "Runner"}}
	require.NoError(t, db.Create(&profiles).Error)

	posts := []Post{
		{ID: 1, UserID: 1, Title: "Hello World", Published: true},
		{ID: 2, UserID: 1, Title: "Draft", Published: false},
		{ID: 3, UserID: 4, Title: "Go Tips", Published: true},
	}
	require.NoError(t, db.Create(&posts).Error)

	tags := []Tag{{ID: 1, Name: "go"}, {ID: 2, Name: "sql"}}
	require.NoError(t, db.Create(&tags).Error)
	require.NoError(t, db.Model(&users[0]).Association("Tags").Append(&tags[0], &tags[1]))
	require.NoError(t, db.Model(&users[3]).Association("Tags").Append(&tags[1]))

	return db
}

func newUserBuilder(t *testing.T, db *gorm.DB) *rql.Builder[*gorm.DB, clause.Expression] {
	t.Helper()
	b, err := New(db, &User{})
	require.NoError(t, err)
	return rql.NewBuilder[*gorm.DB, clause.Expression](b, rql.WithoutParseCache())
}

// findUsers compiles text and returns the names of the matching users.
func findUsers(t *testing.T, db *gorm.DB, text string) []string {
	t.Helper()
	q, err := newUserBuilder(t, db).BuildQuery(context.Background(), text)
	require.NoError(t, err, text)

	var users []User
	require.NoError(t, q.Find(&users).Error, text)
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Name
	}
	return names
}

// dryRun renders the SQL and bound values of q.
func dryRun(t *testing.T, q *gorm.DB, dest any) (string, []any) {
	t.Helper()
	tx := q.Session(&gorm.Session{DryRun: true}).Find(dest)
	require.NoError(t, tx.Error)
	return tx.Statement.SQL.String(), tx.Statement.Vars
}
