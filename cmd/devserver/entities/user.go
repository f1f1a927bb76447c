package entities

import (
	"time"

	"github.com/google/uuid"
)

// Role is stored as its upper case name. Its members are registered with
// gormbuilder.RegisterEnum by the server.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Roles maps the queryable names of the roles to their stored values.
var Roles = map[string]Role{
	"admin":  RoleAdmin,
	"member": RoleMember,
}

// User belongs to an account and writes posts.
type User struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ExternalID uuid.UUID `json:"external_id" gorm:"type:uuid"`
	Name       string    `json:"name" gorm:"not null"`
	Email      *string   `json:"email,omitempty"`
	Age        int       `json:"age"`
	Role       Role      `json:"role" gorm:"not null"`
	IsActive   bool      `json:"is_active"`
	BirthDate  time.Time `json:"birth_date" gorm:"type:date"`
	AccountID  uint      `json:"account_id" gorm:"not null"`
	Account    *Account  `json:"account,omitempty"`
	Posts      []Post    `json:"posts,omitempty"`
}

// Post is written by a user.
type Post struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	UserID    uint   `json:"user_id" gorm:"not null"`
	Title     string `json:"title" gorm:"not null"`
	Published bool   `json:"published"`
}

// GetSampleUsers returns sample user data for seeding the database
func GetSampleUsers() []User {
	return []User{
		{ID: 1, ExternalID: uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), Name: "John", Email: ptr("john@example.com"), Age: 35, Role: RoleAdmin, IsActive: true, BirthDate: date(1989, 5, 1), AccountID: 1},
		{ID: 2, ExternalID: uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8"), Name: "Jane", Age: 28, Role: RoleMember, IsActive: true, BirthDate: date(1996, 2, 10), AccountID: 1},
		{ID: 3, ExternalID: uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8"), Name: "Bob", Email: ptr(""), Age: 42, Role: RoleMember, BirthDate: date(1982, 11, 30), AccountID: 2},
		{ID: 4, ExternalID: uuid.MustParse("6ba7b813-9dad-11d1-80b4-00c04fd430c8"), Name: "Alice", Email: ptr("alice@example.com"), Age: 30, Role: RoleAdmin, IsActive: true, BirthDate: date(1994, 7, 15), AccountID: 2},
		{ID: 5, ExternalID: uuid.MustParse("6ba7b814-9dad-11d1-80b4-00c04fd430c8"), Name: "100% Real", Age: 25, Role: RoleMember, IsActive: true, BirthDate: date(2000, 1, 1), AccountID: 3},
	}
}

// GetSamplePosts returns sample post data for seeding the database
func GetSamplePosts() []Post {
	return []Post{
		{ID: 1, UserID: 1, Title: "Hello World", Published: true},
		{ID: 2, UserID: 1, Title: "Draft", Published: false},
		{ID: 3, UserID: 4, Title: "Go Tips", Published: true},
	}
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
