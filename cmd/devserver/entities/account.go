package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tenant owns accounts.
type Tenant struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"not null"`
}

// AccountStatus is stored as an integer and queried by member name.
type AccountStatus int

const (
	AccountActive AccountStatus = iota + 1
	AccountSuspended
)

// EnumMembers lists the queryable names of the status values.
func (AccountStatus) EnumMembers() map[string]AccountStatus {
	return map[string]AccountStatus{
		"active":    AccountActive,
		"suspended": AccountSuspended,
	}
}

// Account groups users. The tenant is optional.
type Account struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	Name        string          `json:"name" gorm:"not null"`
	Description *string         `json:"description,omitempty"`
	Status      AccountStatus   `json:"status" gorm:"not null"`
	Balance     decimal.Decimal `json:"balance" gorm:"type:decimal(12,2)"`
	CreatedAt   time.Time       `json:"created_at"`
	TenantID    *uint           `json:"tenant_id,omitempty"`
	Tenant      *Tenant         `json:"tenant,omitempty"`
	Users       []User          `json:"users,omitempty"`
}

// GetSampleTenants returns sample tenant data for seeding the database
func GetSampleTenants() []Tenant {
	return []Tenant{
		{ID: 1, Name: "Acme Corp"},
		{ID: 2, Name: "Globex"},
	}
}

// GetSampleAccounts returns sample account data for seeding the database
func GetSampleAccounts() []Account {
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return []Account{
		{ID: 1, Name: "My Account", Description: ptr("Primary account"), Status: AccountActive, Balance: decimal.RequireFromString("100.50"), CreatedAt: created, TenantID: ptr[uint](1)},
		{ID: 2, Name: "Other Account", Status: AccountSuspended, Balance: decimal.NewFromInt(20), CreatedAt: created.AddDate(0, 2, 0)},
		{ID: 3, Name: "Third Account", Description: ptr(""), Status: AccountActive, Balance: decimal.Zero, CreatedAt: created.AddDate(0, 5, 0), TenantID: ptr[uint](2)},
	}
}

func ptr[T any](v T) *T {
	return &v
}
