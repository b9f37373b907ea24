package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountActive   AccountStatus = "ACTIVE"
	AccountInactive AccountStatus = "INACTIVE"
)

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

type Account struct {
	ID           uint          `gorm:"primaryKey;autoIncrement"      json:"id"`
	Name         string        `gorm:"not null"                      json:"name"`
	Email        string        `gorm:"uniqueIndex;not null"          json:"email"`
	PasswordHash string        `gorm:"not null"                      json:"-"`
	Status       AccountStatus `gorm:"type:varchar(16);not null"     json:"status"`
	Roles        []AccountRole `gorm:"foreignKey:AccountID"          json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type AccountRole struct {
	ID        uint `gorm:"primaryKey"                          json:"-"`
	AccountID uint `gorm:"uniqueIndex:idx_account_role;not null" json:"-"`
	Role      Role `gorm:"uniqueIndex:idx_account_role;type:varchar(16);not null" json:"role"`
}

func (a *Account) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r.Role == role {
			return true
		}
	}
	return false
}

func (a *Account) RoleNames() []Role {
	out := make([]Role, 0, len(a.Roles))
	for _, r := range a.Roles {
		out = append(out, r.Role)
	}
	return out
}

func (a *Account) IsActive() bool { return a.Status == AccountActive }

type Item struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"   json:"id"`
	Name      string          `gorm:"not null"                   json:"name"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	AccountID *uint           `gorm:"index"                      json:"customer_id,omitempty"`
	Status    ItemStatus      `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (i *Item) OwnedBy(accountID uint) bool {
	return i.AccountID != nil && *i.AccountID == accountID
}

type Purchase struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"    json:"id"`
	AccountID uint            `gorm:"index;not null"              json:"customer_id"`
	Items     []PurchaseItem  `gorm:"foreignKey:PurchaseID"       json:"items"`
	Invoice   *string         `json:"invoice,omitempty"`
	Total     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

// PurchaseItem keeps the position of every item so the purchase preserves
// the order in which items were requested.
type PurchaseItem struct {
	ID         uint            `gorm:"primaryKey"                   json:"-"`
	PurchaseID uint            `gorm:"index;not null"               json:"-"`
	ItemID     uint            `gorm:"uniqueIndex;not null"         json:"book_id"`
	Position   int             `gorm:"not null"                     json:"-"`
	Price      decimal.Decimal `gorm:"type:numeric(12,2);not null"  json:"price"`
}

func (p *Purchase) ItemIDs() []uint {
	ids := make([]uint, 0, len(p.Items))
	for _, it := range p.Items {
		ids = append(ids, it.ItemID)
	}
	return ids
}

// All returns every persisted model, in migration order.
func All() []any {
	return []any{&Account{}, &AccountRole{}, &Item{}, &Purchase{}, &PurchaseItem{}}
}
