package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/book_market/internal/models"
)

// Store is the persistence boundary of the marketplace. Every status write on
// items goes through TransitionItems.
type Store interface {
	CreateAccount(ctx context.Context, acc *models.Account) error
	GetAccount(ctx context.Context, id uint) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error)
	ListAccounts(ctx context.Context, name string, offset, limit int) (int64, []models.Account, error)
	UpdateAccount(ctx context.Context, id uint, name, email string) (*models.Account, error)
	DeactivateAccount(ctx context.Context, id uint) error

	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id uint) (*models.Item, error)
	GetItems(ctx context.Context, ids []uint) ([]models.Item, error)
	ListItems(ctx context.Context, f ItemFilter, offset, limit int) (int64, []models.Item, error)
	SearchItems(ctx context.Context, q string, offset, limit int) (int64, []models.Item, error)
	UpdateItem(ctx context.Context, item *models.Item) error
	TransitionItems(ctx context.Context, ids []uint, to models.ItemStatus) ([]models.Item, error)
	ActiveItemIDsByAccount(ctx context.Context, accountID uint) ([]uint, error)

	CreatePurchase(ctx context.Context, p *models.Purchase) error
	GetPurchase(ctx context.Context, id uint) (*models.Purchase, error)
	UpdatePurchase(ctx context.Context, p *models.Purchase) error

	InTx(ctx context.Context, fn func(Store) error) error
}

type ItemFilter struct {
	AccountID *uint
	Status    *models.ItemStatus
}

type GormRepo struct {
	DB *gorm.DB
}

var _ Store = (*GormRepo)(nil)

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

// InTx runs fn against a Store bound to a single transaction. Nested calls
// become savepoints.
func (r *GormRepo) InTx(ctx context.Context, fn func(Store) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepo{DB: tx})
	})
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
