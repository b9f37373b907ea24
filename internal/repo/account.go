package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/book_market/internal/apperr"
	"github.com/Skotchmaster/book_market/internal/models"
)

func (r *GormRepo) CreateAccount(ctx context.Context, acc *models.Account) error {
	if err := r.DB.WithContext(ctx).Create(acc).Error; err != nil {
		if isDuplicateKey(err) {
			return apperr.EmailTaken()
		}
		return err
	}
	return nil
}

func (r *GormRepo) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	var acc models.Account
	err := r.DB.WithContext(ctx).Preload("Roles").First(&acc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.AccountNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetAccountByEmail returns gorm.ErrRecordNotFound untranslated; login must not
// reveal which half of the credential was wrong.
func (r *GormRepo) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var acc models.Account
	if err := r.DB.WithContext(ctx).Preload("Roles").Where("email = ?", normalizeEmail(email)).First(&acc).Error; err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *GormRepo) EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error) {
	var n int64
	q := r.DB.WithContext(ctx).Model(&models.Account{}).Where("email = ?", normalizeEmail(email))
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *GormRepo) ListAccounts(ctx context.Context, name string, offset, limit int) (int64, []models.Account, error) {
	q := r.DB.WithContext(ctx).Model(&models.Account{})
	if name = strings.TrimSpace(name); name != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var accounts []models.Account
	if err := q.Preload("Roles").Order("id ASC").Offset(offset).Limit(limit).Find(&accounts).Error; err != nil {
		return 0, nil, err
	}
	return total, accounts, nil
}

func (r *GormRepo) UpdateAccount(ctx context.Context, id uint, name, email string) (*models.Account, error) {
	res := r.DB.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).
		Updates(map[string]any{"name": name, "email": normalizeEmail(email)})
	if res.Error != nil {
		if isDuplicateKey(res.Error) {
			return nil, apperr.EmailTaken()
		}
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.AccountNotFound(id)
	}
	return r.GetAccount(ctx, id)
}

// DeactivateAccount is one-way: nothing in the store can set ACTIVE again.
func (r *GormRepo) DeactivateAccount(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).
		Update("status", models.AccountInactive)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.AccountNotFound(id)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
