package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Skotchmaster/book_market/internal/apperr"
	"github.com/Skotchmaster/book_market/internal/models"
)

// CreatePurchase re-checks availability inside the insert transaction. Items
// only become SOLD once PurchaseCreated is handled, so the unique index on
// purchase_items.item_id is what keeps a book out of a second purchase
// committed in that window.
func (r *GormRepo) CreatePurchase(ctx context.Context, p *models.Purchase) error {
	ids := uniqueIDs(p.ItemIDs())
	if len(ids) == 0 || len(ids) != len(p.Items) {
		return apperr.ItemsNotAvailable()
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		if err := tx.Model(&models.Item{}).
			Where("id IN ? AND status = ?", ids, models.ItemActive).
			Count(&active).Error; err != nil {
			return err
		}
		if active != int64(len(ids)) {
			return apperr.ItemsNotAvailable()
		}
		for i := range p.Items {
			p.Items[i].Position = i
		}
		if err := tx.Create(p).Error; err != nil {
			if isDuplicateKey(err) {
				return apperr.ItemsNotAvailable()
			}
			return err
		}
		return nil
	})
}

func (r *GormRepo) GetPurchase(ctx context.Context, id uint) (*models.Purchase, error) {
	var p models.Purchase
	err := r.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.PurchaseNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePurchase persists the invoice. Items, buyer and total are fixed at creation.
func (r *GormRepo) UpdatePurchase(ctx context.Context, p *models.Purchase) error {
	res := r.DB.WithContext(ctx).Model(&models.Purchase{}).Where("id = ?", p.ID).
		Update("invoice", p.Invoice)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.PurchaseNotFound(p.ID)
	}
	return nil
}
