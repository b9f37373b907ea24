package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/book_market/internal/apperr"
	"github.com/Skotchmaster/book_market/internal/models"
)

func (r *GormRepo) CreateItem(ctx context.Context, item *models.Item) error {
	item.Status = models.ItemActive
	return r.DB.WithContext(ctx).Create(item).Error
}

func (r *GormRepo) GetItem(ctx context.Context, id uint) (*models.Item, error) {
	var item models.Item
	err := r.DB.WithContext(ctx).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ItemNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetItems loads every id or fails with the first unknown one.
func (r *GormRepo) GetItems(ctx context.Context, ids []uint) ([]models.Item, error) {
	ids = uniqueIDs(ids)
	var items []models.Item
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	if missing, ok := firstMissing(ids, items); ok {
		return nil, apperr.ItemNotFound(missing)
	}
	return items, nil
}

func (r *GormRepo) ListItems(ctx context.Context, f ItemFilter, offset, limit int) (int64, []models.Item, error) {
	q := r.DB.WithContext(ctx).Model(&models.Item{})
	if f.AccountID != nil {
		q = q.Where("account_id = ?", *f.AccountID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Item
	if err := q.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

// SearchItems is the database fallback used when no search index is configured.
func (r *GormRepo) SearchItems(ctx context.Context, q string, offset, limit int) (int64, []models.Item, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
	base := r.DB.WithContext(ctx).Model(&models.Item{}).Where("LOWER(name) LIKE ?", pattern).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Item
	if err := base.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

// UpdateItem writes name, price and owner. Status is never written here.
func (r *GormRepo) UpdateItem(ctx context.Context, item *models.Item) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Item
		if err := tx.First(&current, item.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ItemNotFound(item.ID)
			}
			return err
		}
		if current.Status.Frozen() {
			return apperr.IllegalTransition(string(current.Status))
		}

		res := tx.Model(&models.Item{}).
			Where("id = ? AND status NOT IN ?", item.ID, []models.ItemStatus{models.ItemCancelled, models.ItemRemoved}).
			Updates(map[string]any{
				"name":       item.Name,
				"price":      item.Price,
				"account_id": item.AccountID,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.IllegalTransition(string(current.Status))
		}
		item.Status = current.Status
		item.CreatedAt = current.CreatedAt
		return nil
	})
}

// TransitionItems moves every id to the target status or none of them.
// Members already in the target status are left alone, so replaying a batch
// is harmless. The conditional UPDATE catches a concurrent writer that moved
// an item out of ACTIVE between the read and the write.
func (r *GormRepo) TransitionItems(ctx context.Context, ids []uint, to models.ItemStatus) ([]models.Item, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	var out []models.Item
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []models.Item
		if err := tx.Where("id IN ?", ids).Order("id ASC").Find(&items).Error; err != nil {
			return err
		}
		if missing, ok := firstMissing(ids, items); ok {
			return apperr.ItemNotFound(missing)
		}

		var change []uint
		for _, it := range items {
			if err := it.Status.TransitionTo(to); err != nil {
				return err
			}
			if it.Status != to {
				change = append(change, it.ID)
			}
		}

		if len(change) > 0 {
			now := time.Now().UTC()
			res := tx.Model(&models.Item{}).
				Where("id IN ? AND status = ?", change, models.ItemActive).
				Updates(map[string]any{"status": to, "updated_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != int64(len(change)) {
				var moved models.Item
				if err := tx.Where("id IN ? AND status <> ?", change, models.ItemActive).
					Where("status <> ?", to).First(&moved).Error; err == nil {
					return apperr.IllegalTransition(string(moved.Status))
				}
				return apperr.IllegalTransition(string(models.ItemActive))
			}
			for i := range items {
				if items[i].Status != to {
					items[i].Status = to
					items[i].UpdatedAt = now
				}
			}
		}

		out = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) ActiveItemIDsByAccount(ctx context.Context, accountID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&models.Item{}).
		Where("account_id = ? AND status = ?", accountID, models.ItemActive).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func firstMissing(ids []uint, items []models.Item) (uint, bool) {
	found := make(map[uint]struct{}, len(items))
	for _, it := range items {
		found[it.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return id, true
		}
	}
	return 0, false
}
