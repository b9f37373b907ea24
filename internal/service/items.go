package service

import (
	"context"
	"strings"

	"github.com/Skotchmaster/book_market/internal/apperr"
	"github.com/Skotchmaster/book_market/internal/logging"
	"github.com/Skotchmaster/book_market/internal/models"
	"github.com/Skotchmaster/book_market/internal/repo"
	"github.com/Skotchmaster/book_market/internal/search"
	"github.com/Skotchmaster/book_market/internal/transport"
)

// ItemService owns the book lifecycle. Every status change goes through
// repo.Store.TransitionItems, which applies models.ItemStatus.TransitionTo to
// each member of the batch.
type ItemService struct {
	Store repo.Store
	Index search.Index
}

func (s *ItemService) Create(ctx context.Context, req transport.CreateItemRequest) (*models.Item, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	acc, err := s.Store.GetAccount(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if !acc.IsActive() {
		return nil, apperr.AccessDenied()
	}

	owner := req.CustomerID
	item := &models.Item{
		Name:      strings.TrimSpace(req.Name),
		Price:     req.Price.Round(2),
		AccountID: &owner,
		Status:    models.ItemActive,
	}
	if err := s.Store.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	s.reindex(ctx, []models.Item{*item})
	return item, nil
}

func (s *ItemService) Get(ctx context.Context, id uint) (*models.Item, error) {
	return s.Store.GetItem(ctx, id)
}

func (s *ItemService) List(ctx context.Context, offset, limit int) (int64, []models.Item, error) {
	return s.Store.ListItems(ctx, repo.ItemFilter{}, offset, limit)
}

func (s *ItemService) ListActive(ctx context.Context, offset, limit int) (int64, []models.Item, error) {
	active := models.ItemActive
	return s.Store.ListItems(ctx, repo.ItemFilter{Status: &active}, offset, limit)
}

// ListByAccount filters by owner and, when status is not empty, by status.
// An unknown status value fails with ML-002.
func (s *ItemService) ListByAccount(ctx context.Context, accountID uint, status string, offset, limit int) (int64, []models.Item, error) {
	if _, err := s.Store.GetAccount(ctx, accountID); err != nil {
		return 0, nil, err
	}
	f := repo.ItemFilter{AccountID: &accountID}
	if status != "" {
		st, err := models.ParseItemStatus(status)
		if err != nil {
			return 0, nil, err
		}
		f.Status = &st
	}
	return s.Store.ListItems(ctx, f, offset, limit)
}

// Update changes name and price. CANCELLED and REMOVED items are frozen.
func (s *ItemService) Update(ctx context.Context, id uint, req transport.UpdateItemRequest) (*models.Item, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	item, err := s.Store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.Price != nil {
		item.Price = req.Price.Round(2)
	}
	if err := s.Store.UpdateItem(ctx, item); err != nil {
		return nil, err
	}

	s.reindex(ctx, []models.Item{*item})
	return item, nil
}

func (s *ItemService) Cancel(ctx context.Context, id uint) (*models.Item, error) {
	items, err := s.transition(ctx, s.Store, []uint{id}, models.ItemCancelled)
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

func (s *ItemService) MarkSold(ctx context.Context, ids []uint) ([]models.Item, error) {
	return s.transition(ctx, s.Store, ids, models.ItemSold)
}

func (s *ItemService) MarkRemoved(ctx context.Context, ids []uint) ([]models.Item, error) {
	return s.transition(ctx, s.Store, ids, models.ItemRemoved)
}

// Search asks the index first and falls back to the database when the index
// is disabled or failing.
func (s *ItemService) Search(ctx context.Context, q string, offset, limit int) (int64, []models.Item, error) {
	if s.Index != nil && s.Index.Enabled() {
		total, items, err := s.Index.Search(ctx, q, offset, limit)
		if err == nil {
			return total, items, nil
		}
		logging.FromContext(ctx).Warn("search_index_failed", "reason", "falling back to database", "error", err)
	}
	return s.Store.SearchItems(ctx, q, offset, limit)
}

func (s *ItemService) transition(ctx context.Context, store repo.Store, ids []uint, to models.ItemStatus) ([]models.Item, error) {
	items, err := store.TransitionItems(ctx, ids, to)
	if err != nil {
		return nil, err
	}
	if store == s.Store {
		s.reindex(ctx, items)
	}
	return items, nil
}

// removeOwned runs inside the caller's transaction; the caller reindexes
// after commit.
func (s *ItemService) removeOwned(ctx context.Context, tx repo.Store, accountID uint) ([]models.Item, error) {
	ids, err := tx.ActiveItemIDsByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.transition(ctx, tx, ids, models.ItemRemoved)
}

func (s *ItemService) reindex(ctx context.Context, items []models.Item) {
	if s.Index == nil || !s.Index.Enabled() {
		return
	}
	l := logging.FromContext(ctx)
	for _, it := range items {
		if err := s.Index.IndexItem(ctx, it); err != nil {
			l.Warn("index_book_failed", "book_id", it.ID, "error", err)
		}
	}
}
