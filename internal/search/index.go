package search

import (
	"context"

	"github.com/Skotchmaster/book_market/internal/models"
)

// Index mirrors catalog items for full-text search. The database stays the
// source of truth; the index may lag behind it.
type Index interface {
	IndexItem(ctx context.Context, item models.Item) error
	Search(ctx context.Context, query string, from, size int) (int64, []models.Item, error)
	Enabled() bool
}

type NopIndex struct{}

func (NopIndex) IndexItem(context.Context, models.Item) error { return nil }

func (NopIndex) Search(context.Context, string, int, int) (int64, []models.Item, error) {
	return 0, nil, nil
}

func (NopIndex) Enabled() bool { return false }
