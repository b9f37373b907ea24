package service

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/book_market/internal/events"
	"github.com/Skotchmaster/book_market/internal/models"
)

type ItemMarker interface {
	MarkSold(ctx context.Context, ids []uint) ([]models.Item, error)
}

// SoldItemsListener marks the books of a new purchase as SOLD. Redelivery
// is harmless because SOLD to SOLD is a no-op.
type SoldItemsListener struct {
	Items ItemMarker
}

var _ events.Handler = (*SoldItemsListener)(nil)

func (l *SoldItemsListener) HandlePurchaseCreated(ctx context.Context, ev events.PurchaseCreated) error {
	ids := ev.Purchase.ItemIDs()
	if len(ids) == 0 {
		return nil
	}
	if _, err := l.Items.MarkSold(ctx, ids); err != nil {
		return fmt.Errorf("mark books of purchase %d sold: %w", ev.Purchase.ID, err)
	}
	return nil
}
