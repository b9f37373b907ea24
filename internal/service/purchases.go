package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/book_market/internal/apperr"
	"github.com/Skotchmaster/book_market/internal/events"
	"github.com/Skotchmaster/book_market/internal/logging"
	"github.com/Skotchmaster/book_market/internal/models"
	"github.com/Skotchmaster/book_market/internal/repo"
	"github.com/Skotchmaster/book_market/internal/transport"
)

type PurchaseService struct {
	Store  repo.Store
	Events events.Publisher
	Now    func() time.Time
}

// Create records a purchase of ACTIVE books and then publishes
// PurchaseCreated. Publishing happens after commit: a failed publish leaves
// the purchase in place and is only logged.
func (s *PurchaseService) Create(ctx context.Context, req transport.CreatePurchaseRequest) (*models.Purchase, error) {
	l := logging.FromContext(ctx).With("svc", "purchases.create")

	var items []models.Item
	available := func(ids []uint) (bool, error) {
		loaded, err := s.Store.GetItems(ctx, ids)
		if err != nil {
			if apperr.CodeOf(err) == apperr.CodeItemNotFound {
				return false, nil
			}
			return false, err
		}
		for _, it := range loaded {
			if it.Status != models.ItemActive {
				return false, nil
			}
		}
		items = loaded
		return true, nil
	}
	if err := req.Validate(available); err != nil {
		return nil, err
	}

	buyer, err := s.Store.GetAccount(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if !buyer.IsActive() {
		return nil, apperr.AccessDenied()
	}

	byID := make(map[uint]models.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	p := &models.Purchase{AccountID: buyer.ID, Total: decimal.Zero}
	seen := make(map[uint]bool, len(req.BookIDs))
	for _, id := range req.BookIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		it := byID[id]
		p.Items = append(p.Items, models.PurchaseItem{ItemID: it.ID, Price: it.Price})
		p.Total = p.Total.Add(it.Price)
	}

	if err := s.Store.CreatePurchase(ctx, p); err != nil {
		return nil, err
	}
	l.Info("create_purchase_success", "purchase_id", p.ID, "book_ids", p.ItemIDs(), "total", p.Total.String())

	ev := events.PurchaseCreated{Purchase: *p, OccurredAt: s.now()}
	if err := s.Events.PublishPurchaseCreated(ctx, ev); err != nil {
		l.Error("publish_purchase_failed", "purchase_id", p.ID, "error", err)
	}
	return p, nil
}

func (s *PurchaseService) Get(ctx context.Context, id uint) (*models.Purchase, error) {
	return s.Store.GetPurchase(ctx, id)
}

// Update persists the mutable part of a purchase, which is its invoice.
func (s *PurchaseService) Update(ctx context.Context, p *models.Purchase) error {
	return s.Store.UpdatePurchase(ctx, p)
}

// AssignInvoice sets the invoice reference, generating one when empty.
func (s *PurchaseService) AssignInvoice(ctx context.Context, id uint, invoice string) (*models.Purchase, error) {
	p, err := s.Store.GetPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	invoice = strings.TrimSpace(invoice)
	if invoice == "" {
		invoice = "INV-" + strings.ToUpper(uuid.NewString())
	}
	p.Invoice = &invoice
	if err := s.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PurchaseService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
