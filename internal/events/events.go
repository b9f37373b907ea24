package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/Skotchmaster/book_market/internal/models"
)

type PurchaseCreated struct {
	Purchase   models.Purchase `json:"purchase"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type Handler interface {
	HandlePurchaseCreated(ctx context.Context, ev PurchaseCreated) error
}

type HandlerFunc func(ctx context.Context, ev PurchaseCreated) error

func (f HandlerFunc) HandlePurchaseCreated(ctx context.Context, ev PurchaseCreated) error {
	return f(ctx, ev)
}

// Publisher hands a committed purchase to whoever updates inventory.
type Publisher interface {
	PublishPurchaseCreated(ctx context.Context, ev PurchaseCreated) error
}

// Dispatcher delivers events synchronously on the caller's goroutine.
// Handler failures go to the log and never reach the publisher's caller.
type Dispatcher struct {
	log      *slog.Logger
	handlers []Handler
}

func NewDispatcher(log *slog.Logger, handlers ...Handler) *Dispatcher {
	return &Dispatcher{log: log, handlers: handlers}
}

func (d *Dispatcher) Subscribe(h Handler) {
	d.handlers = append(d.handlers, h)
}

func (d *Dispatcher) PublishPurchaseCreated(ctx context.Context, ev PurchaseCreated) error {
	for _, h := range d.handlers {
		if err := h.HandlePurchaseCreated(ctx, ev); err != nil {
			d.log.Error("purchase_event_handler_failed",
				"purchase_id", ev.Purchase.ID,
				"book_ids", ev.Purchase.ItemIDs(),
				"error", err,
			)
		}
	}
	return nil
}
