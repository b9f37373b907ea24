package models

import (
	"strings"

	"github.com/Skotchmaster/book_market/internal/apperr"
)

type ItemStatus string

const (
	ItemActive    ItemStatus = "ACTIVE"
	ItemSold      ItemStatus = "SOLD"
	ItemCancelled ItemStatus = "CANCELLED"
	ItemRemoved   ItemStatus = "REMOVED"
)

func ParseItemStatus(s string) (ItemStatus, error) {
	switch st := ItemStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case ItemActive, ItemSold, ItemCancelled, ItemRemoved:
		return st, nil
	}
	return "", apperr.InvalidItemStatus(s)
}

// Frozen reports whether an item in this status may never be mutated again.
func (s ItemStatus) Frozen() bool {
	return s == ItemCancelled || s == ItemRemoved
}

// TransitionTo checks a status change against the item lifecycle:
//
//	ACTIVE -> SOLD | CANCELLED | REMOVED
//	SOLD   -> SOLD (no-op)
//
// CANCELLED and REMOVED accept nothing, not even themselves.
func (s ItemStatus) TransitionTo(to ItemStatus) error {
	if s.Frozen() {
		return apperr.IllegalTransition(string(s))
	}
	if s == to {
		return nil
	}
	if s == ItemActive {
		switch to {
		case ItemSold, ItemCancelled, ItemRemoved:
			return nil
		}
		return apperr.InvalidItemStatus(string(to))
	}
	return apperr.IllegalTransition(string(s))
}
