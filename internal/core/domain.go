package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultCategory is substituted for items without a category during
	// aggregation. It is never written back to storage.
	DefaultCategory = "Other"

	// UnknownStore is substituted for receipts without a store name.
	UnknownStore = "Unknown"
)

type (
	// Money is an exact monetary amount in cents. All arithmetic happens in
	// cents; conversion to a 2-decimal float is a presentation concern.
	Money struct {
		Cents int64
	}

	// Receipt is one recorded purchase event. StoreName, PurchaseDate and
	// Total are optional: the zero value means the field is unknown, not
	// that the purchase happened today or cost nothing.
	Receipt struct {
		ID           int64
		UserID       string
		StoreName    string
		PurchaseDate time.Time
		UploadedAt   time.Time
		Total        Money
	}

	// Item is one priced line entry belonging to a Receipt. An empty
	// Category means the item is uncategorized.
	Item struct {
		ID        int64
		ReceiptID int64
		Name      string
		Price     Money
		Quantity  int64
		Category  string
	}

	// Budget is a per-user monthly spending cap for one category.
	// CurrentSpent is derived state: it is only meaningful immediately
	// after a tracker pass and must always be recoverable from items.
	Budget struct {
		ID           int64
		UserID       string
		Category     string
		MonthlyLimit Money
		CurrentSpent Money
		LastReset    time.Time
	}
)

var (
	ErrNotFound        = errors.New("not found")
	ErrEmptyUser       = errors.New("empty user identifier")
	ErrEmptyName       = errors.New("empty item name")
	ErrEmptyCategory   = errors.New("empty category")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidQuantity = errors.New("invalid quantity")
)

// HasPurchaseDate reports whether the purchase date is known.
func (r Receipt) HasPurchaseDate() bool {
	return !r.PurchaseDate.IsZero()
}

func (r Receipt) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUser
	}
	if r.Total.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// LineTotal returns price multiplied by quantity.
func (i Item) LineTotal() Money {
	return Money{Cents: i.Price.Cents * i.Quantity}
}

func (i Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return ErrEmptyName
	}
	if i.Price.Cents < 0 {
		return ErrInvalidAmount
	}
	if i.Quantity < 1 {
		return ErrInvalidQuantity
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.MonthlyLimit.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// CategoryLabel returns the item's category, substituting DefaultCategory
// when none was recorded. Matching against budgets stays exact; the
// substitution only applies to aggregate output.
func (i Item) CategoryLabel() string {
	if i.Category == "" {
		return DefaultCategory
	}
	return i.Category
}

// StoreLabel returns the receipt's store name, substituting UnknownStore
// when none was recorded.
func (r Receipt) StoreLabel() string {
	if r.StoreName == "" {
		return UnknownStore
	}
	return r.StoreName
}
