package services

import (
	"fmt"

	"github.com/go-faster/errors"

	"artisan-market/internal/storage"
)

// Sentinel errors, compared with errors.Is.
var (
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrInvalidPrice     = errors.New("unit price cannot be negative")
	ErrInvalidItem      = errors.New("product id is required")
	ErrItemNotFound     = errors.New("item not in cart")
	ErrInvalidPromoCode = errors.New("invalid promo code")
	ErrPersistence      = errors.New("cart could not be persisted")
	ErrCartNotEmpty     = errors.New("cart is not empty")

	ErrProductNotFound = errors.New("product not found")
	ErrVariantNotFound = errors.New("variant not found")
	ErrCartEmpty       = errors.New("cart is empty")
	ErrOutOfStock      = errors.New("item out of stock")
	ErrOrderNotFound   = errors.New("order not found")
)

// CartError describes a rejected cart operation. The cart is unchanged.
type CartError struct {
	Op  string // e.g. "cart.UpdateQuantity"
	ID  string // line or product involved, if any
	Err error
}

func (e *CartError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CartError) Unwrap() error { return e.Err }

func reject(op, id string, err error) error {
	return &CartError{Op: op, ID: id, Err: err}
}

// PersistenceError reports that a mutation was applied in memory but could
// not be written to the store.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: persist %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: persist: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	pe := &PersistenceError{Op: op, Err: err}
	var keyErr *storage.KeyError
	if errors.As(err, &keyErr) {
		pe.Key = keyErr.Key
	}
	return pe
}

// IsPersistence reports whether err only signals a failed durable write.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsValidation reports whether err rejected an operation because of its input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrInvalidItem) ||
		errors.Is(err, ErrInvalidPromoCode)
}
