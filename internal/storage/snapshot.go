package storage

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/go-faster/errors"
	json "github.com/goccy/go-json"

	"artisan-market/internal/models"
)

// Keys of the persisted cart layout.
const (
	KeyCartItems = "cartItems"
	KeyCartCount = "cartCount"
	KeyWishlist  = "wishlist"
	KeyCartPromo = "cartPromo"
)

// KeyError reports which key a storage operation failed on.
type KeyError struct {
	Op  string
	Key string
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

// SnapshotCodec reads and writes carts in the storefront's key layout.
type SnapshotCodec struct {
	// PersistPromo stores the active promo under KeyCartPromo. When false the
	// promo lives only in memory and resets on reload.
	PersistPromo bool
}

// Load reads a snapshot. Missing keys yield an empty cart. Lines are
// re-keyed, lines with the same product and variant are merged, and lines
// with a quantity below one or a negative price are dropped.
func (c SnapshotCodec) Load(ctx context.Context, store PersistentStore) (models.CartSnapshot, error) {
	snap := models.CartSnapshot{Items: []models.LineItem{}}

	raw, ok, err := store.Get(ctx, KeyCartItems)
	if err != nil {
		return snap, &KeyError{Op: "read", Key: KeyCartItems, Err: err}
	}
	if ok && raw != "" {
		var items []models.LineItem
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return snap, &KeyError{Op: "decode", Key: KeyCartItems, Err: err}
		}
		snap.Items = normalizeItems(items)
	}

	if !c.PersistPromo {
		return snap, nil
	}
	raw, ok, err = store.Get(ctx, KeyCartPromo)
	if err != nil {
		return snap, &KeyError{Op: "read", Key: KeyCartPromo, Err: err}
	}
	if ok && raw != "" {
		var promo models.PromoCode
		if err := json.Unmarshal([]byte(raw), &promo); err != nil {
			return snap, &KeyError{Op: "decode", Key: KeyCartPromo, Err: err}
		}
		snap.Promo = &promo
	}
	return snap, nil
}

// Save overwrites the stored cart with snap and refreshes the item count.
// The keys are written as one batch, so on stores that support it the items
// and the count never disagree.
func (c SnapshotCodec) Save(ctx context.Context, store PersistentStore, snap models.CartSnapshot) error {
	items := snap.Items
	if items == nil {
		items = []models.LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return &KeyError{Op: "encode", Key: KeyCartItems, Err: err}
	}
	writes := []Write{
		{Key: KeyCartItems, Value: string(data)},
		{Key: KeyCartCount, Value: strconv.FormatInt(snap.ItemCount(), 10)},
	}

	if c.PersistPromo {
		if snap.Promo == nil {
			writes = append(writes, Write{Key: KeyCartPromo, Delete: true})
		} else {
			promo, err := json.Marshal(snap.Promo)
			if err != nil {
				return &KeyError{Op: "encode", Key: KeyCartPromo, Err: err}
			}
			writes = append(writes, Write{Key: KeyCartPromo, Value: string(promo)})
		}
	}
	return WriteBatch(ctx, store, writes)
}

// LoadCount reads the cached item count used by header badges.
func LoadCount(ctx context.Context, store PersistentStore) (int64, error) {
	raw, ok, err := store.Get(ctx, KeyCartCount)
	if err != nil {
		return 0, &KeyError{Op: "read", Key: KeyCartCount, Err: err}
	}
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &KeyError{Op: "decode", Key: KeyCartCount, Err: errors.Wrap(err, "parse count")}
	}
	return n, nil
}

func LoadWishlist(ctx context.Context, store PersistentStore) ([]models.LineItem, error) {
	raw, ok, err := store.Get(ctx, KeyWishlist)
	if err != nil {
		return nil, &KeyError{Op: "read", Key: KeyWishlist, Err: err}
	}
	if !ok || raw == "" {
		return []models.LineItem{}, nil
	}
	var items []models.LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, &KeyError{Op: "decode", Key: KeyWishlist, Err: err}
	}
	for i := range items {
		items[i].ID = models.LineKey(items[i].ProductID, items[i].Variant)
	}
	return items, nil
}

func SaveWishlist(ctx context.Context, store PersistentStore, items []models.LineItem) error {
	if items == nil {
		items = []models.LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return &KeyError{Op: "encode", Key: KeyWishlist, Err: err}
	}
	if err := store.Set(ctx, KeyWishlist, string(data)); err != nil {
		return &KeyError{Op: "write", Key: KeyWishlist, Err: err}
	}
	return nil
}

func normalizeItems(items []models.LineItem) []models.LineItem {
	out := make([]models.LineItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 || it.UnitPrice < 0 {
			continue
		}
		it.ID = models.LineKey(it.ProductID, it.Variant)
		if i, dup := index[it.ID]; dup {
			if it.Quantity > math.MaxInt64-out[i].Quantity {
				out[i].Quantity = math.MaxInt64
			} else {
				out[i].Quantity += it.Quantity
			}
			continue
		}
		index[it.ID] = len(out)
		out = append(out, it)
	}
	return out
}

// IsCorrupt reports whether err came from stored data that could not be
// decoded, as opposed to a store that could not be reached.
func IsCorrupt(err error) bool {
	var keyErr *KeyError
	return errors.As(err, &keyErr) && keyErr.Op == "decode"
}
