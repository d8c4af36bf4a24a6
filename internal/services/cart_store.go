package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"artisan-market/internal/models"
	"artisan-market/internal/pricing"
	"artisan-market/internal/storage"
)

// CartStore is the pricing engine of a single cart: it owns the line items
// and the active promo, validates every mutation and writes a full snapshot
// to its PersistentStore after each one.
//
// A CartStore is owned by one session and is not safe for concurrent use;
// CartService adds the per-cart lock for shared use.
//
// Every mutating method validates first and leaves the cart untouched when
// validation fails. When the mutation succeeds but the snapshot cannot be
// written, the method returns a *PersistenceError and the in-memory state
// keeps the mutation.
type CartStore struct {
	store   storage.PersistentStore
	codec   storage.SnapshotCodec
	policy  pricing.Policy
	timeout time.Duration
	logger  *zap.Logger
	metrics *Metrics

	items []models.LineItem
	promo *models.PromoCode
}

type CartOption func(*CartStore)

func WithPolicy(p pricing.Policy) CartOption {
	return func(c *CartStore) { c.policy = p }
}

// WithPersistPromo also stores the active promo. By default the promo is
// kept in memory only and resets on reload.
func WithPersistPromo(enabled bool) CartOption {
	return func(c *CartStore) { c.codec.PersistPromo = enabled }
}

// WithStoreTimeout bounds each call to the store.
func WithStoreTimeout(d time.Duration) CartOption {
	return func(c *CartStore) { c.timeout = d }
}

func WithLogger(l *zap.Logger) CartOption {
	return func(c *CartStore) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *Metrics) CartOption {
	return func(c *CartStore) { c.metrics = m }
}

// NewCartStore returns an empty cart backed by store. Call Load to hydrate it.
func NewCartStore(store storage.PersistentStore, opts ...CartOption) *CartStore {
	c := &CartStore{
		store:  store,
		policy: pricing.DefaultPolicy(),
		logger: zap.NewNop(),
		items:  []models.LineItem{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpenCartStore creates a cart and hydrates it from store. If loading fails
// the returned cart is empty and usable, and the error is a *PersistenceError.
func OpenCartStore(ctx context.Context, store storage.PersistentStore, opts ...CartOption) (*CartStore, error) {
	c := NewCartStore(store, opts...)
	_, err := c.Load(ctx)
	return c, err
}

// Load replaces the in-memory cart with the stored snapshot. A store with no
// snapshot yields an empty cart; sample data is never substituted.
func (c *CartStore) Load(ctx context.Context) (models.CartSnapshot, error) {
	ctx, cancel := c.storeContext(ctx)
	defer cancel()

	snap, err := c.codec.Load(ctx, c.store)
	if err != nil {
		c.reset()
		c.logger.Warn("cart snapshot could not be loaded, starting empty", zap.Error(err))
		return c.Snapshot(), persistenceError("cart.Load", err)
	}
	c.items = c.withinPolicy(snap.Items)
	c.promo = snap.Promo
	return c.Snapshot(), nil
}

// withinPolicy drops stored lines whose quantity or price the policy does
// not allow.
func (c *CartStore) withinPolicy(items []models.LineItem) []models.LineItem {
	out := items[:0]
	for _, it := range items {
		if c.policy.QuantityAllowed(it.Quantity) && c.policy.PriceAllowed(it.UnitPrice) {
			out = append(out, it)
			continue
		}
		c.logger.Warn("dropping stored line outside pricing limits",
			zap.String("line_id", it.ID), zap.Int64("quantity", it.Quantity), zap.Int64("price", it.UnitPrice))
	}
	return out
}

// Save overwrites the stored cart with snap. It does not touch the
// in-memory cart.
func (c *CartStore) Save(ctx context.Context, snap models.CartSnapshot) error {
	ctx, cancel := c.storeContext(ctx)
	defer cancel()

	return c.codec.Save(ctx, c.store, snap)
}

// AddItem adds quantity units of a product variant. An existing line for the
// same product and variant has its quantity increased and keeps the price it
// was added with. A line never holds more than the policy's maximum quantity.
func (c *CartStore) AddItem(ctx context.Context, productID models.ProductID, unitPrice, quantity int64, variant string, details models.ItemDetails) (models.LineItem, error) {
	const op = "cart.AddItem"
	if productID == "" {
		return models.LineItem{}, reject(op, "", ErrInvalidItem)
	}
	if !c.policy.QuantityAllowed(quantity) {
		return models.LineItem{}, reject(op, string(productID), ErrInvalidQuantity)
	}
	if !c.policy.PriceAllowed(unitPrice) {
		return models.LineItem{}, reject(op, string(productID), ErrInvalidPrice)
	}
	if i := c.find(models.LineKey(productID, variant)); i >= 0 && !c.policy.CanAdd(c.items[i].Quantity, quantity) {
		return c.items[i], reject(op, c.items[i].ID, ErrInvalidQuantity)
	}

	item := c.add(productID, unitPrice, quantity, variant, details)
	return item, c.persist(ctx, op)
}

func (c *CartStore) add(productID models.ProductID, unitPrice, quantity int64, variant string, details models.ItemDetails) models.LineItem {
	key := models.LineKey(productID, variant)
	if i := c.find(key); i >= 0 {
		c.items[i].Quantity += quantity
		return c.items[i]
	}
	item := models.LineItem{
		ID:          key,
		ProductID:   productID,
		Variant:     variant,
		UnitPrice:   unitPrice,
		Quantity:    quantity,
		ItemDetails: details,
	}
	c.items = append(c.items, item)
	return item
}

// UpdateQuantity sets the quantity of a line. Quantities below one or above
// the policy's maximum are rejected; use RemoveItem to delete a line.
func (c *CartStore) UpdateQuantity(ctx context.Context, lineID string, quantity int64) (models.LineItem, error) {
	const op = "cart.UpdateQuantity"
	i := c.find(lineID)
	if i < 0 {
		return models.LineItem{}, reject(op, lineID, ErrItemNotFound)
	}
	if !c.policy.QuantityAllowed(quantity) {
		return c.items[i], reject(op, lineID, ErrInvalidQuantity)
	}

	c.items[i].Quantity = quantity
	return c.items[i], c.persist(ctx, op)
}

// IncrementQuantity adds one unit to a line.
func (c *CartStore) IncrementQuantity(ctx context.Context, lineID string) (models.LineItem, error) {
	i := c.find(lineID)
	if i < 0 {
		return models.LineItem{}, reject("cart.IncrementQuantity", lineID, ErrItemNotFound)
	}
	return c.UpdateQuantity(ctx, lineID, c.items[i].Quantity+1)
}

// DecrementQuantity removes one unit from a line. A line never drops below
// one unit this way.
func (c *CartStore) DecrementQuantity(ctx context.Context, lineID string) (models.LineItem, error) {
	i := c.find(lineID)
	if i < 0 {
		return models.LineItem{}, reject("cart.DecrementQuantity", lineID, ErrItemNotFound)
	}
	return c.UpdateQuantity(ctx, lineID, c.items[i].Quantity-1)
}

// RemoveItem deletes a line. Removing a line that is not in the cart is a
// no-op.
func (c *CartStore) RemoveItem(ctx context.Context, lineID string) error {
	if !c.remove(lineID) {
		return nil
	}
	return c.persist(ctx, "cart.RemoveItem")
}

func (c *CartStore) remove(lineID string) bool {
	i := c.find(lineID)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}

// MoveToWishlist appends a line to the wishlist and then removes it from the
// cart. If the wishlist cannot be written the cart is left unchanged and the
// returned *PersistenceError names the wishlist key. A missing line is a
// no-op.
func (c *CartStore) MoveToWishlist(ctx context.Context, lineID string) error {
	const op = "cart.MoveToWishlist"
	i := c.find(lineID)
	if i < 0 {
		return nil
	}
	item := c.items[i]

	if err := c.appendWishlist(ctx, item); err != nil {
		c.metrics.persistenceFailure(ctx, op)
		c.logger.Warn("wishlist append failed, item kept in cart",
			zap.String("line_id", lineID), zap.Error(err))
		return persistenceError(op, err)
	}

	c.remove(lineID)
	return c.persist(ctx, op)
}

func (c *CartStore) appendWishlist(ctx context.Context, item models.LineItem) error {
	ctx, cancel := c.storeContext(ctx)
	defer cancel()

	wishlist, err := storage.LoadWishlist(ctx, c.store)
	if err != nil {
		return err
	}
	return storage.SaveWishlist(ctx, c.store, append(wishlist, item))
}

// Wishlist returns the stored wishlist.
func (c *CartStore) Wishlist(ctx context.Context) ([]models.LineItem, error) {
	ctx, cancel := c.storeContext(ctx)
	defer cancel()

	items, err := storage.LoadWishlist(ctx, c.store)
	if err != nil {
		return nil, persistenceError("cart.Wishlist", err)
	}
	return items, nil
}

// ApplyPromoCode looks code up in table and locks in its discount against the
// current subtotal, replacing any active promo. A blank code clears the
// active promo. An unknown code leaves the cart unchanged.
func (c *CartStore) ApplyPromoCode(ctx context.Context, code string, table pricing.PromoTable) (models.PromoDiscountResult, error) {
	const op = "cart.ApplyPromoCode"
	normalized := pricing.NormalizeCode(code)
	if normalized == "" {
		c.promo = nil
		return models.PromoDiscountResult{Cleared: true}, c.persist(ctx, op)
	}

	pct, ok := table.Lookup(normalized)
	if !ok {
		return models.PromoDiscountResult{}, reject(op, normalized, ErrInvalidPromoCode)
	}

	c.promo = &models.PromoCode{
		Code:           normalized,
		Percentage:     pct,
		DiscountAmount: pricing.Discount(c.subtotal(), pct),
	}
	result := models.PromoDiscountResult{
		Code:           c.promo.Code,
		Percentage:     c.promo.Percentage,
		DiscountAmount: c.promo.DiscountAmount,
	}
	return result, c.persist(ctx, op)
}

// RemovePromoCode clears the active promo.
func (c *CartStore) RemovePromoCode(ctx context.Context) error {
	_, err := c.ApplyPromoCode(ctx, "", nil)
	return err
}

// Totals computes subtotal, tax, shipping, discount and total. It has no side
// effects.
func (c *CartStore) Totals() models.Totals {
	var discount int64
	if c.promo != nil {
		discount = c.promo.DiscountAmount
	}
	t := c.policy.Compute(c.subtotal(), discount)
	t.ItemCount = c.ItemCount()
	return t
}

// Clear empties the cart and drops the active promo.
func (c *CartStore) Clear(ctx context.Context) error {
	c.reset()
	return c.persist(ctx, "cart.Clear")
}

// SeedDemo fills an empty cart with sample items. It refuses to touch a cart
// that already has items.
func (c *CartStore) SeedDemo(ctx context.Context, items []models.LineItem) error {
	const op = "cart.SeedDemo"
	if !c.IsEmpty() {
		return reject(op, "", ErrCartNotEmpty)
	}
	for _, it := range items {
		switch {
		case it.ProductID == "":
			return reject(op, "", ErrInvalidItem)
		case !c.policy.QuantityAllowed(it.Quantity):
			return reject(op, string(it.ProductID), ErrInvalidQuantity)
		case !c.policy.PriceAllowed(it.UnitPrice):
			return reject(op, string(it.ProductID), ErrInvalidPrice)
		}
	}
	for _, it := range items {
		c.add(it.ProductID, it.UnitPrice, it.Quantity, it.Variant, it.ItemDetails)
	}
	return c.persist(ctx, op)
}

// Items returns a copy of the lines in insertion order.
func (c *CartStore) Items() []models.LineItem {
	out := make([]models.LineItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *CartStore) Item(lineID string) (models.LineItem, bool) {
	i := c.find(lineID)
	if i < 0 {
		return models.LineItem{}, false
	}
	return c.items[i], true
}

func (c *CartStore) IsEmpty() bool { return len(c.items) == 0 }

// ItemCount is the sum of all quantities.
func (c *CartStore) ItemCount() int64 {
	var n int64
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

func (c *CartStore) ActivePromo() *models.PromoCode {
	if c.promo == nil {
		return nil
	}
	p := *c.promo
	return &p
}

func (c *CartStore) Snapshot() models.CartSnapshot {
	return models.CartSnapshot{Items: c.items, Promo: c.promo}.Clone()
}

func (c *CartStore) subtotal() int64 {
	return pricing.Subtotal(c.items)
}

func (c *CartStore) find(lineID string) int {
	for i := range c.items {
		if c.items[i].ID == lineID {
			return i
		}
	}
	return -1
}

func (c *CartStore) reset() {
	c.items = []models.LineItem{}
	c.promo = nil
}

func (c *CartStore) persist(ctx context.Context, op string) error {
	c.metrics.mutation(ctx, op)
	if err := c.Save(ctx, c.Snapshot()); err != nil {
		c.metrics.persistenceFailure(ctx, op)
		pe := persistenceError(op, err)
		c.logger.Warn("cart snapshot not persisted", zap.String("op", op), zap.Error(pe))
		return pe
	}
	c.logger.Debug("cart persisted", zap.String("op", op), zap.Int("lines", len(c.items)))
	return nil
}

func (c *CartStore) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}
