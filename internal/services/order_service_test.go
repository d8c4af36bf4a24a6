package services

import (
	"context"
	"errors"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artisan-market/internal/events"
	"artisan-market/internal/models"
	"artisan-market/internal/pricing"
	"artisan-market/internal/storage"
)

type checkoutFixture struct {
	mem      *storage.MemoryStore
	products *ProductService
	carts    *CartService
	orders   *OrderService
	events   *events.RecordingPublisher
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		mem:      storage.NewMemoryStore(),
		products: NewProductService(),
		events:   &events.RecordingPublisher{},
	}
	f.products.InitSampleData()
	f.carts = NewCartService(f.mem, nil)
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f.orders = NewOrderService(f.products, f.carts, f.events, WithClock(func() time.Time { return fixed }))
	return f
}

func (f *checkoutFixture) add(t *testing.T, session string, id models.ProductID, qty int64) {
	t.Helper()
	p, ok := f.products.GetProductByID(id)
	require.True(t, ok)
	require.NoError(t, f.carts.WithCart(context.Background(), session, func(c *CartStore) error {
		_, err := c.AddItem(context.Background(), p.ID, p.Price, qty, "", Details(p))
		return err
	}))
}

var checkoutReq = models.CheckoutRequest{Address: "12 MG Road, Jaipur", PaymentMethod: "upi"}

func TestOrderService_Checkout(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.add(t, "alice", "2", 2)
	f.add(t, "alice", "3", 1)
	require.NoError(t, f.carts.WithCart(ctx, "alice", func(c *CartStore) error {
		_, err := c.ApplyPromoCode(ctx, "CRAFT10", pricing.DefaultPromoTable())
		return err
	}))

	order, err := f.orders.Checkout(ctx, "alice", checkoutReq)
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "CRAFT10", order.PromoCode)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, models.Totals{Subtotal: 11200, Tax: 2016, Shipping: 0, Discount: 1120, Total: 12096, ItemCount: 3}, order.Totals)

	view, err := f.carts.View(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, view.IsEmpty)
	assert.Nil(t, view.Promo)

	set, _ := f.products.GetProductByID("2")
	assert.Equal(t, int64(10), set.Stock)

	got, err := f.orders.GetOrder(order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Len(t, f.orders.OrdersFor("alice"), 1)

	msgs := f.events.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, events.TopicOrderPlaced, msgs[0].Topic)
	var placed events.OrderPlaced
	require.NoError(t, json.Unmarshal(msgs[0].Value, &placed))
	assert.Equal(t, order.ID, placed.OrderID)
	assert.Equal(t, int64(12096), placed.Total)
	assert.Equal(t, int64(3), placed.ItemCount)

	assert.Equal(t, map[string]int64{"total_orders": 1, "failed_orders": 0}, f.orders.GetStats())
}

func TestOrderService_CheckoutEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)

	order, err := f.orders.Checkout(context.Background(), "bob", checkoutReq)
	assert.Nil(t, order)
	assert.ErrorIs(t, err, ErrCartEmpty)
	assert.Equal(t, int64(1), f.orders.GetStats()["failed_orders"])
	assert.Empty(t, f.events.Messages())
}

func TestOrderService_CheckoutOutOfStock(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.add(t, "carol", "3", 6)

	_, err := f.orders.Checkout(ctx, "carol", checkoutReq)
	assert.ErrorIs(t, err, ErrOutOfStock)

	view, _ := f.carts.View(ctx, "carol")
	assert.False(t, view.IsEmpty, "a rejected checkout keeps the cart")
	box, _ := f.products.GetProductByID("3")
	assert.Equal(t, int64(5), box.Stock)
}

func TestOrderService_CheckoutKeepsOrderWhenClearFails(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.add(t, "dave", "1", 1)
	f.mem.FailWrites(errors.New("read-only replica"))

	order, err := f.orders.Checkout(ctx, "dave", checkoutReq)
	require.NotNil(t, order)
	assert.True(t, IsPersistence(err))

	view, _ := f.carts.View(ctx, "dave")
	assert.True(t, view.IsEmpty)
	assert.Equal(t, int64(1), f.orders.GetStats()["total_orders"])
}

func TestOrderService_PublishFailureDoesNotFailCheckout(t *testing.T) {
	f := newCheckoutFixture(t)
	f.add(t, "erin", "4", 1)
	f.events.FailWith(errors.New("broker down"))

	order, err := f.orders.Checkout(context.Background(), "erin", checkoutReq)
	require.NoError(t, err)
	assert.NotNil(t, order)
}

func TestOrderService_GetOrderNotFound(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.orders.GetOrder("missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Empty(t, f.orders.OrdersFor("nobody"))
}
