package services

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"artisan-market/internal/events"
	"artisan-market/internal/models"
)

// OrderService turns carts into orders.
type OrderService struct {
	mu             sync.RWMutex
	orders         map[string]*models.Order // order_id -> order
	sessionOrders  map[string][]string      // session_id -> order_ids
	productService *ProductService
	cartService    *CartService
	publisher      events.Publisher
	topic          string
	logger         *zap.Logger
	metrics        *Metrics
	now            func() time.Time

	stats struct {
		sync.RWMutex
		totalOrders  int64
		failedOrders int64
	}
}

type OrderOption func(*OrderService)

func WithOrderTopic(topic string) OrderOption {
	return func(s *OrderService) {
		if topic != "" {
			s.topic = topic
		}
	}
}

func WithOrderLogger(l *zap.Logger) OrderOption {
	return func(s *OrderService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithOrderMetrics(m *Metrics) OrderOption {
	return func(s *OrderService) { s.metrics = m }
}

func WithClock(now func() time.Time) OrderOption {
	return func(s *OrderService) { s.now = now }
}

func NewOrderService(productService *ProductService, cartService *CartService, publisher events.Publisher, opts ...OrderOption) *OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	s := &OrderService{
		orders:         make(map[string]*models.Order),
		sessionOrders:  make(map[string][]string),
		productService: productService,
		cartService:    cartService,
		publisher:      publisher,
		topic:          events.TopicOrderPlaced,
		logger:         zap.NewNop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout places an order for everything in the session's cart, reserves
// stock and clears the cart. The order is priced with the cart's totals at
// the time of checkout.
//
// When the order is placed but the emptied cart cannot be persisted, the
// order is returned together with a *PersistenceError.
func (s *OrderService) Checkout(ctx context.Context, sessionID string, req models.CheckoutRequest) (*models.Order, error) {
	sessionID = normalizeSession(sessionID)

	var order *models.Order
	var clearErr error
	err := s.cartService.WithCart(ctx, sessionID, func(c *CartStore) error {
		if c.IsEmpty() {
			return reject("order.Checkout", sessionID, ErrCartEmpty)
		}

		items := c.Items()
		quantities := make(map[models.ProductID]int64, len(items))
		for _, it := range items {
			quantities[it.ProductID] += it.Quantity
		}
		if err := s.productService.Reserve(quantities); err != nil {
			return err
		}

		order = s.buildOrder(sessionID, c, req)
		s.store(order)

		clearErr = c.Clear(ctx)
		return nil
	})
	if err != nil && order == nil {
		s.recordFailure(ctx, err)
		return nil, err
	}

	s.stats.Lock()
	s.stats.totalOrders++
	s.stats.Unlock()
	s.metrics.orderPlaced(ctx)

	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("session_id", sessionID),
		zap.Int64("total", order.Totals.Total),
		zap.Int("lines", len(order.Items)))

	s.publishPlaced(ctx, order)

	if clearErr != nil {
		return order, clearErr
	}
	return order, err
}

func (s *OrderService) buildOrder(sessionID string, c *CartStore, req models.CheckoutRequest) *models.Order {
	items := c.Items()
	orderItems := make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		orderItems = append(orderItems, models.OrderItem{
			ProductID: it.ProductID,
			Variant:   it.Variant,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Name:      it.Name,
			Artisan:   it.Artisan,
		})
	}

	now := s.now().UTC()
	order := &models.Order{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		Items:         orderItems,
		Totals:        c.Totals(),
		Status:        models.OrderStatusPending,
		Address:       req.Address,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if promo := c.ActivePromo(); promo != nil {
		order.PromoCode = promo.Code
	}
	return order
}

func (s *OrderService) store(order *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[order.ID] = order
	s.sessionOrders[order.SessionID] = append(s.sessionOrders[order.SessionID], order.ID)
}

func (s *OrderService) publishPlaced(ctx context.Context, order *models.Order) {
	event := events.OrderPlaced{
		OrderID:   order.ID,
		SessionID: order.SessionID,
		Total:     order.Totals.Total,
		ItemCount: order.Totals.ItemCount,
		PlacedAt:  order.CreatedAt,
	}
	if err := events.PublishJSON(ctx, s.publisher, s.topic, order.ID, event); err != nil {
		s.logger.Warn("order event not published",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (s *OrderService) recordFailure(ctx context.Context, err error) {
	s.stats.Lock()
	s.stats.failedOrders++
	s.stats.Unlock()

	reason := "other"
	switch {
	case errors.Is(err, ErrCartEmpty):
		reason = "cart_empty"
	case errors.Is(err, ErrOutOfStock):
		reason = "out_of_stock"
	case errors.Is(err, ErrProductNotFound):
		reason = "product_not_found"
	case IsPersistence(err):
		reason = "persistence"
	}
	s.metrics.orderFailed(ctx, reason)
	s.logger.Info("checkout rejected", zap.String("reason", reason), zap.Error(err))
}

func (s *OrderService) GetOrder(id string) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.orders[id]
	if !exists {
		return models.Order{}, reject("order.Get", id, ErrOrderNotFound)
	}
	return *order, nil
}

// OrdersFor lists a session's orders, oldest first.
func (s *OrderService) OrdersFor(sessionID string) []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.sessionOrders[normalizeSession(sessionID)]
	out := make([]models.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.orders[id])
	}
	return out
}

// Statistics
func (s *OrderService) GetStats() map[string]int64 {
	s.stats.RLock()
	defer s.stats.RUnlock()

	return map[string]int64{
		"total_orders":  s.stats.totalOrders,
		"failed_orders": s.stats.failedOrders,
	}
}
