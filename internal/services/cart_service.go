package services

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"artisan-market/internal/models"
	"artisan-market/internal/storage"
)

// DefaultSessionID is used when a request carries no session.
const DefaultSessionID = "guest"

type sessionCart struct {
	mu     sync.Mutex
	cart   *CartStore
	loaded bool
}

// CartService keeps one CartStore per session and serializes access to each
// of them. Carts share the backing store, each under its own key namespace.
type CartService struct {
	mu     sync.RWMutex
	carts  map[string]*sessionCart // session_id -> cart
	store  storage.PersistentStore
	opts   []CartOption
	logger *zap.Logger
}

func NewCartService(store storage.PersistentStore, logger *zap.Logger, opts ...CartOption) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{
		carts:  make(map[string]*sessionCart),
		store:  store,
		opts:   opts,
		logger: logger,
	}
}

// WithCart runs fn against the session's cart while holding that cart's
// lock. The cart is loaded from the store on first use.
//
// A stored cart that cannot be decoded is replaced by an empty one; fn still
// runs and, if it succeeds, the load error is returned so the caller can warn.
// A store that cannot be read fails the call without running fn.
func (s *CartService) WithCart(ctx context.Context, sessionID string, fn func(*CartStore) error) error {
	entry := s.entry(sessionID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	var loadErr error
	if !entry.loaded {
		if _, err := entry.cart.Load(ctx); err != nil {
			if !storage.IsCorrupt(err) {
				return err
			}
			s.logger.Warn("discarding unreadable cart",
				zap.String("session_id", sessionID), zap.Error(err))
			loadErr = err
		}
		entry.loaded = true
	}

	if err := fn(entry.cart); err != nil {
		return err
	}
	return loadErr
}

// View returns the session's items, totals and active promo.
func (s *CartService) View(ctx context.Context, sessionID string) (models.CartView, error) {
	var view models.CartView
	err := s.WithCart(ctx, sessionID, func(c *CartStore) error {
		view = ViewOf(c)
		return nil
	})
	return view, err
}

// ViewOf renders the current state of c.
func ViewOf(c *CartStore) models.CartView {
	return models.CartView{
		Items:   c.Items(),
		Totals:  c.Totals(),
		Promo:   c.ActivePromo(),
		IsEmpty: c.IsEmpty(),
	}
}

// StoredCount reads the session's item count straight from the store without
// hydrating the cart.
func (s *CartService) StoredCount(ctx context.Context, sessionID string) (int64, error) {
	n, err := storage.LoadCount(ctx, s.namespace(normalizeSession(sessionID)))
	if err != nil {
		return 0, persistenceError("cart.StoredCount", err)
	}
	return n, nil
}

// Forget drops the in-memory cart for a session. Stored data is kept and is
// loaded again on next use.
func (s *CartService) Forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, normalizeSession(sessionID))
}

// Sessions reports how many carts are held in memory.
func (s *CartService) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.carts)
}

func (s *CartService) entry(sessionID string) *sessionCart {
	sessionID = normalizeSession(sessionID)

	s.mu.RLock()
	entry, ok := s.carts[sessionID]
	s.mu.RUnlock()
	if ok {
		return entry
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.carts[sessionID]; ok {
		return entry
	}

	opts := append([]CartOption{}, s.opts...)
	opts = append(opts, WithLogger(s.logger.With(zap.String("session_id", sessionID))))
	entry = &sessionCart{
		cart: NewCartStore(s.namespace(sessionID), opts...),
	}
	s.carts[sessionID] = entry
	return entry
}

func (s *CartService) namespace(sessionID string) storage.PersistentStore {
	return storage.Namespace(s.store, "cart:"+sessionID)
}

func normalizeSession(sessionID string) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return DefaultSessionID
	}
	return sessionID
}
