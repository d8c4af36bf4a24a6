package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"artisan-market/internal/models"
)

// ProductService is the in-memory artisan catalog.
type ProductService struct {
	mu       sync.RWMutex
	products map[models.ProductID]*models.Product
	order    []models.ProductID
}

func NewProductService() *ProductService {
	return &ProductService{
		products: make(map[models.ProductID]*models.Product),
	}
}

func (s *ProductService) InitSampleData() {
	now := time.Now()
	for _, p := range sampleCatalog() {
		p.CreatedAt = now
		p.UpdatedAt = now
		s.Add(p)
	}
}

// Add inserts or replaces a product.
func (s *ProductService) Add(p models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.InStock = p.Stock > 0
	if _, exists := s.products[p.ID]; !exists {
		s.order = append(s.order, p.ID)
	}
	s.products[p.ID] = &p
}

// GetAllProducts returns one page of the catalog in insertion order and the
// total number of products.
func (s *ProductService) GetAllProducts(page, limit int) ([]models.Product, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]models.Product, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, *s.products[id])
	}
	return paginate(all, page, limit), len(all)
}

func (s *ProductService) GetProductByID(id models.ProductID) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return models.Product{}, false
	}
	return *product, true
}

// SearchProducts filters by a case-insensitive query over name, description
// and artisan, an exact category and a price range. Zero bounds are open.
func (s *ProductService) SearchProducts(query, category string, minPrice, maxPrice int64, page, limit int) ([]models.Product, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	var results []models.Product
	for _, id := range s.order {
		product := s.products[id]
		matchesQuery := query == "" ||
			strings.Contains(strings.ToLower(product.Name), query) ||
			strings.Contains(strings.ToLower(product.Description), query) ||
			strings.Contains(strings.ToLower(product.Artisan), query)
		matchesCategory := category == "" || strings.EqualFold(product.Category, category)
		matchesPrice := (minPrice == 0 || product.Price >= minPrice) &&
			(maxPrice == 0 || product.Price <= maxPrice)

		if matchesQuery && matchesCategory && matchesPrice {
			results = append(results, *product)
		}
	}
	return paginate(results, page, limit), len(results)
}

// PriceFor resolves the unit price of a product variant. A variant without
// its own price uses the product price.
func (s *ProductService) PriceFor(p models.Product, variant string) (int64, error) {
	if variant == "" {
		return p.Price, nil
	}
	for _, v := range p.Variants {
		if strings.EqualFold(v.Name, variant) {
			if v.Price > 0 {
				return v.Price, nil
			}
			return p.Price, nil
		}
	}
	return 0, reject("catalog.PriceFor", string(p.ID), ErrVariantNotFound)
}

// CanonicalVariant returns the catalog spelling of a variant name.
func CanonicalVariant(p models.Product, variant string) string {
	for _, v := range p.Variants {
		if strings.EqualFold(v.Name, variant) {
			return v.Name
		}
	}
	return variant
}

// Details returns the display data captured on a cart line.
func Details(p models.Product) models.ItemDetails {
	return models.ItemDetails{
		Name:     p.Name,
		Image:    p.Image,
		Artisan:  p.Artisan,
		Category: p.Category,
		InStock:  p.InStock,
	}
}

// SetStock overwrites the stock level of a product.
func (s *ProductService) SetStock(id models.ProductID, stock int64) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return models.Product{}, reject("catalog.SetStock", string(id), ErrProductNotFound)
	}
	product.Stock = stock
	product.InStock = stock > 0
	product.UpdatedAt = time.Now()
	return *product, nil
}

// Reserve deducts the given quantities from stock. Either every product has
// enough stock and all are deducted, or nothing changes.
func (s *ProductService) Reserve(quantities map[models.ProductID]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]models.ProductID, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		product, exists := s.products[id]
		if !exists {
			return reject("catalog.Reserve", string(id), ErrProductNotFound)
		}
		if product.Stock < quantities[id] {
			return reject("catalog.Reserve", string(id), ErrOutOfStock)
		}
	}

	now := time.Now()
	for _, id := range ids {
		product := s.products[id]
		product.Stock -= quantities[id]
		product.InStock = product.Stock > 0
		product.UpdatedAt = now
	}
	return nil
}

// DemoItems is the sample cart offered to first-time visitors.
func (s *ProductService) DemoItems() []models.LineItem {
	demo := []struct {
		id       models.ProductID
		quantity int64
	}{
		{"1", 1},
		{"2", 2},
		{"3", 1},
	}

	items := make([]models.LineItem, 0, len(demo))
	for _, d := range demo {
		p, ok := s.GetProductByID(d.id)
		if !ok {
			continue
		}
		items = append(items, models.LineItem{
			ProductID:   p.ID,
			UnitPrice:   p.Price,
			Quantity:    d.quantity,
			ItemDetails: Details(p),
		})
	}
	return items
}

func paginate(products []models.Product, page, limit int) []models.Product {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return []models.Product{}
	}
	start := (page - 1) * limit
	if start >= len(products) {
		return []models.Product{}
	}
	end := start + limit
	if end > len(products) {
		end = len(products)
	}
	return products[start:end]
}

func sampleCatalog() []models.Product {
	return []models.Product{
		{
			ID:          "1",
			Name:        "Handwoven Kashmiri Pashmina Shawl",
			Description: "Pure pashmina wool shawl hand-woven in Srinagar with traditional paisley motifs.",
			Price:       8500,
			Artisan:     "Priya Sharma",
			Category:    "Textiles",
			Image:       "https://images.unsplash.com/photo-1594633312681-425c7b97ccd1?w=400&h=400&fit=crop",
			Stock:       8,
			Variants: []models.Variant{
				{Name: "Classic Beige", Price: 8500},
				{Name: "Royal Blue", Price: 9000},
				{Name: "Emerald Green", Price: 9200},
			},
		},
		{
			ID:          "2",
			Name:        "Blue Pottery Ceramic Dinner Set",
			Description: "Hand-painted Jaipur blue pottery dinner set in cobalt and white.",
			Price:       4200,
			Artisan:     "Rajesh Kumar",
			Category:    "Pottery",
			Image:       "https://images.unsplash.com/photo-1578749556568-bc2c40e68b61?w=400&h=400&fit=crop",
			Stock:       12,
		},
		{
			ID:          "3",
			Name:        "Carved Wooden Jewelry Box",
			Description: "Sheesham wood jewelry box with hand-carved floral lid.",
			Price:       2800,
			Artisan:     "Meera Devi",
			Category:    "Woodwork",
			Image:       "https://images.unsplash.com/photo-1513475382585-d06e58bcb0e0?w=400&h=400&fit=crop",
			Stock:       5,
		},
		{
			ID:          "4",
			Name:        "Handwoven Silk Scarf",
			Description: "Light silk scarf woven on a pit loom.",
			Price:       2500,
			Artisan:     "Priya Sharma",
			Category:    "Textiles",
			Image:       "https://images.unsplash.com/photo-1584464491033-06628f3a6b7b?w=400&h=400&fit=crop",
			Stock:       20,
		},
		{
			ID:          "5",
			Name:        "Ceramic Tea Set",
			Description: "Wheel-thrown stoneware tea set for four.",
			Price:       3200,
			Artisan:     "Rajesh Kumar",
			Category:    "Pottery",
			Image:       "https://images.unsplash.com/photo-1578662996442-48f60103fc96?w=400&h=400&fit=crop",
			Stock:       6,
		},
		{
			ID:          "6",
			Name:        "Rajasthani Blue Pottery Vase",
			Description: "Quartz and multani mitti vase with Mughal-inspired patterns.",
			Price:       2800,
			Artisan:     "Ramesh Kumar",
			Category:    "Pottery",
			Image:       "https://images.unsplash.com/photo-1610701596007-11502861dcfa?w=400&h=400&fit=crop",
			Stock:       0,
			Variants: []models.Variant{
				{Name: "Small"},
				{Name: "Large", Price: 3600},
			},
		},
	}
}
