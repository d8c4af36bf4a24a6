package models

import "time"

// Variant is a purchasable option of a product. A zero Price means the
// product price applies.
type Variant struct {
	Name  string `json:"name"`
	Price int64  `json:"price,omitempty"`
}

type Product struct {
	ID          ProductID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Artisan     string    `json:"artisan"`
	Category    string    `json:"category"`
	Image       string    `json:"image"`
	Stock       int64     `json:"stock"`
	InStock     bool      `json:"inStock"`
	Variants    []Variant `json:"variants,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
