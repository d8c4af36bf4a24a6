package models

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type Order struct {
	ID            string      `json:"id"`
	SessionID     string      `json:"session_id"`
	Items         []OrderItem `json:"items"`
	PromoCode     string      `json:"promo_code,omitempty"`
	Totals        Totals      `json:"totals"`
	Status        OrderStatus `json:"status"`
	Address       string      `json:"address"`
	PaymentMethod string      `json:"payment_method"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

type OrderItem struct {
	ProductID ProductID `json:"product_id"`
	Variant   string    `json:"variant,omitempty"`
	Quantity  int64     `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
	Name      string    `json:"name"`
	Artisan   string    `json:"artisan,omitempty"`
}

type CheckoutRequest struct {
	Address       string `json:"address" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required"`
}
