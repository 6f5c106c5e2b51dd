package db

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Price         int64      `json:"price"`
	StockQuantity int32      `json:"stock_quantity"`
	CreatedAt     *time.Time `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at"`
}

type Order struct {
	ID           string     `json:"id"`
	CreatorID    string     `json:"creator_id"`
	CreatorName  string     `json:"creator_name"`
	ClientName   string     `json:"client_name"`
	DeliveryDate time.Time  `json:"delivery_date"`
	TotalPrice   int64      `json:"total_price"`
	CreatedAt    *time.Time `json:"created_at"`
}

type OrderLine struct {
	OrderID     string     `json:"order_id"`
	ProductName string     `json:"product_name"`
	Quantity    int32      `json:"quantity"`
	TotalPrice  int64      `json:"total_price"`
	CreatedAt   *time.Time `json:"created_at"`
}
