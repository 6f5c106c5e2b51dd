package service

import (
	"time"

	"github.com/abgdnv/shopper/internal/domain"
)

// ProductDto is a catalog entry as returned to callers.
type ProductDto struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	StockQuantity int32  `json:"stock_quantity"`
}

// PlaceOrderDto is the input of PlaceOrder.
type PlaceOrderDto struct {
	ClientName   string               `json:"client_name"`
	DeliveryDate string               `json:"delivery_date"`
	Lines        []OrderLineCreateDto `json:"products" validate:"dive"`
}

// OrderLineCreateDto is one requested product. TotalPrice is supplied by the
// caller and trusted as is.
type OrderLineCreateDto struct {
	Name       string `json:"name" validate:"required"`
	Quantity   int32  `json:"quantity" validate:"min=1"`
	TotalPrice int64  `json:"total_price" validate:"min=0"`
}

// MessageDto is the confirmation returned by mutating operations.
type MessageDto struct {
	Message string `json:"message"`
}

type OrderDto struct {
	ID           string `json:"id"`
	CreatorID    string `json:"creator_id"`
	CreatorName  string `json:"creator_name"`
	ClientName   string `json:"client_name"`
	DeliveryDate string `json:"delivery_date"`
	TotalPrice   int64  `json:"total_price"`
	CreatedAt    string `json:"created_at"`
}

type OrderLineDto struct {
	ProductName string `json:"product_name"`
	Quantity    int32  `json:"quantity"`
	TotalPrice  int64  `json:"total_price"`
}

// OrderDetailsDto lists the lines of one order. Items may be empty.
type OrderDetailsDto struct {
	OrderID string         `json:"order_id"`
	Items   []OrderLineDto `json:"items"`
}

func toProductDto(p domain.Product) ProductDto {
	return ProductDto{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		StockQuantity: p.Stock,
	}
}

func toOrderDto(o domain.Order) OrderDto {
	dto := OrderDto{
		ID:           o.ID,
		CreatorID:    o.CreatorID,
		CreatorName:  o.CreatorName,
		ClientName:   o.ClientName,
		DeliveryDate: o.DeliveryDate.Format(domain.DeliveryDateLayout),
		TotalPrice:   o.TotalPrice,
	}
	if !o.CreatedAt.IsZero() {
		dto.CreatedAt = o.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toOrderLineDtos(lines []domain.OrderLine) []OrderLineDto {
	items := make([]OrderLineDto, 0, len(lines))
	for _, l := range lines {
		items = append(items, OrderLineDto{
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			TotalPrice:  l.TotalPrice,
		})
	}
	return items
}
