// Package events contains the payloads published on the order subjects.
package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/shopper/pkg/messaging"
)

// Carrier holds the propagated trace context of the operation that emitted the event.
type Carrier map[string]string

type OrderLine struct {
	ProductName string `json:"product_name"`
	Quantity    int32  `json:"quantity"`
	TotalPrice  int64  `json:"total_price"`
}

type OrderPlacedEvent struct {
	Carrier      Carrier     `json:"carrier,omitempty"`
	OrderID      string      `json:"order_id"`
	CreatorID    string      `json:"creator_id"`
	ClientName   string      `json:"client_name"`
	DeliveryDate string      `json:"delivery_date"`
	TotalPrice   int64       `json:"total_price"`
	Lines        []OrderLine `json:"lines"`
	PlacedAt     time.Time   `json:"placed_at"`
}

func (o OrderPlacedEvent) Subject() string {
	return messaging.OrdersPlacedSubject
}

func (o OrderPlacedEvent) Payload() ([]byte, error) {
	return json.Marshal(o)
}

// OrderLineRemovedEvent is emitted when a line is taken out of an order.
// OrderDeleted is set when it was the last line and the order went with it.
type OrderLineRemovedEvent struct {
	Carrier        Carrier   `json:"carrier,omitempty"`
	OrderID        string    `json:"order_id"`
	ProductName    string    `json:"product_name"`
	RestockedQty   int32     `json:"restocked_quantity"`
	RemainingTotal int64     `json:"remaining_total"`
	OrderDeleted   bool      `json:"order_deleted"`
	RemovedBy      string    `json:"removed_by"`
	RemovedAt      time.Time `json:"removed_at"`
}

func (o OrderLineRemovedEvent) Subject() string {
	return messaging.OrdersLineRemovedSubject
}

func (o OrderLineRemovedEvent) Payload() ([]byte, error) {
	return json.Marshal(o)
}

type OrderDeletedEvent struct {
	Carrier   Carrier     `json:"carrier,omitempty"`
	OrderID   string      `json:"order_id"`
	Restocked []OrderLine `json:"restocked"`
	DeletedBy string      `json:"deleted_by"`
	DeletedAt time.Time   `json:"deleted_at"`
}

func (o OrderDeletedEvent) Subject() string {
	return messaging.OrdersDeletedSubject
}

func (o OrderDeletedEvent) Payload() ([]byte, error) {
	return json.Marshal(o)
}
