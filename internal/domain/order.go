// Package domain holds the order and inventory entities independent of their storage format.
package domain

import (
	"fmt"
	"time"
)

// DeliveryDateLayout is the YYYY/MM/DD shape accepted for delivery dates.
const DeliveryDateLayout = "2006/01/02"

// Product is a catalog item with its available stock.
type Product struct {
	ID    string
	Name  string
	Price int64 // minor units
	Stock int32
}

// Order is an order header. Its lines are stored separately.
type Order struct {
	ID           string
	CreatorID    string
	CreatorName  string
	ClientName   string
	DeliveryDate time.Time
	TotalPrice   int64
	CreatedAt    time.Time
}

// OrderLine is one product entry of an order.
type OrderLine struct {
	OrderID     string
	ProductName string
	Quantity    int32
	TotalPrice  int64
}

// ParseDeliveryDate parses a YYYY/MM/DD date at midnight in loc.
func ParseDeliveryDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	date, err := time.ParseInLocation(DeliveryDateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid delivery date %q: %w", value, err)
	}
	return date, nil
}

// IsBeforeDay reports whether date falls on a calendar day strictly before now's day in loc.
func IsBeforeDay(date, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	dy, dm, dd := date.In(loc).Date()
	day := time.Date(dy, dm, dd, 0, 0, 0, 0, loc)
	return day.Before(today)
}

// TotalOf sums the totals of lines.
func TotalOf(lines []OrderLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.TotalPrice
	}
	return total
}
