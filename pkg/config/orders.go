package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone names must resolve on images without zoneinfo
)

const defaultCatalogLimit = 100

// OrdersConfig tunes order placement.
type OrdersConfig struct {
	// CatalogLimit is how many products are read when checking an order against the catalog.
	CatalogLimit int32 `koanf:"cataloglimit"`
	// TimeZone decides which calendar day "today" is for delivery dates.
	TimeZone string `koanf:"timezone"`
}

// String returns a string representation of the orders configuration.
func (c *OrdersConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Orders ---\n")
	b.WriteString(fmt.Sprintf("  cataloglimit: %d\n", c.CatalogLimit))
	b.WriteString(fmt.Sprintf("  timezone: %s\n", c.TimeZone))
	return b.String()
}

func (c *OrdersConfig) Validate() error {
	if c.CatalogLimit <= 0 {
		c.CatalogLimit = defaultCatalogLimit
	}
	if c.TimeZone == "" {
		c.TimeZone = "UTC"
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid orders time zone %q: %w", c.TimeZone, err)
	}
	return nil
}

// Location returns the configured time zone, UTC if it cannot be loaded.
func (c *OrdersConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
