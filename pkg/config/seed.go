package config

import "fmt"

// SeedProduct is a catalog entry loaded into the memory store at startup.
type SeedProduct struct {
	Name  string `koanf:"name"`
	Price int64  `koanf:"price"`
	Stock int32  `koanf:"stock"`
}

type SeedConfig struct {
	Products []SeedProduct `koanf:"products"`
}

func (c *SeedConfig) Validate() error {
	seen := make(map[string]bool, len(c.Products))
	for i, p := range c.Products {
		if p.Name == "" {
			return fmt.Errorf("seed product #%d has no name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("seed product %s is listed twice", p.Name)
		}
		if p.Price < 0 || p.Stock < 0 {
			return fmt.Errorf("seed product %s has a negative price or stock", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}
