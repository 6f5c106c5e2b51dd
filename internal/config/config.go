// Package config holds the configuration of the order service.
package config

import (
	"strings"

	"github.com/abgdnv/shopper/pkg/config"
	"github.com/abgdnv/shopper/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

type Config struct {
	HTTPServer config.HTTPConfig      `koanf:"server"`
	Database   config.DatabaseConfig  `koanf:"database"`
	Log        config.LogConfig       `koanf:"log"`
	PProf      config.PProfConfig     `koanf:"pprof"`
	Nats       config.NATSConfig      `koanf:"nats"`
	Shutdown   config.ShutdownConfig  `koanf:"shutdown"`
	IdP        config.IdP             `koanf:"idp"`
	Telemetry  config.TelemetryConfig `koanf:"telemetry"`
	Orders     config.OrdersConfig    `koanf:"orders"`
	Seed       config.SeedConfig      `koanf:"seed"`
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.Database.String())
	b.WriteString(c.Orders.String())
	b.WriteString(c.IdP.String())
	b.WriteString(c.Nats.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

// Validate checks every section and fills in defaults.
func (c *Config) Validate() error {
	validators := []configloader.Validator{
		&c.HTTPServer,
		&c.Database,
		&c.Log,
		&c.PProf,
		&c.Nats,
		&c.Shutdown,
		&c.IdP,
		&c.Telemetry,
		&c.Orders,
		&c.Seed,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
