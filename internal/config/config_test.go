package config

import (
	"testing"

	pkgconfig "github.com/abgdnv/shopper/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	var cfg Config
	cfg.HTTPServer.Port = 8080
	cfg.HTTPServer.Timeout.Read = 1
	cfg.HTTPServer.Timeout.Write = 1
	cfg.HTTPServer.Timeout.Idle = 1
	cfg.HTTPServer.Timeout.ReadHeader = 1
	cfg.Database.Driver = pkgconfig.DriverMemory
	cfg.IdP.Secret = "0123456789abcdef0123456789abcdef"
	return &cfg
}

func Test_Config_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "bad port", modify: func(c *Config) { c.HTTPServer.Port = 0 }, wantErr: true},
		{name: "postgres without url", modify: func(c *Config) { c.Database.Driver = pkgconfig.DriverPostgres }, wantErr: true},
		{name: "no idp", modify: func(c *Config) { c.IdP.Secret = "" }, wantErr: true},
		{name: "bad time zone", modify: func(c *Config) { c.Orders.TimeZone = "Mars/Olympus" }, wantErr: true},
		{name: "duplicate seed", modify: func(c *Config) {
			c.Seed.Products = []pkgconfig.SeedProduct{{Name: "Water"}, {Name: "Water"}}
		}, wantErr: true},
		{name: "nats enabled without url", modify: func(c *Config) { c.Nats.Enabled = true }, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.modify(cfg)

			err := cfg.Validate()

			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func Test_Config_DefaultsAndString(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = pkgconfig.DriverPostgres
	cfg.Database.URL = "postgres://orders:secret@db:5432/orders"
	cfg.Database.Timeout = 1

	require.NoError(t, cfg.Validate())

	assert.Equal(t, int32(100), cfg.Orders.CatalogLimit)
	assert.Equal(t, "UTC", cfg.Orders.TimeZone)
	out := cfg.String()
	assert.Contains(t, out, "db:5432")
	assert.NotContains(t, out, "secret")
}

func Test_NotifierConfig_Validate(t *testing.T) {
	var cfg NotifierConfig
	cfg.Nats.Url = "nats://localhost:4222"
	cfg.Nats.Timeout = 1
	cfg.Nats.Stream = "ORDERS"
	cfg.Subscriber.Stream = "ORDERS"
	cfg.Subscriber.Consumer = "order-audit"

	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Nats.Enabled)

	cfg.Nats.Url = ""
	assert.Error(t, cfg.Validate())
}
