package configloader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Server struct {
		Port int `koanf:"port"`
	} `koanf:"server"`
	Database struct {
		URL     string        `koanf:"url"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"database"`
	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

func (c *testConfig) Validate() error {
	if c.Server.Port == 0 {
		return errors.New("port is required")
	}
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func Test_LoadFrom_Precedence(t *testing.T) {
	// given
	dir := t.TempDir()
	yamlFile := writeFile(t, dir, "config.yaml", `
server:
  port: 8080
database:
  url: postgres://yaml
  timeout: 5s
log:
  level: info
`)
	envFile := writeFile(t, dir, ".env", "TEST_DATABASE_URL=postgres://dotenv\nOTHER_LOG_LEVEL=error\n")
	t.Setenv("TEST_LOG_LEVEL", "debug")

	// when
	cfg, err := LoadFrom[*testConfig]("test", yamlFile, envFile)

	// then
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Database.Timeout)
	assert.Equal(t, "postgres://dotenv", cfg.Database.URL, ".env overrides yaml")
	assert.Equal(t, "debug", cfg.Log.Level, "environment overrides everything")
}

func Test_LoadFrom_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_SERVER_PORT", "9090")

	cfg, err := LoadFrom[*testConfig]("test", filepath.Join(dir, "nope.yaml"), filepath.Join(dir, ".nope"))

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func Test_LoadFrom_ValidationFails(t *testing.T) {
	dir := t.TempDir()
	yamlFile := writeFile(t, dir, "config.yaml", "log:\n  level: info\n")

	_, err := LoadFrom[*testConfig]("test", yamlFile, filepath.Join(dir, ".env"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "port is required")
}

func Test_Load_ConfigFileFromEnv(t *testing.T) {
	dir := t.TempDir()
	yamlFile := writeFile(t, dir, "custom.yaml", "server:\n  port: 7070\n")
	t.Setenv("TEST_CONFIG_FILE", yamlFile)

	cfg, err := Load[*testConfig]("test")

	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}
