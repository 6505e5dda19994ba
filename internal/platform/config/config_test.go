package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.StoreTxTimeout)
	assert.Empty(t, cfg.Database.URL)
	assert.True(t, cfg.UsesDevSigningKey())
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chariblock.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9090"
storeTxTimeout: 2s
database:
  url: postgres://file
kafka:
  brokers: "a:9092, b:9092"
auth:
  adminToken: from-file
`), 0o600))

	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("REQUIRE_SESSIONS", "true")
	t.Setenv("PINATA_API_KEY", "key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 2*time.Second, cfg.StoreTxTimeout)
	assert.Equal(t, "postgres://env", cfg.Database.URL, "environment overrides file")
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.BrokerList())
	assert.Equal(t, "from-file", cfg.Auth.AdminToken)
	assert.True(t, cfg.Auth.RequireSessions)
	assert.Equal(t, "key", cfg.Documents.PinataAPIKey)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.StoreTxTimeout = 0
	cfg.Auth.JWTSigningKey = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store tx timeout")
	assert.Contains(t, err.Error(), "jwt signing key")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
