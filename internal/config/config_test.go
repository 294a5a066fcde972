package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
database:
  mysql:
    dsn: "root:pw@tcp(db:3306)/picimpact"
kafka:
  brokers: "kafka:9092"
  topic: "tasks"
repair:
  batch_size: 50
`)
	var cfg Config
	require.NoError(t, Load(path, &cfg))

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, "root:pw@tcp(db:3306)/picimpact", cfg.Database.MySQL.DSN)
	assert.Equal(t, "picimpact-go-consumer", cfg.Kafka.GroupID)
	assert.Equal(t, "images", cfg.Elasticsearch.IndexName)
	assert.Equal(t, 50, cfg.Repair.BatchSize)
	assert.Equal(t, 100, cfg.Repair.PauseMillis)
	assert.Equal(t, 10, cfg.Repair.ImageTimeoutSeconds)
	assert.Equal(t, 10*time.Second, cfg.Ingest.LockWait())
	assert.Equal(t, 30*time.Second, cfg.TagMove.Timeout())
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: "from-file"
admin:
  username: "admin"
  password_hash: ""
`)
	t.Setenv("PICIMPACT_JWT_SECRET", "from-env")
	t.Setenv("PICIMPACT_ADMIN_PASSWORD_HASH", "$2a$10$hash")

	var cfg Config
	require.NoError(t, Load(path, &cfg))
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "$2a$10$hash", cfg.Admin.PasswordHash)
	assert.Equal(t, "admin", cfg.Admin.Username)
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg Config
	assert.Error(t, Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg))
}

func TestTxConfigDefaults(t *testing.T) {
	var c TxConfig
	assert.Equal(t, 10*time.Second, c.LockWait())
	assert.Equal(t, 30*time.Second, c.Timeout())

	c = TxConfig{LockWaitSeconds: 3, TimeoutSeconds: 7}
	assert.Equal(t, 3*time.Second, c.LockWait())
	assert.Equal(t, 7*time.Second, c.Timeout())
}
