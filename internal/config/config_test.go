package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

const minimal = `ado:
  organization: acme
  project: Shop
  pat: secret-pat
productboard:
  token: pb-token
webhook:
  secret: hook-secret
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, `ado:
  organization: acme
  project: Shop
  pat: secret-pat
  batchSize: 100
  fields:
    productboardId: Custom.ProductBoardID
productboard:
  token: pb-token
  customFields:
    reach: cf-reach
webhook:
  secret: hook-secret
  liveWrites: true
  readyStatus: Ready
store:
  driver: postgres
  dsn: postgres://localhost/pbtoado
lock:
  backend: redis
  redis:
    addr: localhost:6379
sync:
  interval: 15m
  entityTypes: [epics, features]
server:
  addr: ":3000"
alerts:
  - type: console
  - type: file
    path: /tmp/alerts.jsonl
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.ADO.Organization)
	assert.Equal(t, 100, cfg.ADO.BatchSize)
	assert.Equal(t, DefaultQueryBatchSize, cfg.ADO.QueryBatchSize)
	assert.Equal(t, "Custom.ProductBoardID", cfg.ADO.Fields.ProductBoardID)
	assert.Equal(t, "cf-reach", cfg.ProductBoard.CustomFields.Reach)
	assert.True(t, cfg.Webhook.LiveWrites)
	assert.Equal(t, "Ready", cfg.Webhook.ReadyStatus)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "localhost:6379", cfg.Lock.Redis.Addr)
	assert.Equal(t, []types.EntityType{types.EntityEpics, types.EntityFeatures}, cfg.Sync.EntityTypes)
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Len(t, cfg.Alerts, 2)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIVersion, cfg.ADO.APIVersion)
	assert.Equal(t, DefaultBatchSize, cfg.ADO.BatchSize)
	assert.Equal(t, DefaultQueryBatchSize, cfg.ADO.QueryBatchSize)
	assert.Equal(t, DefaultReadyStatus, cfg.Webhook.ReadyStatus)
	assert.False(t, cfg.Webhook.LiveWrites, "live writes are opt-in")
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, DefaultStorePath, cfg.Store.Path)
	assert.Equal(t, "memory", cfg.Lock.Backend)
	require.NotNil(t, cfg.Server)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.Equal(t, int64(DefaultMaxRequestBody), cfg.Server.MaxRequestBody)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("PBTOADO_TEST_PAT", "from-env")
	content := `ado:
  organization: acme
  project: Shop
  pat: ${PBTOADO_TEST_PAT}
productboard:
  token: pb-token
webhook:
  secret: hook-secret
`
	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ADO.PAT)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml"))
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name  string
		patch string
		want  string
	}{
		{"missing organization", "ado:\n  project: Shop\n  pat: p\nproductboard:\n  token: t\nwebhook:\n  secret: s\n", "ado.organization is required"},
		{"missing pat", "ado:\n  organization: acme\n  project: Shop\nproductboard:\n  token: t\nwebhook:\n  secret: s\n", "ado.pat is required"},
		{"missing token", "ado:\n  organization: acme\n  project: Shop\n  pat: p\nwebhook:\n  secret: s\n", "productboard.token is required"},
		{"missing secret", "ado:\n  organization: acme\n  project: Shop\n  pat: p\nproductboard:\n  token: t\n", "webhook.secret is required"},
		{"postgres without dsn", minimal + "store:\n  driver: postgres\n", "store.dsn is required"},
		{"unknown driver", minimal + "store:\n  driver: mysql\n", "unknown store.driver"},
		{"redis without addr", minimal + "lock:\n  backend: redis\n", "lock.redis.addr is required"},
		{"dynamodb without table", minimal + "lock:\n  backend: dynamodb\n  dynamodb:\n    region: us-east-1\n", "lock.dynamodb.tableName is required"},
		{"unknown lock backend", minimal + "lock:\n  backend: etcd\n", "unknown lock.backend"},
		{"bad entity type", minimal + "sync:\n  entityTypes: [bugs]\n", "unknown entity type"},
		{"bad duration", minimal + "sync:\n  interval: soon\n", "sync.interval: invalid duration"},
		{"webhook alert without url", minimal + "alerts:\n  - type: webhook\n", "url is required"},
		{"unknown alert", minimal + "alerts:\n  - type: pager\n", "unknown type"},
		{"bad log format", minimal + "logging:\n  format: xml\n", "logging.format"},
		{"telemetry without endpoint", minimal + "telemetry:\n  insecure: true\n", "telemetry.otlpEndpoint is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.patch))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validating config")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, Duration("", 5*time.Second))
	assert.Equal(t, 5*time.Second, Duration("nope", 5*time.Second))
	assert.Equal(t, 90*time.Second, Duration("90s", 5*time.Second))
}
