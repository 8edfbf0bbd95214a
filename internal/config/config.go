// Package config handles loading and validation of pbtoado.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// FileName is the configuration file looked up by Load.
const FileName = "pbtoado.yaml"

// Defaults applied by applyDefaults.
const (
	DefaultAPIVersion     = "7.0"
	DefaultBatchSize      = 200 // ADO workitems batch endpoint cap
	DefaultQueryBatchSize = 50  // keeps paged list URLs short
	DefaultAreaDepth      = 10
	DefaultStorePath      = "pbtoado.db"
	DefaultServerAddr     = ":8080"
	DefaultMaxRequestBody = 1 << 20
	DefaultReadyStatus    = "With Engineering"
)

// Load reads and parses pbtoado.yaml from the given directory.
func Load(dir string) (*types.ProjectConfig, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile reads and parses a configuration file. ${VAR} references are
// expanded from the environment before parsing.
func LoadFile(path string) (*types.ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates configuration bytes.
func Parse(data []byte) (*types.ProjectConfig, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *types.ProjectConfig) {
	if cfg.ADO.APIVersion == "" {
		cfg.ADO.APIVersion = DefaultAPIVersion
	}
	if cfg.ADO.BatchSize <= 0 {
		cfg.ADO.BatchSize = DefaultBatchSize
	}
	if cfg.ADO.QueryBatchSize <= 0 {
		cfg.ADO.QueryBatchSize = DefaultQueryBatchSize
	}
	if cfg.ADO.AreaDepth <= 0 {
		cfg.ADO.AreaDepth = DefaultAreaDepth
	}
	if cfg.Webhook.ReadyStatus == "" {
		cfg.Webhook.ReadyStatus = DefaultReadyStatus
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}
	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = "memory"
	}
	if cfg.Server == nil {
		cfg.Server = &types.ServerConfig{}
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Server.MaxRequestBody <= 0 {
		cfg.Server.MaxRequestBody = DefaultMaxRequestBody
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Telemetry != nil && cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "pbtoado"
	}
}

func validate(cfg *types.ProjectConfig) error {
	if cfg.ADO.Organization == "" {
		return fmt.Errorf("ado.organization is required")
	}
	if cfg.ADO.Project == "" {
		return fmt.Errorf("ado.project is required")
	}
	if cfg.ADO.PAT == "" {
		return fmt.Errorf("ado.pat is required")
	}
	if cfg.ProductBoard.Token == "" {
		return fmt.Errorf("productboard.token is required")
	}
	if cfg.Webhook.Secret == "" {
		return fmt.Errorf("webhook.secret is required")
	}
	for _, d := range []struct{ name, value string }{
		{"ado.timeout", cfg.ADO.Timeout},
		{"productboard.timeout", cfg.ProductBoard.Timeout},
		{"webhook.lockTtl", cfg.Webhook.LockTTL},
		{"webhook.lockWait", cfg.Webhook.LockWait},
		{"sync.interval", cfg.Sync.Interval},
		{"sync.timeout", cfg.Sync.Timeout},
	} {
		if d.value == "" {
			continue
		}
		if v, err := time.ParseDuration(d.value); err != nil || v < 0 {
			return fmt.Errorf("%s: invalid duration %q", d.name, d.value)
		}
	}

	switch cfg.Store.Driver {
	case "sqlite":
	case "postgres":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required when store.driver is postgres")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", cfg.Store.Driver)
	}

	switch cfg.Lock.Backend {
	case "memory":
	case "redis":
		if cfg.Lock.Redis == nil || cfg.Lock.Redis.Addr == "" {
			return fmt.Errorf("lock.redis.addr is required when lock.backend is redis")
		}
	case "dynamodb":
		if cfg.Lock.DynamoDB == nil || cfg.Lock.DynamoDB.TableName == "" {
			return fmt.Errorf("lock.dynamodb.tableName is required when lock.backend is dynamodb")
		}
	default:
		return fmt.Errorf("unknown lock.backend %q", cfg.Lock.Backend)
	}

	for _, et := range cfg.Sync.EntityTypes {
		switch et {
		case types.EntityWorkItemTypes, types.EntityAreaPaths, types.EntityTeams,
			types.EntityEpics, types.EntityFeatures, types.EntityStories:
		default:
			return fmt.Errorf("sync.entityTypes: unknown entity type %q", et)
		}
	}

	for i, a := range cfg.Alerts {
		switch a.Type {
		case types.AlertConsole:
		case types.AlertWebhook:
			if a.URL == "" {
				return fmt.Errorf("alerts[%d]: url is required for webhook alerts", i)
			}
		case types.AlertFile:
			if a.Path == "" {
				return fmt.Errorf("alerts[%d]: path is required for file alerts", i)
			}
		default:
			return fmt.Errorf("alerts[%d]: unknown type %q", i, a.Type)
		}
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text")
	}
	if cfg.Telemetry != nil && cfg.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("telemetry.otlpEndpoint is required when telemetry is set")
	}
	return nil
}

// Duration parses an optional duration, returning def when empty or invalid.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}
