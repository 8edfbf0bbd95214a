// Package app assembles the runtime dependency graph from configuration.
// The CLI and the Lambda entrypoints share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/AlieInmar1/pbtoado-sub002/internal/ado"
	"github.com/AlieInmar1/pbtoado-sub002/internal/alert"
	"github.com/AlieInmar1/pbtoado-sub002/internal/bulksync"
	"github.com/AlieInmar1/pbtoado-sub002/internal/export"
	"github.com/AlieInmar1/pbtoado-sub002/internal/lock"
	"github.com/AlieInmar1/pbtoado-sub002/internal/mapping"
	"github.com/AlieInmar1/pbtoado-sub002/internal/productboard"
	"github.com/AlieInmar1/pbtoado-sub002/internal/provider"
	"github.com/AlieInmar1/pbtoado-sub002/internal/provider/postgres"
	"github.com/AlieInmar1/pbtoado-sub002/internal/provider/sqlite"
	"github.com/AlieInmar1/pbtoado-sub002/internal/webhook"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// Deps holds the shared runtime dependencies.
type Deps struct {
	Config       *types.ProjectConfig
	Store        provider.Store
	Locker       lock.Locker
	Mapper       *mapping.Mapper
	ADO          *ado.Client
	ProductBoard *productboard.Client
	Alerts       *alert.Dispatcher
	Controller   *webhook.Controller
	BulkSync     *bulksync.Service
	Exporter     *export.Exporter
	Logger       *slog.Logger
}

// NewStore opens the configured cache store. It does not migrate.
func NewStore(ctx context.Context, cfg types.StoreConfig) (provider.Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return sqlite.New(ctx, cfg.Path)
	case "postgres":
		return postgres.New(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

// MapperConfig derives the field mapping configuration.
func MapperConfig(cfg *types.ProjectConfig) mapping.Config {
	return mapping.Config{
		Fields:            cfg.ADO.Fields,
		CustomFields:      cfg.ProductBoard.CustomFields,
		FeatureURLPattern: cfg.ProductBoard.FeatureURLPattern,
		DefaultAreaPath:   cfg.ADO.AreaPath,
		DefaultType:       cfg.ADO.WorkItemType,
	}
}

// Build opens the store, migrates it, and wires every component. Credentials
// in cfg must already be resolved.
func Build(ctx context.Context, cfg *types.ProjectConfig, logger *slog.Logger) (*Deps, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mapper, err := mapping.New(MapperConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating field mapper: %w", err)
	}

	store, err := NewStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}

	locker, err := lock.New(ctx, cfg.Lock)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("creating lock backend: %w", err)
	}

	dispatcher, err := alert.NewDispatcher(cfg.Alerts, logger)
	if err != nil {
		_ = store.Close()
		closeLocker(locker)
		return nil, fmt.Errorf("creating alert dispatcher: %w", err)
	}

	adoClient := ado.New(cfg.ADO, mapper)
	pbClient := productboard.New(cfg.ProductBoard)

	whCfg := webhook.ConfigFrom(cfg.Webhook)
	ctrl := webhook.New(whCfg, store, pbClient, adoClient, mapper,
		webhook.WithLocker(locker),
		webhook.WithAlertFunc(dispatcher.AlertFunc()),
		webhook.WithLogger(logger),
	)
	bulk := bulksync.New(cfg.ADO, adoClient, func(c types.ADOConfig) bulksync.Remote {
		return ado.New(c, mapper)
	}, store, cfg.Sync.EntityTypes, logger)
	exp := export.New(adoClient, pbClient, mapper, store,
		export.WithLocker(locker, whCfg.LockTTL, whCfg.LockWait),
		export.WithLogger(logger),
	)

	return &Deps{
		Config:       cfg,
		Store:        store,
		Locker:       locker,
		Mapper:       mapper,
		ADO:          adoClient,
		ProductBoard: pbClient,
		Alerts:       dispatcher,
		Controller:   ctrl,
		BulkSync:     bulk,
		Exporter:     exp,
		Logger:       logger,
	}, nil
}

// Close releases the store and any networked lock backend.
func (d *Deps) Close() error {
	var errs []error
	if c, ok := d.Locker.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, d.Store.Close())
	return errors.Join(errs...)
}

func closeLocker(l lock.Locker) {
	if c, ok := l.(io.Closer); ok {
		_ = c.Close()
	}
}
