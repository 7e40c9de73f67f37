package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/SyedAaraiz0050/territory-intel/internal/resilience"
	"github.com/SyedAaraiz0050/territory-intel/internal/store"
	"github.com/SyedAaraiz0050/territory-intel/internal/territory"
)

// openStore opens the configured store backend and applies migrations.
func openStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		st, err = store.NewSQLite(cfg.Store.Path)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// loadTerritory resolves the configured territory definition.
func loadTerritory() (*territory.Territory, error) {
	return territory.Load(cfg.Territory.File)
}

func retryPolicy() resilience.Policy {
	return resilience.DefaultPolicy()
}

func fetchTimeout() time.Duration {
	return time.Duration(cfg.Enrich.FetchTimeoutSecs) * time.Second
}
