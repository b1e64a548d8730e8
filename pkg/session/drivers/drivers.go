// Package drivers constructs session stores by driver name.
package drivers

import (
	"context"
	"fmt"

	"github.com/prefopt/maskrank/pkg/config"
	"github.com/prefopt/maskrank/pkg/session"
	"github.com/prefopt/maskrank/pkg/session/fs"
	"github.com/prefopt/maskrank/pkg/session/inmemory"
	"github.com/prefopt/maskrank/pkg/session/postgres"
	"github.com/prefopt/maskrank/pkg/session/sqlite"
)

/// NewStore builds the session store selected by cfg.Driver: fs (default),
// sqlite, postgres or inmemory.
func NewStore(ctx context.Context, cfg config.SessionsConfig) (session.Store, error) {
	switch cfg.Driver {
	case "", "fs":
		return fs.NewStore(cfg.Dir)
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = "maskrank.db"
		}
		return sqlite.NewStore(path)
	case "postgres":
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	case "inmemory":
		return inmemory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported sessions driver: %s", cfg.Driver)
	}
}
