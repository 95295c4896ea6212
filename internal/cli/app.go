package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/snowflake-labs/segment"
	"github.com/snowflake-labs/segment/catalog"
	"github.com/snowflake-labs/segment/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// app holds the loaded configuration shared by every command.
type app struct {
	cfg *config.Config
	log *slog.Logger
}

func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func (a *app) openDB(ctx context.Context) (*sql.DB, error) {
	if a.cfg.Catalog.DSN == "" {
		return nil, errors.New("no catalog dsn configured: set catalog.dsn, SEGMENT_CATALOG__DSN or --dsn")
	}
	db, err := sql.Open(a.cfg.Catalog.Driver, a.cfg.Catalog.DSN)
	if err != nil {
		return nil, fmt.Errorf("error opening %s database: %w", a.cfg.Catalog.Driver, err)
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Catalog.Timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error connecting to %s database: %w", a.cfg.Catalog.Driver, err)
	}
	return db, nil
}

// listLive lists attributes from the warehouse's information schema.
func (a *app) listLive(ctx context.Context, db *sql.DB, category string) ([]segment.AttributeDefinition, error) {
	if len(a.cfg.Catalog.Sources) == 0 {
		return nil, errors.New("no catalog sources configured")
	}
	p, err := catalog.NewSQLProvider(db, a.cfg.Catalog.Sources, a.cfg.SQLOpts(a.log))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Catalog.Timeout)
	defer cancel()
	return p.ListAttributes(ctx, category)
}

// loadIndex loads attributes from the offline snapshot or the warehouse.
func (a *app) loadIndex(ctx context.Context, db *sql.DB, offline bool, category string) (*segment.AttributeIndex, error) {
	if !offline {
		defs, err := a.listLive(ctx, db, category)
		if err != nil {
			return nil, err
		}
		return segment.NewAttributeIndex(defs), nil
	}

	store, err := catalog.OpenSnapshotStore(a.cfg.Catalog.SnapshotDir, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	idx, err := catalog.LoadIndex(ctx, store, category)
	if errors.Is(err, catalog.ErrNoSnapshot) {
		return nil, fmt.Errorf("%w in %s: run segmentctl refresh first", err, a.cfg.Catalog.SnapshotDir)
	}
	return idx, err
}
