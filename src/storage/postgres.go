package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kline-relay/src/helpers"
	"kline-relay/src/logger"
	"kline-relay/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewPostgresDB uses storage.db_schema, or the executable name when unset.
func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	name := cfg.Storage.DBSchema
	if name == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable name: %w", err)
		}
		name = filepath.Base(exe)
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if strings.ContainsAny(name, `"`) {
		return nil, helpers.NewValidationError(fmt.Sprintf("invalid schema name %q", name))
	}

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize(ctx context.Context) error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return helpers.NewDatabaseError("failed to open postgres", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return helpers.NewDatabaseError("failed to reach postgres", err)
	}
	d.DB = db

	if _, err := d.DB.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return helpers.NewDatabaseError("failed to create schema "+d.Schema, err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			symbol TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			base_asset TEXT NOT NULL,
			quote_asset TEXT NOT NULL,
			tick_size TEXT,
			fetched_at TIMESTAMPTZ NOT NULL
		);
	`, d.table())
	if _, err := d.DB.ExecContext(ctx, query); err != nil {
		return helpers.NewDatabaseError("failed to create exchange_symbols", err)
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

func (d *PostgresDB) table() string {
	return fmt.Sprintf(`"%s"."exchange_symbols"`, d.Schema)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) LoadSymbols(ctx context.Context) (models.MSymbolSnapshot, error) {
	rows, err := d.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT symbol, status, base_asset, quote_asset, COALESCE(tick_size, ''), fetched_at
		FROM %s ORDER BY symbol
	`, d.table()))
	if err != nil {
		return models.MSymbolSnapshot{}, helpers.NewDatabaseError("failed to query exchange_symbols", err)
	}
	defer rows.Close()

	var snap models.MSymbolSnapshot
	for rows.Next() {
		var s models.MSymbolInfo
		var fetchedAt time.Time
		if err := rows.Scan(&s.Symbol, &s.Status, &s.BaseAsset, &s.QuoteAsset, &s.TickSize, &fetchedAt); err != nil {
			return models.MSymbolSnapshot{}, helpers.NewDatabaseError("failed to scan exchange_symbols", err)
		}
		snap.Symbols = append(snap.Symbols, s)
		if snap.FetchedAt.IsZero() || fetchedAt.Before(snap.FetchedAt) {
			snap.FetchedAt = fetchedAt.UTC()
		}
	}
	if err := rows.Err(); err != nil {
		return models.MSymbolSnapshot{}, helpers.NewDatabaseError("failed to read exchange_symbols", err)
	}
	return snap, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) ReplaceSymbols(ctx context.Context, symbols []models.MSymbolInfo, fetchedAt time.Time) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewDatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", d.table())); err != nil {
		return helpers.NewDatabaseError("failed to clear exchange_symbols", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (symbol, status, base_asset, quote_asset, tick_size, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, d.table()))
	if err != nil {
		return helpers.NewDatabaseError("failed to prepare insert", err)
	}
	defer stmt.Close()

	ts := fetchedAt.UTC()
	for _, s := range symbols {
		if _, err := stmt.ExecContext(ctx, s.Symbol, s.Status, s.BaseAsset, s.QuoteAsset, s.TickSize, ts); err != nil {
			return helpers.NewDatabaseError(fmt.Sprintf("failed to insert %s", s.Symbol), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helpers.NewDatabaseError("failed to commit symbols", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
