package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kline-relay/src/helpers"
	"kline-relay/src/logger"
	"kline-relay/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	if cfg.Storage.DBPath == "" {
		return nil, helpers.NewValidationError("storage.db_path is required for sqlite")
	}
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize(ctx context.Context) error {
	db, err := sql.Open("sqlite", d.Config.Storage.DBPath)
	if err != nil {
		return helpers.NewDatabaseError("failed to open sqlite", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return helpers.NewDatabaseError("failed to reach sqlite", err)
	}
	// one writer avoids SQLITE_BUSY on concurrent refreshes
	db.SetMaxOpenConns(1)
	d.DB = db

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	if err := d.createTables(ctx); err != nil {
		return err
	}
	d.Logger.Info("SQLite symbol cache ready at %s", d.Config.Storage.DBPath)
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS exchange_symbols (
			symbol TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			base_asset TEXT NOT NULL,
			quote_asset TEXT NOT NULL,
			tick_size TEXT,
			fetched_at INTEGER NOT NULL
		);
	`
	if _, err := d.DB.ExecContext(ctx, query); err != nil {
		return helpers.NewDatabaseError("failed to create exchange_symbols", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) LoadSymbols(ctx context.Context) (models.MSymbolSnapshot, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT symbol, status, base_asset, quote_asset, COALESCE(tick_size, ''), fetched_at
		FROM exchange_symbols ORDER BY symbol
	`)
	if err != nil {
		return models.MSymbolSnapshot{}, helpers.NewDatabaseError("failed to query exchange_symbols", err)
	}
	defer rows.Close()

	var snap models.MSymbolSnapshot
	for rows.Next() {
		var s models.MSymbolInfo
		var fetchedAt int64
		if err := rows.Scan(&s.Symbol, &s.Status, &s.BaseAsset, &s.QuoteAsset, &s.TickSize, &fetchedAt); err != nil {
			return models.MSymbolSnapshot{}, helpers.NewDatabaseError("failed to scan exchange_symbols", err)
		}
		snap.Symbols = append(snap.Symbols, s)
		if t := time.Unix(fetchedAt, 0).UTC(); snap.FetchedAt.IsZero() || t.Before(snap.FetchedAt) {
			snap.FetchedAt = t
		}
	}
	if err := rows.Err(); err != nil {
		return models.MSymbolSnapshot{}, helpers.NewDatabaseError("failed to read exchange_symbols", err)
	}
	return snap, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) ReplaceSymbols(ctx context.Context, symbols []models.MSymbolInfo, fetchedAt time.Time) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewDatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM exchange_symbols"); err != nil {
		return helpers.NewDatabaseError("failed to clear exchange_symbols", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO exchange_symbols (symbol, status, base_asset, quote_asset, tick_size, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return helpers.NewDatabaseError("failed to prepare insert", err)
	}
	defer stmt.Close()

	ts := fetchedAt.UTC().Unix()
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

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
