package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quote-proxy/src/helpers"
	"quote-proxy/src/logger"
	"quote-proxy/src/models"

	_ "modernc.org/sqlite"
)

const sqliteMemoryDSN = ":memory:"

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize(ctx context.Context) error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewStorageError("failed to open sqlite", err)
	}

	// Every connection to :memory: is its own database
	if dsn == sqliteMemoryDSN {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return helpers.NewStorageError("failed to reach sqlite", err)
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		d.Logger.Warning("Failed to set busy timeout: %v", err)
	}

	if err := d.createTables(ctx); err != nil {
		return err
	}

	d.Logger.Info("SQLite cache initialized (%s)", dsn)
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables(ctx context.Context) error {
	// SQLite types: TEXT for the payload, INTEGER unix millis for updated_at
	query := `
		CREATE TABLE IF NOT EXISTS stock_history_cache (
			symbol TEXT NOT NULL,
			"range" TEXT NOT NULL,
			"interval" TEXT NOT NULL,
			data TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (symbol, "range", "interval")
		);
	`
	if _, err := d.DB.ExecContext(ctx, query); err != nil {
		return helpers.NewStorageError("failed to create stock_history_cache", err)
	}

	query = `CREATE INDEX IF NOT EXISTS idx_stock_history_cache_updated_at ON stock_history_cache (updated_at);`
	if _, err := d.DB.ExecContext(ctx, query); err != nil {
		return helpers.NewStorageError("failed to create updated_at index", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Get(ctx context.Context, symbol, rangeStr, interval string) (models.MCachedQuote, error) {
	var (
		data      string
		updatedMs int64
	)

	err := d.DB.QueryRowContext(ctx, `
		SELECT data, updated_at FROM stock_history_cache
		WHERE symbol = ? AND "range" = ? AND "interval" = ?
	`, symbol, rangeStr, interval).Scan(&data, &updatedMs)

	if errors.Is(err, sql.ErrNoRows) {
		return models.MCachedQuote{}, helpers.ErrQuoteNotFound
	}
	if err != nil {
		return models.MCachedQuote{}, helpers.NewStorageError(fmt.Sprintf("failed to read %s (%s/%s)", symbol, rangeStr, interval), err)
	}

	return models.MCachedQuote{
		Symbol:    symbol,
		Range:     rangeStr,
		Interval:  interval,
		Data:      []byte(data),
		UpdatedAt: time.UnixMilli(updatedMs).UTC(),
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Upsert(ctx context.Context, q models.MCachedQuote) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO stock_history_cache (symbol, "range", "interval", data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (symbol, "range", "interval") DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, q.Symbol, q.Range, q.Interval, string(q.Data), q.UpdatedAt.UTC().UnixMilli())
	if err != nil {
		return helpers.NewStorageError(fmt.Sprintf("failed to upsert %s (%s/%s)", q.Symbol, q.Range, q.Interval), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.DB.ExecContext(ctx, "DELETE FROM stock_history_cache WHERE updated_at < ?", cutoff.UTC().UnixMilli())
	if err != nil {
		return 0, helpers.NewStorageError("failed to purge stock_history_cache", err)
	}
	return res.RowsAffected()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Ping(ctx context.Context) error {
	if d.DB == nil {
		return helpers.NewStorageError("sqlite not initialized", nil)
	}
	return d.DB.PingContext(ctx)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
