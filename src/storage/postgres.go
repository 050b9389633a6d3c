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

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	if !identifierPattern.MatchString(cfg.Storage.Schema) {
		return nil, fmt.Errorf("invalid postgres schema name %q", cfg.Storage.Schema)
	}

	return &PostgresDB{
		Config: cfg,
		Schema: cfg.Storage.Schema,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize(ctx context.Context) error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return helpers.NewStorageError("failed to open postgres", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return helpers.NewStorageError("failed to reach postgres", err)
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return helpers.NewStorageError(fmt.Sprintf("failed to create schema %s", d.Schema), err)
	}

	if err := d.createTables(ctx); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table() string {
	return fmt.Sprintf(`"%s"."stock_history_cache"`, d.Schema)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables(ctx context.Context) error {
	// Same layout the portfolio backend created, except updated_at carries a
	// time zone. Older tables are converted by migrateUpdatedAt.
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			symbol VARCHAR(20),
			"range" VARCHAR(10),
			"interval" VARCHAR(10),
			data JSONB,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (symbol, "range", "interval")
		);
	`, d.table())
	if _, err := d.DB.ExecContext(ctx, query); err != nil {
		return helpers.NewStorageError("failed to create stock_history_cache", err)
	}

	if err := d.migrateUpdatedAt(ctx); err != nil {
		return err
	}

	query = fmt.Sprintf(`CREATE INDEX IF NOT EXISTS stock_history_cache_updated_at_idx ON %s (updated_at)`, d.table())
	if _, err := d.DB.ExecContext(ctx, query); err != nil {
		return helpers.NewStorageError("failed to create updated_at index", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

// migrateUpdatedAt converts a TIMESTAMP updated_at to TIMESTAMPTZ. Such rows
// were written with NOW() in the session time zone, so they are read back in
// that zone rather than as UTC.
func (d *PostgresDB) migrateUpdatedAt(ctx context.Context) error {
	var dataType string
	err := d.DB.QueryRowContext(ctx, `
		SELECT data_type FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = 'stock_history_cache' AND column_name = 'updated_at'
	`, d.Schema).Scan(&dataType)
	if err != nil {
		return helpers.NewStorageError("failed to inspect stock_history_cache.updated_at", err)
	}
	if dataType != "timestamp without time zone" {
		return nil
	}

	query := fmt.Sprintf(`
		ALTER TABLE %s ALTER COLUMN updated_at TYPE TIMESTAMPTZ
		USING updated_at AT TIME ZONE current_setting('TimeZone')
	`, d.table())
	if _, err := d.DB.ExecContext(ctx, query); err != nil {
		return helpers.NewStorageError("failed to convert updated_at to TIMESTAMPTZ", err)
	}

	d.Logger.Info("Converted %s.updated_at to TIMESTAMPTZ", d.table())
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Get(ctx context.Context, symbol, rangeStr, interval string) (models.MCachedQuote, error) {
	var (
		data      []byte
		updatedAt time.Time
	)

	query := fmt.Sprintf(`
		SELECT data, updated_at FROM %s
		WHERE symbol = $1 AND "range" = $2 AND "interval" = $3
	`, d.table())
	err := d.DB.QueryRowContext(ctx, query, symbol, rangeStr, interval).Scan(&data, &updatedAt)

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
		Data:      data,
		UpdatedAt: updatedAt.UTC(),
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Upsert(ctx context.Context, q models.MCachedQuote) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (symbol, "range", "interval", data, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
		ON CONFLICT (symbol, "range", "interval") DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`, d.table())

	_, err := d.DB.ExecContext(ctx, query, q.Symbol, q.Range, q.Interval, string(q.Data), q.UpdatedAt.UTC())
	if err != nil {
		return helpers.NewStorageError(fmt.Sprintf("failed to upsert %s (%s/%s)", q.Symbol, q.Range, q.Interval), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.DB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE updated_at < $1`, d.table()), cutoff.UTC())
	if err != nil {
		return 0, helpers.NewStorageError("failed to purge stock_history_cache", err)
	}
	return res.RowsAffected()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Ping(ctx context.Context) error {
	if d.DB == nil {
		return helpers.NewStorageError("postgres not initialized", nil)
	}
	return d.DB.PingContext(ctx)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
