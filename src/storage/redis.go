package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"quote-proxy/src/helpers"
	"quote-proxy/src/logger"
	"quote-proxy/src/models"

	"github.com/redis/go-redis/v9"
)

// RedisDB keeps one JSON document per (symbol, range, interval) plus a sorted
// set of keys scored by updated_at in unix millis, which the sweep walks.
type RedisDB struct {
	Config *models.MConfig
	Client *redis.Client
	Prefix string
	Logger *logger.Logger
}

type redisQuote struct {
	Data      json.RawMessage `json:"data"`
	UpdatedAt int64           `json:"updated_at"` // unix millis
}

// -----------------------------------------------------------------------------

func NewRedisDB(cfg *models.MConfig, log *logger.Logger) (*RedisDB, error) {
	return &RedisDB{
		Config: cfg,
		Prefix: cfg.Storage.RedisPrefix,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *RedisDB) Initialize(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     d.Config.Storage.RedisAddr,
		Password: d.Config.Storage.RedisPassword,
		DB:       d.Config.Storage.RedisDB,
	})

	// Perform a ping to ensure Redis is reachable
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return helpers.NewStorageError("redis ping", err)
	}

	d.Client = rdb
	d.Logger.Info("Redis cache initialized (%s, prefix %q)", d.Config.Storage.RedisAddr, d.Prefix)
	return nil
}

// Helper key generation functions
func (d *RedisDB) quoteKey(symbol, rangeStr, interval string) string {
	return fmt.Sprintf("%s:quote:%s|%s|%s", d.Prefix, symbol, rangeStr, interval)
}
func (d *RedisDB) indexKey() string { return d.Prefix + ":updated" }

// -----------------------------------------------------------------------------

func (d *RedisDB) Get(ctx context.Context, symbol, rangeStr, interval string) (models.MCachedQuote, error) {
	b, err := d.Client.Get(ctx, d.quoteKey(symbol, rangeStr, interval)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.MCachedQuote{}, helpers.ErrQuoteNotFound
	}
	if err != nil {
		return models.MCachedQuote{}, helpers.NewStorageError(fmt.Sprintf("failed to read %s (%s/%s)", symbol, rangeStr, interval), err)
	}

	var doc redisQuote
	if err := json.Unmarshal(b, &doc); err != nil {
		return models.MCachedQuote{}, helpers.NewStorageError(fmt.Sprintf("corrupt cache entry %s (%s/%s)", symbol, rangeStr, interval), err)
	}

	return models.MCachedQuote{
		Symbol:    symbol,
		Range:     rangeStr,
		Interval:  interval,
		Data:      doc.Data,
		UpdatedAt: time.UnixMilli(doc.UpdatedAt).UTC(),
	}, nil
}

// -----------------------------------------------------------------------------

func (d *RedisDB) Upsert(ctx context.Context, q models.MCachedQuote) error {
	updatedMs := q.UpdatedAt.UTC().UnixMilli()
	b, err := json.Marshal(redisQuote{Data: q.Data, UpdatedAt: updatedMs})
	if err != nil {
		return helpers.NewStorageError("failed to encode cache entry", err)
	}

	key := d.quoteKey(q.Symbol, q.Range, q.Interval)
	_, err = d.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, b, 0)
		pipe.ZAdd(ctx, d.indexKey(), redis.Z{Score: float64(updatedMs), Member: key})
		return nil
	})
	if err != nil {
		return helpers.NewStorageError(fmt.Sprintf("failed to upsert %s (%s/%s)", q.Symbol, q.Range, q.Interval), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// purgeScript selects and deletes in one step, so an Upsert landing during
// the sweep is never removed.
var purgeScript = redis.NewScript(`
local keys = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local deleted = 0
for _, key in ipairs(keys) do
	deleted = deleted + redis.call('DEL', key)
	redis.call('ZREM', KEYS[1], key)
end
return deleted
`)

func (d *RedisDB) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	maxScore := "(" + strconv.FormatInt(cutoff.UTC().UnixMilli(), 10)
	deleted, err := purgeScript.Run(ctx, d.Client, []string{d.indexKey()}, maxScore).Int64()
	if err != nil {
		return 0, helpers.NewStorageError("failed to purge cache entries", err)
	}
	return deleted, nil
}

// -----------------------------------------------------------------------------

func (d *RedisDB) Ping(ctx context.Context) error {
	if d.Client == nil {
		return helpers.NewStorageError("redis not initialized", nil)
	}
	return d.Client.Ping(ctx).Err()
}

// -----------------------------------------------------------------------------

func (d *RedisDB) Close() error {
	if d.Client != nil {
		return d.Client.Close()
	}
	return nil
}
