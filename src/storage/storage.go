package storage

import (
	"fmt"

	"quote-proxy/src/interfaces"
	"quote-proxy/src/logger"
	"quote-proxy/src/models"
)

// NewCacheStore picks the backend named by storage.db_type. The store still
// needs Initialize before use.
func NewCacheStore(cfg *models.MConfig, log *logger.Logger) (interfaces.ICacheStore, error) {
	switch cfg.Storage.DBType {
	case "sqlite":
		return NewAsyncSQLiteDB(cfg, log)
	case "postgres":
		db, err := NewPostgresDB(cfg, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "redis":
		return NewRedisDB(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported database type: %q", cfg.Storage.DBType)
	}
}
