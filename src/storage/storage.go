package storage

import (
	"fmt"

	"kline-relay/src/interfaces"
	"kline-relay/src/logger"
	"kline-relay/src/models"
)

// New returns the symbol cache selected by storage.db_type, or nil for "none".
func New(cfg *models.MConfig, log *logger.Logger) (interfaces.IDatabase, error) {
	switch cfg.Storage.DBType {
	case "sqlite":
		db, err := NewAsyncSQLiteDB(cfg, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := NewPostgresDB(cfg, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported db_type %q", cfg.Storage.DBType)
	}
}
