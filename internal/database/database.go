package database

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pkg/errors"

	"example.com/gurpos/services/sync/config"
)

// Database holds the write connection and a read-only connection for
// pull queries. When no replica DSN is configured both point at the
// same primary.
type Database struct {
	DB         *gorm.DB
	ReadOnlyDB *gorm.DB
}

// Connect establishes the database connections. TranslateError is on so
// unique constraint violations surface as gorm.ErrDuplicatedKey, which
// voucher allocation and the push loop depend on.
func Connect(cfg config.DatabaseConfig) (*Database, error) {
	db, err := open(cfg.DSN, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	readOnlyDB := db
	if cfg.ReadOnlyDSN != "" && cfg.ReadOnlyDSN != cfg.DSN {
		readOnlyDB, err = open(cfg.ReadOnlyDSN, cfg)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to read-only database")
		}
	}

	return &Database{DB: db, ReadOnlyDB: readOnlyDB}, nil
}

func open(dsn string, cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get DB instance")
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// Close closes both connections.
func (d *Database) Close() error {
	if d.ReadOnlyDB != d.DB {
		if sqlDB, err := d.ReadOnlyDB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
