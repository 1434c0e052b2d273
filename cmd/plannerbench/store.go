package main

import (
	"fmt"

	"github.com/AaronLay10/plannerbench/internal/config"
	"github.com/AaronLay10/plannerbench/internal/storage"
	"github.com/AaronLay10/plannerbench/internal/storage/postgres"
	"github.com/AaronLay10/plannerbench/internal/storage/rediscache"
	"github.com/AaronLay10/plannerbench/internal/storage/sqlite"
)

// openStore returns the result cache selected by database.driver.
func openStore(cfg *config.BenchConfig) (storage.ResultStore, error) {
	db := cfg.Database
	switch db.Driver {
	case config.DriverSQLite:
		return sqlite.New(db.Path)
	case config.DriverPostgres:
		return postgres.New(db.DSN)
	case config.DriverRedis:
		password, err := db.RedisPassword()
		if err != nil {
			return nil, err
		}
		return rediscache.New(db.Addr, password, db.DB), nil
	default:
		return nil, fmt.Errorf("unknown database driver: %s", db.Driver)
	}
}
