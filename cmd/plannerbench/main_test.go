package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/plannerbench/internal/config"
	"github.com/AaronLay10/plannerbench/internal/model"
	"github.com/AaronLay10/plannerbench/internal/storage"
	"github.com/AaronLay10/plannerbench/internal/storage/rediscache"
)

func TestParseRunFlags(t *testing.T) {
	f, err := parseRunFlags([]string{"-config", "x.yaml", "-jobs", "-1", "-timeout", "30", "-no-db-save", "-in-process"})
	require.NoError(t, err)
	assert.Equal(t, "x.yaml", f.config)
	assert.Equal(t, -1, f.jobs)
	assert.True(t, f.inProc)

	solve := f.apply(model.SolveConfig{Jobs: 4, TimeoutSeconds: 10, TimeoutOffset: 1, NoDBLoad: true})
	assert.Equal(t, model.SolveConfig{Jobs: -1, TimeoutSeconds: 30, TimeoutOffset: 1, NoDBLoad: true, NoDBSave: true}, solve)
}

func TestParseRunFlagsKeepsConfigDefaults(t *testing.T) {
	f, err := parseRunFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "bench.yaml", f.config)

	in := model.SolveConfig{Jobs: 2, TimeoutSeconds: 10}
	assert.Equal(t, in, f.apply(in))
}

func TestParseRunFlagsRejectsArguments(t *testing.T) {
	_, err := parseRunFlags([]string{"extra"})
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()

	s, err := openStore(&config.BenchConfig{Database: config.DatabaseConfig{
		Driver: config.DriverSQLite, Path: filepath.Join(dir, "cache", "bench.db"),
	}})
	require.NoError(t, err)
	assert.IsType(t, &storage.SQLStore{}, s)
	_, err = os.Stat(filepath.Join(dir, "cache"))
	assert.NoError(t, err, "sqlite store creates its directory")

	t.Setenv("REDIS_PASSWORD", "secret")
	s, err = openStore(&config.BenchConfig{Database: config.DatabaseConfig{Driver: config.DriverRedis, Addr: "localhost:6379"}})
	require.NoError(t, err)
	assert.IsType(t, &rediscache.Store{}, s)

	s, err = openStore(&config.BenchConfig{Database: config.DatabaseConfig{Driver: config.DriverPostgres, DSN: "postgres://u:p@localhost/bench?sslmode=disable"}})
	require.NoError(t, err)
	assert.IsType(t, &storage.SQLStore{}, s)

	_, err = openStore(&config.BenchConfig{Database: config.DatabaseConfig{Driver: "mongo"}})
	assert.Error(t, err)
}
