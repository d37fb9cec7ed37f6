package task

import (
	"context"
	"strings"

	"github.com/yanun0323/errors"

	"taskpulse/pkg/conn"
	"taskpulse/pkg/exception"
)

const (
	BackendFile     = "file"
	BackendSqlite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config selects and configures a store backend.
type Config struct {
	// Backend is file, sqlite or postgres. Empty means file.
	Backend string
	// Path is the JSON document for the file backend or the database file for sqlite.
	Path string
	// SQL configures the postgres backend. Its Driver field is ignored.
	SQL conn.Option
}

// Open builds the store selected by cfg.
func Open(ctx context.Context, cfg Config, opt Option) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendFile:
		return NewFileStore(cfg.Path, opt)
	case BackendSqlite:
		sqlOpt := cfg.SQL
		sqlOpt.Driver = conn.DriverSqlite
		if sqlOpt.Path == "" {
			sqlOpt.Path = cfg.Path
		}
		return openSQL(ctx, sqlOpt, opt)
	case BackendPostgres:
		sqlOpt := cfg.SQL
		sqlOpt.Driver = conn.DriverPostgres
		return openSQL(ctx, sqlOpt, opt)
	default:
		return nil, errors.Wrap(exception.ErrTaskUnknownBackend, "open store").With("backend", cfg.Backend)
	}
}

func openSQL(ctx context.Context, sqlOpt conn.Option, opt Option) (Store, error) {
	client, err := conn.New(sqlOpt)
	if err != nil {
		return nil, err
	}
	store, err := NewSQLStore(ctx, client, opt)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}
