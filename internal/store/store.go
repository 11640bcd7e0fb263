// Package store persists each user's measurement table
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/mrcode/health-manager/internal/models"
)

// Backend names accepted by Open
const (
	BackendCSV      = "csv"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// DataFileName is the CSV measurement file inside a user's data directory
const DataFileName = "health_data.csv"

// ErrUnsupportedBackend is returned by Open for an unknown backend name
var ErrUnsupportedBackend = errors.New("unsupported storage backend")

// Store is the measurement table of one user.
// Append either stores every row or none of them.
type Store interface {
	Load(ctx context.Context) (models.Table, error)
	Append(ctx context.Context, rows []models.Measurement) error
	Close() error
}

// Options selects and configures a backend
type Options struct {
	Backend string
	DSN     string // SQL backends; empty sqlite DSN means <DataDir>/health.db
	DataDir string // root of the per-user directories
}

// UserDir returns the data directory of a user
func UserDir(dataDir, email string) string {
	return filepath.Join(dataDir, email)
}

// Open returns the store holding email's measurements
func Open(ctx context.Context, opts Options, email string, log *slog.Logger) (Store, error) {
	if log == nil {
		log = slog.Default()
	}

	switch opts.Backend {
	case "", BackendCSV:
		s := NewCSVStore(filepath.Join(UserDir(opts.DataDir, email), DataFileName), log)
		if err := s.Init(); err != nil {
			return nil, err
		}
		return s, nil
	case BackendSQLite:
		dsn := opts.DSN
		if dsn == "" {
			dsn = filepath.Join(opts.DataDir, "health.db")
		}
		db, err := OpenSQL(ctx, DriverSQLite, dsn, log)
		if err != nil {
			return nil, err
		}
		return db.ForUser(email), nil
	case BackendPostgres:
		db, err := OpenSQL(ctx, DriverPostgres, opts.DSN, log)
		if err != nil {
			return nil, err
		}
		return db.ForUser(email), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, opts.Backend)
	}
}
