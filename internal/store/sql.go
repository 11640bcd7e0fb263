package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver

	"github.com/mrcode/health-manager/internal/models"
)

// database/sql driver names
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// SQLStore keeps measurements of all users in one measurements table.
// ForUser scopes it to a single user's rows.
type SQLStore struct {
	db     *sql.DB
	driver string
	email  string
	log    *slog.Logger
}

// OpenSQL connects to the database and creates the schema when needed
func OpenSQL(ctx context.Context, driver, dsn string, log *slog.Logger) (*SQLStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: driver %q", ErrUnsupportedBackend, driver)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("open %s: empty dsn", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// One connection: every statement sees the same database, including ":memory:".
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	s := &SQLStore{db: db, driver: driver, log: log}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("measurement database ready", slog.String("driver", driver))
	return s, nil
}

// ForUser returns a view of the store limited to email's rows.
// The views share the connection pool; closing any of them closes it.
func (s *SQLStore) ForUser(email string) *SQLStore {
	return &SQLStore{db: s.db, driver: s.driver, email: email, log: s.log.With(slog.String("user", email))}
}

func (s *SQLStore) migrate(ctx context.Context) error {
	var stmts []string
	switch s.driver {
	case DriverPostgres:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS measurements (
				id BIGSERIAL PRIMARY KEY,
				user_email TEXT NOT NULL,
				recorded_at TEXT NOT NULL,
				name TEXT NOT NULL,
				value DOUBLE PRECISION NOT NULL,
				unit TEXT NOT NULL DEFAULT '',
				note TEXT NOT NULL DEFAULT ''
			)`,
		}
	default:
		stmts = []string{
			`PRAGMA journal_mode=WAL`,
			`PRAGMA busy_timeout=5000`,
			`CREATE TABLE IF NOT EXISTS measurements (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_email TEXT NOT NULL,
				recorded_at TEXT NOT NULL,
				name TEXT NOT NULL,
				value REAL NOT NULL,
				unit TEXT NOT NULL DEFAULT '',
				note TEXT NOT NULL DEFAULT ''
			)`,
		}
	}
	stmts = append(stmts, `CREATE INDEX IF NOT EXISTS idx_measurements_user ON measurements(user_email)`)

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// placeholder returns the n-th bind parameter in the driver's syntax
func placeholder(driver string, n int) string {
	if driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Load returns the user's rows in insertion order
func (s *SQLStore) Load(ctx context.Context) (models.Table, error) {
	query := fmt.Sprintf(`SELECT recorded_at, name, value, unit, note FROM measurements WHERE user_email = %s ORDER BY id`,
		placeholder(s.driver, 1))

	rows, err := s.db.QueryContext(ctx, query, s.email)
	if err != nil {
		return nil, fmt.Errorf("load measurements: %w", err)
	}
	defer rows.Close()

	table := models.Table{}
	for rows.Next() {
		var (
			recorded string
			m        models.Measurement
		)
		if err := rows.Scan(&recorded, &m.Name, &m.Value, &m.Unit, &m.Note); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		m.Time, err = time.Parse(time.RFC3339Nano, recorded)
		if err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		table = append(table, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load measurements: %w", err)
	}
	return table, nil
}

// Append inserts all rows in one transaction
func (s *SQLStore) Append(ctx context.Context, rows []models.Measurement) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	query := fmt.Sprintf(`INSERT INTO measurements (user_email, recorded_at, name, value, unit, note) VALUES (%s, %s, %s, %s, %s, %s)`,
		placeholder(s.driver, 1), placeholder(s.driver, 2), placeholder(s.driver, 3),
		placeholder(s.driver, 4), placeholder(s.driver, 5), placeholder(s.driver, 6))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range rows {
		if _, err := stmt.ExecContext(ctx, s.email, m.Time.Format(time.RFC3339Nano), m.Name, m.Value, m.Unit, m.Note); err != nil {
			return fmt.Errorf("insert measurement: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}

	s.log.Debug("appended measurements", slog.Int("rows", len(rows)))
	return nil
}

// Close closes the underlying database
func (s *SQLStore) Close() error {
	return s.db.Close()
}
