package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mrcode/health-manager/internal/models"
)

// Header is the canonical column layout of the measurement file
var Header = []string{"Date", "Name", "Value", "Units", "Note"}

// ErrMissingColumn is returned when a measurement file lacks a required column
var ErrMissingColumn = errors.New("missing column")

// Date layouts accepted when reading. Files are always written as RFC3339.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

var (
	fileLocksMu sync.Mutex
	fileLocks   = map[string]*sync.Mutex{}
)

// lockFor returns the mutex serializing writers of path within the process
func lockFor(path string) *sync.Mutex {
	fileLocksMu.Lock()
	defer fileLocksMu.Unlock()

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	mu, ok := fileLocks[abs]
	if !ok {
		mu = &sync.Mutex{}
		fileLocks[abs] = mu
	}
	return mu
}

// CSVStore keeps a user's table in one CSV file that is rewritten in full on
// every append. Writes go to a temporary file that replaces the original.
type CSVStore struct {
	path string
	log  *slog.Logger
}

// NewCSVStore creates a store backed by the file at path
func NewCSVStore(path string, log *slog.Logger) *CSVStore {
	if log == nil {
		log = slog.Default()
	}
	return &CSVStore{path: path, log: log}
}

// Path returns the backing file
func (s *CSVStore) Path() string {
	return s.path
}

// Init creates the file with only a header row when it does not exist yet
func (s *CSVStore) Init() error {
	mu := lockFor(s.path)
	mu.Lock()
	defer mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", s.path, err)
	}
	return s.write(nil)
}

// Load reads the whole table. A missing file is an empty table.
func (s *CSVStore) Load(ctx context.Context) (models.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.load()
}

func (s *CSVStore) load() (models.Table, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.Table{}, nil
		}
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	table, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return table, nil
}

// Append adds rows to the table and rewrites the file
func (s *CSVStore) Append(ctx context.Context, rows []models.Measurement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	mu := lockFor(s.path)
	mu.Lock()
	defer mu.Unlock()

	table, err := s.load()
	if err != nil {
		return err
	}
	table = append(table, rows...)
	if err := s.write(table); err != nil {
		return err
	}

	s.log.Debug("appended measurements", slog.String("path", s.path), slog.Int("rows", len(rows)), slog.Int("total", len(table)))
	return nil
}

// Close is a no-op; the file is only open during Load and Append
func (s *CSVStore) Close() error {
	return nil
}

// write replaces the file with table. The caller must hold the file lock.
func (s *CSVStore) write(table models.Table) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // Already renamed on success

	if err := WriteCSV(tmp, table); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// WriteCSV writes a header row followed by one row per measurement
func WriteCSV(w io.Writer, table models.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, m := range table {
		record := []string{
			m.Time.Format(time.RFC3339Nano),
			m.Name,
			strconv.FormatFloat(m.Value, 'g', -1, 64),
			m.Unit,
			m.Note,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a measurement file. Columns are matched by header name,
// case-insensitively; older files name the Name column "Type" and may lack
// the Units and Note columns.
func ReadCSV(r io.Reader) (models.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err == io.EOF {
		return models.Table{}, nil
	}
	if err != nil {
		return nil, err
	}

	cols := map[string]int{}
	for i, h := range head {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if key == "type" {
			key = "name"
		}
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	for _, required := range []string{"date", "name", "value"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, required)
		}
	}

	raw := func(rec []string, key string) string {
		i, ok := cols[key]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}
	// Notes are free text and keep their spacing
	get := func(rec []string, key string) string {
		return strings.TrimSpace(raw(rec, key))
	}

	table := models.Table{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}

		ts, err := parseDate(get(rec, "date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		v, err := strconv.ParseFloat(get(rec, "value"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: value: %w", line, err)
		}
		table = append(table, models.Measurement{
			Time:  ts,
			Name:  get(rec, "name"),
			Value: v,
			Unit:  get(rec, "units"),
			Note:  raw(rec, "note"),
		})
	}
	return table, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
