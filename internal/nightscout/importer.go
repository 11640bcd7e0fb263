package nightscout

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/mrcode/health-manager/internal/catalog"
	"github.com/mrcode/health-manager/internal/models"
)

// NotePrefix marks rows imported from Nightscout
const NotePrefix = "Nightscout"

// DefaultLookback bounds the first import when nothing has been imported yet
const DefaultLookback = 30 * 24 * time.Hour

// maxEntries caps a single import request
const maxEntries = 10000

// Store is the part of the measurement store the importer needs
type Store interface {
	Load(ctx context.Context) (models.Table, error)
	Append(ctx context.Context, rows []models.Measurement) error
}

// EntrySource fetches readings; *Client implements it
type EntrySource interface {
	GetEntries(ctx context.Context, from, to time.Time, count int) ([]Entry, error)
}

// Importer copies new Nightscout readings into a measurement store
type Importer struct {
	source EntrySource
	now    func() time.Time
	log    *slog.Logger
}

// NewImporter creates an importer reading from source
func NewImporter(source EntrySource, log *slog.Logger) *Importer {
	if log == nil {
		log = slog.Default()
	}
	return &Importer{source: source, now: time.Now, log: log}
}

// Import appends Glucose rows for readings newer than both since and the
// latest previously imported row. A zero since with no previous import
// reaches back DefaultLookback. It returns the number of rows appended.
func (im *Importer) Import(ctx context.Context, st Store, since time.Time) (int, error) {
	table, err := st.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load measurements: %w", err)
	}

	cutoff := since
	if last, ok := LastImported(table); ok && last.After(cutoff) {
		cutoff = last
	}
	from := cutoff
	if from.IsZero() {
		from = im.now().Add(-DefaultLookback)
	}

	entries, err := im.source.GetEntries(ctx, from, time.Time{}, maxEntries)
	if err != nil {
		return 0, fmt.Errorf("fetch entries: %w", err)
	}

	rows := Convert(entries, cutoff)
	if len(rows) == 0 {
		im.log.Debug("No new Nightscout entries", "since", cutoff)
		return 0, nil
	}
	if err := st.Append(ctx, rows); err != nil {
		return 0, fmt.Errorf("append imported rows: %w", err)
	}

	im.log.Info("Imported Nightscout entries", "rows", len(rows), "fetched", len(entries))
	return len(rows), nil
}

// LastImported returns the time of the newest Glucose row imported from Nightscout
func LastImported(table models.Table) (time.Time, bool) {
	var (
		last  time.Time
		found bool
	)
	for _, m := range table {
		if m.Name != catalog.TypeGlucose || !strings.HasPrefix(m.Note, NotePrefix) {
			continue
		}
		if !found || m.Time.After(last) {
			last, found = m.Time, true
		}
	}
	return last, found
}

// Convert turns sgv readings strictly after cutoff into Glucose rows, oldest
// first. Non-sgv records, non-positive values and duplicate timestamps are
// dropped.
func Convert(entries []Entry, cutoff time.Time) []models.Measurement {
	seen := make(map[int64]bool, len(entries))
	rows := make([]models.Measurement, 0, len(entries))
	for _, e := range entries {
		if e.SGV <= 0 || (e.Type != "" && e.Type != "sgv") || seen[e.Date] {
			continue
		}
		ts := e.Time()
		if !cutoff.IsZero() && !ts.After(cutoff) {
			continue
		}
		seen[e.Date] = true

		note := NotePrefix
		if e.Device != "" {
			note += " " + e.Device
		}
		rows = append(rows, models.Measurement{
			Time:  ts,
			Name:  catalog.TypeGlucose,
			Value: float64(e.SGV),
			Unit:  catalog.Unit(catalog.TypeGlucose),
			Note:  note,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Time.Before(rows[j].Time) })
	return rows
}
