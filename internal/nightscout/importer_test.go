package nightscout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mrcode/health-manager/internal/models"
)

type memStore struct {
	rows    models.Table
	loadErr error
}

func (s *memStore) Load(context.Context) (models.Table, error) {
	return append(models.Table(nil), s.rows...), s.loadErr
}

func (s *memStore) Append(_ context.Context, rows []models.Measurement) error {
	s.rows = append(s.rows, rows...)
	return nil
}

var base = time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)

func minutes(n int) time.Time {
	return base.Add(time.Duration(n) * time.Minute)
}

func TestConvert(t *testing.T) {
	entries := []Entry{
		{SGV: 120, Date: minutes(10).UnixMilli(), Device: "xDrip", Type: "sgv"},
		{SGV: 110, Date: minutes(5).UnixMilli()},
		{SGV: 110, Date: minutes(5).UnixMilli()},
		{SGV: 0, Date: minutes(15).UnixMilli()},
		{SGV: 130, Date: minutes(20).UnixMilli(), Type: "mbg"},
		{SGV: 100, Date: minutes(0).UnixMilli()},
	}

	got := Convert(entries, minutes(0))
	want := []models.Measurement{
		{Time: minutes(5), Name: "Glucose", Value: 110, Unit: "mg/dL", Note: "Nightscout"},
		{Time: minutes(10), Name: "Glucose", Value: 120, Unit: "mg/dL", Note: "Nightscout xDrip"},
	}
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
		t.Errorf("Convert mismatch (-want +got):\n%s", diff)
	}
}

func TestLastImported(t *testing.T) {
	table := models.Table{
		{Time: minutes(30), Name: "Glucose", Value: 90, Note: "fingerstick"},
		{Time: minutes(10), Name: "Glucose", Value: 90, Note: "Nightscout xDrip"},
		{Time: minutes(40), Name: "Weight", Value: 180, Note: "Nightscout"},
	}
	got, ok := LastImported(table)
	if !ok || !got.Equal(minutes(10)) {
		t.Errorf("LastImported() = %v, %v; want %v", got, ok, minutes(10))
	}

	if _, ok := LastImported(table[:1]); ok {
		t.Error("LastImported() should report no import")
	}
}

func TestImporter_Import(t *testing.T) {
	var gotFrom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFrom = r.URL.Query().Get("find[date][$gte]")
		_ = json.NewEncoder(w).Encode([]Entry{
			{SGV: 140, Date: minutes(15).UnixMilli(), Device: "dexcom"},
			{SGV: 135, Date: minutes(10).UnixMilli(), Device: "dexcom"},
			{SGV: 130, Date: minutes(5).UnixMilli(), Device: "dexcom"},
		})
	}))
	defer server.Close()

	st := &memStore{rows: models.Table{
		{Time: minutes(5), Name: "Glucose", Value: 130, Unit: "mg/dL", Note: "Nightscout dexcom"},
		{Time: minutes(12), Name: "Weight", Value: 180, Unit: "lbs"},
	}}
	im := NewImporter(NewClient(server.URL, "", "", false), nil)

	n, err := im.Import(context.Background(), st, time.Time{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Import() = %d rows, want 2", n)
	}
	if gotFrom != strconv.FormatInt(minutes(5).UnixMilli(), 10) {
		t.Errorf("request started at %s, want the last imported row", gotFrom)
	}
	if len(st.rows) != 4 {
		t.Fatalf("store has %d rows, want 4", len(st.rows))
	}

	// A second run finds nothing new
	n, err = im.Import(context.Background(), st, time.Time{})
	if err != nil || n != 0 {
		t.Errorf("second Import() = %d, %v; want 0, nil", n, err)
	}
}

type fixedSource struct {
	entries []Entry
	from    time.Time
	err     error
}

func (s *fixedSource) GetEntries(_ context.Context, from, _ time.Time, _ int) ([]Entry, error) {
	s.from = from
	return s.entries, s.err
}

func TestImporter_SinceAndLookback(t *testing.T) {
	src := &fixedSource{entries: []Entry{
		{SGV: 100, Date: minutes(0).UnixMilli()},
		{SGV: 105, Date: minutes(30).UnixMilli()},
	}}
	im := NewImporter(src, nil)
	im.now = func() time.Time { return minutes(60) }

	st := &memStore{}
	n, err := im.Import(context.Background(), st, minutes(15))
	if err != nil || n != 1 {
		t.Fatalf("Import(since) = %d, %v; want 1, nil", n, err)
	}
	if !src.from.Equal(minutes(15)) {
		t.Errorf("from = %v, want since", src.from)
	}

	st = &memStore{}
	if _, err := im.Import(context.Background(), st, time.Time{}); err != nil {
		t.Fatal(err)
	}
	if want := minutes(60).Add(-DefaultLookback); !src.from.Equal(want) {
		t.Errorf("from = %v, want %v", src.from, want)
	}
	if len(st.rows) != 2 {
		t.Errorf("lookback import stored %d rows, want 2", len(st.rows))
	}
}

func TestImporter_Errors(t *testing.T) {
	boom := errors.New("boom")

	im := NewImporter(&fixedSource{err: boom}, nil)
	if _, err := im.Import(context.Background(), &memStore{}, time.Time{}); !errors.Is(err, boom) {
		t.Errorf("fetch error = %v, want %v", err, boom)
	}

	im = NewImporter(&fixedSource{}, nil)
	if _, err := im.Import(context.Background(), &memStore{loadErr: boom}, time.Time{}); !errors.Is(err, boom) {
		t.Errorf("load error = %v, want %v", err, boom)
	}
}
