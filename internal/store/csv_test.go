package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/health-manager/internal/models"
)

func sampleRows() []models.Measurement {
	ts := time.Date(2025, time.February, 3, 7, 45, 0, 0, time.FixedZone("", -5*3600))
	return []models.Measurement{
		{Time: ts, Name: "Weight", Value: 150.2, Unit: "lbs", Note: "after run, before coffee"},
		{Time: ts, Name: "BMI", Value: 150.2 * 703 / (66 * 66), Unit: "", Note: "after run, before coffee"},
		{Time: ts, Name: "Body Fat %", Value: 20, Unit: "%", Note: `quoted "note"`},
	}
}

func TestCSVStore_InitAndAppend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "user@example.com", DataFileName)
	s := NewCSVStore(path, nil)

	require.NoError(t, s.Init())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Date,Name,Value,Units,Note\n", string(data))

	table, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, table)

	rows := sampleRows()
	require.NoError(t, s.Append(ctx, rows[:2]))
	require.NoError(t, s.Append(ctx, rows[2:]))

	table, err = s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, table, 3)
	for i, m := range table {
		assert.True(t, m.Time.Equal(rows[i].Time), "row %d time", i)
		assert.Equal(t, rows[i].Name, m.Name)
		assert.Equal(t, rows[i].Value, m.Value)
		assert.Equal(t, rows[i].Unit, m.Unit)
		assert.Equal(t, rows[i].Note, m.Note)
	}

	// Init on an existing file keeps its contents
	require.NoError(t, s.Init())
	table, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, table, 3)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestCSVStore_LoadMissingFile(t *testing.T) {
	s := NewCSVStore(filepath.Join(t.TempDir(), "nope.csv"), nil)
	table, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, table)
}

func TestCSVStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DataFileName)
	a := NewCSVStore(path, nil)
	b := NewCSVStore(path, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := a
			if i%2 == 1 {
				s = b
			}
			assert.NoError(t, s.Append(ctx, []models.Measurement{{Time: time.Now(), Name: "Weight", Value: float64(i)}}))
		}(i)
	}
	wg.Wait()

	table, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, table, 20)
}

func TestCSVStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), DataFileName)
	s := NewCSVStore(path, nil)
	require.ErrorIs(t, s.Append(ctx, sampleRows()), context.Canceled)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "a cancelled append must not create the file")
}

func TestReadCSV_LegacyHeaders(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  models.Measurement
	}{
		{
			name:  "Canonical",
			input: "Date,Name,Value,Units,Note\n2025-01-02T08:00:00Z,Weight,150,lbs,hi\n",
			want:  models.Measurement{Name: "Weight", Value: 150, Unit: "lbs", Note: "hi"},
		},
		{
			name:  "Original column order",
			input: "Name,Value,Units,Date,Note\nGlucose,90,mg/dL,2025-01-02 08:00:00,\n",
			want:  models.Measurement{Name: "Glucose", Value: 90, Unit: "mg/dL"},
		},
		{
			name:  "Type instead of Name",
			input: "Date,Type,Value,Units,Note\n2025-01-02,HDL,55,mg/dL,\n",
			want:  models.Measurement{Name: "HDL", Value: 55, Unit: "mg/dL"},
		},
		{
			name:  "Lowercase without units and note",
			input: "date,type,value\n2025-01-02 08:00:00.5,Ketone,1.2\n",
			want:  models.Measurement{Name: "Ketone", Value: 1.2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ReadCSV(strings.NewReader(tt.input))
			require.NoError(t, err)
			require.Len(t, table, 1)
			got := table[0]
			assert.Equal(t, 2025, got.Time.Year())
			assert.Equal(t, time.January, got.Time.Month())
			assert.Equal(t, 2, got.Time.Day())
			got.Time = time.Time{}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Missing value column", "Date,Name\n2025-01-02,Weight\n"},
		{"Bad date", "Date,Name,Value\nyesterday,Weight,150\n"},
		{"Bad value", "Date,Name,Value\n2025-01-02,Weight,heavy\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}

	_, err := ReadCSV(strings.NewReader("Date,Name\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestCSV_NoteKeepsSpacing(t *testing.T) {
	ts := time.Date(2025, time.February, 3, 7, 45, 0, 0, time.UTC)
	rows := models.Table{{Time: ts, Name: "Weight", Value: 150, Unit: "lbs", Note: "  after run "}}

	var buf strings.Builder
	require.NoError(t, WriteCSV(&buf, rows))
	got, err := ReadCSV(strings.NewReader(buf.String()))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "  after run ", got[0].Note)

	// Other fields are still trimmed
	got, err = ReadCSV(strings.NewReader("Date,Name,Value,Units,Note\n 2025-01-02 , Weight , 150 , lbs , x \n"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Weight", got[0].Name)
	assert.Equal(t, 150.0, got[0].Value)
	assert.Equal(t, "lbs", got[0].Unit)
	assert.Equal(t, " x ", got[0].Note)
}

func TestReadCSV_Empty(t *testing.T) {
	table, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, table)
}

func TestOpen_Backends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, Options{Backend: BackendCSV, DataDir: dir}, "a@example.com", nil)
	require.NoError(t, err)
	defer s.Close()
	_, err = os.Stat(filepath.Join(dir, "a@example.com", DataFileName))
	require.NoError(t, err)

	sq, err := Open(ctx, Options{Backend: BackendSQLite, DataDir: dir}, "a@example.com", nil)
	require.NoError(t, err)
	require.NoError(t, sq.Append(ctx, sampleRows()))
	require.NoError(t, sq.Close())

	_, err = Open(ctx, Options{Backend: "mongo", DataDir: dir}, "a@example.com", nil)
	assert.ErrorIs(t, err, ErrUnsupportedBackend)
}
