package store

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcher_ReportsExternalEdits(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DataFileName)
	s := NewCSVStore(path, nil)
	require.NoError(t, s.Init())

	var calls atomic.Int32
	w, err := NewWatcher(path, 250*time.Millisecond, func() { calls.Add(1) }, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))

	// A burst of writes is reported once
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(ctx, sampleRows()[:1]))
	}
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Other files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "settings.json"), []byte("{}"), 0600))
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	w.Stop()
	w.Stop()
}

func TestWatcher_StopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), DataFileName)
	w, err := NewWatcher(path, 0, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()
	w.Stop()
}
