package main

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchable(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/in/DPGF Lot 06.xlsx", true},
		{"/in/dpgf.XLSM", true},
		{"/in/dce.zip", true},
		{"/in/~$DPGF Lot 06.xlsx", false},
		{"/in/.DPGF.xlsx.swp", false},
		{"/in/DPGF Lot 06.json", false},
		{"/in/devis.pdf", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, watchable(tt.path), tt.path)
	}
}

func TestDebouncer_Coalesces(t *testing.T) {
	var (
		mu    sync.Mutex
		fired []string
	)
	d := newDebouncer(30*time.Millisecond, func(k string) {
		mu.Lock()
		defer mu.Unlock()
		fired = append(fired, k)
	})
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Trigger("a.xlsx")
		time.Sleep(5 * time.Millisecond)
	}
	d.Trigger("b.xlsx")

	assert.Eventually(t, func() bool { return d.Pending() == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a.xlsx", "b.xlsx"}, fired)
}

func TestDebouncer_Stop(t *testing.T) {
	var calls int
	var mu sync.Mutex
	d := newDebouncer(20*time.Millisecond, func(string) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	d.Trigger("a.xlsx")
	d.Stop()
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
	assert.Zero(t, d.Pending())
}

func TestWatchDir_ExtractsDroppedWorkbook(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- watchDir(ctx, dir, 20*time.Millisecond, 1, func(_ context.Context, p string) {
			got <- p
		})
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	path := writeBid(t, dir, "Lot 04 - Charpente.xlsx")

	select {
	case p := <-got:
		assert.Equal(t, path, p)
	case <-time.After(3 * time.Second):
		t.Fatal("dropped workbook was not handled")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watchDir did not stop")
	}
}

func TestWatchDir_MissingDir(t *testing.T) {
	err := watchDir(context.Background(), "/does/not/exist", time.Millisecond, 1, func(context.Context, string) {})
	assert.Error(t, err)
}

func TestHandleDropped_WritesResult(t *testing.T) {
	env := testEnv(t)
	in, out := t.TempDir(), t.TempDir()
	path := writeBid(t, in, "Lot 04 - Charpente.xlsx")

	handleDropped(context.Background(), env, path, out)

	assert.FileExists(t, filepath.Join(out, "Lot 04 - Charpente.json"))
}
