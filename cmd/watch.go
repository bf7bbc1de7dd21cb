package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dpgf-extract/internal/extract"
	"github.com/sells-group/dpgf-extract/internal/fetcher"
	"github.com/sells-group/dpgf-extract/internal/workbook"
)

var watchOutputDir string

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Extract workbooks as they are dropped into a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		dir := cfg.Watch.Dir
		if len(args) == 1 {
			dir = args[0]
		}
		if dir == "" {
			return eris.New("watch: no directory given (argument or watch.dir)")
		}

		env, err := initEnv(ctx, "watch")
		if err != nil {
			return err
		}
		defer env.Close()

		delay := time.Duration(cfg.Watch.DebounceMS) * time.Millisecond
		return watchDir(ctx, dir, delay, cfg.Batch.Concurrency, func(ctx context.Context, path string) {
			handleDropped(ctx, env, path, watchOutputDir)
		})
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchOutputDir, "output-dir", "", "where JSON results go (default: next to each workbook)")
	rootCmd.AddCommand(watchCmd)
}

// watchable reports whether a file event at path should trigger an
// extraction.
func watchable(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return false
	}
	return workbook.Supported(path) || fetcher.IsZip(path)
}

// debouncer calls fire once per key after delay has passed without another
// Trigger for that key.
type debouncer struct {
	delay  time.Duration
	fire   func(key string)
	mu     sync.Mutex
	gen    uint64
	timers map[string]pendingFire
}

type pendingFire struct {
	timer *time.Timer
	gen   uint64
}

func newDebouncer(delay time.Duration, fire func(string)) *debouncer {
	return &debouncer{delay: delay, fire: fire, timers: make(map[string]pendingFire)}
}

func (d *debouncer) Trigger(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.timers[key]; ok {
		p.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timers[key] = pendingFire{gen: gen, timer: time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		cur, ok := d.timers[key]
		if !ok || cur.gen != gen {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()
		d.fire(key)
	})}
}

// Pending returns the number of keys waiting to fire.
func (d *debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, p := range d.timers {
		p.timer.Stop()
		delete(d.timers, k)
	}
}

// watchDir blocks until ctx is done, handing each settled workbook to handle
// on one of workers goroutines.
func watchDir(ctx context.Context, dir string, delay time.Duration, workers int, handle func(context.Context, string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "watch: create watcher")
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(dir); err != nil {
		return eris.Wrapf(err, "watch: add %s", dir)
	}

	if workers < 1 {
		workers = 1
	}
	stopCtx, cancel := context.WithCancel(ctx)
	ready := make(chan string, 64)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case p := <-ready:
					handle(ctx, p)
				case <-stopCtx.Done():
					return
				}
			}
		}()
	}

	deb := newDebouncer(delay, func(p string) {
		select {
		case ready <- p:
		case <-stopCtx.Done():
		}
	})
	defer func() {
		deb.Stop()
		cancel()
		wg.Wait()
	}()

	zap.L().Info("watch: started", zap.String("dir", dir), zap.Duration("debounce", delay))
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("watch: stopped")
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if watchable(ev.Name) {
				zap.L().Debug("watch: change detected, debouncing", zap.String("file", ev.Name))
				deb.Trigger(ev.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			zap.L().Warn("watch: watcher error", zap.Error(err))
		}
	}
}

func handleDropped(ctx context.Context, env *extractEnv, path, outDir string) {
	results, err := extractRef(ctx, env, path)
	if err != nil {
		zap.L().Error("watch: extraction failed", zap.String("file", path), zap.Error(err))
		return
	}
	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	for _, r := range results {
		dest := resultPath(outDir, extract.Document{Name: r.Document})
		if err := writeJSON(dest, nil, r); err != nil {
			zap.L().Error("watch: write result", zap.String("file", dest), zap.Error(err))
		}
	}
}
