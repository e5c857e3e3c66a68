package snapshot

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"airquality-server/internal/modules/airquality/types"
)

// settleDelay coalesces the burst of write events a single save produces.
const settleDelay = 250 * time.Millisecond

// Watch reloads path whenever it is written or recreated and passes the new
// records to onChange. It runs until ctx is cancelled.
//
// A failed reload is logged and onChange is not called, so the caller keeps
// its previous table.
func Watch(ctx context.Context, path string, format Format, opts Options, onChange func([]types.Measurement)) error {
	logger := opts.logger()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors and converters replace the file, which
	// drops a watch held on the file itself.
	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	logger.Info("snapshot: watching for changes", "path", path)

	var (
		timer   *time.Timer
		settled <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(settleDelay)
			} else {
				timer.Reset(settleDelay)
			}
			settled = timer.C

		case <-settled:
			settled = nil
			records, err := Load(ctx, path, format, opts)
			if err != nil {
				logger.Error("snapshot: reload failed, keeping previous data", "path", path, "error", err)
				continue
			}
			logger.Info("snapshot: reloaded", "path", path, "records", len(records))
			onChange(records)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("snapshot: watcher error", "error", err)
		}
	}
}
