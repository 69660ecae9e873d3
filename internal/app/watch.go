package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mdzesseis/fastqflow/internal/report"
	"github.com/sirupsen/logrus"
)

// ConfigWatcher re-runs a pipeline every time its config file changes
// on disk. Grounded on the teacher's pkg/hotreload.ConfigReloader, but
// scoped down to what a batch engine actually needs: the teacher
// hot-swaps a live daemon's configuration in place (new sinks start,
// old ones drain) because its process never stops. A FASTQ run has no
// "in place" to swap — each detected change simply starts a fresh
// Run from scratch. There is no backup/rollback, webhook, or
// multi-file watch list; those solve problems a one-shot re-run
// doesn't have.
type ConfigWatcher struct {
	app    *App
	logger *logrus.Logger

	debounce time.Duration
	poll     time.Duration

	watcher *fsnotify.Watcher
	hash    string
}

// NewConfigWatcher builds a watcher over app's config file. debounce
// coalesces bursts of filesystem events (editors often emit several
// writes per save); poll is the periodic fallback hash check used
// when fsnotify's events are unreliable (network filesystems,
// editors that replace-via-rename outside the watched directory).
func NewConfigWatcher(app *App, debounce, poll time.Duration) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = time.Second
	}
	if poll <= 0 {
		poll = 5 * time.Second
	}
	cw := &ConfigWatcher{
		app:      app,
		logger:   app.logger,
		debounce: debounce,
		poll:     poll,
		watcher:  watcher,
	}
	cw.hash, _ = cw.currentHash()
	return cw, nil
}

// Watch runs the pipeline once immediately, then again every time the
// config file's content changes, until ctx is canceled. Each run's
// error is logged rather than returned, so one bad edit does not kill
// the watch loop; only ctx cancellation or a watcher setup failure
// ends Watch.
func (cw *ConfigWatcher) Watch(ctx context.Context) error {
	if err := cw.watcher.Add(cw.app.configPath); err != nil {
		return err
	}
	defer cw.watcher.Close()

	cw.runOnce(ctx)

	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	pending := false

	ticker := time.NewTicker(cw.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(cw.debounce)
			pending = true

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return nil
			}
			cw.logger.WithError(err).Warn("config watcher error")

		case <-debounceTimer.C:
			if pending {
				pending = false
				cw.checkAndRun(ctx)
			}

		case <-ticker.C:
			cw.checkAndRun(ctx)
		}
	}
}

// checkAndRun re-runs the pipeline only if the config file's hash
// actually changed, so the periodic poll ticker doesn't trigger a
// spurious re-run on every tick.
func (cw *ConfigWatcher) checkAndRun(ctx context.Context) {
	newHash, err := cw.currentHash()
	if err != nil {
		cw.logger.WithError(err).Warn("config watcher: failed to hash config file")
		return
	}
	if newHash == cw.hash {
		return
	}
	cw.hash = newHash
	cw.logger.Info("config file changed, re-running pipeline")
	cw.runOnce(ctx)
}

func (cw *ConfigWatcher) runOnce(ctx context.Context) {
	doc, err := cw.app.Run(ctx)
	if err != nil {
		cw.logger.WithError(err).Error("pipeline run failed")
		return
	}
	logRunSummary(cw.logger, doc)
}

func (cw *ConfigWatcher) currentHash() (string, error) {
	f, err := os.Open(cw.app.configPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func logRunSummary(logger *logrus.Logger, doc *report.Document) {
	if doc == nil {
		return
	}
	logger.WithField("program_version", doc.ProgramVersion).Debug("run report assembled")
}
