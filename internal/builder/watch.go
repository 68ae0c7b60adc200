package builder

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tbourn/go-kb-retrieval/internal/domain"
)

// DefaultDebounce is how long Watch waits after the last change before
// rebuilding.
const DefaultDebounce = 250 * time.Millisecond

// RebuildFunc receives the result of every rebuild.
type RebuildFunc func(chunks []domain.Chunk, err error)

// Watch rebuilds dir whenever a source file in it is created, written,
// removed or renamed, calling fn with each result. Bursts of events within
// debounce collapse into one rebuild. Watch blocks until ctx is done.
func (b *Builder) Watch(ctx context.Context, dir string, debounce time.Duration, fn RebuildFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if relevant(ev) {
				b.log.Debug().Str("file", filepath.Base(ev.Name)).Str("op", ev.Op.String()).Msg("change")
				timer.Reset(debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			b.log.Warn().Err(err).Msg("watch error")
		case <-timer.C:
			chunks, err := b.Build(dir)
			fn(chunks, err)
		}
	}
}

// relevant reports whether ev should trigger a rebuild. Chmod and non-source
// files never do.
func relevant(ev fsnotify.Event) bool {
	if !isSource(filepath.Base(ev.Name)) {
		return false
	}
	return ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}
