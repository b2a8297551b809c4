// backend-go/internal/blueprint/catalog.go
package blueprint

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

// Catalog holds the blueprints currently in effect. Readers get an immutable snapshot;
// a reload swaps the whole set at once so a running batch never sees a mix.
type Catalog struct {
	current atomic.Pointer[map[domain.Kind]*domain.Blueprint]
}

// NewCatalog seeds the catalog. Kinds missing from set are served by the standard blueprints.
func NewCatalog(set map[domain.Kind]*domain.Blueprint) *Catalog {
	c := &Catalog{}
	c.Replace(set)
	return c
}

// Replace swaps in a new set of blueprints.
func (c *Catalog) Replace(set map[domain.Kind]*domain.Blueprint) {
	cp := make(map[domain.Kind]*domain.Blueprint, len(set))
	for k, v := range set {
		cp[k] = v
	}
	c.current.Store(&cp)
}

// Get returns the blueprint for kind, falling back to the standard one.
func (c *Catalog) Get(kind domain.Kind) (*domain.Blueprint, bool) {
	if set := c.current.Load(); set != nil {
		if bp, ok := (*set)[kind]; ok {
			return bp, true
		}
	}
	return Standard(kind)
}

// Blueprint satisfies the repository-style lookup used by the planning service.
func (c *Catalog) Blueprint(_ context.Context, kind domain.Kind) (*domain.Blueprint, error) {
	bp, ok := c.Get(kind)
	if !ok {
		return nil, &domain.ConfigError{Msg: fmt.Sprintf("no blueprint for agent type %q", kind)}
	}
	return bp, nil
}

// Watcher reloads a Catalog from a blueprint directory whenever a file in it changes.
type Watcher struct {
	dir      string
	catalog  *Catalog
	debounce time.Duration
}

// NewWatcher creates a watcher for dir. debounce <= 0 uses 250ms.
func NewWatcher(dir string, catalog *Catalog, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &Watcher{dir: dir, catalog: catalog, debounce: debounce}
}

// Reload loads the directory and swaps it into the catalog. On error the previous
// blueprints stay in effect.
func (w *Watcher) Reload() error {
	set, err := LoadDir(w.dir)
	if err != nil {
		return err
	}
	w.catalog.Replace(set)
	log.Info().Str("dir", w.dir).Int("blueprints", len(set)).Msg("Blueprints reloaded")
	return nil
}

// Run blocks until ctx is cancelled, reloading after bursts of file events settle.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create blueprint watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	log.Info().Str("dir", w.dir).Dur("debounce", w.debounce).Msg("Watching blueprint directory")

	var (
		timer *time.Timer
		fire  <-chan time.Time
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

		case ev, ok := <-fw.Events:
			if !ok {
				return fmt.Errorf("blueprint watcher events channel closed")
			}
			if ev.Op == fsnotify.Chmod || !IsBlueprintFile(ev.Name) {
				continue
			}
			log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("Blueprint file changed")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.Reload(); err != nil {
				log.Error().Err(err).Str("dir", w.dir).Msg("Blueprint reload failed, keeping previous set")
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return fmt.Errorf("blueprint watcher errors channel closed")
			}
			log.Warn().Err(err).Msg("Blueprint watcher error")
		}
	}
}
