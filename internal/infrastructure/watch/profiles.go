// Package watch invalidates cached Nix state when profiles change outside nixsay, for
// example after a manual nixos-rebuild in another terminal.
package watch

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/ports"
)

const defaultDebounce = 300 * time.Millisecond

var (
	systemLink   = regexp.MustCompile(`^system(-\d+-link)?$`)
	channelsLink = regexp.MustCompile(`^channels(-\d+-link)?$`)
)

// Options configures a ProfileWatcher.
type Options struct {
	// Dirs are the profile directories to watch; missing ones are skipped.
	Dirs     []string
	Debounce time.Duration
	Logger   ports.Logger
}

// ProfileWatcher maps filesystem events on Nix profile links to state tags and
// invalidates them in the cache once a burst of events settles.
type ProfileWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	cache    ports.Cache
	dirs     []string
	debounce time.Duration
	logger   ports.Logger
	pending  map[string]struct{}
	lastSeen time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// New creates a watcher; call Start to begin watching.
func New(cache ports.Cache, opts Options) (*ProfileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &ProfileWatcher{
		watcher:  watcher,
		cache:    cache,
		dirs:     opts.Dirs,
		debounce: debounce,
		logger:   opts.Logger,
		pending:  map[string]struct{}{},
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start adds the directories and runs the event loop in a goroutine. It returns the
// number of directories being watched.
func (w *ProfileWatcher) Start(ctx context.Context) int {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return 0
	}
	w.running = true
	w.mu.Unlock()

	watched := 0
	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			w.log("profile dir not watched", map[string]interface{}{"dir": dir, "error": err.Error()})
			continue
		}
		watched++
	}
	go w.run(ctx)
	return watched
}

// Stop ends the event loop and releases the watcher.
func (w *ProfileWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	_ = w.watcher.Close()
}

func (w *ProfileWatcher) run(ctx context.Context) {
	defer close(w.doneCh)
	ticker := time.NewTicker(w.debounce / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log("profile watcher error", map[string]interface{}{"error": err.Error()})
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *ProfileWatcher) handle(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) && !event.Op.Has(fsnotify.Write) {
		return
	}
	tags := TagsFor(filepath.Base(event.Name))
	if len(tags) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, tag := range tags {
		w.pending[tag] = struct{}{}
	}
	w.lastSeen = time.Now()
}

// flush invalidates pending tags once no event arrived for the debounce period.
func (w *ProfileWatcher) flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 || time.Since(w.lastSeen) < w.debounce {
		w.mu.Unlock()
		return
	}
	tags := make([]string, 0, len(w.pending))
	for tag := range w.pending {
		tags = append(tags, tag)
	}
	w.pending = map[string]struct{}{}
	w.mu.Unlock()

	sort.Strings(tags)
	removed := 0
	for _, tag := range tags {
		removed += w.cache.Invalidate(ctx, domain.Pattern{Tag: tag})
	}
	w.log("profiles changed outside nixsay", map[string]interface{}{"tags": strings.Join(tags, ","), "removed": removed})
}

// TagsFor maps a profile link name to the state tags it affects.
func TagsFor(name string) []string {
	switch {
	case systemLink.MatchString(name):
		return []string{domain.TagGenerations, domain.TagSystemStatus, domain.TagInstalledPackages, domain.TagServices}
	case channelsLink.MatchString(name):
		return []string{domain.TagSearchIndex, domain.TagPackageSearch}
	case strings.HasSuffix(name, "-link") || name == "default" || name == "profile":
		return []string{domain.TagInstalledPackages}
	}
	return nil
}

func (w *ProfileWatcher) log(msg string, fields map[string]interface{}) {
	if w.logger != nil {
		w.logger.Info(msg, fields)
	}
}
