// Package watcher reports changes to the template store.
//
// A StoreWatcher watches the store root and each template directory directly
// under it, groups bursts of filesystem events with a debouncer, and passes
// each batch to the registered handlers. Directories created under the root
// while running are picked up automatically.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/anchorplay/internal/logging"
)

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type EventType
	Path string
	// TemplateID is the template directory the change happened in. It is
	// empty for changes to the root directory itself.
	TemplateID string
	ModTime    time.Time
	Size       int64
}

// FileFilter determines if a path should be reported. It receives the path
// relative to the store root.
type FileFilter func(path string) bool

// ChangeHandler handles a debounced batch of change events
type ChangeHandler func(events []ChangeEvent) error

// StoreWatcher watches a template store root for changes.
type StoreWatcher struct {
	root      string
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	handlers  []ChangeHandler
	logger    logging.Logger
	mutex     sync.RWMutex
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	stopOnce  sync.Once
}

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
}

// NewStoreWatcher creates a watcher for the store rooted at root.
func NewStoreWatcher(root string, debounceDelay time.Duration, logger logging.Logger) (*StoreWatcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving store root: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logging.NewNop()
	}

	return &StoreWatcher{
		root:    absRoot,
		watcher: watcher,
		debouncer: &Debouncer{
			delay:   debounceDelay,
			events:  make(chan ChangeEvent, 100),
			output:  make(chan []ChangeEvent, 10),
			pending: make([]ChangeEvent, 0),
		},
		filters:  make([]FileFilter, 0),
		handlers: make([]ChangeHandler, 0),
		logger:   logger.WithComponent("watcher"),
	}, nil
}

// AddFilter adds a file filter
func (sw *StoreWatcher) AddFilter(filter FileFilter) {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()
	sw.filters = append(sw.filters, filter)
}

// AddHandler adds a change handler
func (sw *StoreWatcher) AddHandler(handler ChangeHandler) {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()
	sw.handlers = append(sw.handlers, handler)
}

// Start registers the root and its template directories and begins
// delivering events. It returns once watching has started.
func (sw *StoreWatcher) Start(ctx context.Context) error {
	if err := sw.watcher.Add(sw.root); err != nil {
		return fmt.Errorf("watching store root %s: %w", sw.root, err)
	}

	entries, err := os.ReadDir(sw.root)
	if err != nil {
		return fmt.Errorf("reading store root %s: %w", sw.root, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			sw.addTemplateDir(ctx, filepath.Join(sw.root, entry.Name()))
		}
	}

	ctx, sw.cancel = context.WithCancel(ctx)

	sw.wg.Add(3)
	go func() {
		defer sw.wg.Done()
		sw.debouncer.start(ctx)
	}()
	go func() {
		defer sw.wg.Done()
		sw.processEvents(ctx)
	}()
	go func() {
		defer sw.wg.Done()
		sw.watchLoop(ctx)
	}()

	return nil
}

// Stop stops the watcher and waits for its goroutines to exit.
func (sw *StoreWatcher) Stop() error {
	var err error
	sw.stopOnce.Do(func() {
		if sw.cancel != nil {
			sw.cancel()
		}
		sw.debouncer.stop()
		err = sw.watcher.Close()
		sw.wg.Wait()
	})
	return err
}

// Root returns the absolute store root being watched.
func (sw *StoreWatcher) Root() string {
	return sw.root
}

func (sw *StoreWatcher) addTemplateDir(ctx context.Context, dir string) {
	if !NoHiddenFilter(filepath.Base(dir)) {
		return
	}
	if err := sw.watcher.Add(dir); err != nil {
		sw.logger.Warn(ctx, err, "Skipping template directory", "path", dir)
	}
}

func (sw *StoreWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			sw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			// Log error but continue watching
			sw.logger.Warn(ctx, err, "Store watcher error")
		}
	}
}

func (sw *StoreWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	rel, templateID, ok := sw.relative(event.Name)
	if !ok {
		return
	}

	sw.mutex.RLock()
	filters := sw.filters
	sw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(rel) {
			return
		}
	}

	info, err := os.Stat(event.Name)
	var modTime time.Time
	var size int64

	if err == nil {
		modTime = info.ModTime()
		size = info.Size()
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventTypeCreated
		// New template directories are watched as they appear.
		if err == nil && info.IsDir() && filepath.Dir(event.Name) == sw.root {
			sw.addTemplateDir(ctx, event.Name)
		}
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventTypeModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventTypeDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventTypeRenamed
	default:
		eventType = EventTypeModified
	}

	changeEvent := ChangeEvent{
		Type:       eventType,
		Path:       event.Name,
		TemplateID: templateID,
		ModTime:    modTime,
		Size:       size,
	}

	select {
	case sw.debouncer.events <- changeEvent:
	default:
		// Channel full, skip this event
	}
}

// relative maps a path under the root to its root-relative form and the
// template directory it belongs to.
func (sw *StoreWatcher) relative(path string) (rel, templateID string, ok bool) {
	rel, err := filepath.Rel(sw.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", false
	}
	if rel == "." {
		return rel, "", true
	}
	return rel, strings.SplitN(rel, string(filepath.Separator), 2)[0], true
}

func (sw *StoreWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-sw.debouncer.output:
			sw.mutex.RLock()
			handlers := sw.handlers
			sw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(events); err != nil {
					// Log error but continue processing
					sw.logger.Warn(ctx, err, "Store change handler failed", "events", len(events))
				}
			}
		}
	}
}

func (d *Debouncer) start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			d.addEvent(event)
		}
	}
}

func (d *Debouncer) addEvent(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = append(d.pending, event)

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	// Keep the last event per path
	eventMap := make(map[string]ChangeEvent)
	for _, event := range d.pending {
		eventMap[event.Path] = event
	}

	events := make([]ChangeEvent, 0, len(eventMap))
	for _, event := range eventMap {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Path < events[j].Path
	})

	select {
	case d.output <- events:
	default:
		// Channel full, skip
	}

	d.pending = d.pending[:0]
}

// TemplateIDs returns the distinct template ids touched by a batch, sorted.
// Changes to the root itself are omitted.
func TemplateIDs(events []ChangeEvent) []string {
	seen := make(map[string]struct{})
	for _, event := range events {
		if event.TemplateID != "" {
			seen[event.TemplateID] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NoHiddenFilter rejects dot files and anything inside dot directories.
func NoHiddenFilter(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return false
		}
	}
	return true
}

// NoTempFilter rejects editor swap and backup files.
func NoTempFilter(path string) bool {
	base := filepath.Base(path)
	return !strings.HasSuffix(base, "~") &&
		!strings.HasSuffix(base, ".swp") &&
		!strings.HasSuffix(base, ".tmp")
}
