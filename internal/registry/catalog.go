// Package registry caches the template listing and broadcasts changes to it.
//
// The catalog sits in front of the loader's enumeration so request handlers
// do not rescan the store root on every call. Entries are advisory: a stale
// listing may miss a template that loads fine, and template loads never
// consult the catalog.
package registry

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Lister enumerates template ids. *loader.Loader satisfies it.
type Lister interface {
	ListTemplates(ctx context.Context) ([]string, error)
}

// EventType represents the type of catalog event
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeRemoved
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeAdded:
		return "added"
	case EventTypeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// CatalogEvent represents a change in the template listing
type CatalogEvent struct {
	Type       EventType
	TemplateID string
	Timestamp  time.Time
}

// Catalog caches the output of a Lister for a bounded time.
type Catalog struct {
	lister   Lister
	ttl      time.Duration
	now      func() time.Time
	mutex    sync.RWMutex
	refresh  sync.Mutex
	ids      []string
	loadedAt time.Time
	valid    bool
	primed   bool
	watchers []chan CatalogEvent
}

// NewCatalog creates a catalog over lister. A ttl of zero disables caching,
// so every List call rescans.
func NewCatalog(lister Lister, ttl time.Duration) *Catalog {
	return &Catalog{
		lister:   lister,
		ttl:      ttl,
		now:      time.Now,
		watchers: make([]chan CatalogEvent, 0),
	}
}

// List returns the cached listing while it is fresh and rescans otherwise.
// A failed rescan returns the error rather than a stale listing.
func (c *Catalog) List(ctx context.Context) ([]string, error) {
	if ids, ok := c.cached(); ok {
		return ids, nil
	}

	return c.Refresh(ctx)
}

// Refresh rescans unconditionally, replaces the cached listing and notifies
// watchers of every added and removed id.
func (c *Catalog) Refresh(ctx context.Context) ([]string, error) {
	// Serialize rescans so concurrent refreshes do not emit duplicate events.
	c.refresh.Lock()
	defer c.refresh.Unlock()

	ids, err := c.lister.ListTemplates(ctx)
	if err != nil {
		c.Invalidate()
		return nil, err
	}

	c.mutex.Lock()
	previous := c.ids
	hadListing := c.primed
	c.primed = true
	c.ids = slices.Clone(ids)
	c.loadedAt = c.now()
	c.valid = true
	c.mutex.Unlock()

	if hadListing {
		c.notify(diff(previous, ids))
	}

	return slices.Clone(ids), nil
}

// Invalidate marks the cached listing stale. The last listing is kept for
// change detection on the next refresh.
func (c *Catalog) Invalidate() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.valid = false
}

// Contains reports whether id is in the cached listing. It never rescans.
func (c *Catalog) Contains(id string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	_, found := slices.BinarySearch(c.ids, id)
	return found
}

// Count returns the number of ids in the cached listing.
func (c *Catalog) Count() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.ids)
}

// Watch returns a channel that receives catalog events
func (c *Catalog) Watch() <-chan CatalogEvent {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ch := make(chan CatalogEvent, 100)
	c.watchers = append(c.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (c *Catalog) UnWatch(ch <-chan CatalogEvent) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for i, watcher := range c.watchers {
		if watcher == ch {
			close(watcher)
			c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
			break
		}
	}
}

func (c *Catalog) cached() ([]string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if !c.valid || c.ttl <= 0 || c.now().Sub(c.loadedAt) >= c.ttl {
		return nil, false
	}

	return slices.Clone(c.ids), true
}

func (c *Catalog) notify(events []CatalogEvent) {
	if len(events) == 0 {
		return
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for _, event := range events {
		for _, watcher := range c.watchers {
			select {
			case watcher <- event:
			default:
				// Skip if channel is full
			}
		}
	}
}

// diff compares two sorted listings.
func diff(before, after []string) []CatalogEvent {
	now := time.Now()
	var events []CatalogEvent

	i, j := 0, 0
	for i < len(before) || j < len(after) {
		switch {
		case j == len(after) || (i < len(before) && before[i] < after[j]):
			events = append(events, CatalogEvent{Type: EventTypeRemoved, TemplateID: before[i], Timestamp: now})
			i++
		case i == len(before) || after[j] < before[i]:
			events = append(events, CatalogEvent{Type: EventTypeAdded, TemplateID: after[j], Timestamp: now})
			j++
		default:
			i++
			j++
		}
	}

	return events
}
