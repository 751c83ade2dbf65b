package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	mu    sync.Mutex
	ids   []string
	err   error
	calls int
}

func (f *fakeLister) ListTemplates(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]string(nil), f.ids...), nil
}

func (f *fakeLister) set(ids []string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = ids
	f.err = err
}

func (f *fakeLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestCatalog(lister Lister, ttl time.Duration) (*Catalog, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	catalog := NewCatalog(lister, ttl)
	catalog.now = clock.Now
	return catalog, clock
}

func TestNewCatalog(t *testing.T) {
	catalog := NewCatalog(&fakeLister{}, time.Minute)

	assert.NotNil(t, catalog)
	assert.NotNil(t, catalog.watchers)
	assert.Equal(t, 0, catalog.Count())
}

func TestCatalog_ServesFromCacheWithinTTL(t *testing.T) {
	lister := &fakeLister{ids: []string{"a", "b"}}
	catalog, clock := newTestCatalog(lister, 30*time.Second)

	ids, err := catalog.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	lister.set([]string{"a", "b", "c"}, nil)
	clock.now = clock.now.Add(10 * time.Second)

	ids, err = catalog.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids, "fresh entry is served")
	assert.Equal(t, 1, lister.callCount())

	clock.now = clock.now.Add(30 * time.Second)
	ids, err = catalog.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids, "expired entry is rescanned")
	assert.Equal(t, 2, lister.callCount())
}

func TestCatalog_ZeroTTLDisablesCaching(t *testing.T) {
	lister := &fakeLister{ids: []string{"a"}}
	catalog, _ := newTestCatalog(lister, 0)

	for i := 0; i < 3; i++ {
		_, err := catalog.List(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, lister.callCount())
}

func TestCatalog_Invalidate(t *testing.T) {
	lister := &fakeLister{ids: []string{"a"}}
	catalog, _ := newTestCatalog(lister, time.Hour)

	_, err := catalog.List(context.Background())
	require.NoError(t, err)

	lister.set([]string{"a", "b"}, nil)
	catalog.Invalidate()

	ids, err := catalog.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestCatalog_FailedRefreshIsNotMasked(t *testing.T) {
	lister := &fakeLister{ids: []string{"a"}}
	catalog, clock := newTestCatalog(lister, time.Second)

	_, err := catalog.List(context.Background())
	require.NoError(t, err)

	boom := errors.New("store root unreadable")
	lister.set(nil, boom)
	clock.now = clock.now.Add(2 * time.Second)

	ids, err := catalog.List(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, ids)

	lister.set([]string{"a"}, nil)
	ids, err = catalog.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}

func TestCatalog_ReturnsCopies(t *testing.T) {
	catalog, _ := newTestCatalog(&fakeLister{ids: []string{"a", "b"}}, time.Hour)

	ids, err := catalog.List(context.Background())
	require.NoError(t, err)
	ids[0] = "mutated"

	again, err := catalog.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, again)
}

func TestCatalog_Contains(t *testing.T) {
	catalog, _ := newTestCatalog(&fakeLister{ids: []string{"alpha", "beta"}}, time.Hour)
	assert.False(t, catalog.Contains("alpha"), "nothing cached yet")

	_, err := catalog.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, catalog.Contains("alpha"))
	assert.True(t, catalog.Contains("beta"))
	assert.False(t, catalog.Contains("gamma"))
	assert.Equal(t, 2, catalog.Count())
}

func TestCatalog_WatchEvents(t *testing.T) {
	lister := &fakeLister{ids: []string{"a", "b"}}
	catalog, _ := newTestCatalog(lister, time.Hour)
	events := catalog.Watch()

	_, err := catalog.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 0, "the first listing is a baseline, not a change")

	lister.set([]string{"b", "c"}, nil)
	_, err = catalog.Refresh(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 2)
	first := <-events
	second := <-events
	assert.Equal(t, EventTypeRemoved, first.Type)
	assert.Equal(t, "a", first.TemplateID)
	assert.Equal(t, EventTypeAdded, second.Type)
	assert.Equal(t, "c", second.TemplateID)

	catalog.UnWatch(events)
	_, open := <-events
	assert.False(t, open)
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name    string
		before  []string
		after   []string
		added   []string
		removed []string
	}{
		{name: "no change", before: []string{"a", "b"}, after: []string{"a", "b"}},
		{name: "from empty", before: nil, after: []string{"a", "b"}, added: []string{"a", "b"}},
		{name: "to empty", before: []string{"a"}, after: nil, removed: []string{"a"}},
		{name: "interleaved", before: []string{"a", "c", "e"}, after: []string{"b", "c", "d"}, added: []string{"b", "d"}, removed: []string{"a", "e"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var added, removed []string
			for _, event := range diff(tt.before, tt.after) {
				switch event.Type {
				case EventTypeAdded:
					added = append(added, event.TemplateID)
				case EventTypeRemoved:
					removed = append(removed, event.TemplateID)
				}
			}
			assert.Equal(t, tt.added, added)
			assert.Equal(t, tt.removed, removed)
		})
	}
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "added", EventTypeAdded.String())
	assert.Equal(t, "removed", EventTypeRemoved.String())
	assert.Equal(t, "unknown", EventType(9).String())
}
