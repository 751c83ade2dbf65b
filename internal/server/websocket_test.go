package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/anchorplay/internal/watcher"
)

func startTestServer(t *testing.T, srv *Server) *httptest.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.startWorkers(ctx))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		cancel()
		srv.Shutdown(context.Background())
		ts.Close()
	})

	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })

	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) UpdateMessage {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWebSocket_CatalogEvents(t *testing.T) {
	srv, fsys := setupTestServer(t)
	ts := startTestServer(t, srv)
	conn := dial(t, ts)

	require.Eventually(t, func() bool { return srv.hub.count() == 1 }, 5*time.Second, 10*time.Millisecond)

	writeTemplate(t, fsys, "escrow", counterTemplate)
	_, err := srv.Catalog().Refresh(context.Background())
	require.NoError(t, err)

	msg := readMessage(t, conn)
	assert.Equal(t, "catalog", msg.Type)
	assert.Equal(t, "added", msg.Event)
	assert.Equal(t, "escrow", msg.Template)

	require.NoError(t, fsys.RemoveAll("/escrow"))
	_, err = srv.Catalog().Refresh(context.Background())
	require.NoError(t, err)

	msg = readMessage(t, conn)
	assert.Equal(t, "removed", msg.Event)
	assert.Equal(t, "escrow", msg.Template)
}

func TestWebSocket_TemplateChanged(t *testing.T) {
	srv, fsys := setupTestServer(t)
	ts := startTestServer(t, srv)
	conn := dial(t, ts)

	require.Eventually(t, func() bool { return srv.hub.count() == 1 }, 5*time.Second, 10*time.Millisecond)

	writeTemplate(t, fsys, "vault", counterTemplate)
	err := srv.handleStoreChange(context.Background(), []watcher.ChangeEvent{
		{Type: watcher.EventTypeModified, Path: "/counter/metadata.json", TemplateID: "counter"},
		{Type: watcher.EventTypeCreated, Path: "/vault", TemplateID: "vault"},
	})
	require.NoError(t, err)

	// The new template is announced by the catalog, the edited one as changed.
	got := map[string]string{}
	for i := 0; i < 2; i++ {
		msg := readMessage(t, conn)
		got[msg.Template] = msg.Type + ":" + msg.Event
	}
	assert.Equal(t, map[string]string{
		"counter": "template:changed",
		"vault":   "catalog:added",
	}, got)
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	srv, _ := setupTestServer(t)
	ts := startTestServer(t, srv)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/ws", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.test")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocket_AllowedOrigin(t *testing.T) {
	srv, _ := setupTestServer(t)
	ts := startTestServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Origin", "http://playground.test")
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	conn.CloseNow()
}

func TestWebSocket_ShutdownClosesClients(t *testing.T) {
	srv, _ := setupTestServer(t)
	ts := startTestServer(t, srv)
	conn := dial(t, ts)

	require.Eventually(t, func() bool { return srv.hub.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, srv.Shutdown(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	assert.Error(t, err)
	assert.Equal(t, 0, srv.hub.count())
}

func TestCheckOrigin(t *testing.T) {
	srv, _ := setupTestServer(t)

	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "localhost:3000", true},
		{"http://localhost:3000", "localhost:3000", true},
		{"http://playground.test", "localhost:3000", true},
		{"http://evil.test", "localhost:3000", false},
		{"file://localhost:3000", "localhost:3000", false},
		{"://bad", "localhost:3000", false},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Host = tt.host
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, srv.checkOrigin(req), tt.origin)
	}
}
