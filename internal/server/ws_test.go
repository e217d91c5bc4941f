package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/2389-research/cc-log-viewer/internal/watch"
	"github.com/2389-research/cc-log-viewer/pkg/models"
)

type wsFixture struct {
	root    string
	manager *watch.Manager
	srv     *httptest.Server
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	logger := zap.NewNop()
	root := t.TempDir()
	manager := watch.NewManager(watch.Options{Root: root}, &nullSource{ch: make(chan []string)}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go manager.Start(ctx)

	store := NewStore(root, ".jsonl", logger)
	handler := NewHandler(store, logger)
	srv := httptest.NewServer(handler.Routes(NewWSHandler(manager, logger)))
	t.Cleanup(srv.Close)

	return &wsFixture{root: root, manager: manager, srv: srv}
}

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/watch"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

// emit writes a session file and dispatches it so the manager publishes its
// entries.
func (f *wsFixture) emit(t *testing.T, session string, uuids ...string) {
	t.Helper()
	dir := filepath.Join(f.root, "proj")
	require.NoError(t, os.MkdirAll(dir, 0755))
	content := ""
	for _, u := range uuids {
		content += `{"uuid":"` + u + `"}` + "\n"
	}
	path := filepath.Join(dir, session+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	f.manager.Dispatch([]string{path})
}

func readEvent(t *testing.T, conn *websocket.Conn) models.WatchEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev models.WatchEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	return ev
}

func waitForSubscribers(t *testing.T, manager *watch.Manager, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for manager.SubscriberCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber count never reached %d (now %d)", want, manager.SubscriberCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWS_StreamsEventsToViewer(t *testing.T) {
	f := newWSFixture(t)

	conn := f.dial(t)
	defer conn.Close()
	waitForSubscribers(t, f.manager, 1)

	f.emit(t, "s1", "a", "b")

	ev := readEvent(t, conn)
	assert.Equal(t, models.EventTypeLogEntry, ev.Type)
	assert.Equal(t, "proj", ev.Project)
	assert.Equal(t, "s1", ev.Session)
	require.NotNil(t, ev.Entry)
	assert.Equal(t, "a", ev.Entry.UUID)

	ev = readEvent(t, conn)
	assert.Equal(t, "b", ev.Entry.UUID)
}

func TestWS_TwoViewersBothReceive(t *testing.T) {
	f := newWSFixture(t)

	conn1 := f.dial(t)
	defer conn1.Close()
	conn2 := f.dial(t)
	defer conn2.Close()
	waitForSubscribers(t, f.manager, 2)

	f.emit(t, "s1", "a")

	assert.Equal(t, "a", readEvent(t, conn1).Entry.UUID)
	assert.Equal(t, "a", readEvent(t, conn2).Entry.UUID)
}

func TestWS_CloseReleasesSubscription(t *testing.T) {
	f := newWSFixture(t)

	conn := f.dial(t)
	waitForSubscribers(t, f.manager, 1)

	require.NoError(t, conn.Close())

	// Both pumps must wind down and release the subscription.
	waitForSubscribers(t, f.manager, 0)

	// Publishing afterwards neither blocks nor errors; a surviving viewer
	// still receives everything.
	survivor := f.dial(t)
	defer survivor.Close()
	waitForSubscribers(t, f.manager, 1)

	f.emit(t, "s2", "x")
	assert.Equal(t, "x", readEvent(t, survivor).Entry.UUID)
}

func TestWS_ViewerTextMessagesIgnored(t *testing.T) {
	f := newWSFixture(t)

	conn := f.dial(t)
	defer conn.Close()
	waitForSubscribers(t, f.manager, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	f.emit(t, "s1", "a")
	assert.Equal(t, "a", readEvent(t, conn).Entry.UUID)
}
