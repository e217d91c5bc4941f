package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/2389-research/cc-log-viewer/internal/watch"
	"github.com/2389-research/cc-log-viewer/pkg/models"
)

// nullSource satisfies watch.EventSource for handler tests that never
// exercise the dispatcher.
type nullSource struct{ ch chan []string }

func (s *nullSource) Events() <-chan []string { return s.ch }
func (s *nullSource) Close() error            { return nil }

func newTestServer(t *testing.T, projectsDir string) *httptest.Server {
	t.Helper()

	logger := zap.NewNop()
	store := NewStore(projectsDir, ".jsonl", logger)
	handler := NewHandler(store, logger)
	manager := watch.NewManager(watch.Options{Root: projectsDir}, &nullSource{ch: make(chan []string)}, logger)
	ws := NewWSHandler(manager, logger)

	srv := httptest.NewServer(handler.Routes(ws))
	t.Cleanup(srv.Close)
	return srv
}

func writeSession(t *testing.T, root, project, session string, lines ...string) {
	t.Helper()
	dir := filepath.Join(root, project)
	require.NoError(t, os.MkdirAll(dir, 0755))
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, session+".jsonl"), []byte(content), 0644))
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil && res.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res
}

func TestHandler_Projects(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "alpha", "s1",
		`{"type":"user","uuid":"u1","timestamp":"2024-03-01T10:00:00Z"}`)
	writeSession(t, root, "beta", "s1",
		`{"type":"user","uuid":"u2","timestamp":"2024-03-02T10:00:00Z"}`)
	writeSession(t, root, "beta", "s2",
		`{"type":"user","uuid":"u3","timestamp":"2024-03-03T10:00:00Z"}`)

	srv := newTestServer(t, root)

	var projects []models.ProjectSummary
	res := getJSON(t, srv.URL+"/api/projects", &projects)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, projects, 2)

	// Most recently active first.
	assert.Equal(t, "beta", projects[0].Name)
	assert.Equal(t, 2, projects[0].SessionCount)
	assert.Equal(t, "alpha", projects[1].Name)
	assert.Equal(t, 1, projects[1].SessionCount)
}

func TestHandler_Sessions(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "alpha", "s1",
		`{"type":"summary","summary":"Fix the build"}`,
		`{"type":"user","uuid":"u1","timestamp":"2024-03-01T10:00:00Z"}`,
		`{"type":"assistant","uuid":"a1","timestamp":"2024-03-01T10:00:05Z"}`)

	srv := newTestServer(t, root)

	var sessions []models.SessionSummary
	res := getJSON(t, srv.URL+"/api/projects/alpha/sessions", &sessions)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)
	assert.Equal(t, "Fix the build", sessions[0].Summary)
	assert.Equal(t, 3, sessions[0].MessageCount)
	assert.Equal(t, "alpha", sessions[0].ProjectName)
}

func TestHandler_SessionsUnknownProject(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	res := getJSON(t, srv.URL+"/api/projects/ghost/sessions", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestHandler_SessionLogs(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "alpha", "s1",
		`{"type":"user","uuid":"u1"}`,
		"garbage line",
		`{"type":"assistant","uuid":"a1"}`)

	srv := newTestServer(t, root)

	var entries []models.LogEntry
	res := getJSON(t, srv.URL+"/api/projects/alpha/sessions/s1", &entries)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, entries, 2)
	assert.Equal(t, "u1", entries[0].UUID)
	assert.Equal(t, "a1", entries[1].UUID)
}

func TestHandler_SessionLogsNotFound(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "alpha", "s1", `{"uuid":"u1"}`)

	srv := newTestServer(t, root)

	res := getJSON(t, srv.URL+"/api/projects/alpha/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestStore_PathTraversalRejected(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "alpha", "s1", `{"uuid":"u1"}`)

	store := NewStore(root, ".jsonl", zap.NewNop())

	_, err := store.Sessions("../alpha")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = store.SessionEntries("alpha", "../s1")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = store.SessionEntries("..", "s1")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestHandler_ExportMarkdown(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "alpha", "s1",
		`{"type":"summary","summary":"Build fixes"}`,
		`{"type":"user","message":{"content":"please fix"},"timestamp":"2024-03-01T10:00:00Z"}`)

	srv := newTestServer(t, root)

	res, err := http.Get(srv.URL + "/api/projects/alpha/sessions/s1/export")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/markdown")
	assert.Contains(t, res.Header.Get("Content-Disposition"), "alpha-s1.md")
}

func TestHandler_Health(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	var body map[string]string
	res := getJSON(t, srv.URL+"/healthz", &body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}
