package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/2389-research/cc-log-viewer/internal/export"
	"github.com/2389-research/cc-log-viewer/pkg/models"
	"go.uber.org/zap"
)

// Handler handles HTTP requests.
type Handler struct {
	store  *Store
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(store *Store, logger *zap.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// Routes builds the request router. net/http's default mux has no path
// parameters, so the nested /api/projects/... paths are split by hand.
func (h *Handler) Routes(ws *WSHandler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/projects", h.Projects)
	mux.HandleFunc("/api/projects/", h.projectSubroutes)
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/ws/watch", ws.Serve)
	mux.HandleFunc("/live", servePage(liveHTML))
	mux.HandleFunc("/", servePage(indexHTML))
	return mux
}

// Projects handles GET /api/projects.
func (h *Handler) Projects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	projects, err := h.store.Projects()
	if err != nil {
		h.logger.Error("Failed to refresh project listing", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, projects)
}

// Sessions handles GET /api/projects/{project}/sessions.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request, project string) {
	sessions, err := h.store.Sessions(project)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "Project not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to list sessions",
			zap.String("project", project), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, sessions)
}

// SessionLogs handles GET /api/projects/{project}/sessions/{session}.
func (h *Handler) SessionLogs(w http.ResponseWriter, r *http.Request, project, session string) {
	entries, err := h.store.SessionEntries(project, session)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to read session log",
			zap.String("project", project),
			zap.String("session", session),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if entries == nil {
		entries = []models.LogEntry{}
	}
	writeJSON(w, entries)
}

// ExportMarkdown handles GET /api/projects/{project}/sessions/{session}/export.
func (h *Handler) ExportMarkdown(w http.ResponseWriter, r *http.Request, project, session string) {
	entries, err := h.store.SessionEntries(project, session)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to read session log for export",
			zap.String("project", project),
			zap.String("session", session),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	markdown := export.Markdown(entries, project, session)

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", project+"-"+session+".md"))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(markdown))
}

// Health handles health check requests.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy"})
}

func (h *Handler) projectSubroutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/projects/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 2 && parts[1] == "sessions":
		h.Sessions(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "sessions":
		h.SessionLogs(w, r, parts[0], parts[2])
	case len(parts) == 4 && parts[1] == "sessions" && parts[3] == "export":
		h.ExportMarkdown(w, r, parts[0], parts[2])
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
