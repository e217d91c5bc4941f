package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/2389-research/cc-log-viewer/pkg/models"
	"go.uber.org/zap"
)

// Store scans the projects directory for listing requests and keeps the most
// recent projects listing cached for readers.
type Store struct {
	projectsDir string
	extension   string
	logger      *zap.Logger

	mu       sync.RWMutex
	projects []models.ProjectSummary
}

// NewStore creates a store over the given projects directory.
func NewStore(projectsDir, extension string, logger *zap.Logger) *Store {
	return &Store{
		projectsDir: projectsDir,
		extension:   extension,
		logger:      logger,
	}
}

// Projects refreshes and returns the project listing, most recently active
// first.
func (s *Store) Projects() ([]models.ProjectSummary, error) {
	dirs, err := os.ReadDir(s.projectsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects directory: %w", err)
	}

	projects := make([]models.ProjectSummary, 0, len(dirs))
	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}

		projectPath := filepath.Join(s.projectsDir, dir.Name())
		summary := models.ProjectSummary{
			Name: dir.Name(),
			Path: projectPath,
		}

		files, err := os.ReadDir(projectPath)
		if err != nil {
			s.logger.Warn("Could not read project directory",
				zap.String("project", dir.Name()), zap.Error(err))
			continue
		}

		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), s.extension) {
				continue
			}
			summary.SessionCount++

			// The newest timestamp among each file's leading entries is close
			// enough for ordering without reading whole session logs.
			if ts := latestTimestamp(filepath.Join(projectPath, f.Name()), 5); ts != nil {
				if summary.LatestActivity == nil || ts.After(*summary.LatestActivity) {
					summary.LatestActivity = ts
				}
			}
		}

		projects = append(projects, summary)
	}

	sort.Slice(projects, func(i, j int) bool {
		a, b := projects[i].LatestActivity, projects[j].LatestActivity
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	s.mu.Lock()
	s.projects = projects
	s.mu.Unlock()

	return projects, nil
}

// CachedProjects returns the listing from the last successful refresh.
func (s *Store) CachedProjects() []models.ProjectSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ProjectSummary, len(s.projects))
	copy(out, s.projects)
	return out
}

// Sessions returns summaries for every session file in a project, newest
// first. os.ErrNotExist is returned when the project directory is missing.
func (s *Store) Sessions(project string) ([]models.SessionSummary, error) {
	projectPath, err := s.safeJoin(project)
	if err != nil {
		return nil, err
	}

	files, err := os.ReadDir(projectPath)
	if err != nil {
		return nil, err
	}

	sessions := make([]models.SessionSummary, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), s.extension) {
			continue
		}

		path := filepath.Join(projectPath, f.Name())
		summary := models.SessionSummary{
			ID:          strings.TrimSuffix(f.Name(), s.extension),
			Summary:     "Untitled Session",
			Timestamp:   time.Now(),
			ProjectName: project,
		}

		summary.MessageCount = countLines(path)

		// The summary entry and the first timestamp both live near the top of
		// the file.
		for _, entry := range readEntries(path, 10) {
			if entry.Type == "summary" && entry.Summary != "" {
				summary.Summary = entry.Summary
			}
			if entry.Timestamp != nil {
				summary.Timestamp = *entry.Timestamp
				break
			}
		}

		sessions = append(sessions, summary)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Timestamp.After(sessions[j].Timestamp)
	})

	return sessions, nil
}

// SessionEntries returns every parseable entry of one session log.
func (s *Store) SessionEntries(project, session string) ([]models.LogEntry, error) {
	projectPath, err := s.safeJoin(project)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(projectPath, session+s.extension)
	if strings.ContainsAny(session, "/\\") || session == ".." {
		return nil, os.ErrNotExist
	}

	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	return readEntries(path, 0), nil
}

// safeJoin resolves a project name under the projects directory, rejecting
// names that would escape it.
func (s *Store) safeJoin(project string) (string, error) {
	if project == "" || project == ".." || strings.ContainsAny(project, "/\\") {
		return "", os.ErrNotExist
	}
	return filepath.Join(s.projectsDir, project), nil
}

// readEntries parses up to limit entries from a session file (0 for all).
// Malformed lines are skipped.
func readEntries(path string, limit int) []models.LogEntry {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var entries []models.LogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var entry models.LogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err == nil {
			entries = append(entries, entry)
		}
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries
}

// latestTimestamp returns the newest timestamp among the first maxLines
// parseable entries of a session file.
func latestTimestamp(path string, maxLines int) *time.Time {
	var latest *time.Time
	for _, entry := range readEntries(path, maxLines) {
		if entry.Timestamp == nil {
			continue
		}
		if latest == nil || entry.Timestamp.After(*latest) {
			ts := *entry.Timestamp
			latest = &ts
		}
	}
	return latest
}

func countLines(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		n++
	}
	return n
}
