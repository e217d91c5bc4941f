package models

import (
	"encoding/json"
	"time"
)

// LogEntry is one parsed line from a session .jsonl file. The schema is owned
// by the tool writing the logs and may grow fields at any time, so everything
// is optional and unrecognized payloads ride along as raw JSON.
type LogEntry struct {
	Type          string          `json:"type,omitempty"`
	Summary       string          `json:"summary,omitempty"`
	ParentUUID    string          `json:"parentUuid,omitempty"`
	IsSidechain   *bool           `json:"isSidechain,omitempty"`
	UserType      string          `json:"userType,omitempty"`
	CWD           string          `json:"cwd,omitempty"`
	SessionID     string          `json:"sessionId,omitempty"`
	Version       string          `json:"version,omitempty"`
	Message       json.RawMessage `json:"message,omitempty"`
	UUID          string          `json:"uuid,omitempty"`
	Timestamp     *time.Time      `json:"timestamp,omitempty"`
	RequestID     string          `json:"requestId,omitempty"`
	LeafUUID      string          `json:"leafUuid,omitempty"`
	ToolUseResult json.RawMessage `json:"toolUseResult,omitempty"`
}

// EventTypeLogEntry is the only WatchEvent kind currently emitted.
const EventTypeLogEntry = "log_entry"

// WatchEvent is the envelope broadcast to live subscribers, one self-contained
// message per new log entry.
type WatchEvent struct {
	Type      string    `json:"type"`
	Project   string    `json:"project"`
	Session   string    `json:"session,omitempty"`
	Entry     *LogEntry `json:"entry,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ProjectSummary describes one project directory under the watched root.
type ProjectSummary struct {
	Name           string     `json:"name"`
	Path           string     `json:"path"`
	SessionCount   int        `json:"session_count"`
	LatestActivity *time.Time `json:"latest_activity"`
}

// SessionSummary describes one session log file within a project.
type SessionSummary struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary"`
	Timestamp    time.Time `json:"timestamp"`
	MessageCount int       `json:"message_count"`
	ProjectName  string    `json:"project_name"`
}
