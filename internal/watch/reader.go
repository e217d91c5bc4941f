package watch

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/2389-research/cc-log-viewer/pkg/models"
	"go.uber.org/zap"
)

// EntryAt pairs a parsed log entry with the byte offset just past its line
// (newline included), i.e. the offset the tracker should advance to once the
// entry has been emitted.
type EntryAt struct {
	Entry     models.LogEntry
	EndOffset int64
}

// ReadNewEntries reads path and returns every line starting at or beyond
// fromOffset that parses as a JSON object, in file order. Lines that are not
// shaped like a JSON object, or that fail to decode, are skipped without
// aborting the scan. Read errors are logged and reported as zero new entries
// so the caller leaves the tracked offset untouched and the same bytes are
// retried on the next notification.
func ReadNewEntries(path string, fromOffset int64, logger *zap.Logger) []EntryAt {
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Could not read log file",
			zap.String("file", path),
			zap.Error(err))
		return nil
	}

	var entries []EntryAt

	lineStart := 0
	for lineStart < len(content) {
		lineEnd := lineStart
		for lineEnd < len(content) && content[lineEnd] != '\n' {
			lineEnd++
		}

		// Offset past this line, counting the newline when present. A final
		// unterminated line ends at the buffer boundary.
		endOffset := int64(lineEnd)
		if lineEnd < len(content) {
			endOffset = int64(lineEnd + 1)
		}

		if int64(lineStart) >= fromOffset {
			line := strings.TrimSpace(string(content[lineStart:lineEnd]))

			// Cheap shape check before paying for a full JSON decode.
			if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
				var entry models.LogEntry
				if err := json.Unmarshal([]byte(line), &entry); err == nil {
					entries = append(entries, EntryAt{Entry: entry, EndOffset: endOffset})
				}
			}
		}

		if lineEnd >= len(content) {
			break
		}
		lineStart = lineEnd + 1
	}

	return entries
}
