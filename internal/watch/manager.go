package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/2389-research/cc-log-viewer/pkg/models"
	"go.uber.org/zap"
)

// Options tune the watch manager. Zero values fall back to the defaults used
// by the reference deployment.
type Options struct {
	// Root is the projects directory being watched.
	Root string
	// Extension identifies tailed log files, including the dot.
	Extension string
	// BatchLimit caps how many entries one dispatch emits for a single path.
	BatchLimit int
	// BufferCapacity is the per-subscriber broadcast buffer depth.
	BufferCapacity int
	// RescanInterval is the cold polling period that picks up entries a
	// notification never arrived for. Zero disables re-scanning.
	RescanInterval time.Duration
}

const (
	defaultExtension      = ".jsonl"
	defaultBatchLimit     = 10
	defaultBufferCapacity = 1000
)

// Manager is the tail-and-broadcast engine: it consumes change notifications,
// reads newly appended lines from each changed file, and fans the parsed
// entries out to live subscribers.
type Manager struct {
	opts        Options
	source      EventSource
	tracker     *Tracker
	broadcaster *Broadcaster
	logger      *zap.Logger
}

// NewManager wires a manager over the given event source.
func NewManager(opts Options, source EventSource, logger *zap.Logger) *Manager {
	if opts.Extension == "" {
		opts.Extension = defaultExtension
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = defaultBatchLimit
	}
	if opts.BufferCapacity <= 0 {
		opts.BufferCapacity = defaultBufferCapacity
	}

	return &Manager{
		opts:        opts,
		source:      source,
		tracker:     NewTracker(logger),
		broadcaster: NewBroadcaster(opts.BufferCapacity, logger),
		logger:      logger,
	}
}

// Subscribe registers a live consumer for broadcast events.
func (m *Manager) Subscribe() *Subscription {
	return m.broadcaster.Subscribe()
}

// Tracker exposes the position tracker for read-only consumers.
func (m *Manager) Tracker() *Tracker {
	return m.tracker
}

// SubscriberCount reports the number of live subscriptions.
func (m *Manager) SubscriberCount() int {
	return m.broadcaster.SubscriberCount()
}

// Start runs the dispatch loop and the cold re-scan loop until ctx is
// cancelled or the event source closes.
func (m *Manager) Start(ctx context.Context) {
	if m.opts.RescanInterval > 0 {
		go m.rescanLoop(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case paths, ok := <-m.source.Events():
			if !ok {
				return
			}
			m.Dispatch(paths)
		}
	}
}

// Dispatch processes one batch of changed paths. A failure for one path never
// affects the others.
func (m *Manager) Dispatch(paths []string) {
	for _, path := range paths {
		if !strings.HasSuffix(path, m.opts.Extension) {
			continue
		}
		m.processFile(path)
	}
}

// processFile reads everything appended to path past its tracked offset and
// publishes up to the batch limit of entries. The offset only ever advances to
// the end of the last entry actually emitted, so entries beyond the cap (or
// published to nobody) are picked up again by a later notification or re-scan.
func (m *Manager) processFile(path string) {
	id := streamIDForPath(path)

	pos := m.tracker.Acquire(id)
	defer pos.Release()

	entries := ReadNewEntries(path, pos.Offset(), m.logger)
	if len(entries) == 0 {
		return
	}

	last := pos.Offset()
	emitted := 0
	for _, e := range entries {
		if emitted >= m.opts.BatchLimit {
			break
		}

		entry := e.Entry
		ev := models.WatchEvent{
			Type:      models.EventTypeLogEntry,
			Project:   id.Project,
			Session:   id.Session,
			Entry:     &entry,
			Timestamp: time.Now().UTC(),
		}
		if m.broadcaster.Publish(ev) == 0 {
			break
		}

		emitted++
		last = e.EndOffset
	}

	if emitted > 0 {
		m.logger.Debug("Published new entries",
			zap.String("stream", id.String()),
			zap.Int("count", emitted),
			zap.Int64("offset", last))
	}

	modTime := time.Now()
	if info, err := os.Stat(path); err == nil {
		modTime = info.ModTime()
	}
	pos.Advance(last, modTime)
}

// rescanLoop periodically sweeps the tree for files that have grown past
// their tracked offset. It covers the gap left when a burst larger than the
// batch limit is never followed by another notification, and any notification
// the watcher missed outright.
func (m *Manager) rescanLoop(ctx context.Context) {
	ticker := time.NewTicker(m.opts.RescanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.rescan()
		}
	}
}

func (m *Manager) rescan() {
	err := filepath.WalkDir(m.opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(path, m.opts.Extension) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > m.tracker.Offset(streamIDForPath(path)) {
			m.processFile(path)
		}
		return nil
	})
	if err != nil {
		m.logger.Warn("Re-scan failed", zap.Error(err))
	}
}

// streamIDForPath derives the stream identity from a file path: the parent
// directory is the project, the file stem is the session.
func streamIDForPath(path string) StreamID {
	base := filepath.Base(path)
	return StreamID{
		Project: filepath.Base(filepath.Dir(path)),
		Session: strings.TrimSuffix(base, filepath.Ext(base)),
	}
}
