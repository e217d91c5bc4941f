package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/2389-research/cc-log-viewer/pkg/retry"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// EventSource delivers batches of filesystem paths that were created or
// modified under the watched root. Delivery is at-least-once with no ordering
// guarantee across paths; rapid successive writes may arrive coalesced. The
// interface exists so the manager can be driven by a stub in tests instead of
// a real watcher.
type EventSource interface {
	Events() <-chan []string
	Close() error
}

// FSEventSource implements EventSource on top of fsnotify. fsnotify watches
// are not recursive, so the root and every directory below it are registered
// individually and directories created later are added as they appear.
type FSEventSource struct {
	watcher *fsnotify.Watcher
	events  chan []string
	cancel  context.CancelFunc
	logger  *zap.Logger
}

// NewFSEventSource starts watching root recursively. A missing root is the one
// fatal startup condition: the source refuses to start rather than watch
// nothing.
func NewFSEventSource(root string, logger *zap.Logger) (*FSEventSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("projects directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("projects directory %s is not a directory", root)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &FSEventSource{
		watcher: watcher,
		events:  make(chan []string, 64),
		cancel:  cancel,
		logger:  logger,
	}

	if err := s.watchTree(ctx, root); err != nil {
		watcher.Close()
		cancel()
		return nil, err
	}

	go s.run(ctx)

	logger.Info("Watching projects directory", zap.String("root", root))
	return s, nil
}

// Events returns the notification channel. It is closed when the source shuts
// down.
func (s *FSEventSource) Events() <-chan []string {
	return s.events
}

// Close stops the watcher and closes the notification channel.
func (s *FSEventSource) Close() error {
	s.cancel()
	return s.watcher.Close()
}

// watchTree registers root and every directory beneath it.
func (s *FSEventSource) watchTree(ctx context.Context, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("Skipping unreadable path during watch setup",
				zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return s.addWatch(ctx, path)
	})
}

// addWatch registers one directory, retrying with backoff: a watch added in
// response to a create notification can race the directory becoming visible.
func (s *FSEventSource) addWatch(ctx context.Context, dir string) error {
	policy := retry.Policy{
		Attempts: 4,
		Base:     50 * time.Millisecond,
		Cap:      time.Second,
		Factor:   2.0,
	}
	return retry.Do(ctx, policy, func() error {
		return s.watcher.Add(dir)
	})
}

func (s *FSEventSource) run(ctx context.Context) {
	defer close(s.events)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}

			// A new project directory needs its own watch before the files
			// inside it can be seen.
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := s.addWatch(ctx, ev.Name); err != nil {
						s.logger.Warn("Failed to watch new directory",
							zap.String("dir", ev.Name), zap.Error(err))
					}
					continue
				}
			}

			select {
			case s.events <- []string{ev.Name}:
			case <-ctx.Done():
				return
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}
