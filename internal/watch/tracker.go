package watch

import (
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StreamID identifies one tailed log file: the project directory name and the
// session file stem.
type StreamID struct {
	Project string
	Session string
}

func (id StreamID) String() string {
	return id.Project + ":" + id.Session
}

const trackerShards = 32

// Tracker records, per stream, the byte offset already processed and the last
// observed modification time. It is the single source of truth for how much of
// a file has been consumed. Streams are striped across shards so that updates
// for unrelated files never contend on one lock, and each stream carries its
// own mutex so a read-process-advance cycle is atomic per key.
type Tracker struct {
	shards [trackerShards]trackerShard
	logger *zap.Logger
}

type trackerShard struct {
	mu      sync.Mutex
	streams map[StreamID]*StreamPosition
}

// StreamPosition is the tracked state for a single stream. It is returned by
// Acquire with its lock held; callers must Release it when done.
type StreamPosition struct {
	mu      sync.Mutex
	id      StreamID
	offset  int64
	modTime time.Time
	logger  *zap.Logger
}

// NewTracker creates an empty position tracker.
func NewTracker(logger *zap.Logger) *Tracker {
	t := &Tracker{logger: logger}
	for i := range t.shards {
		t.shards[i].streams = make(map[StreamID]*StreamPosition)
	}
	return t
}

func (t *Tracker) shard(id StreamID) *trackerShard {
	h := fnv.New32a()
	h.Write([]byte(id.Project))
	h.Write([]byte{0})
	h.Write([]byte(id.Session))
	return &t.shards[h.Sum32()%trackerShards]
}

// Acquire returns the position state for id, creating it on first sight, with
// the per-stream lock held. The shard lock is only held for the map lookup, so
// slow file processing for one stream does not block others.
func (t *Tracker) Acquire(id StreamID) *StreamPosition {
	s := t.shard(id)
	s.mu.Lock()
	pos, ok := s.streams[id]
	if !ok {
		pos = &StreamPosition{id: id, logger: t.logger}
		s.streams[id] = pos
	}
	s.mu.Unlock()

	pos.mu.Lock()
	return pos
}

// Offset returns the tracked offset for id without holding it, or 0 if the
// stream has never been seen. Intended for read-only consumers.
func (t *Tracker) Offset(id StreamID) int64 {
	s := t.shard(id)
	s.mu.Lock()
	pos, ok := s.streams[id]
	s.mu.Unlock()
	if !ok {
		return 0
	}

	pos.mu.Lock()
	defer pos.mu.Unlock()
	return pos.offset
}

// Len returns the number of streams ever observed.
func (t *Tracker) Len() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		n += len(s.streams)
		s.mu.Unlock()
	}
	return n
}

// Offset returns the last processed byte offset for the held stream.
func (p *StreamPosition) Offset() int64 {
	return p.offset
}

// ModTime returns the last observed modification time for the held stream.
func (p *StreamPosition) ModTime() time.Time {
	return p.modTime
}

// Advance records the new offset and modification time. Offsets are expected
// to be monotonically non-decreasing; a regression is stored anyway but logged,
// since it usually means the file was truncated or rewritten underneath us.
func (p *StreamPosition) Advance(offset int64, modTime time.Time) {
	if offset < p.offset {
		p.logger.Warn("Tracked offset moved backwards",
			zap.String("stream", p.id.String()),
			zap.Int64("from", p.offset),
			zap.Int64("to", offset))
	}
	p.offset = offset
	p.modTime = modTime
}

// Release unlocks the stream acquired by Acquire.
func (p *StreamPosition) Release() {
	p.mu.Unlock()
}
