package watch

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTracker_UnseenStreamIsZero(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	assert.Equal(t, int64(0), tr.Offset(StreamID{Project: "p", Session: "s"}))
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_AcquireAdvanceRelease(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	id := StreamID{Project: "p", Session: "s"}

	pos := tr.Acquire(id)
	assert.Equal(t, int64(0), pos.Offset())
	pos.Advance(42, time.Now())
	pos.Release()

	assert.Equal(t, int64(42), tr.Offset(id))
	assert.Equal(t, 1, tr.Len())
}

func TestTracker_RegressionIsStoredNotRejected(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	id := StreamID{Project: "p", Session: "s"}

	pos := tr.Acquire(id)
	pos.Advance(100, time.Now())
	pos.Advance(50, time.Now())
	pos.Release()

	assert.Equal(t, int64(50), tr.Offset(id))
}

func TestTracker_DistinctStreamsAreIndependent(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	a := StreamID{Project: "p1", Session: "s"}
	b := StreamID{Project: "p2", Session: "s"}

	pos := tr.Acquire(a)
	pos.Advance(10, time.Now())
	pos.Release()

	assert.Equal(t, int64(10), tr.Offset(a))
	assert.Equal(t, int64(0), tr.Offset(b))
	assert.Equal(t, 1, tr.Len())
}

func TestTracker_ConcurrentReadModifyWrite(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	id := StreamID{Project: "p", Session: "s"}

	// Each worker does increments of the tracked offset under the per-key
	// lock; no increment may observe a stale offset.
	const workers = 8
	const rounds = 200

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				pos := tr.Acquire(id)
				pos.Advance(pos.Offset()+1, time.Now())
				pos.Release()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(workers*rounds), tr.Offset(id))
}

func TestTracker_ConcurrentDistinctKeys(t *testing.T) {
	tr := NewTracker(zap.NewNop())

	const streams = 64
	var wg sync.WaitGroup
	for i := 0; i < streams; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := StreamID{Project: fmt.Sprintf("p%d", n), Session: "s"}
			pos := tr.Acquire(id)
			pos.Advance(int64(n), time.Now())
			pos.Release()
		}(i)
	}
	wg.Wait()

	require.Equal(t, streams, tr.Len())
	for i := 0; i < streams; i++ {
		id := StreamID{Project: fmt.Sprintf("p%d", i), Session: "s"}
		assert.Equal(t, int64(i), tr.Offset(id))
	}
}
