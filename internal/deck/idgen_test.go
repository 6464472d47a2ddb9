package deck

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextID_StartsAtClockMillis(t *testing.T) {
	g := NewIdentifierGenerator(fixedClock)
	assert.Equal(t, testNow.UnixMilli(), g.NextID())
}

func TestNextID_StrictlyIncreasingWithFrozenClock(t *testing.T) {
	g := NewIdentifierGenerator(fixedClock)
	prev := g.NextID()
	for i := 0; i < 10000; i++ {
		id := g.NextID()
		require.Greater(t, id, prev)
		prev = id
	}
	assert.Equal(t, testNow.UnixMilli()+10000, prev)
}

func TestNextID_ClockGoingBackwards(t *testing.T) {
	now := testNow
	g := NewIdentifierGenerator(func() time.Time { return now })
	first := g.NextID()
	now = now.Add(-time.Hour)
	assert.Equal(t, first+1, g.NextID())
}

func TestNextID_FollowsClockForward(t *testing.T) {
	now := testNow
	g := NewIdentifierGenerator(func() time.Time { return now })
	g.NextID()
	now = now.Add(time.Second)
	assert.Equal(t, now.UnixMilli(), g.NextID())
}

func TestNextID_ConcurrentUnique(t *testing.T) {
	g := NewIdentifierGenerator(fixedClock)
	const workers, perWorker = 8, 500

	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, g.NextID())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*perWorker)
}

func TestNextGUID_UniqueUUIDs(t *testing.T) {
	g := NewIdentifierGenerator(nil)
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		guid := g.NextGUID()
		_, err := uuid.Parse(guid)
		require.NoError(t, err)
		seen[guid] = struct{}{}
	}
	assert.Len(t, seen, 1000)
}
