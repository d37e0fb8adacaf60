package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flakyStore wraps a MemoryStore and fails batch saves on demand.
type flakyStore struct {
	*MemoryStore
	mu       sync.Mutex
	failSave bool
	gets     int
	saves    int
}

func (f *flakyStore) GetPlayer(ctx context.Context, accountID string) (*PlayerRow, error) {
	f.mu.Lock()
	f.gets++
	f.mu.Unlock()
	return f.MemoryStore.GetPlayer(ctx, accountID)
}

func (f *flakyStore) SavePlayers(ctx context.Context, rows []*PlayerRow) error {
	f.mu.Lock()
	fail := f.failSave
	f.saves++
	f.mu.Unlock()
	if fail {
		return errors.New("store down")
	}
	return f.MemoryStore.SavePlayers(ctx, rows)
}

func (f *flakyStore) setFail(v bool) {
	f.mu.Lock()
	f.failSave = v
	f.mu.Unlock()
}

func (f *flakyStore) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

// newIdleCache builds a cache whose ticker never fires during the test, so
// flushes only happen through FlushNow.
func newIdleCache(t *testing.T, backing PlayerStore, ttl time.Duration) *CachedPlayerStore {
	t.Helper()
	c := NewCachedPlayerStore(backing, ttl, 75, time.Hour, zap.NewNop())
	t.Cleanup(c.Close)
	return c
}

func TestCacheServesFreshReads(t *testing.T) {
	ctx := context.Background()
	backing := &flakyStore{MemoryStore: NewMemoryStore()}
	c := newIdleCache(t, backing, time.Minute)

	require.NoError(t, c.CreatePlayer(ctx, testRow("a1", "Rex")))
	before := backing.getCount()

	for i := 0; i < 5; i++ {
		got, err := c.GetPlayer(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, "Rex", got.Name)
	}
	require.Equal(t, before, backing.getCount(), "fresh cache entries must not hit the store")
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	backing := &flakyStore{MemoryStore: NewMemoryStore()}
	c := newIdleCache(t, backing, 10*time.Millisecond)

	require.NoError(t, c.CreatePlayer(ctx, testRow("a1", "Rex")))
	before := backing.getCount()

	time.Sleep(30 * time.Millisecond)
	_, err := c.GetPlayer(ctx, "a1")
	require.NoError(t, err)
	require.Greater(t, backing.getCount(), before, "expired entry must re-read the store")
}

func TestCacheWriteBehindMerge(t *testing.T) {
	ctx := context.Background()
	backing := &flakyStore{MemoryStore: NewMemoryStore()}
	c := newIdleCache(t, backing, time.Minute)

	require.NoError(t, c.CreatePlayer(ctx, testRow("a1", "Rex")))

	row := testRow("a1", "Rex")
	row.Credits = 100
	require.NoError(t, c.SavePlayer(ctx, row))
	row2 := testRow("a1", "Rex")
	row2.Credits = 200
	require.NoError(t, c.SavePlayer(ctx, row2))

	require.Equal(t, 1, c.Pending(), "saves for one account merge into one queued write")

	// The read cache already serves the newest write.
	got, err := c.GetPlayer(ctx, "a1")
	require.NoError(t, err)
	require.EqualValues(t, 200, got.Credits)

	// The backing store still has the created value until a flush.
	raw, err := backing.MemoryStore.GetPlayer(ctx, "a1")
	require.NoError(t, err)
	require.EqualValues(t, 50, raw.Credits)

	require.NoError(t, c.FlushNow(ctx))
	require.Equal(t, 0, c.Pending())
	raw, err = backing.MemoryStore.GetPlayer(ctx, "a1")
	require.NoError(t, err)
	require.EqualValues(t, 200, raw.Credits)
}

func TestCacheRequeuesFailedFlush(t *testing.T) {
	ctx := context.Background()
	backing := &flakyStore{MemoryStore: NewMemoryStore()}
	c := newIdleCache(t, backing, time.Minute)

	require.NoError(t, c.CreatePlayer(ctx, testRow("a1", "Rex")))
	row := testRow("a1", "Rex")
	row.Credits = 777
	require.NoError(t, c.SavePlayer(ctx, row))

	backing.setFail(true)
	require.Error(t, c.FlushNow(ctx))
	require.Equal(t, 1, c.Pending(), "failed batch must be re-queued")

	backing.setFail(false)
	require.NoError(t, c.FlushNow(ctx))
	require.Equal(t, 0, c.Pending())

	raw, err := backing.MemoryStore.GetPlayer(ctx, "a1")
	require.NoError(t, err)
	require.EqualValues(t, 777, raw.Credits)
}

func TestCacheBatchSizeKick(t *testing.T) {
	ctx := context.Background()
	backing := &flakyStore{MemoryStore: NewMemoryStore()}
	c := NewCachedPlayerStore(backing, time.Minute, 2, time.Hour, zap.NewNop())
	t.Cleanup(c.Close)

	require.NoError(t, c.CreatePlayer(ctx, testRow("a1", "Rex")))
	require.NoError(t, c.CreatePlayer(ctx, testRow("a2", "Nova")))

	require.NoError(t, c.SavePlayer(ctx, testRow("a1", "Rex")))
	require.NoError(t, c.SavePlayer(ctx, testRow("a2", "Nova")))

	// Hitting the batch size kicks an async flush without the ticker.
	require.Eventually(t, func() bool { return c.Pending() == 0 },
		2*time.Second, 10*time.Millisecond, "full batch should flush on its own")
}

func TestCacheCloseDrains(t *testing.T) {
	ctx := context.Background()
	backing := &flakyStore{MemoryStore: NewMemoryStore()}
	c := NewCachedPlayerStore(backing, time.Minute, 75, time.Hour, zap.NewNop())

	require.NoError(t, c.CreatePlayer(ctx, testRow("a1", "Rex")))
	row := testRow("a1", "Rex")
	row.Level = 9
	require.NoError(t, c.SavePlayer(ctx, row))

	c.Close()

	raw, err := backing.MemoryStore.GetPlayer(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, 9, raw.Level)
}
