package persist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const flushTimeout = 5 * time.Second

type cacheEntry struct {
	row *PlayerRow
	at  time.Time
}

// CachedPlayerStore wraps a PlayerStore with a short read cache and a
// write-behind queue. Saves land in the cache immediately and drain to the
// backing store in batches; a failed batch is re-queued unless a newer
// write for the same account arrived in the meantime.
type CachedPlayerStore struct {
	backing PlayerStore
	log     *zap.Logger

	ttl        time.Duration
	batchSize  int
	flushEvery time.Duration

	mu     sync.Mutex
	cache  map[string]cacheEntry
	queue  []*PlayerRow
	queued map[string]int // account id -> queue index

	kickCh chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
}

func NewCachedPlayerStore(backing PlayerStore, ttl time.Duration, batchSize int, flushEvery time.Duration, log *zap.Logger) *CachedPlayerStore {
	if ttl <= 0 {
		ttl = 100 * time.Millisecond
	}
	if batchSize <= 0 {
		batchSize = 75
	}
	if flushEvery <= 0 {
		flushEvery = time.Second
	}
	s := &CachedPlayerStore{
		backing:    backing,
		log:        log,
		ttl:        ttl,
		batchSize:  batchSize,
		flushEvery: flushEvery,
		cache:      make(map[string]cacheEntry),
		queued:     make(map[string]int),
		kickCh:     make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	go s.flusher()
	return s
}

func (s *CachedPlayerStore) GetPlayer(ctx context.Context, accountID string) (*PlayerRow, error) {
	s.mu.Lock()
	if e, ok := s.cache[accountID]; ok && time.Since(e.at) < s.ttl {
		row := e.row.Clone()
		s.mu.Unlock()
		return row, nil
	}
	s.mu.Unlock()

	row, err := s.backing.GetPlayer(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if row != nil {
		s.mu.Lock()
		// A queued write is newer than whatever the store returned.
		if i, ok := s.queued[accountID]; ok {
			row = s.queue[i].Clone()
		}
		s.cache[accountID] = cacheEntry{row: row.Clone(), at: time.Now()}
		s.mu.Unlock()
	}
	return row, nil
}

// CreatePlayer writes through synchronously: a new character must be
// durable before the welcome goes out.
func (s *CachedPlayerStore) CreatePlayer(ctx context.Context, row *PlayerRow) error {
	if err := s.backing.CreatePlayer(ctx, row); err != nil {
		return err
	}
	s.mu.Lock()
	s.cache[row.AccountID] = cacheEntry{row: row.Clone(), at: time.Now()}
	s.mu.Unlock()
	return nil
}

// SavePlayer queues the row for the next batch flush. Newer saves for the
// same account replace the queued one.
func (s *CachedPlayerStore) SavePlayer(_ context.Context, row *PlayerRow) error {
	row.Clamp()
	cp := row.Clone()

	s.mu.Lock()
	s.cache[cp.AccountID] = cacheEntry{row: cp.Clone(), at: time.Now()}
	if i, ok := s.queued[cp.AccountID]; ok {
		s.queue[i] = cp
	} else {
		s.queued[cp.AccountID] = len(s.queue)
		s.queue = append(s.queue, cp)
	}
	full := len(s.queue) >= s.batchSize
	s.mu.Unlock()

	if full {
		select {
		case s.kickCh <- struct{}{}:
		default:
		}
	}
	return nil
}

func (s *CachedPlayerStore) SavePlayers(ctx context.Context, rows []*PlayerRow) error {
	for _, row := range rows {
		if err := s.SavePlayer(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (s *CachedPlayerStore) PlayerNameExists(ctx context.Context, name string) (bool, error) {
	return s.backing.PlayerNameExists(ctx, name)
}

func (s *CachedPlayerStore) ListCharacters(ctx context.Context, accountID string) ([]CharacterSummary, error) {
	return s.backing.ListCharacters(ctx, accountID)
}

func (s *CachedPlayerStore) CountCharacters(ctx context.Context, accountID string) (int, error) {
	return s.backing.CountCharacters(ctx, accountID)
}

// Pending returns the current write-behind queue depth.
func (s *CachedPlayerStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// FlushNow drains the whole queue synchronously.
func (s *CachedPlayerStore) FlushNow(ctx context.Context) error {
	for {
		n, err := s.flushBatch(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// Close stops the flusher and drains outstanding writes.
func (s *CachedPlayerStore) Close() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *CachedPlayerStore) flusher() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.flushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			if err := s.FlushNow(ctx); err != nil {
				s.log.Error("final player flush failed", zap.Error(err))
			}
			cancel()
			return
		case <-ticker.C:
		case <-s.kickCh:
		}
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		if _, err := s.flushBatch(ctx); err != nil {
			s.log.Error("player flush failed", zap.Error(err))
		}
		cancel()
	}
}

// flushBatch takes up to batchSize rows off the queue and writes them. On
// failure the rows are put back unless a newer write superseded them.
func (s *CachedPlayerStore) flushBatch(ctx context.Context) (int, error) {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	n := len(s.queue)
	if n > s.batchSize {
		n = s.batchSize
	}
	batch := s.queue[:n]
	s.queue = append([]*PlayerRow(nil), s.queue[n:]...)
	s.queued = make(map[string]int, len(s.queue))
	for i, row := range s.queue {
		s.queued[row.AccountID] = i
	}
	s.mu.Unlock()

	if err := s.backing.SavePlayers(ctx, batch); err != nil {
		s.requeue(batch)
		return 0, err
	}
	return n, nil
}

func (s *CachedPlayerStore) requeue(batch []*PlayerRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range batch {
		if _, ok := s.queued[row.AccountID]; ok {
			continue
		}
		s.queued[row.AccountID] = len(s.queue)
		s.queue = append(s.queue, row)
	}
}
