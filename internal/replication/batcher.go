package replication

// UpdateKey identifies one pending entity delta.
type UpdateKey struct {
	Kind string
	ID   uint64
}

// Update is one merged per-entity delta inside a batched message.
type Update struct {
	Kind   string         `json:"kind"`
	ID     uint64         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Batcher collects per-entity field updates during ticks and releases them
// as one batched message per flush window. Re-queued fields for a pending
// key are merged, newer wins. High-priority events never pass through here;
// the room broadcasts those immediately.
// Single-goroutine access only (room loop).
type Batcher struct {
	pending map[UpdateKey]map[string]any
	order   []UpdateKey
}

func NewBatcher() *Batcher {
	return &Batcher{pending: make(map[UpdateKey]map[string]any)}
}

// Queue merges fields into the pending delta for (kind, id).
func (b *Batcher) Queue(kind string, id uint64, fields map[string]any) {
	k := UpdateKey{Kind: kind, ID: id}
	cur, ok := b.pending[k]
	if !ok {
		cur = make(map[string]any, len(fields))
		b.pending[k] = cur
		b.order = append(b.order, k)
	}
	for f, v := range fields {
		cur[f] = v
	}
}

// QueueField merges a single field update for (kind, id).
func (b *Batcher) QueueField(kind string, id uint64, field string, value any) {
	b.Queue(kind, id, map[string]any{field: value})
}

// Drop discards the pending delta for an entity that left the room before
// the flush.
func (b *Batcher) Drop(kind string, id uint64) {
	k := UpdateKey{Kind: kind, ID: id}
	if _, ok := b.pending[k]; !ok {
		return
	}
	delete(b.pending, k)
	for i, o := range b.order {
		if o == k {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Flush returns all pending updates in queue order and resets the batcher.
// Returns nil when nothing is pending.
func (b *Batcher) Flush() []Update {
	if len(b.pending) == 0 {
		return nil
	}
	out := make([]Update, 0, len(b.order))
	for _, k := range b.order {
		fields, ok := b.pending[k]
		if !ok {
			continue
		}
		out = append(out, Update{Kind: k.Kind, ID: k.ID, Fields: fields})
	}
	b.pending = make(map[UpdateKey]map[string]any)
	b.order = b.order[:0]
	return out
}

// Pending reports the number of entities with queued deltas.
func (b *Batcher) Pending() int {
	return len(b.pending)
}
