// Package monitor keeps the server's in-memory observability state:
// bounded metric and log rings queryable by the ops surface, an alert
// engine with pluggable delivery channels, and the Prometheus mirror.
package monitor

import (
	"sort"
	"sync"
	"time"
)

const (
	metricCap = 10000
	logCap    = 5000
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Metric is one recorded sample.
type Metric struct {
	Name  string
	Value float64
	Tags  map[string]string
	At    time.Time
}

// LogEntry is one recorded log line.
type LogEntry struct {
	Level   Level
	Message string
	Context map[string]string
	At      time.Time
}

// TimeRange bounds a query; zero endpoints are open.
type TimeRange struct {
	From, To time.Time
}

func (r TimeRange) contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// ring is a fixed-capacity overwrite-oldest buffer.
type ring[T any] struct {
	buf  []T
	head int
	size int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
}

func (r *ring[T]) each(fn func(T)) {
	for i := 0; i < r.size; i++ {
		fn(r.buf[(r.head+i)%len(r.buf)])
	}
}

// Core owns the rings and alert rules. Rooms record into it from their
// own goroutines and the ops endpoints read from it, so every method is
// safe for concurrent use.
type Core struct {
	mu      sync.Mutex
	metrics *ring[Metric]
	logs    *ring[LogEntry]
	now     func() time.Time

	alerts   []*Alert
	channels []Channel
}

func NewCore() *Core {
	return &Core{
		metrics: newRing[Metric](metricCap),
		logs:    newRing[LogEntry](logCap),
		now:     time.Now,
	}
}

// RecordMetric appends one sample, evicting the oldest at capacity.
func (c *Core) RecordMetric(name string, value float64, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.push(Metric{Name: name, Value: value, Tags: tags, At: c.now()})
}

// Log appends one entry, evicting the oldest at capacity.
func (c *Core) Log(level Level, message string, ctx map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs.push(LogEntry{Level: level, Message: message, Context: ctx, At: c.now()})
}

// GetMetrics returns retained samples in the range, oldest first. Empty
// name matches all; tags must be a subset of the sample's tags.
func (c *Core) GetMetrics(r TimeRange, name string, tags map[string]string) []Metric {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Metric
	c.metrics.each(func(m Metric) {
		if name != "" && m.Name != name {
			return
		}
		if !r.contains(m.At) || !tagsMatch(tags, m.Tags) {
			return
		}
		out = append(out, m)
	})
	return out
}

// GetLogs returns retained entries in the range, oldest first. Empty
// level matches all; a non-empty account matches the "account" context
// key.
func (c *Core) GetLogs(r TimeRange, level Level, account string) []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []LogEntry
	c.logs.each(func(e LogEntry) {
		if level != "" && e.Level != level {
			return
		}
		if account != "" && e.Context["account"] != account {
			return
		}
		if !r.contains(e.At) {
			return
		}
		out = append(out, e)
	})
	return out
}

// ErrorGroup is one aggregated error message.
type ErrorGroup struct {
	Message  string
	Count    int
	First    time.Time
	Last     time.Time
	Accounts []string
}

// AggregateErrors groups retained error-level entries by message with
// count, first and last occurrence, and the distinct accounts involved.
// Groups come back by descending count, then message.
func (c *Core) AggregateErrors(r TimeRange) []ErrorGroup {
	c.mu.Lock()
	defer c.mu.Unlock()

	type agg struct {
		group    ErrorGroup
		accounts map[string]struct{}
	}
	byMessage := make(map[string]*agg)
	c.logs.each(func(e LogEntry) {
		if e.Level != LevelError || !r.contains(e.At) {
			return
		}
		a, ok := byMessage[e.Message]
		if !ok {
			a = &agg{
				group:    ErrorGroup{Message: e.Message, First: e.At},
				accounts: make(map[string]struct{}),
			}
			byMessage[e.Message] = a
		}
		a.group.Count++
		a.group.Last = e.At
		if acct := e.Context["account"]; acct != "" {
			a.accounts[acct] = struct{}{}
		}
	})

	out := make([]ErrorGroup, 0, len(byMessage))
	for _, a := range byMessage {
		for acct := range a.accounts {
			a.group.Accounts = append(a.group.Accounts, acct)
		}
		sort.Strings(a.group.Accounts)
		out = append(out, a.group)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Message < out[j].Message
	})
	return out
}

// tagsMatch reports whether every wanted tag is present with the same
// value.
func tagsMatch(want, have map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}
