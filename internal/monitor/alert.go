package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Op string

const (
	OpGT Op = "gt"
	OpLT Op = "lt"
	OpEQ Op = "eq"
)

const (
	evalInterval  = 5 * time.Second
	meanWindow    = time.Minute
	escalateAfter = 5 * time.Minute
)

// Alert is a registered threshold rule plus its live state. Rules fire
// on the mean of the matching samples over the last minute.
type Alert struct {
	ID        string
	Metric    string
	Threshold float64
	Op        Op
	Tags      map[string]string

	Triggered    bool
	TriggeredAt  time.Time
	TriggerCount int
	Escalation   int
	LastMean     float64

	ackedAt time.Time
}

type NotificationKind string

const (
	NotifyTriggered NotificationKind = "triggered"
	NotifyEscalated NotificationKind = "escalated"
	NotifyResolved  NotificationKind = "resolved"
)

// Notification is one alert state change handed to delivery channels.
type Notification struct {
	Kind  NotificationKind
	Alert Alert
	Mean  float64
	At    time.Time
}

// Channel delivers alert notifications. Deliveries run outside the
// core lock and may block on I/O.
type Channel interface {
	Deliver(n Notification)
}

// RegisterAlert adds a rule and returns its id.
func (c *Core) RegisterAlert(metric string, threshold float64, op Op, tags map[string]string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := &Alert{
		ID:        uuid.NewString(),
		Metric:    metric,
		Threshold: threshold,
		Op:        op,
		Tags:      tags,
	}
	c.alerts = append(c.alerts, a)
	return a.ID
}

// AddChannel registers a delivery channel for subsequent state changes.
func (c *Core) AddChannel(ch Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels = append(c.channels, ch)
}

// Alerts returns a snapshot of every rule's current state.
func (c *Core) Alerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Alert, 0, len(c.alerts))
	for _, a := range c.alerts {
		out = append(out, *a)
	}
	return out
}

// Acknowledge resets an alert's escalation. The trigger count and the
// triggered state are untouched; escalation climbs again from the
// acknowledgement time if the alert stays triggered.
func (c *Core) Acknowledge(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.alerts {
		if a.ID == id {
			a.Escalation = 0
			a.ackedAt = c.now()
			return true
		}
	}
	return false
}

// EvaluateAlerts runs every rule against the 1-minute mean ending at
// now and notifies channels of state changes.
func (c *Core) EvaluateAlerts(now time.Time) {
	c.mu.Lock()
	window := TimeRange{From: now.Add(-meanWindow), To: now}
	var pending []Notification

	for _, a := range c.alerts {
		sum, n := 0.0, 0
		c.metrics.each(func(m Metric) {
			if m.Name == a.Metric && window.contains(m.At) && tagsMatch(a.Tags, m.Tags) {
				sum += m.Value
				n++
			}
		})

		triggered := false
		if n > 0 {
			a.LastMean = sum / float64(n)
			triggered = compare(a.LastMean, a.Threshold, a.Op)
		}

		switch {
		case triggered && !a.Triggered:
			a.Triggered = true
			a.TriggeredAt = now
			a.TriggerCount++
			a.Escalation = 0
			a.ackedAt = time.Time{}
			pending = append(pending, Notification{Kind: NotifyTriggered, Alert: *a, Mean: a.LastMean, At: now})
		case triggered && a.Triggered:
			base := a.TriggeredAt
			if a.ackedAt.After(base) {
				base = a.ackedAt
			}
			if esc := int(now.Sub(base) / escalateAfter); esc > a.Escalation {
				a.Escalation = esc
				pending = append(pending, Notification{Kind: NotifyEscalated, Alert: *a, Mean: a.LastMean, At: now})
			}
		case !triggered && a.Triggered:
			a.Triggered = false
			a.Escalation = 0
			pending = append(pending, Notification{Kind: NotifyResolved, Alert: *a, Mean: a.LastMean, At: now})
		}
	}
	channels := c.channels
	c.mu.Unlock()

	for _, n := range pending {
		for _, ch := range channels {
			ch.Deliver(n)
		}
	}
}

// Start evaluates alerts every 5 seconds until the context ends.
func (c *Core) Start(ctx context.Context) {
	ticker := time.NewTicker(evalInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			c.EvaluateAlerts(t)
		}
	}
}

func compare(mean, threshold float64, op Op) bool {
	switch op {
	case OpGT:
		return mean > threshold
	case OpLT:
		return mean < threshold
	case OpEQ:
		return mean == threshold
	}
	return false
}

// ConsoleChannel logs notifications through zap.
type ConsoleChannel struct {
	Log *zap.Logger
}

func (c ConsoleChannel) Deliver(n Notification) {
	c.Log.Warn("alert "+string(n.Kind),
		zap.String("metric", n.Alert.Metric),
		zap.String("op", string(n.Alert.Op)),
		zap.Float64("threshold", n.Alert.Threshold),
		zap.Float64("mean", n.Mean),
		zap.Int("escalation", n.Alert.Escalation),
	)
}

// WebhookChannel POSTs notifications as JSON.
type WebhookChannel struct {
	URL    string
	Client *http.Client
	Log    *zap.Logger
}

func (c WebhookChannel) Deliver(n Notification) {
	body, err := json.Marshal(struct {
		Kind       string  `json:"kind"`
		Metric     string  `json:"metric"`
		Op         string  `json:"op"`
		Threshold  float64 `json:"threshold"`
		Mean       float64 `json:"mean"`
		Escalation int     `json:"escalation"`
		At         string  `json:"at"`
	}{
		Kind:       string(n.Kind),
		Metric:     n.Alert.Metric,
		Op:         string(n.Alert.Op),
		Threshold:  n.Alert.Threshold,
		Mean:       n.Mean,
		Escalation: n.Alert.Escalation,
		At:         n.At.UTC().Format(time.RFC3339),
	})
	if err != nil {
		c.Log.Error("webhook marshal failed", zap.Error(err))
		return
	}

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	resp, err := client.Post(c.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		c.Log.Error("webhook delivery failed", zap.String("url", c.URL), zap.Error(err))
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		c.Log.Warn("webhook rejected", zap.String("url", c.URL), zap.Int("status", resp.StatusCode))
	}
}
