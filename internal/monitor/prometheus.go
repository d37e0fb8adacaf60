package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus mirror of the hot counters. Label values are bounded (no
// per-account labels).
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nexus_tick_duration_seconds",
		Help:    "Time spent in one room tick",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.05, 0.1},
	})

	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nexus_clients_connected",
		Help: "Currently connected clients across rooms",
	})

	entityCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nexus_entities",
		Help: "Live entities by kind",
	}, []string{"kind"}) // bounded: player, enemy, projectile, loot, resource

	rejectedConnections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_connections_rejected_total",
		Help: "Connections closed during join",
	}, []string{"reason"}) // bounded: auth_invalid, auth_required, name_taken, capacity

	validationRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_validation_rejections_total",
		Help: "Actions rejected by the cheat validator",
	}, []string{"level"}) // bounded: low, medium, high, critical

	inboundMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexus_messages_in_total",
		Help: "Inbound client messages handled",
	})

	kicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexus_kicks_total",
		Help: "Sessions kicked by the server",
	})

	activeDungeons = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nexus_dungeons_active",
		Help: "Registered dungeon instances",
	})

	savesFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexus_saves_flushed_total",
		Help: "Player rows flushed by the write-behind store",
	})
)

func ObserveTick(d time.Duration) { tickDuration.Observe(d.Seconds()) }

func SetClients(n int) { connectedClients.Set(float64(n)) }

func SetEntities(kind string, n int) { entityCount.WithLabelValues(kind).Set(float64(n)) }

func RecordRejectedConn(reason string) { rejectedConnections.WithLabelValues(reason).Inc() }

func RecordValidation(level string) { validationRejections.WithLabelValues(level).Inc() }

func RecordInbound() { inboundMessages.Inc() }

func RecordKick() { kicksTotal.Inc() }

func SetActiveDungeons(n int) { activeDungeons.Set(float64(n)) }

func AddSavesFlushed(n int) { savesFlushed.Add(float64(n)) }
