package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/mmo-region/internal/world"
)

// WorldMetrics Prometheus-метрики тиков мира. Реализует world.Observer.
type WorldMetrics struct {
	tickDuration     prometheus.Histogram
	ticks            prometheus.Counter
	entities         prometheus.Gauge
	clients          prometheus.Gauge
	packetsCommitted prometheus.Counter
	bytesCommitted   prometheus.Counter
	disconnects      *prometheus.CounterVec
}

// NewWorldMetrics создаёт метрики и регистрирует их в reg
func NewWorldMetrics(reg prometheus.Registerer) *WorldMetrics {
	m := &WorldMetrics{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "world",
			Name:      "tick_duration_seconds",
			Help:      "Длительность одного тика мира.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world",
			Name:      "ticks_total",
			Help:      "Общее число тиков.",
		}),
		entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "entities",
			Help:      "Сущностей в мире.",
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "clients",
			Help:      "Клиентов в мире.",
		}),
		packetsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world",
			Name:      "region_packets_total",
			Help:      "Пакетов изменений регионов, разосланных подписчикам.",
		}),
		bytesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world",
			Name:      "region_bytes_total",
			Help:      "Байт в пакетах изменений регионов.",
		}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "world",
			Name:      "disconnects_total",
			Help:      "Отключения клиентов миром по причинам.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.tickDuration, m.ticks, m.entities, m.clients,
		m.packetsCommitted, m.bytesCommitted, m.disconnects)
	return m
}

func (m *WorldMetrics) TickCompleted(duration time.Duration, stats world.Stats) {
	m.tickDuration.Observe(duration.Seconds())
	m.ticks.Inc()
	m.entities.Set(float64(stats.Entities))
	m.clients.Set(float64(stats.Clients))
	m.packetsCommitted.Add(float64(stats.PacketsCommitted))
	m.bytesCommitted.Add(float64(stats.BytesCommitted))
}

// ClientDisconnected причины с координатами сводятся к одной метке,
// иначе кардинальность метрики не ограничена
func (m *WorldMetrics) ClientDisconnected(reason string) {
	m.disconnects.WithLabelValues(reasonLabel(reason)).Inc()
}

func reasonLabel(reason string) string {
	switch reason {
	case "lagging", "teleporting", "kicked", "failed to join":
		return reason
	}
	if strings.HasPrefix(reason, "outside map") {
		return "outside map"
	}
	return "other"
}
