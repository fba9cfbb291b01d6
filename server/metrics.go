package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 协议服务的监控指标
type Metrics struct {
	commands    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	events      *prometheus.CounterVec
	liveHandles prometheus.Gauge
}

// NewMetrics 在reg上注册指标，reg为nil时不注册，只在进程内计数
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "midas_dap",
			Name:      "commands_total",
			Help:      "Commands handled, by command and outcome.",
		}, []string{"command", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "midas_dap",
			Name:      "command_duration_seconds",
			Help:      "Time spent executing a command on the control thread.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"command"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "midas_dap",
			Name:      "events_total",
			Help:      "Events sent to the client.",
		}, []string{"event"}),
		liveHandles: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "midas_dap",
			Name:      "live_handles",
			Help:      "Variable references currently resolvable.",
		}),
	}
}

func (m *Metrics) observeCommand(command string, status string, start time.Time) {
	m.commands.WithLabelValues(command, status).Inc()
	m.duration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeEvent(event string) {
	m.events.WithLabelValues(event).Inc()
}

func (m *Metrics) setLiveHandles(n int) {
	m.liveHandles.Set(float64(n))
}
