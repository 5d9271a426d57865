package server

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/yoppeh/nvhttpd/cache"
	"github.com/yoppeh/nvhttpd/request"
)

const namespace = "nvhttpd"

type metrics struct {
	registry *prometheus.Registry

	connections       prometheus.Counter
	active            prometheus.Gauge
	handshakeFailures prometheus.Counter
	responses         *prometheus.CounterVec
	parseFailures     *prometheus.CounterVec
	bytesSent         prometheus.Counter
	reloads           *prometheus.CounterVec
}

// newMetrics registers the server's collectors on a registry of its own,
// so several servers can live in one process
func newMetrics(c *cache.Cache) *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	m := &metrics{
		registry: reg,
		connections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of accepted connections",
		}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of connections being served",
		}),
		handshakeFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tls",
			Name:      "handshake_failures_total",
			Help:      "Total number of failed TLS handshakes",
		}),
		responses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Total number of responses by status code",
		}, []string{"status"}),
		parseFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "request",
			Name:      "parse_failures_total",
			Help:      "Total number of requests that failed to parse, by kind",
		}, []string{"kind"}),
		bytesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sent_bytes_total",
			Help:      "Total number of response bytes written",
		}),
		reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "reloads_total",
			Help:      "Total number of cache reloads by result",
		}, []string{"result"}),
	}

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "entries",
		Help:      "Number of files in the live cache generation",
	}, func() float64 { return float64(c.Current().Len()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "bytes",
		Help:      "Content size of the live cache generation",
	}, func() float64 { return float64(c.Current().Size()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "generation",
		Help:      "Id of the live cache generation",
	}, func() float64 {
		if g := c.Current(); g != nil {
			return float64(g.ID)
		}
		return 0
	})

	return m
}

func (m *metrics) response(s Status, written int) {
	m.responses.WithLabelValues(strconv.Itoa(int(s))).Inc()
	m.bytesSent.Add(float64(written))
}

func (m *metrics) parseFailure(k request.Kind) {
	m.parseFailures.WithLabelValues(k.String()).Inc()
}

func (m *metrics) reload(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reloads.WithLabelValues(result).Inc()
}
