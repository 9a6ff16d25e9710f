package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicectl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"instrument", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "voicectl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"instrument", "method", "path", "status"},
	)
	datagramsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicectl",
			Subsystem: "wire",
			Name:      "datagrams_received_total",
			Help:      "Datagrams read from the unicast socket.",
		},
		[]string{"instrument"},
	)
	datagramsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicectl",
			Subsystem: "wire",
			Name:      "datagrams_dropped_total",
			Help:      "Datagrams discarded before or during dispatch.",
		},
		[]string{"instrument", "reason"},
	)
	notesPlayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicectl",
			Subsystem: "voice",
			Name:      "notes_total",
			Help:      "Notes routed to a voice board.",
		},
		[]string{"instrument", "board"},
	)
	announces = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicectl",
			Subsystem: "handshake",
			Name:      "announces_total",
			Help:      "Registration broadcasts sent.",
		},
		[]string{"instrument"},
	)
	handshakeState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "voicectl",
			Subsystem: "handshake",
			Name:      "state",
			Help:      "Current handshake state (0 idle, 1 announcing, 2 awaiting ack, 3 registered, 4 failed).",
		},
		[]string{"instrument"},
	)
)

// Drop reasons used as label values.
const (
	DropMalformed = "malformed"
	DropRouting   = "routing"
	DropHandler   = "handler"
	DropTransport = "transport"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			datagramsReceived,
			datagramsDropped,
			notesPlayed,
			announces,
			handshakeState,
		)
	})
}

func RecordHTTPRequest(instrument, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(instrument, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(instrument, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordDatagram(instrument string) {
	RegisterMetrics()
	datagramsReceived.WithLabelValues(instrument).Inc()
}

func RecordDrop(instrument, reason string) {
	RegisterMetrics()
	datagramsDropped.WithLabelValues(instrument, reason).Inc()
}

func RecordNote(instrument, board string) {
	RegisterMetrics()
	notesPlayed.WithLabelValues(instrument, board).Inc()
}

func RecordAnnounce(instrument string) {
	RegisterMetrics()
	announces.WithLabelValues(instrument).Inc()
}

func SetHandshakeState(instrument string, state int) {
	RegisterMetrics()
	handshakeState.WithLabelValues(instrument).Set(float64(state))
}
