// Package metrics defines the Prometheus instrumentation for the ASR
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the ASR service.
type Metrics struct {
	// Connection metrics
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter

	// Protocol metrics
	EventsReceived prometheus.Counter
	AudioBytes     prometheus.Counter
	ProtocolErrors prometheus.Counter

	// Utterance metrics
	UtterancesTotal        prometheus.Counter
	TranscriptionsOK       prometheus.Counter
	TranscriptionsFailed   *prometheus.CounterVec
	TranscriptionDuration  prometheus.Histogram
	GuardWaitDuration      prometheus.Histogram
	UtteranceAudioDuration prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them with the given registerer.
// Tests pass a fresh registry; main passes the default one.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "asr_connections_active",
			Help: "Current number of connected client sessions",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "asr_connections_total",
			Help: "Total number of accepted client connections",
		}),
		EventsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "asr_events_received_total",
			Help: "Total number of protocol events received",
		}),
		AudioBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "asr_audio_bytes_total",
			Help: "Total number of PCM audio bytes received",
		}),
		ProtocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "asr_protocol_errors_total",
			Help: "Total number of protocol decoding errors",
		}),
		UtterancesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "asr_utterances_total",
			Help: "Total number of finalized utterances",
		}),
		TranscriptionsOK: factory.NewCounter(prometheus.CounterOpts{
			Name: "asr_transcriptions_success_total",
			Help: "Total number of successful transcriptions",
		}),
		TranscriptionsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "asr_transcriptions_failed_total",
			Help: "Total number of failed transcriptions by reason",
		}, []string{"reason"}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "asr_transcription_duration_seconds",
			Help:    "Wall time of recognition calls including guard wait",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		GuardWaitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "asr_guard_wait_seconds",
			Help:    "Time spent queued behind other sessions for a backend",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		UtteranceAudioDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "asr_utterance_audio_seconds",
			Help:    "Audio duration of finalized utterances",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "asr_http_requests_total",
			Help: "Total HTTP API requests by endpoint and status",
		}, []string{"endpoint", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "asr_http_request_duration_seconds",
			Help:    "HTTP API request duration by endpoint",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// Failure reasons for TranscriptionsFailed.
const (
	ReasonNoBackend  = "no_backend"
	ReasonRecognizer = "recognizer"
	ReasonTimeout    = "timeout"
	ReasonBadAudio   = "bad_audio"
)
