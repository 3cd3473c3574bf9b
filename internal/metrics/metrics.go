package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dadmind_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dadmind_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5, 30},
		},
		[]string{"method", "route"},
	)

	// Chat metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dadmind_chat_sessions_created_total",
			Help: "Total chat sessions created",
		},
	)

	SessionsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dadmind_chat_sessions_deleted_total",
			Help: "Total chat sessions deleted",
		},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dadmind_messages_sent_total",
			Help: "Total user messages sent",
		},
		[]string{"channel"}, // "assistant" or "expert"
	)

	StreamFragments = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dadmind_stream_fragments_total",
			Help: "Total completion fragments received",
		},
	)

	StreamFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dadmind_stream_failures_total",
			Help: "Total failed assistant replies",
		},
		[]string{"stage"}, // "open", "recv" or "cancelled"
	)

	StreamDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dadmind_stream_duration_seconds",
			Help:    "Time from send to final assistant fragment",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 30, 60},
		},
	)

	// Feature metrics
	DocumentsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dadmind_documents_ingested_total",
			Help: "Total uploaded documents",
		},
		[]string{"result"}, // "ok", "truncated" or "rejected"
	)

	QuizSubmissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dadmind_quiz_submissions_total",
			Help: "Total completed assessments",
		},
	)

	// Infrastructure metrics
	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dadmind_storage_errors_total",
			Help: "Session persistence failures",
		},
		[]string{"op"}, // "persist" or "restore"
	)
)
