package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "salonbook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status.",
		},
		[]string{"endpoint", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	bookingDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_decisions_total",
			Help:      "Booking attempts by outcome.",
		},
		[]string{"outcome"},
	)

	bookingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "booking_decision_duration_seconds",
			Help:      "Time spent resolving a booking request.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	suggestionsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "suggestions_returned",
			Help:      "Number of alternative slots offered per conflict.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		},
	)

	intents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_intents_total",
			Help:      "Chat messages by extracted intent.",
		},
		[]string{"intent"},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_sync_tasks_total",
			Help:      "Spreadsheet sync tasks by type and result.",
		},
		[]string{"type", "result"},
	)

	botUpdates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "telegram_update_processing_seconds",
			Help:      "Time spent processing Telegram updates by kind.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, bookingDecisions,
			bookingDuration, suggestionsReturned, intents, syncTasks, botUpdates)
	})
}

// ObserveHTTP records one served request.
func ObserveHTTP(endpoint string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveBooking records the outcome of one booking decision.
func ObserveBooking(outcome string, suggestions int, elapsed time.Duration) {
	bookingDecisions.WithLabelValues(outcome).Inc()
	bookingDuration.Observe(elapsed.Seconds())
	if suggestions > 0 || outcome == "slot_full" || outcome == "outside_hours" || outcome == "blackout" {
		suggestionsReturned.Observe(float64(suggestions))
	}
}

// IncIntent counts an extracted intent; "none" marks replies without a payload.
func IncIntent(intent string) {
	if intent == "" {
		intent = "none"
	}
	intents.WithLabelValues(intent).Inc()
}

// IncSyncTask counts a processed spreadsheet sync task.
func IncSyncTask(taskType, result string) {
	syncTasks.WithLabelValues(taskType, result).Inc()
}

// ObserveBotUpdate records one processed Telegram update.
func ObserveBotUpdate(kind string, elapsed time.Duration) {
	botUpdates.WithLabelValues(kind).Observe(elapsed.Seconds())
}
