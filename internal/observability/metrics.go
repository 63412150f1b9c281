// Package observability exposes Prometheus metrics for HTTP traffic and domain activity.
package observability

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitclub",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fitclub",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	clubJoins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitclub",
		Subsystem: "clubs",
		Name:      "join_attempts_total",
		Help:      "Club join attempts by outcome (joined, already_member, full, not_found).",
	}, []string{"outcome"})

	equipmentSyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitclub",
		Subsystem: "equipment",
		Name:      "syncs_total",
		Help:      "Accepted telemetry uploads by scope (session or solo).",
	}, []string{"scope"})

	trailCompletions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitclub",
		Subsystem: "trails",
		Name:      "completions_total",
		Help:      "Trail sessions moved to completed.",
	})

	lastSync = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitclub",
		Subsystem: "equipment",
		Name:      "last_sync_timestamp_seconds",
		Help:      "Unix timestamp of the most recent accepted telemetry upload.",
	})
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration, clubJoins, equipmentSyncs, trailCompletions, lastSync)
}

// Middleware records request count and latency per route pattern (e.g. /api/clubs/:id),
// so ids in paths never explode label cardinality. Unmatched routes are labelled "unmatched".
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "/" && r.Path != "" {
			route = r.Path
		}

		httpRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// RecordClubJoin counts one join attempt with the given outcome.
func RecordClubJoin(outcome string) {
	clubJoins.WithLabelValues(outcome).Inc()
}

// RecordSync counts an accepted telemetry upload and moves the freshness gauge.
// scope is "session" when the upload fed a leaderboard and "solo" otherwise.
func RecordSync(scope string, at time.Time) {
	equipmentSyncs.WithLabelValues(scope).Inc()
	if !at.IsZero() {
		lastSync.Set(float64(at.Unix()))
	}
}

// RecordTrailCompletion counts one completed trail session.
func RecordTrailCompletion() {
	trailCompletions.Inc()
}
