// Package telemetry provides structured logging setup and Prometheus metrics for
// the search integrity core.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served by the side-channel HTTP server started by `server serve`:
//
//	GET http://<host>:<SRCH_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.
//
// # Metric Groups
//
//   - Audit write failures, purged entries and created partitions
//   - Search lifecycle transitions by edge and outcome
//   - Geometry validation outcomes and operation latency
//   - Background job failure streaks
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// Labels only ever carry values from closed sets (table names of governed tables,
// lifecycle statuses, retention policies, job names). Record identifiers never
// appear as label values.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Audit metrics.
//
// AuditWriteFailuresTotal is a CounterVec with labels {table, path}. path is
// "best_effort" for CRUD audit writes that were logged and swallowed, and
// "mandatory" for lifecycle writes whose failure rolled back the transition.
//
// Example PromQL queries:
//   - Swallowed audit failures:  increase(audit_write_failures_total{path="best_effort"}[1h])
//
// AuditEntriesPurgedTotal counts rows deleted by the retention purge, by policy.
//
// AuditPartitionsCreatedTotal counts monthly partitions created by maintenance.
var (
	AuditWriteFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Total number of failed audit log writes, by table and failure path.",
		},
		[]string{"table", "path"},
	)

	AuditEntriesPurgedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_entries_purged_total",
			Help: "Total number of audit log entries deleted by the retention purge, by retention policy.",
		},
		[]string{"policy"},
	)

	AuditPartitionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_partitions_created_total",
			Help: "Total number of monthly audit log partitions created.",
		},
	)
)

// SearchTransitionsTotal is a CounterVec with labels {from, to, result}. result
// is one of "ok", "invalid", "conflict" or "error".
//
// Example PromQL queries:
//   - Lost update rate:  rate(search_transitions_total{result="conflict"}[5m])
var SearchTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "search_transitions_total",
		Help: "Total number of search status transition attempts, by edge and result.",
	},
	[]string{"from", "to", "result"},
)

// Geometry metrics.
//
// GeometryValidationsTotal counts validations by result ("valid", "invalid", "timeout").
//
// GeometryOperationDuration is a HistogramVec with label {op} ("validate" or "transform").
var (
	GeometryValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geometry_validations_total",
			Help: "Total number of geometry validations, by result.",
		},
		[]string{"result"},
	)

	GeometryOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geometry_operation_duration_seconds",
			Help:    "Duration of geometry validate and transform operations.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"op"},
	)
)

// JobConsecutiveFailures is a GaugeVec with label {job} holding the current
// failure streak of each background job. It returns to 0 after a successful run.
//
// Example PromQL queries:
//   - Alert expression:  job_consecutive_failures >= 3
var JobConsecutiveFailures = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "job_consecutive_failures",
		Help: "Current number of consecutive failed runs, by background job.",
	},
	[]string{"job"},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool. It is sampled every 30 seconds by
// StartDBStatsCollector.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits when the database becomes unreachable or stop is closed.
func StartDBStatsCollector(db *sql.DB, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}

// ObserveGeometryOp records the latency of a geometry operation started at start.
func ObserveGeometryOp(op string, start time.Time) {
	GeometryOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
