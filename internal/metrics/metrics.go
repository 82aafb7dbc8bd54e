package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	seatAssignsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quartermaster_seat_assigns_total",
		Help: "Total number of successful seat assignments",
	})
	seatReleasesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quartermaster_seat_releases_total",
		Help: "Total number of successful seat releases",
	})
	seatCapacityRejectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quartermaster_seat_capacity_rejections_total",
		Help: "Total number of assignments rejected because no seats were available",
	})
	seatVersionConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quartermaster_seat_version_conflicts_total",
		Help: "Total number of optimistic-concurrency conflicts that triggered a retry",
	})
	seatContentionFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quartermaster_seat_contention_failures_total",
		Help: "Total number of operations that exhausted their retry budget",
	})
	auditFeedRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quartermaster_audit_feed_requests_total",
		Help: "Total number of audit feed queries served",
	})
	auditFeedNotModifiedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quartermaster_audit_feed_not_modified_total",
		Help: "Total number of audit feed queries answered with a conditional not-modified",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(
		seatAssignsTotal,
		seatReleasesTotal,
		seatCapacityRejectionsTotal,
		seatVersionConflictsTotal,
		seatContentionFailuresTotal,
		auditFeedRequestsTotal,
		auditFeedNotModifiedTotal,
	)
}

// IncSeatAssign increments the successful assignment counter.
func IncSeatAssign() { seatAssignsTotal.Inc() }

// IncSeatRelease increments the successful release counter.
func IncSeatRelease() { seatReleasesTotal.Inc() }

// IncCapacityRejection increments the no-seats-available rejection counter.
func IncCapacityRejection() { seatCapacityRejectionsTotal.Inc() }

// IncVersionConflict increments the optimistic-conflict retry counter.
func IncVersionConflict() { seatVersionConflictsTotal.Inc() }

// IncContentionFailure increments the retries-exhausted counter.
func IncContentionFailure() { seatContentionFailuresTotal.Inc() }

// IncAuditFeedRequest increments the audit feed query counter.
func IncAuditFeedRequest() { auditFeedRequestsTotal.Inc() }

// IncAuditFeedNotModified increments the audit feed 304 counter.
func IncAuditFeedNotModified() { auditFeedNotModifiedTotal.Inc() }
