package smartlist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK    = "ok"
	resultError = "error"
	resultDrift = "drift"
)

var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engcrm_smartlist_refresh_total",
		Help: "Smart list refreshes by entity type and result",
	}, []string{"entity_type", "result"})

	refreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engcrm_smartlist_refresh_duration_seconds",
		Help:    "Time to recompute a smart list count",
		Buckets: prometheus.DefBuckets,
	}, []string{"entity_type", "result"})

	previewDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engcrm_smartlist_preview_duration_seconds",
		Help:    "Time to evaluate a smart list preview",
		Buckets: prometheus.DefBuckets,
	}, []string{"entity_type", "scope"})

	matchedEntities = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engcrm_smartlist_matched_entities",
		Help:    "Entities matched per evaluation",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"entity_type"})

	validationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engcrm_smartlist_validation_failures_total",
		Help: "Rejected filter clauses by error kind",
	}, []string{"kind"})
)

func recordValidationFailures(errs ValidationErrors) {
	for _, e := range errs {
		validationFailures.WithLabelValues(string(e.Kind)).Inc()
	}
}
