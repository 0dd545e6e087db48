package siteimport

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	jobsStarted  *prometheus.CounterVec
	jobsFinished *prometheus.CounterVec
	records      *prometheus.CounterVec
	retries      *prometheus.CounterVec
	deletions    *prometheus.CounterVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		jobsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "site_import",
			Name:      "jobs_started_total",
			Help:      "Total number of admitted import jobs.",
		}, []string{"platform"}),
		jobsFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "site_import",
			Name:      "jobs_finished_total",
			Help:      "Total number of import jobs that reached a terminal status.",
		}, []string{"platform", "status"}),
		records: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "site_import",
			Name:      "records_total",
			Help:      "Source records processed by outcome.",
		}, []string{"outcome"}),
		retries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "site_import",
			Name:      "batch_retries_total",
			Help:      "Retried fetch and write attempts.",
		}, []string{"stage"}),
		deletions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "site_import",
			Name:      "deletions_total",
			Help:      "Import deletions by result.",
		}, []string{"result"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
