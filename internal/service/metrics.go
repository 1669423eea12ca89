package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics of the service layer.
var (
	jobsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiobook_jobs_submitted_total",
		Help: "Total number of audio generation jobs accepted for processing.",
	})

	downloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiobook_downloads_total",
		Help: "Total number of completed narration downloads.",
	})

	booksUploadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiobook_books_uploaded_total",
		Help: "Total number of successfully uploaded books.",
	})

	jobCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiobook_job_cache_hits_total",
		Help: "Total number of terminal job record cache hits.",
	})

	jobCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiobook_job_cache_misses_total",
		Help: "Total number of terminal job record cache misses.",
	})
)
