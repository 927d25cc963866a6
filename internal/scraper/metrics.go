package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FetchRetries counts retried fetch attempts, i.e. attempts after the first.
var FetchRetries = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "legisearch",
		Subsystem: "scraper",
		Name:      "fetch_retries_total",
		Help:      "Fetch attempts beyond the first, per URL attempt",
	},
)
