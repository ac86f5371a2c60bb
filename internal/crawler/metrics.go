package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalPagesFetched tracks listing pages successfully retrieved.
	TotalPagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "admissions_pages_fetched_total",
		Help: "The total number of listing pages successfully fetched.",
	})
	// TotalFetchErrors tracks fetch attempts that resulted in an error.
	TotalFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "admissions_fetch_errors_total",
		Help: "The total number of failed page fetch attempts.",
	})
	// TotalFetchRetries tracks page fetches that were retried after a failure.
	TotalFetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "admissions_fetch_retries_total",
		Help: "The total number of page fetch retries.",
	})
	// TotalPolicyDenials tracks fetches refused by the crawl policy.
	TotalPolicyDenials = promauto.NewCounter(prometheus.CounterOpts{
		Name: "admissions_policy_denials_total",
		Help: "The total number of fetches refused by the crawl policy.",
	})
)
