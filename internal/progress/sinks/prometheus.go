package sinks

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gradstats/admissions-crawler/internal/progress"
)

// Prometheus mirrors pipeline progress into counters so dashboards can track
// throughput without scraping logs.
type Prometheus struct {
	pagesFetched  prometheus.Counter
	recordsParsed prometheus.Counter
	rowsInserted  prometheus.Counter
	rowsUpdated   prometheus.Counter
	rowsDropped   prometheus.Counter
	jobs          *prometheus.CounterVec
	batchDur      prometheus.Histogram
}

// NewPrometheus registers the pipeline metrics with reg. Pass
// prometheus.DefaultRegisterer for the global registry.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		pagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "admissions_pipeline_pages_fetched_total",
			Help: "Result-index pages fetched by pipeline jobs.",
		}),
		recordsParsed: factory.NewCounter(prometheus.CounterOpts{
			Name: "admissions_pipeline_records_parsed_total",
			Help: "Admission records parsed out of fetched pages.",
		}),
		rowsInserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "admissions_pipeline_rows_inserted_total",
			Help: "New rows written by the loader.",
		}),
		rowsUpdated: factory.NewCounter(prometheus.CounterOpts{
			Name: "admissions_pipeline_rows_updated_total",
			Help: "Existing rows refreshed by the loader.",
		}),
		rowsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "admissions_pipeline_rows_dropped_total",
			Help: "Rows discarded by the parser or loader.",
		}),
		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "admissions_pipeline_jobs_total",
			Help: "Pipeline job completions by outcome.",
		}, []string{"outcome"}),
		batchDur: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "admissions_pipeline_batch_duration_seconds",
			Help:    "Wall time spent committing a loader batch.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Consume updates the counters from the batch.
func (p *Prometheus) Consume(_ context.Context, batch []Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StagePageFetched:
			p.pagesFetched.Inc()
		case progress.StagePageParsed:
			p.recordsParsed.Add(float64(evt.Records))
			p.rowsDropped.Add(float64(evt.Dropped))
		case progress.StageBatchLoaded:
			p.rowsInserted.Add(float64(evt.Inserted))
			p.rowsUpdated.Add(float64(evt.Updated))
			p.rowsDropped.Add(float64(evt.Dropped))
			if evt.Dur > 0 {
				p.batchDur.Observe(evt.Dur.Seconds())
			}
		case progress.StageJobDone:
			p.jobs.WithLabelValues("success").Inc()
		case progress.StageJobError:
			p.jobs.WithLabelValues("error").Inc()
		}
	}
	return nil
}

// Close is a no-op; metrics stay registered for the process lifetime.
func (p *Prometheus) Close(context.Context) error { return nil }
