package standardize

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "admissions_standardize_resolutions_total",
	Help: "Name resolutions by the tier that produced the answer.",
}, []string{"tier"})
