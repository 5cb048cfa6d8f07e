package lifecycle

import "github.com/prometheus/client_golang/prometheus"

var (
	downloadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelhostd",
		Subsystem: "lifecycle",
		Name:      "downloads_total",
		Help:      "Total number of successful artifact downloads",
	})
	downloadFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelhostd",
		Subsystem: "lifecycle",
		Name:      "download_failures_total",
		Help:      "Total number of failed artifact downloads",
	})
	loadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelhostd",
		Subsystem: "lifecycle",
		Name:      "loads_total",
		Help:      "Total number of successful model loads",
	})
	loadFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelhostd",
		Subsystem: "lifecycle",
		Name:      "load_failures_total",
		Help:      "Total number of failed model loads",
	})
	unloadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelhostd",
		Subsystem: "lifecycle",
		Name:      "unloads_total",
		Help:      "Total number of model unloads",
	})
	loadedResources = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "modelhostd",
		Subsystem: "lifecycle",
		Name:      "loaded_resources",
		Help:      "Number of currently materialized resources",
	})
)

func init() {
	prometheus.MustRegister(downloadsTotal, downloadFailures, loadsTotal, loadFailures, unloadsTotal, loadedResources)
}
