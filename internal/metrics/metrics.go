package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hubsync",
		Name:      "job_submissions_total",
		Help:      "Bulk jobs submitted to a registry, by kind.",
	}, []string{"kind"})
	JobPolls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hubsync",
		Name:      "job_polls_total",
		Help:      "Job status checks, by kind.",
	}, []string{"kind"})
	JobTerminal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hubsync",
		Name:      "job_terminal_total",
		Help:      "Jobs observed in a terminal status, by kind and status.",
	}, []string{"kind", "status"})
	Retries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hubsync",
		Name:      "retries_total",
		Help:      "Retried registry calls, by operation.",
	}, []string{"op"})
	Runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hubsync",
		Name:      "runs_total",
		Help:      "Finished sync runs, by outcome.",
	}, []string{"outcome"})
	PhaseSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hubsync",
		Name:      "phase_duration_seconds",
		Help:      "Wall time spent per sync phase.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	}, []string{"phase"})
)

// Init registers collectors; call once from main.
func Init() {
	prometheus.MustRegister(JobSubmissions, JobPolls, JobTerminal, Retries, Runs, PhaseSeconds)
}

// Serve exposes /metrics on addr (e.g. ":9090"). It blocks; run it in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
