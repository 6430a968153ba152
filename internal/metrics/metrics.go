package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var ProxyAttemptsCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "recruit",
	Subsystem: "screening_proxy",
	Name:      "webhook_attempts_total",
	Help:      "Outbound webhook attempts by response status",
}, []string{"status"})

var ProxyRequestsCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "recruit",
	Subsystem: "screening_proxy",
	Name:      "requests_total",
	Help:      "Inbound proxy requests by outcome (relayed, exhausted, failed)",
}, []string{"outcome"})

var UploadTasksCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "recruit",
	Subsystem: "ingest",
	Name:      "upload_tasks_total",
	Help:      "Resume upload tasks by terminal status and failing stage",
}, []string{"status", "stage"})

var UploadTasksDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "recruit",
	Subsystem: "ingest",
	Name:      "upload_tasks_duration_seconds",
	Help:      "Duration of resume upload tasks from claim to terminal state",
	Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
}, []string{"status"})

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
