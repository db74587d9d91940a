package metrics

import "github.com/prometheus/client_golang/prometheus"

// PrometheusRecorder implements Recorder with Prometheus collectors
// registered on its own registry.
type PrometheusRecorder struct {
	up       *prometheus.GaugeVec
	healthy  *prometheus.GaugeVec
	started  *prometheus.CounterVec
	stopped  *prometheus.CounterVec
	exited   *prometheus.CounterVec
	restarts *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPrometheusRecorder creates the recorder and registers its
// collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	r := &PrometheusRecorder{registry: prometheus.NewRegistry()}

	r.up = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "process_compose",
		Name:      "service_up",
		Help:      "Whether the service's child process is running",
	}, []string{"service"})

	r.healthy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "process_compose",
		Name:      "service_healthy",
		Help:      "Latest health probe observation for the service",
	}, []string{"service"})

	r.started = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "process_compose",
		Name:      "service_starts_total",
		Help:      "Total number of Running events per service",
	}, []string{"service"})

	r.stopped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "process_compose",
		Name:      "service_stops_total",
		Help:      "Total number of deliberate stops per service",
	}, []string{"service"})

	r.exited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "process_compose",
		Name:      "service_exits_total",
		Help:      "Total number of spontaneous exits per service",
	}, []string{"service"})

	r.restarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "process_compose",
		Name:      "service_restarts_requested_total",
		Help:      "Total number of restarts demanded by the health watcher",
	}, []string{"service"})

	r.registry.MustRegister(r.up, r.healthy, r.started, r.stopped, r.exited, r.restarts)
	return r
}

// Registry exposes the collectors for the HTTP handler.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *PrometheusRecorder) ServiceUp(service string, up bool) {
	r.up.WithLabelValues(service).Set(boolToGauge(up))
}

func (r *PrometheusRecorder) ServiceHealthy(service string, healthy bool) {
	r.healthy.WithLabelValues(service).Set(boolToGauge(healthy))
}

func (r *PrometheusRecorder) ServiceStarted(service string) {
	r.started.WithLabelValues(service).Inc()
}

func (r *PrometheusRecorder) ServiceStopped(service string) {
	r.stopped.WithLabelValues(service).Inc()
}

func (r *PrometheusRecorder) ServiceExited(service string) {
	r.exited.WithLabelValues(service).Inc()
}

func (r *PrometheusRecorder) RestartRequested(service string) {
	r.restarts.WithLabelValues(service).Inc()
}

func boolToGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
