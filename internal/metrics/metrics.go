// Package metrics records supervisor activity for the Prometheus
// exposition endpoint.
package metrics

// Recorder is the interface the event consumer records through.
type Recorder interface {
	// ServiceUp marks a service as running or not.
	ServiceUp(service string, up bool)
	// ServiceHealthy marks the latest health observation.
	ServiceHealthy(service string, healthy bool)
	// ServiceStarted counts a Running event.
	ServiceStarted(service string)
	// ServiceStopped counts a deliberate stop.
	ServiceStopped(service string)
	// ServiceExited counts a spontaneous exit.
	ServiceExited(service string)
	// RestartRequested counts a restart demanded by the health watcher.
	RestartRequested(service string)
}

// noopRecorder discards every observation.
type noopRecorder struct{}

func (noopRecorder) ServiceUp(string, bool)      {}
func (noopRecorder) ServiceHealthy(string, bool) {}
func (noopRecorder) ServiceStarted(string)       {}
func (noopRecorder) ServiceStopped(string)       {}
func (noopRecorder) ServiceExited(string)        {}
func (noopRecorder) RestartRequested(string)     {}

// NewNoopRecorder creates a recorder that does nothing. It is used
// when the API (and with it the /metrics endpoint) is disabled.
func NewNoopRecorder() Recorder {
	return noopRecorder{}
}
