// Package health probes service health and drives restart decisions.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/davidfantasy/process-compose/internal/config"
)

// probeTimeout bounds every single probe attempt.
const probeTimeout = 5 * time.Second

// NameLiveness answers whether a service's recorded child is alive.
// The registry implements it.
type NameLiveness interface {
	IsRunningByName(name string) bool
}

// Prober performs a single health measurement. The bool is the probe
// outcome; a non-nil error marks a transient probe failure that must
// not count against the service.
type Prober interface {
	Probe(ctx context.Context) (bool, error)
}

// NewProber builds the prober matching the configured test type.
func NewProber(serviceName string, cfg *config.HealthCheckConfig, liveness NameLiveness) Prober {
	switch cfg.TestType {
	case config.CheckHTTP:
		return &httpProber{target: cfg.TestTarget}
	case config.CheckTCP:
		return &tcpProber{target: cfg.TestTarget}
	case config.CheckCmd:
		return &cmdProber{target: cfg.TestTarget}
	default:
		return &processProber{service: serviceName, liveness: liveness}
	}
}

// httpProber succeeds on any 2xx response. A refused or timed-out
// request is an unhealthy outcome, not a probe error: a dead backend
// must advance the failure counter. Only an unusable target is a probe
// error.
type httpProber struct {
	target string
	client *http.Client
}

func (p *httpProber) Probe(ctx context.Context) (bool, error) {
	client := p.client
	if client == nil {
		client = &http.Client{Timeout: probeTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.target, nil)
	if err != nil {
		return false, fmt.Errorf("build request for %s: %w", p.target, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// tcpProber succeeds when a connection can be established. A target
// that is not a valid host:port is a probe error; any dial failure
// (refused, timed out, unresolvable host) is an unhealthy outcome.
type tcpProber struct {
	target string
}

func (p *tcpProber) Probe(ctx context.Context) (bool, error) {
	if _, _, err := net.SplitHostPort(p.target); err != nil {
		return false, fmt.Errorf("invalid tcp target %s: %w", p.target, err)
	}
	dialer := &net.Dialer{Timeout: probeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.target)
	if err != nil {
		return false, nil
	}
	conn.Close()
	return true, nil
}

// ErrEmptyCommand marks a cmd probe with nothing to run.
var ErrEmptyCommand = errors.New("health check command cannot be empty")

// cmdProber runs the target command; exit code 0 is healthy.
type cmdProber struct {
	target string
}

func (p *cmdProber) Probe(ctx context.Context) (bool, error) {
	parts := strings.Fields(p.target)
	if len(parts) == 0 {
		return false, ErrEmptyCommand
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	err := exec.CommandContext(ctx, parts[0], parts[1:]...).Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("run health check command: %w", err)
}

// processProber asks the registry whether the recorded child is alive.
type processProber struct {
	service  string
	liveness NameLiveness
}

func (p *processProber) Probe(context.Context) (bool, error) {
	return p.liveness.IsRunningByName(p.service), nil
}
