// Package api exposes the HTTP control surface and the gRPC health
// endpoint. Both are thin shells over the registry and the process
// manager and hold no supervision state of their own.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/davidfantasy/process-compose/internal/config"
	"github.com/davidfantasy/process-compose/internal/journal"
	"github.com/davidfantasy/process-compose/internal/process"
	"github.com/davidfantasy/process-compose/internal/registry"
)

// defaultEventLimit caps /api/events responses when no limit is given.
const defaultEventLimit = 50

// Server serves the HTTP API, the Prometheus exposition endpoint and
// the gRPC health endpoint.
type Server struct {
	cfg      *config.APIConfig
	reg      *registry.Registry
	mgr      *process.Manager
	jrnl     *journal.Journal
	gatherer prometheus.Gatherer
	log      *zap.Logger

	httpSrv *http.Server
	httpLn  net.Listener
	health  *HealthServer
}

// NewServer builds the API server. jrnl and gatherer may be nil.
func NewServer(cfg *config.APIConfig, reg *registry.Registry, mgr *process.Manager, jrnl *journal.Journal, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		reg:      reg,
		mgr:      mgr,
		jrnl:     jrnl,
		gatherer: gatherer,
		log:      log,
		health:   NewHealthServer(),
	}
}

// Health returns the gRPC health notifier.
func (s *Server) Health() *HealthServer {
	return s.health
}

// Addr returns the bound HTTP address, valid after Start.
func (s *Server) Addr() string {
	if s.httpLn == nil {
		return ""
	}
	return s.httpLn.Addr().String()
}

// GRPCAddr returns the bound gRPC address, valid after Start.
func (s *Server) GRPCAddr() string {
	return s.health.Addr()
}

// Start binds the listeners and serves in the background. The gRPC
// health endpoint listens on the HTTP port plus one.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen api: %w", err)
	}
	s.httpLn = ln
	s.httpSrv = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("api server failed", zap.Error(err))
		}
	}()
	s.log.Info("api server listening", zap.String("addr", ln.Addr().String()))

	grpcAddr := net.JoinHostPort(s.cfg.Host, grpcPort(s.cfg.Port))
	if err := s.health.Start(grpcAddr); err != nil {
		_ = s.httpSrv.Close()
		return err
	}
	s.log.Info("grpc health endpoint listening", zap.String("addr", s.health.Addr()))
	return nil
}

// Stop shuts both listeners down.
func (s *Server) Stop(ctx context.Context) error {
	s.health.Stop()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// grpcPort derives the gRPC port from the configured HTTP port. An
// ephemeral HTTP port gets an ephemeral gRPC port too.
func grpcPort(httpPort string) string {
	p, err := strconv.Atoi(httpPort)
	if err != nil || p == 0 {
		return "0"
	}
	return strconv.Itoa(p + 1)
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	apiRoutes := r.PathPrefix("/api").Subrouter()
	apiRoutes.Use(s.basicAuth)
	apiRoutes.HandleFunc("/services", s.handleListServices).Methods(http.MethodGet)
	apiRoutes.HandleFunc("/services/{name}", s.handleGetService).Methods(http.MethodGet)
	apiRoutes.HandleFunc("/services/{name}/{action:start|stop|restart}", s.handleServiceAction).Methods(http.MethodPost)
	apiRoutes.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// basicAuth enforces the credentials from the api config block.
func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.Username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(s.cfg.Password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="process-compose"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServiceView is the JSON shape of one service's runtime snapshot.
type ServiceView struct {
	Name                string `json:"name"`
	PID                 int    `json:"pid,omitempty"`
	Health              string `json:"health"`
	IsChildProcess      bool   `json:"is_child_process"`
	StoppedBySupervisor bool   `json:"stopped_by_supervisor"`
	LastStartTime       string `json:"last_start_time,omitempty"`
	LastStopTime        string `json:"last_stop_time,omitempty"`
	ExitErr             string `json:"exit_err,omitempty"`
}

func viewOf(info registry.ProcessRuntimeInfo) ServiceView {
	view := ServiceView{
		Name:                info.Name,
		PID:                 info.PID,
		Health:              info.Health.String(),
		IsChildProcess:      info.IsChildProcess,
		StoppedBySupervisor: info.StoppedBySupervisor,
		ExitErr:             info.ExitErr,
	}
	if !info.LastStartTime.IsZero() {
		view.LastStartTime = info.LastStartTime.Format(time.RFC3339)
	}
	if !info.LastStopTime.IsZero() {
		view.LastStopTime = info.LastStopTime.Format(time.RFC3339)
	}
	return view
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	names := s.reg.AllNames()
	views := make([]ServiceView, 0, len(names))
	for _, name := range names {
		info, err := s.reg.Find(name)
		if err != nil {
			continue
		}
		views = append(views, viewOf(info))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	info, err := s.reg.Find(name)
	if err != nil {
		http.Error(w, "unknown service", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(info))
}

func (s *Server) handleServiceAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]
	if _, err := s.reg.Find(name); err != nil {
		http.Error(w, "unknown service", http.StatusNotFound)
		return
	}
	var err error
	switch vars["action"] {
	case "start":
		err = s.mgr.StartService(name)
	case "stop":
		err = s.mgr.StopService(name)
	case "restart":
		err = s.mgr.RestartService(name)
	}
	if err != nil {
		s.log.Error("api service action failed",
			zap.String("service", name), zap.String("action", vars["action"]), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.jrnl == nil {
		writeJSON(w, http.StatusOK, []journal.Record{})
		return
	}
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	records, err := s.jrnl.Recent(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []journal.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
