// Package server exposes the poller over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/bytebufferpool"

	"github.com/srediag/telemetry-shm/internal/poller"
	"github.com/srediag/telemetry-shm/pkg/layout"
	"github.com/srediag/telemetry-shm/pkg/shm"
)

const (
	shutdownTimeout = 5 * time.Second
	maxBodyBytes    = 1 << 16
)

// Backend is what the server reads from and writes through. *poller.Poller
// implements it.
type Backend interface {
	State() poller.State
	WriteSettings(ctx context.Context, s layout.Settings) error
}

// Server routes:
//
//	GET /metrics     Prometheus exposition
//	GET /live        liveness
//	GET /ready       readiness
//	GET /snapshot    last valid snapshot, 503 if none
//	GET /settings    settings of the last valid snapshot
//	PUT /settings    replace the settings block
type Server struct {
	backend Backend
	log     hclog.Logger
	router  *mux.Router
}

// New builds the router. health serves /live and /ready; gatherer backs
// /metrics.
func New(b Backend, health http.Handler, gatherer prometheus.Gatherer, log hclog.Logger) *Server {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	s := &Server{backend: b, log: log, router: mux.NewRouter()}

	r := s.router
	r.Use(s.logRequests)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.Handle("/live", health).Methods(http.MethodGet)
	r.Handle("/ready", health).Methods(http.MethodGet)
	r.HandleFunc("/snapshot", s.getSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/settings", s.getSettings).Methods(http.MethodGet)
	r.HandleFunc("/settings", s.putSettings).Methods(http.MethodPut)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Serve accepts on l until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()
	s.log.Info("http listening", "addr", l.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

type snapshotView struct {
	Status     shm.Status         `json:"status"`
	Stale      bool               `json:"stale"`
	ValidAt    time.Time          `json:"valid_at"`
	Header     layout.Header      `json:"header"`
	Settings   layout.Settings    `json:"settings"`
	Players    []layout.Player    `json:"players"`
	Spectators []layout.Spectator `json:"spectators"`
}

type errorView struct {
	Status shm.Status `json:"status"`
	Error  string     `json:"error,omitempty"`
}

func (s *Server) getSnapshot(w http.ResponseWriter, _ *http.Request) {
	st := s.backend.State()
	if st.LastGood == nil {
		s.unavailable(w, st)
		return
	}
	snap := st.LastGood
	s.writeJSON(w, http.StatusOK, snapshotView{
		Status:     st.Status,
		Stale:      !st.Status.Usable(),
		ValidAt:    st.LastValid,
		Header:     snap.Header,
		Settings:   snap.Settings,
		Players:    snap.LivePlayers(),
		Spectators: snap.LiveSpectators(),
	})
}

func (s *Server) getSettings(w http.ResponseWriter, _ *http.Request) {
	st := s.backend.State()
	if st.LastGood == nil {
		s.unavailable(w, st)
		return
	}
	s.writeJSON(w, http.StatusOK, st.LastGood.Settings)
}

// putSettings replaces the whole block; fields absent from the body take
// their default value.
func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	settings := layout.DefaultSettings()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&settings); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorView{Status: s.backend.State().Status, Error: err.Error()})
		return
	}

	err := s.backend.WriteSettings(r.Context(), settings)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, poller.ErrNoTransport):
		s.writeJSON(w, http.StatusServiceUnavailable, errorView{Status: shm.StatusDisconnected, Error: err.Error()})
	default:
		s.log.Warn("settings write failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorView{Status: shm.ClassifyError(err), Error: err.Error()})
	}
}

func (s *Server) unavailable(w http.ResponseWriter, st poller.State) {
	v := errorView{Status: st.Status}
	if st.Err != nil {
		v.Error = st.Err.Error()
	}
	s.writeJSON(w, http.StatusServiceUnavailable, v)
}

// writeJSON encodes v before committing the status code, so a value that
// cannot be encoded (a torn float read as NaN) yields a 500 with a body.
func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := json.NewEncoder(buf).Encode(v); err != nil {
		s.log.Warn("encode response", "error", err)
		buf.Reset()
		_ = json.NewEncoder(buf).Encode(errorView{Status: shm.StatusIOError, Error: err.Error()})
		code = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(buf.B); err != nil {
		s.log.Debug("write response", "error", err)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Trace("request", "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
	})
}
