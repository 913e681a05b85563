package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/graph"
	"github.com/specialistvlad/pipegrid/internal/node"
)

// instanceStatus is one row of the /status response.
type instanceStatus struct {
	Instance string            `json:"instance"`
	Job      string            `json:"job"`
	Status   node.Status       `json:"status"`
	Reason   string            `json:"reason,omitempty"`
	Error    string            `json:"error,omitempty"`
	Duration string            `json:"duration,omitempty"`
	Outputs  map[string]string `json:"outputs,omitempty"`
}

type statusResponse struct {
	RunID     string           `json:"run_id"`
	Pipeline  string           `json:"pipeline"`
	Counts    map[string]int   `json:"counts"`
	Instances []instanceStatus `json:"instances"`
}

// newStatusRouter serves the health check, metrics and the live instance
// snapshot of one run.
func newStatusRouter(ctx context.Context, runID string, g graph.Graph, metricsHandler http.Handler) http.Handler {
	logger := ctxlog.FromContext(ctx)
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		logger.Debug("Health check endpoint hit.", "remote_addr", req.RemoteAddr, "path", req.URL.Path)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})
	r.Method(http.MethodGet, "/metrics", metricsHandler)
	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		resp := statusResponse{
			RunID:    runID,
			Pipeline: g.Plan().Name(),
			Counts:   make(map[string]int),
		}
		for _, st := range g.Snapshot(req.Context()) {
			row := instanceStatus{
				Instance: st.Instance.Key(),
				Job:      st.Instance.Job.Name,
				Status:   st.Status,
				Reason:   st.Reason,
				Outputs:  st.Outputs,
			}
			if st.Err != nil {
				row.Error = st.Err.Error()
			}
			if d := st.Timing.Duration(); d > 0 {
				row.Duration = d.String()
			}
			resp.Counts[st.Status.String()]++
			resp.Instances = append(resp.Instances, row)
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("Failed to write status response.", "error", err)
		}
	})
	return r
}

// statusServer is the optional HTTP server of a run.
type statusServer struct {
	srv      *http.Server
	listener net.Listener
}

// startStatusServer binds the port and serves in the background.
func startStatusServer(ctx context.Context, port int, handler http.Handler) (*statusServer, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Configuring health check server.")

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to bind health check server: %w", err)
	}
	s := &statusServer{
		srv:      &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second},
		listener: ln,
	}

	go func() {
		logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://%s/health", ln.Addr()))
		// Serve returns ErrServerClosed on graceful shutdown.
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health check server failed unexpectedly", "error", err)
		}
	}()
	return s, nil
}

// Addr returns the bound address.
func (s *statusServer) Addr() string { return s.listener.Addr().String() }

func (s *statusServer) close(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	logger.Info("🩺 Shutting down health check server...")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Health check server shutdown failed", "error", err)
		return err
	}
	logger.Debug("Health check server shut down gracefully.")
	return nil
}
