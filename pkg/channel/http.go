package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xmhha/cortex-watch/pkg/logger"
)

// Handler returns the manager's HTTP API:
//
//	GET /status    manager status as JSON
//	GET /metrics   Prometheus metrics
func (s *Server) Handler() http.Handler {
	r := httprouter.New()

	r.Handle(http.MethodGet, "/status", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		sendJSON(w, s.Status())
	})
	r.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func sendJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HTTPService serves an HTTP handler until its context is cancelled.
type HTTPService struct {
	addr    string
	handler http.Handler
	logger  logger.Logger
}

// NewHTTPService creates a service listening on addr.
func NewHTTPService(addr string, handler http.Handler, log logger.Logger) *HTTPService {
	return &HTTPService{
		addr:    addr,
		handler: handler,
		logger:  log.With("component", "http"),
	}
}

// Serve listens and serves; cancelling ctx shuts the server down
// gracefully.
func (h *HTTPService) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              h.addr,
		Handler:           h.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("http listening", "addr", h.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (h *HTTPService) String() string {
	return "http@" + h.addr
}
