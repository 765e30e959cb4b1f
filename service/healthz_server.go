package service

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"
)

// Pinger checks a backend the service depends on
type Pinger interface {
	Ping(ctx context.Context) (string, error)
}

type HealthzServer struct {
	ctx    context.Context
	server *http.Server
	log    log.Logger
	// Backend is pinged on every health check when set
	Backend Pinger
}

func (h *HealthzServer) Handler() http.Handler {
	hdlr := http.NewServeMux()
	hdlr.HandleFunc("/healthz", h.Handle)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(hdlr)
}

func (h *HealthzServer) Start(ctx context.Context, addr string) error {
	h.server = &http.Server{
		Handler:           h.Handler(),
		Addr:              addr,
		ReadHeaderTimeout: 5 * time.Second,
	}
	h.ctx = ctx
	return h.server.ListenAndServe()
}

func (h *HealthzServer) Shutdown() error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(context.WithoutCancel(h.ctx))
}

func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	logger := h.log
	if logger == nil {
		logger = log.Root()
	}
	logger.Debug("Received health check request", "path", r.URL.Path)
	if h.Backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if _, err := h.Backend.Ping(ctx); err != nil {
			logger.Warn("Health check failed", "err", err)
			http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Write([]byte("OK")) //nolint:errcheck
}
