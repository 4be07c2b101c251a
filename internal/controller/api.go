package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sdnguard/internal/observability"
)

// Router serves the read-only status API and the metrics of gatherer.
func (c *Controller) Router(gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/status", c.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/bindings", c.handleBindings).Methods(http.MethodGet)
	r.HandleFunc("/plan", c.handlePlan).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func (c *Controller) handleStatus(w http.ResponseWriter, _ *http.Request) {
	c.writeJSON(w, http.StatusOK, c.Status())
}

func (c *Controller) handleBindings(w http.ResponseWriter, _ *http.Request) {
	c.writeJSON(w, http.StatusOK, c.Bindings())
}

func (c *Controller) handlePlan(w http.ResponseWriter, _ *http.Request) {
	plan, err := c.Plan()
	if err != nil {
		c.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	lines, err := plan.Lines()
	if err != nil {
		c.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	c.writeJSON(w, http.StatusOK, map[string]any{
		"from":  plan.From,
		"to":    plan.To,
		"lines": lines,
	})
}

func (c *Controller) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		c.obs.LogError("api_encode_failed", err)
	}
}

// ListenAndServe serves h on addr until ctx is done.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, obs observability.Observer) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		obs.LogInfo("api_listening", observability.F("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
