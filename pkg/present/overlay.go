package present

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/vango-go/vai-wingman/pkg/core/live"
)

// Status reports the orchestrator's current state. *live.Orchestrator
// satisfies it.
type Status interface {
	State() live.State
	SessionID() string
	Preview() string
}

// OverlayConfig configures the overlay server.
type OverlayConfig struct {
	Addr string
	// PingInterval is the keepalive interval on quiet event streams. Default: 15s.
	PingInterval time.Duration
}

// Overlay serves presentation events over SSE to an overlay window.
//
//	GET /events   text/event-stream of presentation events
//	GET /status   current state, session id and interim preview
//	GET /healthz  liveness
type Overlay struct {
	cfg    OverlayConfig
	events *Broadcaster
	status Status
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewOverlay returns an Overlay streaming from events. status may be nil.
func NewOverlay(cfg OverlayConfig, events *Broadcaster, status Status, logger *slog.Logger) *Overlay {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Overlay{cfg: cfg, events: events, status: status, logger: logger, mux: http.NewServeMux()}
	o.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	o.mux.HandleFunc("GET /status", o.serveStatus)
	o.mux.HandleFunc("GET /events", o.serveEvents)
	return o
}

// Handler returns the overlay's HTTP handler.
func (o *Overlay) Handler() http.Handler {
	var h http.Handler = o.mux
	h = recoverPanics(o.logger, h)
	h = accessLog(o.logger, h)
	return h
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (o *Overlay) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              o.cfg.Addr,
		Handler:           o.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	o.logger.Info("overlay listening", "addr", o.cfg.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusBody struct {
	State     string `json:"state"`
	SessionID string `json:"session_id,omitempty"`
	Preview   string `json:"preview,omitempty"`
}

func (o *Overlay) serveStatus(w http.ResponseWriter, _ *http.Request) {
	body := statusBody{State: live.StateIdle.String()}
	if o.status != nil {
		body = statusBody{State: o.status.State().String(), SessionID: o.status.SessionID(), Preview: o.status.Preview()}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(body)
}

func (o *Overlay) serveEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sw, err := NewSSEWriter(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	events, cancel := o.events.Subscribe()
	defer cancel()

	// Pings go out only when nothing else was sent for a full interval.
	lastSent := time.Now()
	ticker := time.NewTicker(o.cfg.PingInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := sw.Send(e.EventType(), e); err != nil {
				o.logger.Debug("overlay client gone", "error", err)
				return
			}
			lastSent = time.Now()
		case t := <-ticker.C:
			if t.Sub(lastSent) < o.cfg.PingInterval {
				continue
			}
			if err := sw.Send("ping", map[string]string{"type": "ping"}); err != nil {
				return
			}
		}
	}
}

func recoverPanics(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.Error("panic", "panic", v, "path", r.URL.Path)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the access log.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func accessLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
