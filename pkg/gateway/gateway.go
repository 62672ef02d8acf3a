// Package gateway adapts net/http to the request pipeline. It converts each HTTP
// request into a gateway event, hands it to an Invoker and writes the response back.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hayden74/cogira-frontend/pkg/api"
)

const (
	operationName     = "cogira.gateway"
	readHeaderTimeout = 10 * time.Second
)

// Invoker runs one event through the pipeline. It always returns a response.
type Invoker interface {
	Handle(ctx context.Context, ev *api.Event) *api.Response
}

// Options configures the HTTP handler.
type Options struct {
	// MaxBodyBytes bounds how much of the body is read. One extra byte is read so the
	// size limit stage can tell an oversized body from one exactly at the ceiling.
	MaxBodyBytes int64
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewHandler builds the HTTP handler serving the pipeline routes, /healthz and
// optionally /metrics, instrumented with otelhttp.
func NewHandler(inv Invoker, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &adapter{inv: inv, maxBody: opts.MaxBodyBytes, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.HandleFunc("/api/{version}", a.serve)
	r.HandleFunc("/api/{version}/{domain}", a.serve)
	r.HandleFunc("/api/{version}/{domain}/{id}", a.serve)
	r.HandleFunc("/{domain}", a.serve)
	r.HandleFunc("/{domain}/{id}", a.serve)
	r.NotFound(a.serve)
	r.MethodNotAllowed(a.serve)

	return otelhttp.NewHandler(r, operationName)
}

type adapter struct {
	inv     Invoker
	maxBody int64
	logger  *slog.Logger
}

func (a *adapter) serve(w http.ResponseWriter, r *http.Request) {
	ev := a.event(r)
	if ev.BodyErr != nil {
		a.logger.WarnContext(r.Context(), "Failed to read request body", "error", ev.BodyErr)
	}

	res := a.inv.Handle(r.Context(), ev)
	writeResponse(w, res, a.logger)
}

// event converts r. A body read failure is recorded on the event for the pipeline to reject.
func (a *adapter) event(r *http.Request) *api.Event {
	ev := &api.Event{
		Method:                r.Method,
		RawPath:               r.URL.Path,
		Headers:               flatten(r.Header, true),
		QueryStringParameters: flatten(r.URL.Query(), false),
		PathParameters:        map[string]string{},
		RequestID:             middleware.GetReqID(r.Context()),
	}
	if id := chi.URLParam(r, "id"); id != "" {
		ev.PathParameters["id"] = id
	}
	if _, ok := ev.Headers["content-length"]; !ok && r.ContentLength >= 0 {
		ev.Headers["content-length"] = strconv.FormatInt(r.ContentLength, 10)
	}

	if r.Body == nil {
		return ev
	}
	reader := io.Reader(r.Body)
	if a.maxBody > 0 {
		reader = io.LimitReader(r.Body, a.maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		ev.BodyErr = err
		return ev
	}
	ev.Body = string(body)
	return ev
}

// flatten joins repeated values with commas, the way API gateways present them.
func flatten(values map[string][]string, lowerKeys bool) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if lowerKeys {
			k = strings.ToLower(k)
		}
		out[k] = strings.Join(v, ",")
	}
	return out
}

func writeResponse(w http.ResponseWriter, res *api.Response, logger *slog.Logger) {
	if res == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	for k, v := range res.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(res.Status)
	if len(res.Body) == 0 {
		return
	}
	if _, err := w.Write(res.Body); err != nil {
		logger.Debug("Failed to write response body", "error", err)
	}
}

// NewServer creates the HTTP server for handler.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// Serve runs srv until ctx is cancelled, then shuts it down within shutdownTimeout.
func Serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("HTTP server stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	return nil
}
