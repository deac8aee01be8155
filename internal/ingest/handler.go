package ingest

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/ses-tracking/internal/notification"
	"github.com/ignite/ses-tracking/internal/pkg/logger"
)

// DefaultMaxBodyBytes caps an inbound notification body.
const DefaultMaxBodyBytes = 5 << 20

// Handler is the SNS webhook endpoint. Responses are plain text.
type Handler struct {
	pipeline *Pipeline
	maxBody  int64

	received int64
	stored   int64
	ignored  int64
	rejected int64
	failures int64
}

// NewHandler wraps pipeline. maxBody <= 0 uses DefaultMaxBodyBytes.
func NewHandler(pipeline *Pipeline, maxBody int64) *Handler {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &Handler{pipeline: pipeline, maxBody: maxBody}
}

// Mount registers the handler for POST on path, with and without a
// trailing slash.
func (h *Handler) Mount(r chi.Router, path string) {
	base := strings.TrimRight(path, "/")
	if base == "" {
		r.Post("/", h.ServeHTTP)
		return
	}
	r.Post(base, h.ServeHTTP)
	r.Post(base+"/", h.ServeHTTP)
}

// ServeHTTP answers 200 "Subscription confirmed" after a handshake, 200
// "OK" for processed or ignored events, 400 for malformed or unsupported
// envelopes, and 500 for anything else including panics.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&h.received, 1)
	defer func() {
		if rec := recover(); rec != nil {
			atomic.AddInt64(&h.failures, 1)
			logger.Error("panic handling sns notification", "panic", rec, "remote_addr", r.RemoteAddr)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			atomic.AddInt64(&h.rejected, 1)
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		atomic.AddInt64(&h.rejected, 1)
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	res, err := h.pipeline.Process(r.Context(), body)
	switch {
	case notification.IsClientError(err):
		atomic.AddInt64(&h.rejected, 1)
		logger.Warn("rejected sns notification", "error", err, "remote_addr", r.RemoteAddr)
		http.Error(w, clientMessage(err), http.StatusBadRequest)
		return
	case err != nil:
		atomic.AddInt64(&h.failures, 1)
		logger.Error("failed to process sns notification", "error", err, "remote_addr", r.RemoteAddr)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	switch res.Outcome {
	case OutcomeConfirmed:
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "Subscription confirmed")
	case OutcomeIgnored:
		atomic.AddInt64(&h.ignored, 1)
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "OK")
	default:
		atomic.AddInt64(&h.stored, int64(res.Stored))
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "OK")
	}
}

func clientMessage(err error) string {
	switch {
	case errors.Is(err, notification.ErrUnknownType):
		return "Invalid message type"
	case errors.Is(err, notification.ErrMalformedMessage):
		return "Invalid message payload"
	default:
		return "Invalid JSON"
	}
}

// Stats returns request counters since start.
func (h *Handler) Stats() map[string]int64 {
	return map[string]int64{
		"requests_received": atomic.LoadInt64(&h.received),
		"events_stored":     atomic.LoadInt64(&h.stored),
		"events_ignored":    atomic.LoadInt64(&h.ignored),
		"requests_rejected": atomic.LoadInt64(&h.rejected),
		"requests_failed":   atomic.LoadInt64(&h.failures),
	}
}
