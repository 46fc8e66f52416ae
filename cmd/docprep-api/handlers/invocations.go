// Package handlers provides HTTP handlers for the docprep real-time endpoint.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/docprep/internal/domain"
	"github.com/spherical/docprep/internal/observability"
	"github.com/spherical/docprep/internal/realtime"
)

// Invoker runs one real-time request.
type Invoker interface {
	Handle(ctx context.Context, req realtime.Request) (realtime.Response, error)
}

// InvocationsHandler serves the inference-style ping and invocations routes.
type InvocationsHandler struct {
	logger  *observability.Logger
	service Invoker
	maxBody int64
}

// NewInvocationsHandler creates a new invocations handler. maxBody limits request payloads;
// zero means unlimited.
func NewInvocationsHandler(logger *observability.Logger, service Invoker, maxBody int64) *InvocationsHandler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &InvocationsHandler{
		logger:  logger,
		service: service,
		maxBody: maxBody,
	}
}

// Ping handles GET /ping.
func (h *InvocationsHandler) Ping(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Invoke handles POST /invocations.
func (h *InvocationsHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := chimiddleware.GetReqID(ctx)
	ctx = observability.ContextWithRequestID(ctx, reqID)

	var body io.Reader = r.Body
	if h.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large", err.Error())
			return
		}
		h.writeError(w, http.StatusBadRequest, "failed to read request body", err.Error())
		return
	}

	resp, err := h.service.Handle(ctx, realtime.Request{
		ID:          reqID,
		Body:        data,
		ContentType: r.Header.Get("Content-Type"),
		Accept:      r.Header.Get("Accept"),
	})
	if err != nil {
		status := StatusFor(err)
		event := h.logger.WithContext(ctx).Warn()
		if status >= http.StatusInternalServerError {
			event = h.logger.WithContext(ctx).Error()
		}
		event.Err(err).Int("status", status).Msg("Invocation failed")
		h.writeError(w, status, http.StatusText(status), err.Error())
		return
	}

	w.Header().Set("Content-Type", resp.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Body)
}

// StatusFor maps a service error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, realtime.ErrUnsupportedContentType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, realtime.ErrNotAcceptable):
		return http.StatusNotAcceptable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case domain.IsSkippable(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *InvocationsHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	_ = json.NewEncoder(w).Encode(resp)
}
