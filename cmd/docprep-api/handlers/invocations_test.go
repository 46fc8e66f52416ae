package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/docprep/internal/domain"
	"github.com/spherical/docprep/internal/realtime"
)

type stubInvoker struct {
	got  realtime.Request
	resp realtime.Response
	err  error
}

func (s *stubInvoker) Handle(_ context.Context, req realtime.Request) (realtime.Response, error) {
	s.got = req
	return s.resp, s.err
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unsupported content type", domain.RequestFormatError("bad", realtime.ErrUnsupportedContentType), http.StatusUnsupportedMediaType},
		{"not acceptable", domain.RequestFormatError("bad", realtime.ErrNotAcceptable), http.StatusNotAcceptable},
		{"unidentified", domain.UnidentifiedImageError("bad", nil), http.StatusUnprocessableEntity},
		{"unreadable", fmt.Errorf("wrapped: %w", domain.UnreadableSourceError("bad", nil)), http.StatusUnprocessableEntity},
		{"unsupported format", domain.UnsupportedFormatError("bad", nil), http.StatusUnprocessableEntity},
		{"io", domain.IOError("disk", nil), http.StatusInternalServerError},
		{"deadline", fmt.Errorf("rasterize: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"deadline inside unreadable", domain.UnreadableSourceError("render", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestInvoke_Success(t *testing.T) {
	stub := &stubInvoker{resp: realtime.Response{ContentType: realtime.MediaNPY, Body: []byte("payload")}}
	h := NewInvocationsHandler(nil, stub, 0)

	req := httptest.NewRequest(http.MethodPost, "/invocations", bytes.NewReader([]byte("body")))
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", realtime.MediaNPY)
	rec := httptest.NewRecorder()
	h.Invoke(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, realtime.MediaNPY, rec.Header().Get("Content-Type"))
	assert.Equal(t, "payload", rec.Body.String())
	assert.Equal(t, []byte("body"), stub.got.Body)
	assert.Equal(t, "image/png", stub.got.ContentType)
	assert.Equal(t, realtime.MediaNPY, stub.got.Accept)
}

func TestInvoke_ErrorBody(t *testing.T) {
	stub := &stubInvoker{err: domain.RequestFormatError("requested content type text/csv not recognised", realtime.ErrNotAcceptable)}
	h := NewInvocationsHandler(nil, stub, 0)

	rec := httptest.NewRecorder()
	h.Invoke(rec, httptest.NewRequest(http.MethodPost, "/invocations", bytes.NewReader([]byte("x"))))

	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Not Acceptable", body["error"])
	assert.Contains(t, body["detail"], "text/csv")
}

func TestInvoke_BodyTooLarge(t *testing.T) {
	stub := &stubInvoker{}
	h := NewInvocationsHandler(nil, stub, 4)

	rec := httptest.NewRecorder()
	h.Invoke(rec, httptest.NewRequest(http.MethodPost, "/invocations", bytes.NewReader([]byte("0123456789"))))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Nil(t, stub.got.Body)
}

func TestPing(t *testing.T) {
	h := NewInvocationsHandler(nil, &stubInvoker{}, 0)
	rec := httptest.NewRecorder()
	h.Ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
