package respond

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/ayush/library-lending/backend/internal/apperr"
)

func TestErrorMapsKnownKinds(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/books/9", nil)

	Error(rec, req, apperr.NotFound("Book not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Book not found"}`, rec.Body.String())
}

func TestErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)

	Error(rec, req, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestErrorWithStatusOnlyOverridesKnown(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/refresh-token", nil)
	ErrorWithStatus(rec, req, apperr.Authentication("Invalid refresh token"), http.StatusForbidden)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	ErrorWithStatus(rec, req, errors.New("redis down"), http.StatusForbidden)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDecodeRejectsMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	var v struct{}
	err := Decode(req, &v)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestPathID(t *testing.T) {
	cases := map[string]bool{"42": true, "0": false, "-3": false, "abc": false}
	for raw, ok := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/books/"+raw, nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", raw)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		id, err := PathID(req, "id", "book")
		if ok {
			assert.NoError(t, err, raw)
			assert.Equal(t, int64(42), id)
			continue
		}
		assert.True(t, errors.Is(err, apperr.ErrValidation), raw)
		assert.Equal(t, "invalid book id", apperr.Message(err))
	}
}
