package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/library-lending/backend/internal/middleware"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, _ := newTestService(t)
	h := NewHandler(svc, false)

	r := chi.NewRouter()
	r.Post("/api/register", h.Register)
	r.Post("/api/login", h.Login)
	r.Post("/api/logout", h.Logout)
	r.Post("/api/refresh-token", h.Refresh)
	r.With(middleware.RequireAuth(svc.tokens)).Get("/api/user", h.Me)
	return r
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == RefreshCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie set", RefreshCookie)
	return nil
}

func TestRegisterLoginMeFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/register",
		strings.NewReader(`{"name":"Grace","email":"grace@example.com","password":"cobol60","address":"Arlington","phone":"555"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	cookie := refreshCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 7*24*60*60, cookie.MaxAge)
	assert.NotContains(t, rec.Body.String(), "password")

	var body struct {
		Token string `json:"token"`
		User  struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "grace@example.com", body.User.Email)

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.Header.Set("Authorization", "Bearer "+body.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Grace"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"email":"grace@example.com","password":"wrong"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid email or password"}`, rec.Body.String())
}

func TestRefreshEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/register",
		strings.NewReader(`{"name":"Linus","email":"linus@example.com","password":"kernel1"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	cookie := refreshCookie(t, rec)

	req := httptest.NewRequest(http.MethodPost, "/api/refresh-token", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)

	// The old cookie was consumed by the rotation above.
	req = httptest.NewRequest(http.MethodPost, "/api/refresh-token", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh-token", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/logout", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, -1, refreshCookie(t, rec).MaxAge)
}

func TestLogoutSucceedsWhenRedisIsDown(t *testing.T) {
	reg, mr := newTestRegistry(t)
	svc := NewService(newMemoryUsers(), newTestIssuer(), reg)
	h := NewHandler(svc, false)
	r := chi.NewRouter()
	r.Post("/api/register", h.Register)
	r.Post("/api/logout", h.Logout)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/register",
		strings.NewReader(`{"name":"Edsger","email":"edsger@example.com","password":"goto-harmful"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	cookie := refreshCookie(t, rec)

	mr.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, -1, refreshCookie(t, rec).MaxAge)
}

func TestMeRequiresToken(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
