package auth

import (
	"net/http"
	"time"

	"github.com/ayush/library-lending/backend/internal/middleware"
	"github.com/ayush/library-lending/backend/internal/models"
	"github.com/ayush/library-lending/backend/internal/respond"
)

// Handler holds auth-related HTTP handlers.
type Handler struct {
	svc          *Service
	secureCookie bool
}

func NewHandler(svc *Service, secureCookie bool) *Handler {
	return &Handler{svc: svc, secureCookie: secureCookie}
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates a new user and signs them in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	user, pair, err := h.svc.Register(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	respond.JSON(w, http.StatusCreated, authResponse{Token: pair.AccessToken, User: user})
}

// Login authenticates a user and issues a token pair.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	user, pair, err := h.svc.Login(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	respond.JSON(w, http.StatusOK, authResponse{Token: pair.AccessToken, User: user})
}

// Logout revokes the refresh token and clears its cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(RefreshCookie); err == nil {
		h.svc.Logout(r.Context(), cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
	respond.JSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Me returns the currently authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		respond.Message(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.svc.CurrentUser(r.Context(), p.UserID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, user)
}

// Refresh rotates the refresh cookie and returns a new access token. Every
// rejection is a 403.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var token string
	if cookie, err := r.Cookie(RefreshCookie); err == nil {
		token = cookie.Value
	}

	pair, err := h.svc.Refresh(r.Context(), token)
	if err != nil {
		respond.ErrorWithStatus(w, r, err, http.StatusForbidden)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	respond.JSON(w, http.StatusOK, map[string]string{"token": pair.AccessToken})
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(h.svc.RefreshTTL() / time.Second),
	})
}
