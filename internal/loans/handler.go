package loans

import (
	"net/http"

	"github.com/ayush/library-lending/backend/internal/middleware"
	"github.com/ayush/library-lending/backend/internal/models"
	"github.com/ayush/library-lending/backend/internal/respond"
)

// Handler holds loan HTTP handlers. Every route runs behind RequireAuth.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func principal(w http.ResponseWriter, r *http.Request) (middleware.Principal, bool) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		respond.Message(w, http.StatusUnauthorized, "Token not provided")
	}
	return p, ok
}

// Borrow requests a loan of the book in the URL for the caller.
func (h *Handler) Borrow(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	bookID, err := respond.PathID(r, "id", "book")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	loan, err := h.svc.Borrow(r.Context(), p.UserID, bookID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, loan)
}

func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	loanID, err := respond.PathID(r, "id", "loan")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	loan, err := h.svc.Return(r.Context(), p, loanID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, loan)
}

// MyLoans lists the caller's loans, filtered by the optional status query.
func (h *Handler) MyLoans(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	loans, err := h.svc.ListForUser(r.Context(), p.UserID, r.URL.Query().Get("status"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, loans)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	loans, err := h.svc.History(r.Context(), p.UserID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, loans)
}

func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	loans, err := h.svc.ListAll(r.Context())
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, loans)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	loanID, err := respond.PathID(r, "id", "loan")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	var req models.StatusRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	loan, err := h.svc.UpdateStatus(r.Context(), p.UserID, loanID, req.Status)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, loan)
}

func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	loanID, err := respond.PathID(r, "id", "loan")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	events, err := h.svc.Events(r.Context(), loanID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, events)
}
