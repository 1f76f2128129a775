package catalog

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ayush/library-lending/backend/internal/apperr"
	"github.com/ayush/library-lending/backend/internal/models"
	"github.com/ayush/library-lending/backend/internal/respond"
)

// Handler holds catalog HTTP handlers.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List returns one page of books matching the query string.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.svc.List(r.Context(), ParseQuery(r.URL.Query()))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, books)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r, "id", "book")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	book, err := h.svc.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, book)
}

// Cover streams a book's uploaded cover image.
func (h *Handler) Cover(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r, "id", "book")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	data, ct, err := h.svc.Cover(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.BookInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	book, err := h.svc.Create(r.Context(), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, book)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r, "id", "book")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	var patch models.BookPatch
	if err := respond.Decode(r, &patch); err != nil {
		respond.Error(w, r, err)
		return
	}
	book, err := h.svc.Update(r.Context(), id, patch)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, book)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r, "id", "book")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"message": "Book deleted successfully"})
}

// UploadCover takes the raw image as the request body.
func (h *Handler) UploadCover(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r, "id", "book")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxCoverSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, r, apperr.Validation("cover image exceeds %d bytes", MaxCoverSize))
			return
		}
		respond.Error(w, r, apperr.Validation("could not read cover image"))
		return
	}
	book, err := h.svc.UploadCover(r.Context(), id, data)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, book)
}
