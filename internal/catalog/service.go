package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ayush/library-lending/backend/internal/apperr"
	"github.com/ayush/library-lending/backend/internal/models"
)

// MaxCoverSize bounds an uploaded cover image.
const MaxCoverSize = 5 << 20

var coverExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// BookStore defines the interface for catalog persistence.
type BookStore interface {
	ListBooks(ctx context.Context, q models.BookQuery) ([]models.Book, error)
	GetBook(ctx context.Context, id int64) (*models.Book, error)
	CreateBook(ctx context.Context, b *models.Book) (*models.Book, error)
	UpdateBook(ctx context.Context, id int64, patch models.BookPatch) (*models.Book, error)
	DeleteBook(ctx context.Context, id int64) error
	SetCover(ctx context.Context, id int64, key, url string) (string, error)
	CoverKey(ctx context.Context, id int64) (string, error)
}

// FileStore defines the interface for cover image storage.
type FileStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, string, error)
	Remove(ctx context.Context, key string) error
}

type Service struct {
	books BookStore
	files FileStore
}

func NewService(books BookStore, files FileStore) *Service {
	return &Service{books: books, files: files}
}

func (s *Service) List(ctx context.Context, q models.BookQuery) ([]models.Book, error) {
	return s.books.ListBooks(ctx, q)
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Book, error) {
	return s.books.GetBook(ctx, id)
}

func (s *Service) Create(ctx context.Context, in models.BookInput) (*models.Book, error) {
	b, err := in.Normalize()
	if err != nil {
		return nil, err
	}
	created, err := s.books.CreateBook(ctx, b)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "book created", "book_id", created.ID, "isbn", created.ISBN)
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, patch models.BookPatch) (*models.Book, error) {
	if patch.Empty() {
		return nil, apperr.Validation("no fields to update")
	}
	return s.books.UpdateBook(ctx, id, patch)
}

// Delete removes a book and its cover object. Books with loan history cannot
// be deleted.
func (s *Service) Delete(ctx context.Context, id int64) error {
	key, err := s.books.CoverKey(ctx, id)
	if err != nil {
		return err
	}
	if err := s.books.DeleteBook(ctx, id); err != nil {
		return err
	}
	if key != "" {
		s.removeObject(ctx, key)
	}
	return nil
}

// UploadCover stores data as the book's cover image and points coverImage at
// the cover endpoint. The content type is sniffed from the bytes.
func (s *Service) UploadCover(ctx context.Context, id int64, data []byte) (*models.Book, error) {
	if len(data) == 0 {
		return nil, apperr.Validation("cover image is empty")
	}
	if len(data) > MaxCoverSize {
		return nil, apperr.Validation("cover image exceeds %d bytes", MaxCoverSize)
	}
	contentType := http.DetectContentType(data)
	ext, ok := coverExtensions[contentType]
	if !ok {
		return nil, apperr.Validation("cover must be a JPEG, PNG, GIF or WebP image")
	}
	if _, err := s.books.GetBook(ctx, id); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("covers/%d/%s%s", id, uuid.NewString(), ext)
	if err := s.files.Upload(ctx, key, data, contentType); err != nil {
		return nil, err
	}
	previous, err := s.books.SetCover(ctx, id, key, CoverURL(id))
	if err != nil {
		s.removeObject(ctx, key)
		return nil, err
	}
	if previous != "" && previous != key {
		s.removeObject(ctx, previous)
	}
	return s.books.GetBook(ctx, id)
}

// Cover returns the stored cover image of a book.
func (s *Service) Cover(ctx context.Context, id int64) ([]byte, string, error) {
	key, err := s.books.CoverKey(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if key == "" {
		return nil, "", apperr.NotFound("book has no cover")
	}
	return s.files.Download(ctx, key)
}

// CoverURL is the public path a book's uploaded cover is served from.
func CoverURL(id int64) string {
	return fmt.Sprintf("/api/books/%d/cover", id)
}

func (s *Service) removeObject(ctx context.Context, key string) {
	if err := s.files.Remove(ctx, key); err != nil {
		slog.WarnContext(ctx, "cover cleanup failed", "key", key, "error", err)
	}
}
