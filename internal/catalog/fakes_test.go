package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ayush/library-lending/backend/internal/apperr"
	"github.com/ayush/library-lending/backend/internal/models"
)

type memoryBooks struct {
	mu     sync.Mutex
	nextID int64
	books  map[int64]models.Book
	covers map[int64]string
	loaned map[int64]bool
}

func newMemoryBooks() *memoryBooks {
	return &memoryBooks{
		books:  make(map[int64]models.Book),
		covers: make(map[int64]string),
		loaned: make(map[int64]bool),
	}
}

func (m *memoryBooks) ListBooks(_ context.Context, q models.BookQuery) ([]models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Book
	for _, b := range m.books {
		if q.Search != "" && !strings.Contains(b.Title, q.Search) &&
			!strings.Contains(b.Author, q.Search) && !strings.Contains(b.ISBN, q.Search) {
			continue
		}
		if len(q.Genres) > 0 && !containsGenre(q.Genres, b.Genre) {
			continue
		}
		if q.Available != nil && b.Available != *q.Available {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if q.Descending {
			return out[i].Title > out[j].Title
		}
		return out[i].Title < out[j].Title
	})
	if q.Offset >= len(out) {
		return []models.Book{}, nil
	}
	out = out[q.Offset:]
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func containsGenre(gs []models.Genre, g models.Genre) bool {
	for _, x := range gs {
		if x == g {
			return true
		}
	}
	return false
}

func (m *memoryBooks) GetBook(_ context.Context, id int64) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil, apperr.NotFound("book not found")
	}
	return &b, nil
}

func (m *memoryBooks) CreateBook(_ context.Context, b *models.Book) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.books {
		if existing.ISBN == b.ISBN {
			return nil, apperr.Conflict("a book with this isbn already exists")
		}
	}
	m.nextID++
	created := *b
	created.ID = m.nextID
	created.CreatedAt = time.Now()
	m.books[created.ID] = created
	return &created, nil
}

func (m *memoryBooks) UpdateBook(_ context.Context, id int64, patch models.BookPatch) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil, apperr.NotFound("book not found")
	}
	next, err := patch.Apply(b)
	if err != nil {
		return nil, err
	}
	m.books[id] = *next
	return next, nil
}

func (m *memoryBooks) DeleteBook(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[id]; !ok {
		return apperr.NotFound("book not found")
	}
	if m.loaned[id] {
		return apperr.Conflict("book has loans and cannot be deleted")
	}
	delete(m.books, id)
	delete(m.covers, id)
	return nil
}

func (m *memoryBooks) SetCover(_ context.Context, id int64, key, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return "", apperr.NotFound("book not found")
	}
	previous := m.covers[id]
	m.covers[id] = key
	b.CoverImage = url
	m.books[id] = b
	return previous, nil
}

func (m *memoryBooks) CoverKey(_ context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[id]; !ok {
		return "", apperr.NotFound("book not found")
	}
	return m.covers[id], nil
}

type storedObject struct {
	data        []byte
	contentType string
}

type memoryFiles struct {
	mu      sync.Mutex
	objects map[string]storedObject
}

func newMemoryFiles() *memoryFiles {
	return &memoryFiles{objects: make(map[string]storedObject)}
}

func (m *memoryFiles) Upload(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = storedObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (m *memoryFiles) Download(_ context.Context, key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", apperr.NotFound("cover not found")
	}
	return obj.data, obj.contentType, nil
}

func (m *memoryFiles) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryFiles) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}
