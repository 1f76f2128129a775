package loans

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ayush/library-lending/backend/internal/apperr"
	"github.com/ayush/library-lending/backend/internal/models"
)

// memoryStore mirrors the transactional guarantees of the PostgreSQL store
// under a single mutex.
type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	books  map[int64]models.Book
	loans  map[int64]models.Loan
	users  map[int64]models.UserSummary
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		books: make(map[int64]models.Book),
		loans: make(map[int64]models.Loan),
		users: make(map[int64]models.UserSummary),
	}
}

func (m *memoryStore) addBook(id int64, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[id] = models.Book{
		ID: id, Title: "Book", Author: "Author",
		TotalCopies: total, AvailableCopies: total, Available: total > 0,
	}
}

func (m *memoryStore) book(id int64) models.Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.books[id]
}

func (m *memoryStore) GetBook(_ context.Context, id int64) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil, apperr.NotFound("book not found")
	}
	return &b, nil
}

func (m *memoryStore) CreateLoan(_ context.Context, userID, bookID int64, borrowed, due time.Time) (*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[bookID]
	if !ok {
		return nil, apperr.NotFound("book not found")
	}
	if !b.Available {
		return nil, apperr.Conflict("book is not available")
	}
	m.nextID++
	l := models.Loan{
		ID: m.nextID, UserID: userID, BookID: bookID,
		BorrowDate: borrowed, DueDate: due, Status: models.LoanPending,
		CreatedAt: borrowed.Add(time.Duration(m.nextID)),
	}
	m.loans[l.ID] = l
	return &l, nil
}

func (m *memoryStore) GetLoan(_ context.Context, id int64) (*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[id]
	if !ok {
		return nil, apperr.NotFound("loan not found")
	}
	return &l, nil
}

func (m *memoryStore) ApplyTransition(_ context.Context, t models.Transition) (*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[t.LoanID]
	if !ok {
		return nil, apperr.NotFound("loan not found")
	}
	if l.Status != t.From {
		return nil, apperr.Conflict("loan status changed from %s to %s", t.From, l.Status)
	}
	b := m.books[l.BookID]
	switch {
	case t.CopyDelta < 0:
		if b.AvailableCopies == 0 {
			return nil, apperr.Conflict("no copies available")
		}
		b.AvailableCopies--
	case t.CopyDelta > 0:
		b.AvailableCopies = min(b.AvailableCopies+1, b.TotalCopies)
	}
	b.Available = b.AvailableCopies > 0
	m.books[l.BookID] = b

	l.Status = t.To
	if t.StampReturn {
		at := t.At
		l.ReturnDate = &at
	}
	m.loans[l.ID] = l
	return &l, nil
}

func (m *memoryStore) ListLoans(_ context.Context, f models.LoanFilter) ([]models.LoanDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.LoanDetail, 0)
	for _, l := range m.loans {
		if f.UserID != nil && l.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && l.Status != *f.Status {
			continue
		}
		b := m.books[l.BookID]
		d := models.LoanDetail{Loan: l, Book: models.BookSummary{ID: b.ID, Title: b.Title, Author: b.Author}}
		if f.WithUser {
			u := m.users[l.UserID]
			u.ID = l.UserID
			d.User = &u
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if f.NewestFirst {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type memoryEvents struct {
	mu     sync.Mutex
	events []models.LoanEvent
	fail   bool
}

func (m *memoryEvents) Record(_ context.Context, ev *models.LoanEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("mongo unavailable")
	}
	m.events = append(m.events, *ev)
	return nil
}

func (m *memoryEvents) ListByLoan(_ context.Context, loanID int64) ([]models.LoanEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.LoanEvent, 0)
	for _, ev := range m.events {
		if ev.LoanID == loanID {
			out = append(out, ev)
		}
	}
	return out, nil
}
