// Package loans implements the loan lifecycle: borrowing, administrative
// status changes, returns and the listings built on them.
package loans

import (
	"context"
	"log/slog"
	"time"

	"github.com/ayush/library-lending/backend/internal/apperr"
	"github.com/ayush/library-lending/backend/internal/middleware"
	"github.com/ayush/library-lending/backend/internal/models"
)

// Store is the persistence the lifecycle needs. ApplyTransition must apply a
// transition and its copy delta atomically.
type Store interface {
	GetBook(ctx context.Context, id int64) (*models.Book, error)
	CreateLoan(ctx context.Context, userID, bookID int64, borrowed, due time.Time) (*models.Loan, error)
	GetLoan(ctx context.Context, id int64) (*models.Loan, error)
	ApplyTransition(ctx context.Context, t models.Transition) (*models.Loan, error)
	ListLoans(ctx context.Context, f models.LoanFilter) ([]models.LoanDetail, error)
}

// EventStore keeps the audit trail of loan transitions.
type EventStore interface {
	Record(ctx context.Context, ev *models.LoanEvent) error
	ListByLoan(ctx context.Context, loanID int64) ([]models.LoanEvent, error)
}

type Service struct {
	store  Store
	events EventStore
	period time.Duration
	now    func() time.Time
}

// NewService returns a lifecycle service granting loans of the given period.
// A non-positive period uses models.DefaultLoanPeriod.
func NewService(store Store, events EventStore, period time.Duration) *Service {
	if period <= 0 {
		period = models.DefaultLoanPeriod
	}
	return &Service{store: store, events: events, period: period, now: time.Now}
}

// Borrow requests a loan of bookID for userID. The loan starts pending and
// does not hold a copy until approved.
func (s *Service) Borrow(ctx context.Context, userID, bookID int64) (*models.Loan, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !book.Available {
		return nil, apperr.Conflict("book is not available")
	}

	now := s.now()
	loan, err := s.store.CreateLoan(ctx, userID, bookID, now, now.Add(s.period))
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "loan requested", "loan_id", loan.ID, "book_id", bookID, "user_id", userID)
	s.record(ctx, loan, userID, "", 0)
	return loan, nil
}

// UpdateStatus moves a loan to status on behalf of an administrator.
func (s *Service) UpdateStatus(ctx context.Context, actorID, loanID int64, status string) (*models.Loan, error) {
	next, ok := models.ParseLoanStatus(status)
	if !ok {
		return nil, apperr.Validation("invalid status %q", status)
	}
	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actorID, loan, next)
}

// Return hands a borrowed book back. Only the borrower or an administrator
// may return a loan.
func (s *Service) Return(ctx context.Context, actor middleware.Principal, loanID int64) (*models.Loan, error) {
	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.UserID != actor.UserID && !actor.IsAdmin {
		return nil, apperr.Authorization("not allowed to return this loan")
	}
	switch loan.Status {
	case models.LoanReturned:
		return nil, apperr.Conflict("book is already returned")
	case models.LoanBorrowed:
	default:
		return nil, apperr.Conflict("only borrowed loans can be returned, this one is %s", loan.Status)
	}
	return s.transition(ctx, actor.UserID, loan, models.LoanReturned)
}

func (s *Service) transition(ctx context.Context, actorID int64, loan *models.Loan, next models.LoanStatus) (*models.Loan, error) {
	t, err := models.PlanTransition(loan.ID, loan.Status, next, s.now())
	if err != nil {
		return nil, err
	}
	updated, err := s.store.ApplyTransition(ctx, t)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "loan status changed",
		"loan_id", loan.ID,
		"book_id", loan.BookID,
		"from", t.From,
		"to", t.To,
		"copies_delta", t.CopyDelta,
		"actor_id", actorID,
	)
	s.record(ctx, updated, actorID, t.From, t.CopyDelta)
	return updated, nil
}

// record appends to the audit trail. The loan change has already committed,
// so failures are only logged.
func (s *Service) record(ctx context.Context, loan *models.Loan, actorID int64, from models.LoanStatus, delta int) {
	if s.events == nil {
		return
	}
	ev := &models.LoanEvent{
		LoanID:      loan.ID,
		BookID:      loan.BookID,
		UserID:      loan.UserID,
		ActorID:     actorID,
		From:        from,
		To:          loan.Status,
		CopiesDelta: delta,
		At:          s.now().UTC(),
	}
	if err := s.events.Record(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "record loan event", "loan_id", loan.ID, "error", err)
	}
}

// ListForUser returns a user's loans oldest first, optionally narrowed to one
// status.
func (s *Service) ListForUser(ctx context.Context, userID int64, status string) ([]models.LoanDetail, error) {
	f := models.LoanFilter{UserID: &userID}
	if status != "" {
		st, ok := models.ParseLoanStatus(status)
		if !ok {
			return nil, apperr.Validation("invalid status %q", status)
		}
		f.Status = &st
	}
	return s.list(ctx, f)
}

// History returns every loan of a user, newest first.
func (s *Service) History(ctx context.Context, userID int64) ([]models.LoanDetail, error) {
	return s.list(ctx, models.LoanFilter{UserID: &userID, NewestFirst: true})
}

// ListAll returns every loan with its borrower, newest first.
func (s *Service) ListAll(ctx context.Context) ([]models.LoanDetail, error) {
	return s.list(ctx, models.LoanFilter{NewestFirst: true, WithUser: true})
}

// Events returns the audit trail of a loan.
func (s *Service) Events(ctx context.Context, loanID int64) ([]models.LoanEvent, error) {
	if _, err := s.store.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	if s.events == nil {
		return []models.LoanEvent{}, nil
	}
	return s.events.ListByLoan(ctx, loanID)
}

func (s *Service) list(ctx context.Context, f models.LoanFilter) ([]models.LoanDetail, error) {
	loans, err := s.store.ListLoans(ctx, f)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range loans {
		loans[i].Overdue = loans[i].IsOverdue(now)
	}
	return loans, nil
}
