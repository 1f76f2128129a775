package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"

	"github.com/ayush/library-lending/backend/internal/apperr"
	"github.com/ayush/library-lending/backend/internal/models"
)

const loanColumns = `id, user_id, book_id, borrow_date, due_date, return_date, status, created_at`

func scanLoan(row pgx.Row) (*models.Loan, error) {
	var (
		l      models.Loan
		status string
	)
	if err := row.Scan(&l.ID, &l.UserID, &l.BookID, &l.BorrowDate, &l.DueDate, &l.ReturnDate, &status, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Status = models.LoanStatus(status)
	return &l, nil
}

// CreateLoan inserts a pending loan only if the book is currently available.
// The availability check and the insert are one statement.
func (s *PostgresStore) CreateLoan(ctx context.Context, userID, bookID int64, borrowed, due time.Time) (*models.Loan, error) {
	loan, err := scanLoan(s.pool.QueryRow(ctx,
		`INSERT INTO book_loans (user_id, book_id, borrow_date, due_date, status)
		 SELECT $1, b.id, $3, $4, 'pending' FROM books b WHERE b.id = $2 AND b.available
		 RETURNING `+loanColumns,
		userID, bookID, borrowed, due,
	))
	if err == nil {
		return loan, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("create loan: %w", err)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, bookID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check book: %w", err)
	}
	if !exists {
		return nil, apperr.NotFound("book not found")
	}
	return nil, apperr.Conflict("book is not available")
}

func (s *PostgresStore) GetLoan(ctx context.Context, id int64) (*models.Loan, error) {
	loan, err := scanLoan(s.pool.QueryRow(ctx,
		`SELECT `+loanColumns+` FROM book_loans WHERE id = $1`, id,
	))
	if err != nil {
		return nil, notFound(err, "loan not found")
	}
	return loan, nil
}

// ApplyTransition moves a loan from t.From to t.To and applies t.CopyDelta to
// its book in one transaction. The loan row is locked first; if its status no
// longer equals t.From nothing is written. A decrement on a book with no
// copies left fails with a conflict, and an increment never exceeds
// total_copies.
func (s *PostgresStore) ApplyTransition(ctx context.Context, t models.Transition) (*models.Loan, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		status string
		bookID int64
	)
	err = tx.QueryRow(ctx,
		`SELECT status, book_id FROM book_loans WHERE id = $1 FOR UPDATE`, t.LoanID,
	).Scan(&status, &bookID)
	if err != nil {
		return nil, notFound(err, "loan not found")
	}
	if models.LoanStatus(status) != t.From {
		return nil, apperr.Conflict("loan status changed from %s to %s", t.From, status)
	}

	switch {
	case t.CopyDelta < 0:
		tag, err := tx.Exec(ctx,
			`UPDATE books
			 SET available_copies = available_copies - 1,
			     available = available_copies - 1 > 0
			 WHERE id = $1 AND available_copies > 0`, bookID)
		if err != nil {
			return nil, fmt.Errorf("reserve copy: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, apperr.Conflict("no copies available")
		}
	case t.CopyDelta > 0:
		_, err := tx.Exec(ctx,
			`UPDATE books
			 SET available_copies = LEAST(available_copies + 1, total_copies),
			     available = LEAST(available_copies + 1, total_copies) > 0
			 WHERE id = $1`, bookID)
		if err != nil {
			return nil, fmt.Errorf("release copy: %w", err)
		}
	}

	var returned *time.Time
	if t.StampReturn {
		at := t.At
		returned = &at
	}
	loan, err := scanLoan(tx.QueryRow(ctx,
		`UPDATE book_loans SET status = $2, return_date = COALESCE($3, return_date)
		 WHERE id = $1
		 RETURNING `+loanColumns,
		t.LoanID, string(t.To), returned,
	))
	if err != nil {
		return nil, fmt.Errorf("update loan: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return loan, nil
}

// loanListQuery renders the loan listing joined with book and user summaries.
func loanListQuery(f models.LoanFilter) (string, []any, error) {
	ds := goqu.Dialect(dialectPostgres).
		From(goqu.T("book_loans").As("l")).
		Prepared(true).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("l.book_id")))).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("l.user_id")))).
		Select(
			goqu.I("l.id"), goqu.I("l.user_id"), goqu.I("l.book_id"), goqu.I("l.borrow_date"),
			goqu.I("l.due_date"), goqu.I("l.return_date"), goqu.I("l.status"), goqu.I("l.created_at"),
			goqu.I("b.title"), goqu.I("b.author"), goqu.I("b.cover_image"),
			goqu.I("u.name"), goqu.I("u.email"),
		)

	if f.UserID != nil {
		ds = ds.Where(goqu.I("l.user_id").Eq(*f.UserID))
	}
	if f.Status != nil {
		ds = ds.Where(goqu.I("l.status").Eq(string(*f.Status)))
	}
	if f.NewestFirst {
		ds = ds.Order(goqu.I("l.created_at").Desc(), goqu.I("l.id").Desc())
	} else {
		ds = ds.Order(goqu.I("l.created_at").Asc(), goqu.I("l.id").Asc())
	}
	return ds.ToSQL()
}

// ListLoans returns the loans matching f. Overdue is left for the caller to
// compute against its own clock.
func (s *PostgresStore) ListLoans(ctx context.Context, f models.LoanFilter) ([]models.LoanDetail, error) {
	query, args, err := loanListQuery(f)
	if err != nil {
		return nil, fmt.Errorf("build loan query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	out := make([]models.LoanDetail, 0)
	for rows.Next() {
		var (
			d      models.LoanDetail
			status string
			user   models.UserSummary
		)
		err := rows.Scan(
			&d.ID, &d.UserID, &d.BookID, &d.BorrowDate, &d.DueDate, &d.ReturnDate, &status, &d.CreatedAt,
			&d.Book.Title, &d.Book.Author, &d.Book.CoverImage,
			&user.Name, &user.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		d.Status = models.LoanStatus(status)
		d.Book.ID = d.BookID
		if f.WithUser {
			user.ID = d.UserID
			d.User = &user
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
