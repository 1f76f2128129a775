package models

import (
	"time"

	"github.com/ayush/library-lending/backend/internal/apperr"
)

// LoanStatus is the lifecycle state of a book loan.
type LoanStatus string

const (
	LoanPending  LoanStatus = "pending"
	LoanApproved LoanStatus = "approved"
	LoanBorrowed LoanStatus = "borrowed"
	LoanReturned LoanStatus = "returned"
	LoanRejected LoanStatus = "rejected"
)

// DefaultLoanPeriod is how long a borrower may keep a book.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// ParseLoanStatus reports whether s names a loan status.
func ParseLoanStatus(s string) (LoanStatus, bool) {
	switch st := LoanStatus(s); st {
	case LoanPending, LoanApproved, LoanBorrowed, LoanReturned, LoanRejected:
		return st, true
	}
	return "", false
}

// IsTerminal reports whether no further transition can leave s.
func (s LoanStatus) IsTerminal() bool {
	return s == LoanReturned || s == LoanRejected
}

// HoldsCopy reports whether a loan in state s keeps one copy of its book out
// of the available pool.
func (s LoanStatus) HoldsCopy() bool {
	return s == LoanApproved || s == LoanBorrowed
}

var transitions = map[LoanStatus][]LoanStatus{
	LoanPending:  {LoanApproved, LoanRejected},
	LoanApproved: {LoanBorrowed, LoanRejected},
	LoanBorrowed: {LoanReturned},
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Transition is a planned status change together with its effect on the
// book's copy count. CopyDelta is -1 when the loan starts holding a copy, +1
// when it releases one and 0 otherwise.
type Transition struct {
	LoanID      int64
	From        LoanStatus
	To          LoanStatus
	CopyDelta   int
	StampReturn bool
	At          time.Time
}

// PlanTransition validates from -> to and computes its bookkeeping.
func PlanTransition(loanID int64, from, to LoanStatus, at time.Time) (Transition, error) {
	if from == to {
		return Transition{}, apperr.Conflict("loan is already %s", from)
	}
	if !from.CanTransitionTo(to) {
		return Transition{}, apperr.Conflict("cannot change loan status from %s to %s", from, to)
	}
	t := Transition{LoanID: loanID, From: from, To: to, At: at}
	switch {
	case !from.HoldsCopy() && to.HoldsCopy():
		t.CopyDelta = -1
	case from.HoldsCopy() && !to.HoldsCopy():
		t.CopyDelta = 1
	}
	t.StampReturn = to == LoanReturned
	return t, nil
}

// Loan represents a row in the book_loans table.
type Loan struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"userId"`
	BookID     int64      `json:"bookId"`
	BorrowDate time.Time  `json:"borrowDate"`
	DueDate    time.Time  `json:"dueDate"`
	ReturnDate *time.Time `json:"returnDate"`
	Status     LoanStatus `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// IsOverdue reports whether the loan still holds a copy past its due date.
func (l Loan) IsOverdue(now time.Time) bool {
	return l.Status.HoldsCopy() && now.After(l.DueDate)
}

// LoanDetail is a loan joined with the summaries shown in listings.
type LoanDetail struct {
	Loan
	Book    BookSummary  `json:"book"`
	User    *UserSummary `json:"user,omitempty"`
	Overdue bool         `json:"overdue"`
}

// LoanFilter narrows a loan listing. A nil UserID lists every user's loans.
type LoanFilter struct {
	UserID      *int64
	Status      *LoanStatus
	NewestFirst bool
	WithUser    bool
}

// StatusRequest is the JSON body for PUT /api/admin/loans/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`
}
