package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LoanEvent is one entry of a loan's audit trail, stored in MongoDB.
type LoanEvent struct {
	ID          primitive.ObjectID `json:"id"           bson:"_id,omitempty"`
	LoanID      int64              `json:"loanId"       bson:"loan_id"`
	BookID      int64              `json:"bookId"       bson:"book_id"`
	UserID      int64              `json:"userId"       bson:"user_id"`
	ActorID     int64              `json:"actorId"      bson:"actor_id"`
	From        LoanStatus         `json:"from"         bson:"from,omitempty"`
	To          LoanStatus         `json:"to"           bson:"to"`
	CopiesDelta int                `json:"copiesDelta"  bson:"copies_delta"`
	At          time.Time          `json:"at"           bson:"at"`
}
