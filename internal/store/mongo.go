package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/library-lending/backend/internal/models"
)

// MongoStore keeps the loan audit trail in MongoDB.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("loan_events")}
}

// EnsureIndexes creates the lookup index used by ListByLoan.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "loan_id", Value: 1}, {Key: "at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongo index: %w", err)
	}
	return nil
}

// Record appends ev to the trail.
func (s *MongoStore) Record(ctx context.Context, ev *models.LoanEvent) error {
	res, err := s.col.InsertOne(ctx, ev)
	if err != nil {
		return fmt.Errorf("mongo insert: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		ev.ID = oid
	}
	return nil
}

// ListByLoan returns a loan's events, oldest first.
func (s *MongoStore) ListByLoan(ctx context.Context, loanID int64) ([]models.LoanEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.col.Find(ctx, bson.M{"loan_id": loanID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	defer cur.Close(ctx)

	events := make([]models.LoanEvent, 0)
	if err := cur.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	return events, nil
}
