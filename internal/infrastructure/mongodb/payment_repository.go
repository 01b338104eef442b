package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type attemptDoc struct {
	ID            string        `bson:"_id"`
	OrderID       string        `bson:"order_id"`
	UserID        string        `bson:"user_id"`
	TransactionID string        `bson:"transaction_id"`
	Amount        int64         `bson:"amount"`
	Currency      string        `bson:"currency"`
	Status        domain.Status `bson:"status"`
	Suspicious    bool          `bson:"suspicious"`
	FailureReason string        `bson:"failure_reason,omitempty"`
	ExpiresAt     time.Time     `bson:"expires_at"`
	CreatedAt     time.Time     `bson:"created_at"`
	UpdatedAt     time.Time     `bson:"updated_at"`
}

func toAttemptDoc(a *domain.Attempt) attemptDoc { return attemptDoc(*a) }

func (d attemptDoc) toDomain() *domain.Attempt {
	a := domain.Attempt(d)
	return &a
}

type PaymentRepository struct{ c *mongo.Collection }

func (r *PaymentRepository) Insert(ctx context.Context, a *domain.Attempt) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("mongodb: attempt id is required")
	}
	if _, err := r.c.InsertOne(ctx, toAttemptDoc(a)); err != nil {
		return insertError(err)
	}
	return nil
}

// insertError tells the two uniqueness rules apart by the index named in the error.
func insertError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("mongodb: insert attempt: %w", err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, idxTransaction):
		return domain.ErrDuplicateTransaction
	case strings.Contains(msg, idxOrderPending):
		return domain.ErrPendingExists
	}
	return domain.ErrConflict
}

func (r *PaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Attempt, error) {
	return r.findOne(ctx, bson.M{"transaction_id": transactionID})
}

func (r *PaymentRepository) FindPendingByOrder(ctx context.Context, orderID string) (*domain.Attempt, error) {
	return r.findOne(ctx, bson.M{"order_id": orderID, "status": string(domain.StatusPending)})
}

func (r *PaymentRepository) findOne(ctx context.Context, filter bson.M) (*domain.Attempt, error) {
	var doc attemptDoc
	if err := r.c.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb: find attempt: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.Attempt, error) {
	return r.find(ctx, bson.M{"order_id": orderID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (r *PaymentRepository) Transition(ctx context.Context, id string, to domain.Status, suspicious bool, reason string) (bool, error) {
	if !to.Terminal() {
		return false, nil
	}
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": id, "status": string(domain.StatusPending)}, transitionUpdate(to, suspicious, reason, time.Now().UTC()))
	if err != nil {
		return false, fmt.Errorf("mongodb: transition attempt: %w", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	n, err := r.c.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("mongodb: transition attempt: %w", err)
	}
	if n == 0 {
		return false, domain.ErrNotFound
	}
	return false, nil
}

func transitionUpdate(to domain.Status, suspicious bool, reason string, now time.Time) bson.M {
	set := bson.M{"status": string(to), "updated_at": now}
	if suspicious {
		set["suspicious"] = true
	}
	if reason != "" {
		set["failure_reason"] = reason
	}
	return bson.M{"$set": set}
}

func (r *PaymentRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Attempt, error) {
	opts := options.Find().SetSort(bson.D{{Key: "expires_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{"status": string(domain.StatusPending), "expires_at": bson.M{"$lt": now}}, opts)
}

func (r *PaymentRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Attempt, error) {
	cur, err := r.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: find attempts: %w", err)
	}
	var docs []attemptDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb: decode attempts: %w", err)
	}
	out := make([]*domain.Attempt, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}
