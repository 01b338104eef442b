// Package mongodb stores the catalog, carts, orders and payment attempts in MongoDB.
// Multi-document units of work use session transactions and need a replica set.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	colProducts = "products"
	colCarts    = "carts"
	colOrders   = "orders"
	colPayments = "payments"

	idxOrderIdempotency = "user_idempotency_key_unique"
	idxTransaction      = "transaction_id_unique"
	idxOrderPending     = "order_pending_unique"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb: ping: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

func (s *Store) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

func (s *Store) Catalog() *CatalogRepository { return &CatalogRepository{c: s.db.Collection(colProducts)} }
func (s *Store) Carts() *CartRepository       { return &CartRepository{c: s.db.Collection(colCarts)} }
func (s *Store) Orders() *OrderRepository     { return &OrderRepository{c: s.db.Collection(colOrders)} }
func (s *Store) Payments() *PaymentRepository { return &PaymentRepository{c: s.db.Collection(colPayments)} }
func (s *Store) UnitOfWork() *UnitOfWork      { return &UnitOfWork{client: s.client} }

// EnsureIndexes creates the indexes the repositories rely on for uniqueness.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		colOrders: {
			{
				Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "idempotency_key", Value: 1}},
				Options: options.Index().SetName(idxOrderIdempotency).SetUnique(true).
					SetPartialFilterExpression(bson.M{"idempotency_key": bson.M{"$type": "string"}}),
			},
			{Keys: bson.D{{Key: "payment_status", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colPayments: {
			{
				Keys:    bson.D{{Key: "transaction_id", Value: 1}},
				Options: options.Index().SetName(idxTransaction).SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "order_id", Value: 1}},
				Options: options.Index().SetName(idxOrderPending).SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": "pending"}),
			},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}}},
		},
	}
	for col, models := range specs {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongodb: create indexes on %s: %w", col, err)
		}
	}
	return nil
}

type UnitOfWork struct {
	client *mongo.Client
}

// Do runs fn inside a session transaction. Repositories join it through the ctx passed to fn.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	return u.client.UseSession(ctx, func(sc mongo.SessionContext) error {
		_, err := sc.WithTransaction(sc, func(tx mongo.SessionContext) (interface{}, error) {
			return nil, fn(tx)
		})
		return err
	})
}
