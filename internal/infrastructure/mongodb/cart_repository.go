package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type cartItemDoc struct {
	ProductID string `bson:"product_id"`
	Quantity  int    `bson:"quantity"`
}

type cartDoc struct {
	UserID    string        `bson:"_id"`
	Items     []cartItemDoc `bson:"items"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

type CartRepository struct{ c *mongo.Collection }

func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	var doc cartDoc
	if err := r.c.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.New(userID), nil
		}
		return nil, fmt.Errorf("mongodb: get cart: %w", err)
	}
	c := &domain.Cart{UserID: doc.UserID, UpdatedAt: doc.UpdatedAt}
	for _, it := range doc.Items {
		c.Items = append(c.Items, domain.Item{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return c, nil
}

func (r *CartRepository) Save(ctx context.Context, c *domain.Cart) error {
	if c == nil || c.UserID == "" {
		return fmt.Errorf("mongodb: cart user id is required")
	}
	doc := cartDoc{UserID: c.UserID, Items: make([]cartItemDoc, 0, len(c.Items)), UpdatedAt: time.Now().UTC()}
	for _, it := range c.Items {
		doc.Items = append(doc.Items, cartItemDoc{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	if _, err := r.c.ReplaceOne(ctx, bson.M{"_id": c.UserID}, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("mongodb: save cart: %w", err)
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	update := bson.M{"$set": bson.M{"items": bson.A{}, "updated_at": time.Now().UTC()}}
	if _, err := r.c.UpdateOne(ctx, bson.M{"_id": userID}, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("mongodb: clear cart: %w", err)
	}
	return nil
}
