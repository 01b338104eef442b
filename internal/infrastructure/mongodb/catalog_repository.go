package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type productDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Price     int64     `bson:"price"`
	Stock     int       `bson:"stock"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d productDoc) toDomain() *domain.Product {
	return &domain.Product{ID: d.ID, Name: d.Name, Price: d.Price, Stock: d.Stock, UpdatedAt: d.UpdatedAt}
}

type CatalogRepository struct{ c *mongo.Collection }

func (r *CatalogRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	var doc productDoc
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb: get product: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *CatalogRepository) List(ctx context.Context) ([]*domain.Product, error) {
	cur, err := r.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongodb: list products: %w", err)
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb: decode products: %w", err)
	}
	out := make([]*domain.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *CatalogRepository) Upsert(ctx context.Context, p *domain.Product) error {
	if p == nil || p.ID == "" {
		return domain.ErrInvalidProduct
	}
	doc := productDoc{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock, UpdatedAt: time.Now().UTC()}
	if _, err := r.c.ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("mongodb: upsert product: %w", err)
	}
	return nil
}

// Reserve is a single conditional $inc; the filter on stock makes concurrent reservations safe.
func (r *CatalogRepository) Reserve(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	res, err := r.c.UpdateOne(ctx, reserveFilter(productID, quantity), stockUpdate(-quantity))
	if err != nil {
		return fmt.Errorf("mongodb: reserve stock: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	p, err := r.Get(ctx, productID)
	if err != nil {
		return err
	}
	return &domain.InsufficientStockError{ProductID: productID, Available: p.Stock, Requested: quantity}
}

func (r *CatalogRepository) Release(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": productID}, stockUpdate(quantity))
	if err != nil {
		return fmt.Errorf("mongodb: release stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func reserveFilter(productID string, quantity int) bson.M {
	return bson.M{"_id": productID, "stock": bson.M{"$gte": quantity}}
}

func stockUpdate(delta int) bson.M {
	return bson.M{
		"$inc": bson.M{"stock": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
}
