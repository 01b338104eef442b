package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type lineDoc struct {
	ProductID string `bson:"product_id"`
	Name      string `bson:"name"`
	UnitPrice int64  `bson:"unit_price"`
	Quantity  int    `bson:"quantity"`
	LineTotal int64  `bson:"line_total"`
}

type contactDoc struct {
	Name    string `bson:"name,omitempty"`
	Email   string `bson:"email,omitempty"`
	Phone   string `bson:"phone,omitempty"`
	Address string `bson:"address,omitempty"`
}

type orderDoc struct {
	ID             string     `bson:"_id"`
	UserID         string     `bson:"user_id"`
	IdempotencyKey string     `bson:"idempotency_key,omitempty"`
	Lines          []lineDoc  `bson:"lines"`
	Total          int64      `bson:"total"`
	Currency       string     `bson:"currency"`
	PaymentMethod  string     `bson:"payment_method"`
	ShippingMethod string     `bson:"shipping_method,omitempty"`
	Contact        contactDoc `bson:"contact"`
	PaymentStatus  string     `bson:"payment_status"`
	ShippingStatus string     `bson:"shipping_status"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

func toOrderDoc(o *domain.Order) orderDoc {
	d := orderDoc{
		ID:             o.ID,
		UserID:         o.UserID,
		IdempotencyKey: o.IdempotencyKey,
		Lines:          make([]lineDoc, 0, len(o.Lines)),
		Total:          o.Total,
		Currency:       o.Currency,
		PaymentMethod:  o.PaymentMethod,
		ShippingMethod: o.ShippingMethod,
		Contact:        contactDoc(o.Contact),
		PaymentStatus:  string(o.PaymentStatus),
		ShippingStatus: string(o.ShippingStatus),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	for _, l := range o.Lines {
		d.Lines = append(d.Lines, lineDoc(l))
	}
	return d
}

func (d orderDoc) toDomain() *domain.Order {
	o := &domain.Order{
		ID:             d.ID,
		UserID:         d.UserID,
		IdempotencyKey: d.IdempotencyKey,
		Lines:          make([]domain.Line, 0, len(d.Lines)),
		Total:          d.Total,
		Currency:       d.Currency,
		PaymentMethod:  d.PaymentMethod,
		ShippingMethod: d.ShippingMethod,
		Contact:        domain.Contact(d.Contact),
		PaymentStatus:  domain.PaymentStatus(d.PaymentStatus),
		ShippingStatus: domain.ShippingStatus(d.ShippingStatus),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	for _, l := range d.Lines {
		o.Lines = append(o.Lines, domain.Line(l))
	}
	return o
}

type OrderRepository struct{ c *mongo.Collection }

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("mongodb: order id is required")
	}
	if _, err := r.c.InsertOne(ctx, toOrderDoc(o)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("mongodb: insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error) {
	if key == "" {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"user_id": userID, "idempotency_key": key})
}

func (r *OrderRepository) findOne(ctx context.Context, filter bson.M) (*domain.Order, error) {
	var doc orderDoc
	if err := r.c.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb: find order: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *OrderRepository) ApplyStatus(ctx context.Context, id string, change domain.StatusChange) (bool, error) {
	filter, update := statusChange(id, change, time.Now().UTC())
	res, err := r.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("mongodb: apply order status: %w", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	n, err := r.c.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("mongodb: apply order status: %w", err)
	}
	if n == 0 {
		return false, domain.ErrNotFound
	}
	return false, nil
}

// statusChange translates a conditional status change into a filter and an update document.
func statusChange(id string, c domain.StatusChange, now time.Time) (bson.M, bson.M) {
	filter := bson.M{"_id": id}
	if c.ExpectPayment != "" {
		filter["payment_status"] = string(c.ExpectPayment)
	}
	if c.ExpectShipping != "" {
		filter["shipping_status"] = string(c.ExpectShipping)
	}
	set := bson.M{"updated_at": now}
	if c.Payment != "" {
		set["payment_status"] = string(c.Payment)
	}
	if c.Shipping != "" {
		set["shipping_status"] = string(c.Shipping)
	}
	return filter, bson.M{"$set": set}
}

func (r *OrderRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	filter := bson.M{"payment_status": string(domain.PaymentPending), "created_at": bson.M{"$lt": cutoff}}
	cur, err := r.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: list pending orders: %w", err)
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb: decode orders: %w", err)
	}
	out := make([]*domain.Order, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}
