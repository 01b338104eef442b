package httppresentation

import (
	"strings"
	"time"

	appcart "github.com/Zhima-Mochi/minishop-checkout/internal/application/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/money"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

// display renders minor units as "12.50 USD".
func display(minor int64, currency string) string {
	return money.Format(minor) + " " + strings.ToUpper(currency)
}

type productResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	PriceDisplay string `json:"price_display"`
	Stock        int    `json:"stock"`
}

func toProductResponse(p *catalog.Product, currency string) productResponse {
	return productResponse{
		ID:           p.ID,
		Name:         p.Name,
		Price:        p.Price,
		PriceDisplay: display(p.Price, currency),
		Stock:        p.Stock,
	}
}

type cartLineResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal int64  `json:"line_total"`
	Available bool   `json:"available"`
}

type cartResponse struct {
	UserID       string             `json:"user_id"`
	Lines        []cartLineResponse `json:"lines"`
	Total        int64              `json:"total"`
	TotalDisplay string             `json:"total_display"`
	Currency     string             `json:"currency"`
	UpdatedAt    *time.Time         `json:"updated_at,omitempty"`
}

func toCartResponse(v *appcart.View) cartResponse {
	out := cartResponse{
		UserID:       v.UserID,
		Lines:        make([]cartLineResponse, 0, len(v.Lines)),
		Total:        v.Total,
		TotalDisplay: display(v.Total, v.Currency),
		Currency:     v.Currency,
	}
	if !v.UpdatedAt.IsZero() {
		out.UpdatedAt = &v.UpdatedAt
	}
	for _, l := range v.Lines {
		out.Lines = append(out.Lines, cartLineResponse(l))
	}
	return out
}

type orderLineResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal int64  `json:"line_total"`
}

type contactBody struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type attemptResponse struct {
	ID            string         `json:"id"`
	TransactionID string         `json:"payment_intent_id"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	Status        payment.Status `json:"status"`
	Suspicious    bool           `json:"suspicious"`
	FailureReason string         `json:"failure_reason,omitempty"`
	ExpiresAt     time.Time      `json:"expires_at"`
	CreatedAt     time.Time      `json:"created_at"`
}

func toAttemptResponse(a *payment.Attempt) attemptResponse {
	return attemptResponse{
		ID:            a.ID,
		TransactionID: a.TransactionID,
		Amount:        a.Amount,
		Currency:      a.Currency,
		Status:        a.Status,
		Suspicious:    a.Suspicious,
		FailureReason: a.FailureReason,
		ExpiresAt:     a.ExpiresAt,
		CreatedAt:     a.CreatedAt,
	}
}

type orderResponse struct {
	ID             string               `json:"id"`
	UserID         string               `json:"user_id"`
	Lines          []orderLineResponse  `json:"lines"`
	Total          int64                `json:"total"`
	TotalDisplay   string               `json:"total_display"`
	Currency       string               `json:"currency"`
	PaymentMethod  string               `json:"payment_method"`
	ShippingMethod string               `json:"shipping_method,omitempty"`
	Contact        contactBody          `json:"contact"`
	PaymentStatus  order.PaymentStatus  `json:"payment_status"`
	ShippingStatus order.ShippingStatus `json:"shipping_status"`
	Attempts       []attemptResponse    `json:"payment_attempts"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

func toOrderResponse(o *order.Order, attempts []*payment.Attempt) orderResponse {
	out := orderResponse{
		ID:             o.ID,
		UserID:         o.UserID,
		Lines:          make([]orderLineResponse, 0, len(o.Lines)),
		Total:          o.Total,
		TotalDisplay:   display(o.Total, o.Currency),
		Currency:       o.Currency,
		PaymentMethod:  o.PaymentMethod,
		ShippingMethod: o.ShippingMethod,
		Contact:        contactBody(o.Contact),
		PaymentStatus:  o.PaymentStatus,
		ShippingStatus: o.ShippingStatus,
		Attempts:       make([]attemptResponse, 0, len(attempts)),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	for _, l := range o.Lines {
		out.Lines = append(out.Lines, orderLineResponse(l))
	}
	for _, a := range attempts {
		out.Attempts = append(out.Attempts, toAttemptResponse(a))
	}
	return out
}
