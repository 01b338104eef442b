package httppresentation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperr"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/reconcile"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/paysim"
	"github.com/go-chi/chi/v5"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerSignature      = "Stripe-Signature"
	maxIdempotencyKey    = 255
)

type checkoutItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// checkoutRequest may omit items, in which case the caller's cart is checked out.
type checkoutRequest struct {
	Items          []checkoutItem `json:"items"`
	PaymentMethod  string         `json:"payment_method"`
	ShippingMethod string         `json:"shipping_method"`
	Contact        contactBody    `json:"contact"`
}

type checkoutResponse struct {
	OrderID             string              `json:"order_id"`
	PaymentIntentID     string              `json:"payment_intent_id"`
	ClientPaymentHandle string              `json:"client_payment_handle"`
	Amount              int64               `json:"amount"`
	AmountDisplay       string              `json:"amount_display"`
	Currency            string              `json:"currency"`
	PaymentStatus       order.PaymentStatus `json:"payment_status"`
	Replayed            bool                `json:"replayed"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	key := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
	if len(key) > maxIdempotencyKey {
		writeDomainError(w, r, apperr.Validation("idempotency key is too long"))
		return
	}

	cmd := checkout.Command{
		UserID:         mustIdentity(r).UserID,
		IdempotencyKey: key,
		PaymentMethod:  req.PaymentMethod,
		ShippingMethod: req.ShippingMethod,
		Contact:        order.Contact(req.Contact),
	}
	for _, it := range req.Items {
		cmd.Items = append(cmd.Items, checkout.Item{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	res, err := h.svc.Checkout.Execute(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{
		OrderID:             res.OrderID,
		PaymentIntentID:     res.PaymentIntentID,
		ClientPaymentHandle: res.ClientPaymentHandle,
		Amount:              res.Amount,
		AmountDisplay:       display(res.Amount, res.Currency),
		Currency:            res.Currency,
		PaymentStatus:       res.PaymentStatus,
		Replayed:            res.Replayed,
	})
}

type webhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome,omitempty"`
}

// handleWebhook verifies the raw body against the signature header, so it must not be decoded first.
// Any non-2xx answer makes the processor redeliver.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := readBody(w, r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.reconcile(w, r, payload, r.Header.Get(headerSignature))
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request, payload []byte, signature string) {
	res, err := h.svc.Reconcile.Execute(r.Context(), reconcile.Command{Payload: payload, Signature: signature})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{Received: true, Outcome: string(res.Outcome)})
}

var simulatedOutcomes = map[string]payment.EventKind{
	"succeed": payment.EventSucceeded,
	"fail":    payment.EventFailed,
	"cancel":  payment.EventCanceled,
}

// handleSimulate completes a simulator intent and feeds the signed event through the webhook path.
func (h *Handler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	kind, ok := simulatedOutcomes[chi.URLParam(r, "outcome")]
	if !ok {
		writeDomainError(w, r, apperr.Validation("outcome must be succeed, fail or cancel"))
		return
	}
	payload, signature, err := h.svc.Simulator.Complete(chi.URLParam(r, "id"), kind, nil)
	if err != nil {
		kind := apperr.ErrNotFound
		if errors.Is(err, paysim.ErrIntentClosed) {
			kind = apperr.ErrConflict
		}
		writeDomainError(w, r, apperr.Wrap(kind, fmt.Errorf("simulate: %w", err)))
		return
	}
	h.reconcile(w, r, payload, signature)
}
