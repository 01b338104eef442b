package httppresentation

import (
	"net/http"

	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetOrder.Execute(r.Context(), apporder.GetCommand{
		UserID:  mustIdentity(r).UserID,
		OrderID: chi.URLParam(r, "id"),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(res.Order, res.Attempts))
}

type orderStatusResponse struct {
	OrderID        string               `json:"order_id"`
	PaymentStatus  order.PaymentStatus  `json:"payment_status,omitempty"`
	ShippingStatus order.ShippingStatus `json:"shipping_status"`
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Cancel.Execute(r.Context(), apporder.CancelCommand{
		UserID:  mustIdentity(r).UserID,
		OrderID: chi.URLParam(r, "id"),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderStatusResponse{
		OrderID:        res.OrderID,
		PaymentStatus:  res.PaymentStatus,
		ShippingStatus: res.ShippingStatus,
	})
}

// shippingRequest is the whole writable surface of an order for staff.
type shippingRequest struct {
	Status order.ShippingStatus `json:"status"`
}

func (h *Handler) handleUpdateShipping(w http.ResponseWriter, r *http.Request) {
	var req shippingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	res, err := h.svc.Shipping.Execute(r.Context(), apporder.ShippingCommand{
		OrderID: chi.URLParam(r, "id"),
		Status:  req.Status,
		Staff:   mustIdentity(r).Staff,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderStatusResponse{OrderID: res.OrderID, ShippingStatus: res.ShippingStatus})
}
