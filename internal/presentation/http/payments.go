package httppresentation

import (
	"net/http"

	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/go-chi/chi/v5"
)

type intentResponse struct {
	ID             string               `json:"id"`
	Status         payment.IntentStatus `json:"status"`
	Amount         int64                `json:"amount"`
	AmountReceived int64                `json:"amount_received"`
	Currency       string               `json:"currency"`
}

type intentLookupResponse struct {
	Intent  intentResponse  `json:"intent"`
	Attempt attemptResponse `json:"attempt"`
}

func (h *Handler) handleLookupIntent(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Lookup.Execute(r.Context(), apppayment.LookupCommand{
		UserID:        mustIdentity(r).UserID,
		TransactionID: chi.URLParam(r, "id"),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, intentLookupResponse{
		Intent: intentResponse{
			ID:             res.Intent.ID,
			Status:         res.Intent.Status,
			Amount:         res.Intent.Amount,
			AmountReceived: res.Intent.AmountReceived,
			Currency:       res.Intent.Currency,
		},
		Attempt: toAttemptResponse(res.Attempt),
	})
}
