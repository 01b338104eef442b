package httppresentation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperr"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperr.Validation(fmt.Sprintf("invalid request body: %v", err))
	}
	if decoder.More() {
		return apperr.Validation("request body must hold a single JSON object")
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("read body: %v", err))
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps an error kind to a status code. An empty cart or short stock is the client's
// problem to fix, so those are 400 rather than 409.
func statusFor(err error) int {
	if errors.Is(err, cart.ErrEmpty) || errors.Is(err, catalog.ErrInsufficientStock) {
		return http.StatusBadRequest
	}
	switch apperr.Kind(err) {
	case apperr.ErrValidation, apperr.ErrSecurity:
		return http.StatusBadRequest
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrForbidden:
		return http.StatusForbidden
	case apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrExternal:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}
	if kind := apperr.Kind(err); kind != nil {
		body.Code = kind.Error()
	}
	if status == http.StatusInternalServerError {
		logctx.FromOr(r.Context(), observability.NopLogger()).Error("http_internal_error", observability.F("error", err))
		body = errorResponse{Error: "internal error"}
	}
	writeJSON(w, status, body)
}
