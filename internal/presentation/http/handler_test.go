package httppresentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperr"
	appcart "github.com/Zhima-Mochi/minishop-checkout/internal/application/cart"
	appcatalog "github.com/Zhima-Mochi/minishop-checkout/internal/application/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/reconcile"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/paysim"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testSecret = "jwt-test-secret"

type HandlerSuite struct {
	suite.Suite
	store *memory.Store
	sim   *paysim.Simulator
	svc   Services
	h     http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctx := context.Background()
	s.store = memory.NewStore()
	s.sim = paysim.New("whsec_test", 1)

	p, err := catalog.NewProduct("mug", "Mug", 1000, 5)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Catalog().Upsert(ctx, p))

	s.svc = s.services()
	s.h = NewHandler(s.svc, NewAuthenticator(testSecret, true), nil, nil).Router()
}

func (s *HandlerSuite) services() Services {
	orderDeps := apporder.Deps{
		Catalog:   s.store.Catalog(),
		Orders:    s.store.Orders(),
		Payments:  s.store.Payments(),
		Processor: s.sim,
		UoW:       s.store.UnitOfWork(),
	}
	return Services{
		Checkout: checkout.New(checkout.Deps{
			Catalog:    s.store.Catalog(),
			Carts:      s.store.Carts(),
			Orders:     s.store.Orders(),
			Payments:   s.store.Payments(),
			Processor:  s.sim,
			UoW:        s.store.UnitOfWork(),
			IDs:        id.NewUUIDGenerator(),
			PaymentTTL: 30 * time.Minute,
		}),
		Reconcile: reconcile.NewHandler(reconcile.Deps{
			Catalog:   s.store.Catalog(),
			Orders:    s.store.Orders(),
			Payments:  s.store.Payments(),
			Processor: s.sim,
			UoW:       s.store.UnitOfWork(),
		}),
		GetOrder:  apporder.NewGetUseCase(orderDeps),
		Cancel:    apporder.NewCancelUseCase(orderDeps),
		Shipping:  apporder.NewShippingUseCase(orderDeps),
		Lookup:    apppayment.NewLookupUseCase(s.store.Payments(), s.sim, nil),
		Cart:      appcart.NewService(s.store.Carts(), s.store.Catalog(), "usd", nil),
		Catalog:   appcatalog.NewService(s.store.Catalog(), nil),
		Simulator: s.sim,
	}
}

func (s *HandlerSuite) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func as(user string) map[string]string { return map[string]string{headerUserID: user} }

func decode[T any](s *HandlerSuite, rec *httptest.ResponseRecorder) T {
	var out T
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *HandlerSuite) checkout(user string) checkoutResponse {
	rec := s.do(http.MethodPost, "/checkout", checkoutRequest{
		Items:   []checkoutItem{{ProductID: "mug", Quantity: 2}},
		Contact: contactBody{Name: "Ada", Email: "ada@example.com"},
	}, as(user))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	return decode[checkoutResponse](s, rec)
}

func (s *HandlerSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", nil, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.NotEmpty(rec.Header().Get(headerRequestID))
}

func (s *HandlerSuite) TestRequestIDIsEchoed() {
	rec := s.do(http.MethodGet, "/health", nil, map[string]string{headerRequestID: "req-1"})
	s.Equal("req-1", rec.Header().Get(headerRequestID))
}

func (s *HandlerSuite) TestProtectedRoutesNeedIdentity() {
	for _, path := range []string{"/checkout", "/orders/x/cancel"} {
		rec := s.do(http.MethodPost, path, nil, nil)
		s.Equal(http.StatusUnauthorized, rec.Code, path)
	}
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/cart", nil, nil).Code)
}

func (s *HandlerSuite) TestInvalidBearerTokenIsRejected() {
	rec := s.do(http.MethodGet, "/products", nil, map[string]string{"Authorization": "Bearer not-a-jwt"})
	s.Equal(http.StatusUnauthorized, rec.Code)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte("other"))
	s.Require().NoError(err)
	rec = s.do(http.MethodGet, "/cart", nil, map[string]string{"Authorization": "Bearer " + forged})
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestCartCheckoutWebhookFlow() {
	rec := s.do(http.MethodPost, "/cart/items", addCartItemRequest{ProductID: "mug", Quantity: 2}, as("u1"))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	view := decode[cartResponse](s, rec)
	s.Equal(int64(2000), view.Total)
	s.Equal("20.00 USD", view.TotalDisplay)

	headers := map[string]string{headerUserID: "u1", headerIdempotencyKey: "key-1"}
	rec = s.do(http.MethodPost, "/checkout", nil, headers)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	first := decode[checkoutResponse](s, rec)
	s.Equal(int64(2000), first.Amount)
	s.Equal("usd", first.Currency)
	s.NotEmpty(first.ClientPaymentHandle)
	s.False(first.Replayed)

	rec = s.do(http.MethodGet, "/cart", nil, as("u1"))
	s.Empty(decode[cartResponse](s, rec).Lines, "checkout empties the cart")

	rec = s.do(http.MethodPost, "/checkout", nil, headers)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	replay := decode[checkoutResponse](s, rec)
	s.True(replay.Replayed)
	s.Equal(first.OrderID, replay.OrderID)

	payload, sig, err := s.sim.Complete(first.PaymentIntentID, payment.EventSucceeded, nil)
	s.Require().NoError(err)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	req.Header.Set(headerSignature, sig)
	rec = httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal(webhookResponse{Received: true, Outcome: "paid"}, decode[webhookResponse](s, rec))

	rec = s.do(http.MethodGet, "/orders/"+first.OrderID, nil, as("u1"))
	s.Require().Equal(http.StatusOK, rec.Code)
	o := decode[orderResponse](s, rec)
	s.Equal("paid", string(o.PaymentStatus))
	s.Require().Len(o.Attempts, 1)
	s.Equal(payment.StatusPaid, o.Attempts[0].Status)

	rec = s.do(http.MethodGet, "/payments/intents/"+first.PaymentIntentID, nil, as("u1"))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal(payment.IntentSucceeded, decode[intentLookupResponse](s, rec).Intent.Status)
}

func (s *HandlerSuite) TestCheckoutClientErrors() {
	rec := s.do(http.MethodPost, "/checkout", nil, as("u1"))
	s.Equal(http.StatusBadRequest, rec.Code, "empty cart")

	rec = s.do(http.MethodPost, "/checkout", checkoutRequest{Items: []checkoutItem{{ProductID: "mug", Quantity: 6}}}, as("u1"))
	s.Equal(http.StatusBadRequest, rec.Code, "insufficient stock")

	rec = s.do(http.MethodPost, "/checkout", map[string]any{"items": []any{}, "total": 1}, as("u1"))
	s.Equal(http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	s.sim.FailCreate(true)
	rec = s.do(http.MethodPost, "/checkout", checkoutRequest{Items: []checkoutItem{{ProductID: "mug", Quantity: 1}}}, as("u1"))
	s.Equal(http.StatusBadGateway, rec.Code)
}

func (s *HandlerSuite) TestWebhookRejectsBadSignature() {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(`{"id":"evt_1"}`)))
	req.Header.Set(headerSignature, "t=1,v1=00")
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestOrdersAreScopedToOwner() {
	res := s.checkout("u1")
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/orders/"+res.OrderID, nil, as("u2")).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodPost, "/orders/"+res.OrderID+"/cancel", nil, as("u2")).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/payments/intents/"+res.PaymentIntentID, nil, as("u2")).Code)
}

func (s *HandlerSuite) TestCancelPendingOrder() {
	res := s.checkout("u1")

	rec := s.do(http.MethodPost, "/orders/"+res.OrderID+"/cancel", nil, as("u1"))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	out := decode[orderStatusResponse](s, rec)
	s.Equal("canceled", string(out.PaymentStatus))
	s.Equal("cancelled", string(out.ShippingStatus))

	s.Equal(http.StatusConflict, s.do(http.MethodPost, "/orders/"+res.OrderID+"/cancel", nil, as("u1")).Code)
}

func (s *HandlerSuite) TestShippingNeedsStaffAndPaidOrder() {
	res := s.checkout("u1")
	body := shippingRequest{Status: "shipped"}
	staff, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ops", "role": "staff"}).SignedString([]byte(testSecret))
	s.Require().NoError(err)
	asStaff := map[string]string{"Authorization": "Bearer " + staff}

	s.Equal(http.StatusForbidden, s.do(http.MethodPatch, "/orders/"+res.OrderID+"/shipping", body, as("u1")).Code)
	s.Equal(http.StatusConflict, s.do(http.MethodPatch, "/orders/"+res.OrderID+"/shipping", body, asStaff).Code, "order not paid yet")

	rec := s.do(http.MethodPost, "/dev/payments/"+res.PaymentIntentID+"/succeed", nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPatch, "/orders/"+res.OrderID+"/shipping", map[string]string{"status": "shipped", "payment_status": "paid"}, asStaff)
	s.Equal(http.StatusBadRequest, rec.Code, "only the status field is writable")

	rec = s.do(http.MethodPatch, "/orders/"+res.OrderID+"/shipping", body, asStaff)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("shipped", string(decode[orderStatusResponse](s, rec).ShippingStatus))
}

func (s *HandlerSuite) TestSimulateRejectsUnknownOutcome() {
	res := s.checkout("u1")
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/dev/payments/"+res.PaymentIntentID+"/refund", nil, nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodPost, "/dev/payments/pi_missing/succeed", nil, nil).Code)

	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/dev/payments/"+res.PaymentIntentID+"/succeed", nil, nil).Code)
	s.Equal(http.StatusConflict, s.do(http.MethodPost, "/dev/payments/"+res.PaymentIntentID+"/cancel", nil, nil).Code)
}

func (s *HandlerSuite) TestCatalogRoutes() {
	rec := s.do(http.MethodGet, "/products", nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	products := decode[[]productResponse](s, rec)
	s.Require().Len(products, 1)
	s.Equal("10.00 USD", products[0].PriceDisplay)

	s.Equal(http.StatusOK, s.do(http.MethodGet, "/products/mug", nil, nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/products/nope", nil, nil).Code)
}

func (s *HandlerSuite) TestCartItemRoutes() {
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/cart/items", addCartItemRequest{ProductID: "mug", Quantity: 1}, as("u1")).Code)

	rec := s.do(http.MethodPut, "/cart/items/mug", setCartItemRequest{Quantity: 3}, as("u1"))
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(int64(3000), decode[cartResponse](s, rec).Total)

	s.Equal(http.StatusBadRequest, s.do(http.MethodPut, "/cart/items/mug", setCartItemRequest{Quantity: 9}, as("u1")).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, "/cart/items/tea", nil, as("u1")).Code)

	rec = s.do(http.MethodDelete, "/cart/items/mug", nil, as("u1"))
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Empty(decode[cartResponse](s, rec).Lines)
}

func (s *HandlerSuite) TestCheckoutIsRateLimitedPerIP() {
	h := NewHandler(s.svc, NewAuthenticator("", true), NewIPRateLimiter(0.001, 1), nil).Router()
	call := func() int {
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		req.Header.Set(headerUserID, "u1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	s.Equal(http.StatusBadRequest, call(), "first request reaches the use case")
	s.Equal(http.StatusTooManyRequests, call())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Validation("x"), http.StatusBadRequest},
		{apperr.Wrap(apperr.ErrSecurity, payment.ErrInvalidSignature), http.StatusBadRequest},
		{apperr.Wrap(apperr.ErrNotFound, errors.New("x")), http.StatusNotFound},
		{apperr.Wrap(apperr.ErrForbidden, errors.New("x")), http.StatusForbidden},
		{apperr.Wrap(apperr.ErrConflict, errors.New("x")), http.StatusConflict},
		{apperr.Wrap(apperr.ErrConflict, cart.ErrEmpty), http.StatusBadRequest},
		{apperr.Wrap(apperr.ErrConflict, &catalog.InsufficientStockError{ProductID: "p"}), http.StatusBadRequest},
		{apperr.Wrap(apperr.ErrExternal, errors.New("x")), http.StatusBadGateway},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	rec := httptest.NewRecorder()
	writeDomainError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("dial tcp 10.0.0.3:5432"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestIPRateLimiterPrunesIdleClients(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("a"))
	now = now.Add(10 * time.Minute)
	require.True(t, l.Allow("b"))

	assert.Equal(t, 1, l.Prune(5*time.Minute))
	assert.True(t, l.Allow("a"), "a pruned client starts with a full bucket")

	var nilLimiter *IPRateLimiter
	assert.True(t, nilLimiter.Allow("x"))
	assert.Nil(t, NewIPRateLimiter(0, 1))
}
