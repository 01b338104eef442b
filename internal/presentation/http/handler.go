package httppresentation

import (
	"context"
	"net/http"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	appcart "github.com/Zhima-Mochi/minishop-checkout/internal/application/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/reconcile"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const componentHTTPHandler = "http_server"

type CartService interface {
	Get(ctx context.Context, userID string) (*appcart.View, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (*appcart.View, error)
	SetQuantity(ctx context.Context, userID, productID string, quantity int) (*appcart.View, error)
	RemoveItem(ctx context.Context, userID, productID string) (*appcart.View, error)
}

type CatalogService interface {
	List(ctx context.Context) ([]*catalog.Product, error)
	Get(ctx context.Context, id string) (*catalog.Product, error)
}

// Simulator completes intents of the local payment simulator and returns the signed event.
type Simulator interface {
	Complete(id string, kind payment.EventKind, captured *int64) ([]byte, string, error)
}

// Services are the use cases the HTTP surface exposes. Simulator and Metrics are optional.
type Services struct {
	Checkout  application.UseCase[checkout.Command, *checkout.Result]
	Reconcile application.UseCase[reconcile.Command, *reconcile.Result]
	GetOrder  application.UseCase[apporder.GetCommand, *apporder.GetResult]
	Cancel    application.UseCase[apporder.CancelCommand, *apporder.CancelResult]
	Shipping  application.UseCase[apporder.ShippingCommand, *apporder.ShippingResult]
	Lookup    application.UseCase[apppayment.LookupCommand, *apppayment.LookupResult]
	Cart      CartService
	Catalog   CatalogService
	Simulator Simulator
	Metrics   http.Handler
	// Currency labels catalog prices.
	Currency string
}

type Handler struct {
	svc     Services
	auth    *Authenticator
	limiter *IPRateLimiter
	log     observability.Logger
	tel     observability.Observability
}

func NewHandler(svc Services, auth *Authenticator, limiter *IPRateLimiter, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	if auth == nil {
		auth = NewAuthenticator("", false)
	}
	if svc.Currency == "" {
		svc.Currency = "usd"
	}
	return &Handler{
		svc:     svc,
		auth:    auth,
		limiter: limiter,
		log:     tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:     tel,
	}
}

// Router wires every route behind Recoverer → Trace → request logger and metrics → access log → auth.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(withTrace)
	r.Use(ObservabilityMiddleware(h.log, func(r *http.Request) string {
		return r.Header.Get(headerRequestID)
	}, h.tel))
	r.Use(withAccessLog(h.log))
	r.Use(h.auth.Middleware)

	r.Get("/health", h.handleHealth)
	if h.svc.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.svc.Metrics)
	}
	r.Get("/products", h.handleListProducts)
	r.Get("/products/{id}", h.handleGetProduct)
	r.Post("/webhook", h.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(requireUser)
		r.With(h.limiter.Middleware).Post("/checkout", h.handleCheckout)

		r.Get("/orders/{id}", h.handleGetOrder)
		r.Post("/orders/{id}/cancel", h.handleCancelOrder)
		r.Patch("/orders/{id}/shipping", h.handleUpdateShipping)

		r.Get("/cart", h.handleGetCart)
		r.Post("/cart/items", h.handleAddCartItem)
		r.Put("/cart/items/{productID}", h.handleSetCartItem)
		r.Delete("/cart/items/{productID}", h.handleRemoveCartItem)

		r.Get("/payments/intents/{id}", h.handleLookupIntent)
	})

	if h.svc.Simulator != nil {
		r.Post("/dev/payments/{id}/{outcome}", h.handleSimulate)
	}
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func mustIdentity(r *http.Request) Identity {
	id, _ := IdentityFrom(r.Context())
	return id
}
