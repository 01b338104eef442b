package httppresentation

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"github.com/golang-jwt/jwt/v5"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
	roleStaff      = "staff"
)

var (
	errUnauthenticated = errors.New("authentication required")
	errInvalidToken    = errors.New("invalid bearer token")
)

// Identity is the caller resolved from a bearer token or a trusted gateway header.
type Identity struct {
	UserID string
	Staff  bool
}

type identityKey struct{}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller bound to ctx by the authentication middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// Authenticator resolves the caller. Bearer tokens are HS256 JWTs whose sub claim is the
// user id and whose optional role claim marks staff.
type Authenticator struct {
	secret      []byte
	trustHeader bool
}

func NewAuthenticator(secret string, trustHeader bool) *Authenticator {
	return &Authenticator{secret: []byte(secret), trustHeader: trustHeader}
}

// Middleware binds the caller to the request context when one is presented.
// A malformed or unverifiable token is rejected outright; anonymous requests pass through.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.resolve(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		if id.UserID == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := withIdentity(r.Context(), id)
		if logger := logctx.From(ctx); logger != nil {
			ctx = logctx.With(ctx, logger.With(observability.F("user_id", id.UserID)))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) resolve(r *http.Request) (Identity, error) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || len(a.secret) == 0 {
			return Identity{}, errInvalidToken
		}
		return a.parse(parts[1])
	}
	if a.trustHeader {
		return Identity{
			UserID: strings.TrimSpace(r.Header.Get(headerUserID)),
			Staff:  r.Header.Get(headerUserRole) == roleStaff,
		}, nil
	}
	return Identity{}, nil
}

func (a *Authenticator) parse(raw string) (Identity, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Identity{}, errInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return Identity{}, errInvalidToken
	}
	role, _ := claims["role"].(string)
	return Identity{UserID: sub, Staff: role == roleStaff}, nil
}

// requireUser answers 401 unless the request carries an identity.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, errUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}
