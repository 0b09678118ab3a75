package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"bilancio/internal/log"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrNoTenant     = errors.New("token carries no company id")
)

// tenantClaims lists the claim names holding the tenant, in lookup order.
var tenantClaims = []string{"company_id", "companyId"}

type tenantKey struct{}

// Authenticator resolves the tenant of a request from its bearer token.
// With a secret the token must be a valid HS256 JWT; without one the
// payload is read unverified, leaving verification to an upstream gateway.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

func NewAuthenticator(secret string) *Authenticator {
	a := &Authenticator{}
	if secret != "" {
		a.secret = []byte(secret)
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	} else {
		a.parser = jwt.NewParser()
	}
	return a
}

// Verifying reports whether token signatures are checked.
func (a *Authenticator) Verifying() bool { return len(a.secret) > 0 }

// Tenant extracts the tenant id from the Authorization header.
func (a *Authenticator) Tenant(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return "", ErrMissingToken
	}
	raw = strings.TrimSpace(raw)

	claims := jwt.MapClaims{}
	if a.Verifying() {
		_, err := a.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.secret, nil
		})
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	} else if _, _, err := a.parser.ParseUnverified(raw, claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return tenantFromClaims(claims)
}

func tenantFromClaims(claims jwt.MapClaims) (string, error) {
	for _, name := range tenantClaims {
		switch v := claims[name].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s, nil
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		}
	}
	return "", ErrNoTenant
}

// Middleware rejects requests without a tenant and stores it in the context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant, err := a.Tenant(r)
		if err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Unauthorized request",
				log.FieldComponent, log.ComponentAuth,
				log.FieldErrorType, log.ErrorTypeAuth,
				log.FieldPath, r.URL.Path,
				log.FieldError, err)
			msg := err.Error()
			if errors.Is(err, ErrInvalidToken) {
				msg = ErrInvalidToken.Error()
			}
			UnauthorizedError(msg).Write(w)
			return
		}
		ctx := context.WithValue(r.Context(), tenantKey{}, tenant)
		logger := log.FromContext(ctx).With(log.FieldTenant, tenant)
		ctx = log.IntoContext(ctx, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TenantFromContext returns the tenant stored by Middleware.
func TenantFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tenantKey{}).(string)
	return t
}
