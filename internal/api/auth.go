package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/civicmesh/civic-broker/pkg/config"

	"github.com/civicmesh/civic-broker/internal/civic/profile"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Claims is the bearer-token payload the identity provider issues. The
// subject carries the opaque caller id.
type Claims struct {
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

// Auth verifies bearer tokens and attaches the caller identity to the request
// context.
type Auth struct {
	secret   []byte
	issuer   string
	optional bool
	logger   *slog.Logger
}

// NewAuth builds the auth middleware from config.
func NewAuth(cfg config.AuthConfig) *Auth {
	return &Auth{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.Issuer,
		optional: cfg.Optional,
		logger:   slog.Default().With("component", "auth"),
	}
}

// openPaths need no token in any auth mode: probes, scrapes, and the static
// image directory.
var openPaths = []string{"/health/", "/metrics", "/images/"}

func openPath(path string) bool {
	for _, prefix := range openPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Middleware verifies the Authorization bearer token. Unless auth is
// configured optional, every request outside the open-path whitelist must
// carry a valid token; in optional mode requests without one proceed
// anonymously and handlers that need an identity reject them individually.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			if a.optional || openPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			a.reject(w, r, next)
			return
		}

		claims := &Claims{}
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
		if a.issuer != "" {
			opts = append(opts, jwt.WithIssuer(a.issuer))
		}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return a.secret, nil
		}, opts...)
		if err != nil {
			a.logger.Debug("token rejected", "error", err)
			a.reject(w, r, next)
			return
		}

		ident := profile.Identity{
			ID:     claims.Subject,
			Name:   claims.Name,
			Email:  claims.Email,
			Avatar: claims.Avatar,
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), ident)))
	})
}

func (a *Auth) reject(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if a.optional {
		next.ServeHTTP(w, r)
		return
	}
	http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
}

func withIdentity(ctx context.Context, ident profile.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, ident)
}

// IdentityFrom extracts the authenticated caller, if any.
func IdentityFrom(ctx context.Context) (profile.Identity, bool) {
	ident, ok := ctx.Value(identityContextKey).(profile.Identity)
	return ident, ok && ident.ID != ""
}
