package web

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"lean-protocol-billing/internal/domain/model"
	"lean-protocol-billing/internal/infra/logging"
)

type identityCtxKey struct{}
type adminCtxKey struct{}

// IdentityFrom returns the identity the middleware resolved for the request.
func IdentityFrom(ctx context.Context) model.Identity {
	if v, ok := ctx.Value(identityCtxKey{}).(model.Identity); ok {
		return v
	}
	return model.Identity{Kind: model.IdentityKindAnonymous}
}

// AdminFrom returns the admin id for an admin-authenticated request.
func AdminFrom(ctx context.Context) string {
	if v, ok := ctx.Value(adminCtxKey{}).(string); ok {
		return v
	}
	return ""
}

type sessionClaims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

func parseToken(token, secret string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return nil, err
	}
	return claims, nil
}

// identityMiddleware resolves each request to exactly one identity:
// a full account (session cookie), a temp account (short-lived token issued
// after payment intent, X-Temp-Token header), or an anonymous session.
func (s *Server) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := s.resolveIdentity(r)
		ctx := context.WithValue(r.Context(), identityCtxKey{}, ident)
		if id := ident.OwnerID(); id != "" {
			ctx = logging.WithAccountID(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) resolveIdentity(r *http.Request) model.Identity {
	if c, err := r.Cookie(s.auth.SessionCookieName); err == nil && c.Value != "" {
		if claims, err := parseToken(c.Value, s.auth.SessionSecret); err == nil && claims.Kind == "account" {
			return model.Identity{Kind: model.IdentityKindAccount, AccountID: claims.Subject}
		}
	}
	if tok := r.Header.Get("X-Temp-Token"); tok != "" {
		if claims, err := parseToken(tok, s.auth.SessionSecret); err == nil && claims.Kind == "temp" {
			return model.Identity{Kind: model.IdentityKindTemp, AccountID: claims.Subject}
		}
	}
	sessionID := ""
	if c, err := r.Cookie("lp_anon"); err == nil {
		sessionID = c.Value
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return model.Identity{Kind: model.IdentityKindAnonymous, SessionID: sessionID}
}

// requireOwner rejects anonymous callers before the handler runs.
func (s *Server) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IdentityFrom(r.Context()).CanOwn() {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// adminMiddleware authenticates the back-office via the admin session cookie.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(s.auth.AdminCookieName)
		if err != nil || c.Value == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		claims, err := parseToken(c.Value, s.auth.AdminSecret)
		if err != nil || claims == nil || claims.Kind != "admin" || claims.Subject == "" {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
			return
		}
		ctx := context.WithValue(r.Context(), adminCtxKey{}, claims.Subject)
		ctx = logging.WithAdminID(ctx, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
