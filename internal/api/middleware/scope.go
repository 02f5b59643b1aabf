package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/hugh/go-marks/internal/scope"
)

const (
	ActiveCompanyCookie = "active_company"
	ActiveCompanyHeader = "X-Company-ID"
)

// Scope resolves the request's Scope once, after Auth, so handlers receive
// it as a value instead of reading cookies themselves.
func Scope(resolver *scope.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := resolver.Resolve(r.Context(), GetPrincipal(r.Context()), CompanyHint(r))
			if !s.Authenticated() {
				handleUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), s)))
		})
	}
}

// CompanyHint reads the requested active company. The header wins over the
// cookie; unparsable values are ignored.
func CompanyHint(r *http.Request) *uuid.UUID {
	raw := r.Header.Get(ActiveCompanyHeader)
	if raw == "" {
		if cookie, err := r.Cookie(ActiveCompanyCookie); err == nil {
			raw = cookie.Value
		}
	}
	if raw == "" {
		return nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

func WithScope(ctx context.Context, s scope.Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, s)
}

func GetScope(ctx context.Context) scope.Scope {
	if s, ok := ctx.Value(ScopeKey).(scope.Scope); ok {
		return s
	}
	return scope.Scope{}
}
