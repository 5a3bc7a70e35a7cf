package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gestaourbana/municipio/internal/auth"
)

type contextKey string

const (
	ContextKeySubject  contextKey = "subject"
	ContextKeyAudience contextKey = "audience"
	ContextKeyRoles    contextKey = "roles"
	ContextKeyTenant   contextKey = "tenant"
)

// Auth valida JWT de acesso e injeta claims no contexto.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
				return
			}

			claims, err := jwtManager.ParseAndValidate(parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "token inválido")
				return
			}

			if len(claims.Audience) == 0 {
				writeError(w, http.StatusUnauthorized, "AUTH", "audience inválida")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySubject, claims.Subject)
			ctx = context.WithValue(ctx, ContextKeyAudience, claims.Audience[0])
			ctx = context.WithValue(ctx, ContextKeyRoles, claims.Roles)
			ctx = context.WithValue(ctx, ContextKeyTenant, claims.TenantID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubject recupera subject do contexto.
func GetSubject(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeySubject).(string)
	return val
}

// GetAudience recupera audience do contexto.
func GetAudience(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyAudience).(string)
	return val
}

// GetRoles recupera roles do contexto.
func GetRoles(ctx context.Context) []string {
	val, _ := ctx.Value(ContextKeyRoles).([]string)
	return val
}

// GetTenant recupera o tenant ativo do contexto.
func GetTenant(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyTenant).(string)
	return val
}

// SetTenant injeta tenant no contexto (usado em testes e rotas internas).
func SetTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ContextKeyTenant, tenantID)
}

// RequireStaff garante papel de servidor municipal.
func RequireStaff(next http.Handler) http.Handler {
	return requireAnyRole("USER", "ADMIN", "SUPER_ADMIN")(next)
}

// RequireAdmin garante papel administrativo.
func RequireAdmin(next http.Handler) http.Handler {
	return requireAnyRole("ADMIN", "SUPER_ADMIN")(next)
}

func requireAnyRole(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roles := GetRoles(r.Context())
			for _, role := range roles {
				roleUpper := strings.ToUpper(strings.TrimSpace(role))
				for _, want := range required {
					if roleUpper == want {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			writeError(w, http.StatusForbidden, "FORBIDDEN", "sem acesso")
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
