package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// TenantScope exige tenant válido no token para rotas protegidas.
// Todas as operações do motor de protocolos são executadas dentro do
// tenant do ator; requisições sem tenant são rejeitadas antes do handler.
func TenantScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := GetTenant(r.Context())
		if tenantID == "" {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "tenant não informado no token")
			return
		}

		if _, err := uuid.Parse(tenantID); err != nil {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "tenant inválido")
			return
		}

		next.ServeHTTP(w, r)
	})
}
