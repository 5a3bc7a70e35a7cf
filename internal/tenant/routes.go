package tenant

import (
	"github.com/go-chi/chi/v5"
)

// Mount adiciona as rotas do diretório no router.
func Mount(r chi.Router, handler *Handler) {
	handler.RegisterRoutes(r)
}
