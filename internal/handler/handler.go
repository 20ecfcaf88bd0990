// Package handler exposes the POS service, catalog, reports and auth over
// HTTP under /api.
package handler

import (
	"net/http"

	"github.com/xenking/inventrak/internal/domain/auth"
	"github.com/xenking/inventrak/internal/domain/catalog"
	"github.com/xenking/inventrak/internal/domain/pos"
	"github.com/xenking/inventrak/internal/domain/report"
)

// HeaderIdempotencyKey makes a retried checkout return the first result.
const HeaderIdempotencyKey = "Idempotency-Key"

// Handler serves the API. It holds no state of its own.
type Handler struct {
	pos     *pos.Service
	catalog catalog.Repository
	reports *report.Service
	auth    *auth.Authenticator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	terminals *pos.Service,
	items catalog.Repository,
	reports *report.Service,
	authenticator *auth.Authenticator,
) *Handler {
	return &Handler{
		pos:     terminals,
		catalog: items,
		reports: reports,
		auth:    authenticator,
	}
}

// Register adds every API route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /api/auth/signup", h.public(h.signup))
	mux.Handle("POST /api/auth/login", h.public(h.login))
	mux.Handle("POST /api/auth/logout", h.signedIn(h.logout))
	mux.Handle("GET /api/auth/me", h.signedIn(h.me))

	mux.Handle("GET /api/catalog", h.tab(auth.TabPOS, h.listCatalog))
	mux.Handle("GET /api/catalog/categories", h.tab(auth.TabPOS, h.listCategories))
	mux.Handle("GET /api/catalog/{id}", h.tab(auth.TabPOS, h.getCatalogItem))

	mux.Handle("POST /api/carts", h.tab(auth.TabPOS, h.openCart))
	mux.Handle("GET /api/carts/{id}", h.tab(auth.TabPOS, h.getCart))
	mux.Handle("DELETE /api/carts/{id}", h.tab(auth.TabPOS, h.clearCart))
	mux.Handle("POST /api/carts/{id}/items", h.tab(auth.TabPOS, h.addItem))
	mux.Handle("PUT /api/carts/{id}/items/{productId}", h.tab(auth.TabPOS, h.setQuantity))
	mux.Handle("DELETE /api/carts/{id}/items/{productId}", h.tab(auth.TabPOS, h.removeItem))
	mux.Handle("POST /api/carts/{id}/checkout", h.tab(auth.TabPOS, h.checkout))

	mux.Handle("GET /api/inventory", h.tab(auth.TabInventory, h.inventory))
	mux.Handle("GET /api/alerts/low-stock", h.tab(auth.TabAlerts, h.lowStock))
	mux.Handle("GET /api/reports/sales", h.tab(auth.TabReports, h.sales))
}
