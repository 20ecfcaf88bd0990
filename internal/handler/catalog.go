package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/inventrak/internal/codec"
	"github.com/xenking/inventrak/internal/domain/catalog"
)

// listCatalog serves the product picker: ?search= matches name or code,
// ?category= filters by category ("all" disables the filter).
func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) error {
	items, err := h.catalog.List(r.Context())
	if err != nil {
		return errors.Wrap(err, "list catalog")
	}
	q := r.URL.Query()
	found := catalog.Search(items, catalog.Query{
		Text:     q.Get("search"),
		Category: q.Get("category"),
	})
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { codec.Items(e, found) })
	return nil
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) error {
	items, err := h.catalog.List(r.Context())
	if err != nil {
		return errors.Wrap(err, "list catalog")
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { codec.Strings(e, catalog.Categories(items)) })
	return nil
}

func (h *Handler) getCatalogItem(w http.ResponseWriter, r *http.Request) error {
	it, err := h.catalog.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { codec.Item(e, *it) })
	return nil
}
