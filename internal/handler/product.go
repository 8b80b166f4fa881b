package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/storeapi"
)

// getProducts lists the catalog, or, with ?PrdNombre={id}, returns the single
// product with that id. The parameter name is historical: it carries an id.
func (h *Handler) getProducts(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("PrdNombre"); raw != "" {
		h.getProduct(w, r, raw)
		return
	}

	products, err := h.products.List(r.Context())
	if err != nil {
		handleError(w, r, errors.Wrap(err, "list products"))
		return
	}
	for i := range products {
		h.withImageBase(&products[i])
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		storeapi.EncodeProducts(e, products)
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		handleError(w, r, errors.Wrapf(err, "get product %d", id))
		return
	}
	h.withImageBase(p)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		storeapi.EncodeProduct(e, p)
	})
}

// updateProduct replaces the whole product record. A body without an id takes
// the one from the path.
func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}

	var p product.Product
	if err := readBody(w, r, func(d *jx.Decoder) (err error) {
		p, err = storeapi.DecodeProduct(d)
		return err
	}); err != nil {
		handleError(w, r, err)
		return
	}
	switch {
	case p.ID == 0:
		p.ID = id
	case p.ID != id:
		handleError(w, r, badRequest(errors.Errorf("body id %d does not match path id %d", p.ID, id)))
		return
	}
	if p.Stock < 0 {
		handleError(w, r, badRequest(errors.Errorf("negative stock %d", p.Stock)))
		return
	}
	h.withoutImageBase(&p)

	if err := h.products.Update(r.Context(), &p); err != nil {
		handleError(w, r, errors.Wrapf(err, "update product %d", id))
		return
	}
	h.withImageBase(&p)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		storeapi.EncodeProduct(e, &p)
	})
}

// withImageBase prefixes a relative image path with the configured base URL.
func (h *Handler) withImageBase(p *product.Product) {
	if h.imageBaseURL == "" || p.Image == "" || isAbsoluteURL(p.Image) {
		return
	}
	p.Image = h.imageBaseURL + "/" + strings.TrimPrefix(p.Image, "/")
}

// withoutImageBase reverts withImageBase so clients writing back a fetched
// record do not store the prefix.
func (h *Handler) withoutImageBase(p *product.Product) {
	if h.imageBaseURL == "" {
		return
	}
	p.Image = strings.TrimPrefix(p.Image, h.imageBaseURL+"/")
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, badRequest(errors.Errorf("invalid id %q", raw))
	}
	return id, nil
}
