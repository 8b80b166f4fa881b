package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/invoice"
	"github.com/xenking/kart-storefront/internal/storeapi"
)

func (h *Handler) getTaxConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.checkConfigID(r); err != nil {
		handleError(w, r, err)
		return
	}

	cfg, err := h.config.GetTaxConfig(r.Context())
	if err != nil {
		handleError(w, r, errors.Wrap(err, "get tax config"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		storeapi.EncodeTaxConfig(e, cfg)
	})
}

// updateTaxConfig overwrites the tax config record. There is no version
// check: the last writer wins.
func (h *Handler) updateTaxConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.checkConfigID(r); err != nil {
		handleError(w, r, err)
		return
	}

	var cfg invoice.TaxConfig
	if err := readBody(w, r, func(d *jx.Decoder) (err error) {
		cfg, err = storeapi.DecodeTaxConfig(d)
		return err
	}); err != nil {
		handleError(w, r, err)
		return
	}
	if cfg.TaxPercent.IsNegative() {
		handleError(w, r, badRequest(errors.New("negative tax percent")))
		return
	}
	cfg.ID = h.configID

	if err := h.config.UpdateTaxConfig(r.Context(), &cfg); err != nil {
		handleError(w, r, errors.Wrap(err, "update tax config"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		storeapi.EncodeTaxConfig(e, &cfg)
	})
}

func (h *Handler) checkConfigID(r *http.Request) error {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	if id != h.configID {
		return invoice.ErrConfigNotFound
	}
	return nil
}

// createHeader stores an invoice header. Invoice numbers are not checked for
// uniqueness.
func (h *Handler) createHeader(w http.ResponseWriter, r *http.Request) {
	var hdr invoice.Header
	if err := readBody(w, r, func(d *jx.Decoder) (err error) {
		hdr, err = storeapi.DecodeHeader(d)
		return err
	}); err != nil {
		handleError(w, r, err)
		return
	}
	if hdr.Number == "" {
		handleError(w, r, badRequest(errors.Errorf("%s is required", storeapi.FieldInvoiceNumber)))
		return
	}
	if !hdr.Status.Valid() {
		handleError(w, r, badRequest(errors.Errorf("%s is required", storeapi.FieldInvoiceStatus)))
		return
	}

	if err := h.invoices.CreateHeader(r.Context(), &hdr); err != nil {
		handleError(w, r, errors.Wrapf(err, "create invoice %s", hdr.Number))
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		// Status was validated above.
		_ = storeapi.EncodeHeader(e, &hdr)
	})
}

func (h *Handler) createLine(w http.ResponseWriter, r *http.Request) {
	var l invoice.Line
	if err := readBody(w, r, func(d *jx.Decoder) (err error) {
		l, err = storeapi.DecodeLine(d)
		return err
	}); err != nil {
		handleError(w, r, err)
		return
	}
	if l.InvoiceNumber == "" || l.ProductID < 1 || l.Quantity < 1 {
		handleError(w, r, badRequest(errors.Errorf("%s, %s and a positive %s are required",
			storeapi.FieldInvoiceNumber, storeapi.FieldProductID, storeapi.FieldLineQuantity)))
		return
	}

	if err := h.invoices.CreateLine(r.Context(), &l); err != nil {
		handleError(w, r, errors.Wrapf(err, "create line for invoice %s", l.InvoiceNumber))
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		storeapi.EncodeLine(e, &l)
	})
}
