package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/storeapi"
)

// findUser returns the user record for ?DNI=. The record includes the
// password; the storefront compares it client-side.
func (h *Handler) findUser(w http.ResponseWriter, r *http.Request) {
	dni := r.URL.Query().Get("DNI")
	if dni == "" {
		handleError(w, r, badRequest(errors.New("DNI is required")))
		return
	}

	u, err := h.users.FindByDNI(r.Context(), dni)
	if err != nil {
		handleError(w, r, errors.Wrap(err, "find user"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		storeapi.EncodeUser(e, u)
	})
}
