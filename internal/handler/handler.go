// Package handler serves the remote store API over HTTP for the store server.
package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/invoice"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/domain/session"
	"github.com/xenking/kart-storefront/internal/storeapi"
)

const maxBodyBytes = 1 << 20

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string
	// ConfigID is the id the tax config record is served under. Defaults to 1.
	ConfigID int64
}

// Store is a backend implementing every repository the handler uses, such as
// memory.Store or postgres.Store.
type Store interface {
	product.Repository
	invoice.Repository
	invoice.ConfigRepository
	session.UserRepository
}

// Handler serves products, invoices, the tax config and user lookups.
type Handler struct {
	products     product.Repository
	invoices     invoice.Repository
	config       invoice.ConfigRepository
	users        session.UserRepository
	imageBaseURL string
	configID     int64
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	products product.Repository,
	invoices invoice.Repository,
	config invoice.ConfigRepository,
	users session.UserRepository,
) *Handler {
	if cfg.ConfigID == 0 {
		cfg.ConfigID = 1
	}
	return &Handler{
		products:     products,
		invoices:     invoices,
		config:       config,
		users:        users,
		imageBaseURL: strings.TrimSuffix(cfg.ImageBaseURL, "/"),
		configID:     cfg.ConfigID,
	}
}

// Routes returns the API router. Mount it under /api.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/Producto", h.getProducts)
	r.Put("/Producto/{id}", h.updateProduct)
	r.Get("/DatosGenerales/{id}", h.getTaxConfig)
	r.Put("/DatosGenerales/{id}", h.updateTaxConfig)
	r.Post("/Factura", h.createHeader)
	r.Post("/Detalle_Factura", h.createLine)
	r.Get("/Usuario", h.findUser)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// badRequestError marks client input errors.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &badRequestError{err: err}
}

// readBody reads the request body and runs decode over it.
func readBody(w http.ResponseWriter, r *http.Request, decode func(d *jx.Decoder) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return badRequest(errors.Wrap(err, "read body"))
	}
	if err := decode(jx.DecodeBytes(data)); err != nil {
		return badRequest(err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		storeapi.EncodeError(e, storeapi.Error{Code: status, Message: msg})
	})
}

// handleError maps domain errors to HTTP responses.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var bad *badRequestError
	switch {
	case errors.As(err, &bad):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, invoice.ErrConfigNotFound),
		errors.Is(err, session.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
