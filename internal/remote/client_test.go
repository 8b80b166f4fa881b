package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/domain/invoice"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/domain/session"
	"github.com/xenking/kart-storefront/internal/handler"
	"github.com/xenking/kart-storefront/internal/storage/memory"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// newTestClient serves the store API over a seeded memory backend.
func newTestClient(t *testing.T) (*Client, *memory.Store) {
	t.Helper()
	ctx := context.Background()

	s := memory.New()
	for _, p := range []product.Product{
		{ID: 1, Name: "Lamp", Price: d("19.99"), Image: "lamp.png", Stock: 4,
			Extra: map[string]json.RawMessage{"PRD_ACTIVO": json.RawMessage(`true`)}},
		{ID: 2, Name: "Chair", Price: d("45"), Image: "chair.png", Stock: 1},
	} {
		require.NoError(t, s.UpsertProduct(ctx, &p))
	}
	require.NoError(t, s.UpdateTaxConfig(ctx, &invoice.TaxConfig{
		ID:           1,
		TaxPercent:   d("18"),
		NextSequence: 41,
		Extra:        map[string]json.RawMessage{"EMP_NOMBRE": json.RawMessage(`"Kart S.A."`)},
	}))
	require.NoError(t, s.UpsertUser(ctx, &session.User{DNI: "12345678", Name: "pepe", Password: "secret"}))

	h := handler.NewHandler(handler.HandlerConfig{}, s, s, s, s)
	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", h.Routes()))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/api/", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c, s
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "valid", baseURL: "http://localhost:8080/api"},
		{name: "empty", baseURL: "", wantErr: true},
		{name: "no scheme", baseURL: "localhost:8080/api", wantErr: true},
		{name: "ftp", baseURL: "ftp://example.com", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Config{BaseURL: tt.baseURL})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestClient_Products(t *testing.T) {
	ctx := context.Background()
	c, s := newTestClient(t)

	ps, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "Lamp", ps[0].Name)
	assert.True(t, d("19.99").Equal(ps[0].Price))

	p, err := c.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Stock)

	p.Stock = 2
	require.NoError(t, c.Update(ctx, p))
	stored, err := s.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Stock)
	assert.JSONEq(t, `true`, string(stored.Extra["PRD_ACTIVO"]), "unknown fields written back")

	_, err = c.GetByID(ctx, 99)
	require.ErrorIs(t, err, product.ErrNotFound)
	require.ErrorIs(t, c.Update(ctx, &product.Product{ID: 99, Stock: 1}), product.ErrNotFound)
}

func TestClient_TaxConfig(t *testing.T) {
	ctx := context.Background()
	c, s := newTestClient(t)

	cfg, err := c.GetTaxConfig(ctx)
	require.NoError(t, err)
	assert.True(t, d("18").Equal(cfg.TaxPercent))
	assert.Equal(t, int64(41), cfg.NextSequence)

	cfg.NextSequence++
	require.NoError(t, c.UpdateTaxConfig(ctx, cfg))

	stored, err := s.GetTaxConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), stored.NextSequence)
	assert.JSONEq(t, `"Kart S.A."`, string(stored.Extra["EMP_NOMBRE"]))

	missing, err := New(Config{BaseURL: c.base.String(), ConfigID: 7})
	require.NoError(t, err)
	_, err = missing.GetTaxConfig(ctx)
	require.ErrorIs(t, err, invoice.ErrConfigNotFound)
}

func TestClient_Invoices(t *testing.T) {
	ctx := context.Background()
	c, s := newTestClient(t)

	require.NoError(t, c.CreateHeader(ctx, &invoice.Header{
		Number:       "FAC41",
		CustomerID:   "12345678",
		CustomerName: "pepe",
		Email:        "p@example.com",
		Address:      "Calle 1",
		Phone:        "099",
		IssuedAt:     time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
		Total:        d("23.6"),
		Status:       invoice.StatusPending,
	}))
	require.NoError(t, c.CreateLine(ctx, &invoice.Line{
		InvoiceNumber: "FAC41", ProductID: 1, Quantity: 2, Subtotal: d("39.98"),
	}))

	headers := s.Headers()
	require.Len(t, headers, 1)
	assert.Equal(t, invoice.StatusPending, headers[0].Status)
	assert.True(t, d("23.6").Equal(headers[0].Total))
	require.Len(t, s.Lines(), 1)

	// Rejected by the server.
	err := c.CreateLine(ctx, &invoice.Line{InvoiceNumber: "FAC41", ProductID: 1})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.NotEmpty(t, se.Message)
}

func TestClient_WritesReturnNilOn2xx(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusCreated, http.StatusNoContent} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			var hits atomic.Int32
			respond := func(w http.ResponseWriter, _ *http.Request) {
				hits.Add(1)
				w.WriteHeader(code)
			}
			mux := http.NewServeMux()
			mux.HandleFunc("PUT /api/Producto/1", respond)
			mux.HandleFunc("PUT /api/DatosGenerales/1", respond)
			mux.HandleFunc("POST /api/Factura", respond)
			mux.HandleFunc("POST /api/Detalle_Factura", respond)
			srv := httptest.NewServer(mux)
			t.Cleanup(srv.Close)

			ctx := context.Background()
			c, err := New(Config{BaseURL: srv.URL + "/api"})
			require.NoError(t, err)

			require.NoError(t, c.Update(ctx, &product.Product{ID: 1, Name: "Lamp", Price: d("1"), Stock: 1}))
			require.NoError(t, c.UpdateTaxConfig(ctx, &invoice.TaxConfig{ID: 1, TaxPercent: d("18"), NextSequence: 2}))
			require.NoError(t, c.CreateHeader(ctx, &invoice.Header{Number: "FAC1", Status: invoice.StatusPaid}))
			require.NoError(t, c.CreateLine(ctx, &invoice.Line{InvoiceNumber: "FAC1", ProductID: 1, Quantity: 1}))
			assert.Equal(t, int32(4), hits.Load())
		})
	}
}

func TestClient_FindByDNI(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	u, err := c.FindByDNI(ctx, "12345678")
	require.NoError(t, err)
	assert.Equal(t, session.User{DNI: "12345678", Name: "pepe", Password: "secret"}, *u)

	_, err = c.FindByDNI(ctx, "000")
	require.ErrorIs(t, err, session.ErrUserNotFound)
}

func TestClient_NonStandardResponses(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/Producto", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("PrdNombre") == "5" {
			_, _ = w.Write([]byte(`[{"PRD_ID":5,"PRD_NOMBRE":"Vase","PRD_PRECIO":"7.5","PRD_STOCK":"3"}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("GET /api/Usuario", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`null`))
	})
	mux.HandleFunc("GET /api/DatosGenerales/1", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>upstream down</html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	c, err := New(Config{BaseURL: srv.URL + "/api"})
	require.NoError(t, err)

	p, err := c.GetByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "Vase", p.Name)
	assert.Equal(t, 3, p.Stock)

	_, err = c.GetByID(ctx, 6)
	require.ErrorIs(t, err, product.ErrNotFound)

	_, err = c.FindByDNI(ctx, "1")
	require.ErrorIs(t, err, session.ErrUserNotFound)

	_, err = c.GetTaxConfig(ctx)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Contains(t, err.Error(), "502 Bad Gateway")
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.List(context.Background())
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}
