package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/checkout"
	"github.com/xenking/kart-storefront/internal/domain/invoice"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/domain/session"
	"github.com/xenking/kart-storefront/internal/storage/kv"
	"github.com/xenking/kart-storefront/internal/storage/memory"
	"github.com/xenking/kart-storefront/pkg/health"
)

var noopTelemetry = Telemetry{
	TracerProvider: tracenoop.NewTracerProvider(),
	MeterProvider:  metricnoop.NewMeterProvider(),
}

type env struct {
	store  *memory.Store
	probes *health.Checker
	srv    *httptest.Server
	cfg    ClientConfig
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	scfg := ServerConfig{
		ConfigID: 1,
		Seed:     SeedConfig{TaxPercent: "18", NextSequence: 41},
	}
	store, err := NewMemoryBackend(ctx, scfg)
	require.NoError(t, err)
	require.NoError(t, store.UpsertProduct(ctx, &product.Product{
		ID: 1, Name: "Lamp", Price: decimal.RequireFromString("10.00"), Stock: 5,
	}))
	require.NoError(t, store.UpsertProduct(ctx, &product.Product{
		ID: 2, Name: "Pen", Price: decimal.RequireFromString("2.50"), Stock: 0,
	}))
	require.NoError(t, store.UpsertUser(ctx, &session.User{DNI: "12345678", Name: "pepe", Password: "secret"}))

	probes := health.New(health.Config{})
	srv := httptest.NewServer(NewRouter(zap.NewNop(), scfg, store, probes,
		noopTelemetry.TracerProvider, noopTelemetry.MeterProvider))
	t.Cleanup(srv.Close)

	return &env{
		store:  store,
		probes: probes,
		srv:    srv,
		cfg: ClientConfig{
			BaseURL:  srv.URL + "/api",
			ConfigID: 1,
			Blob:     BlobConfig{Backend: BlobMemory},
		},
	}
}

func (e *env) storefront(t *testing.T, blobs kv.Store) *Storefront {
	t.Helper()
	s, err := NewStorefront(context.Background(), e.cfg, blobs, noopTelemetry)
	require.NoError(t, err)
	return s
}

func run(ctx context.Context, s *Storefront, args ...string) (string, error) {
	var out bytes.Buffer
	err := Exec(ctx, s, &out, args)
	return out.String(), err
}

func TestStorefrontFlow(t *testing.T) {
	e := newEnv(t)
	ctx := zctx.Base(context.Background(), zap.NewNop())
	s := e.storefront(t, kv.NewMemory())

	_, err := run(ctx, s, "products")
	require.ErrorIs(t, err, session.ErrNoSession)

	_, err = run(ctx, s, "login", "12345678", "pepe", "wrong")
	require.ErrorIs(t, err, session.ErrInvalidCredentials)

	out, err := run(ctx, s, "login", "12345678", "pepe", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome, pepe")

	out, err = run(ctx, s, "products")
	require.NoError(t, err)
	assert.Contains(t, out, "Lamp")
	assert.Contains(t, out, "out of stock")

	out, err = run(ctx, s, "product", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Price: 10.00")

	_, err = run(ctx, s, "add", "2")
	require.ErrorIs(t, err, cart.ErrOutOfStock)

	out, err = run(ctx, s, "add", "1", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "Lamp x5", "quantity clamped to stock")

	out, err = run(ctx, s, "dec", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Lamp x4")

	_, err = run(ctx, s, "inc", "7")
	require.ErrorIs(t, err, cart.ErrLineNotFound)

	out, err = run(ctx, s, "cart")
	require.NoError(t, err)
	assert.Contains(t, out, "Subtotal: 40.00")
	assert.Contains(t, out, "Tax (18%): 7.20")
	assert.Contains(t, out, "Total: 47.20")

	_, err = run(ctx, s, "checkout", "-email", "p@example.com")
	require.ErrorIs(t, err, checkout.ErrMissingContact)

	_, err = run(ctx, s, "checkout", "-email", "p@example.com", "-address", "Calle 1", "-phone", "099", "-status", "later")
	require.ErrorIs(t, err, checkout.ErrInvalidStatus)

	out, err = run(ctx, s, "checkout", "-email", "p@example.com", "-address", "Calle 1", "-phone", "099")
	require.NoError(t, err)
	assert.Contains(t, out, "Invoice FAC41 created")
	assert.Contains(t, out, "Total: 47.20")

	headers := e.store.Headers()
	require.Len(t, headers, 1)
	assert.Equal(t, "12345678", headers[0].CustomerID)
	assert.Equal(t, "pepe", headers[0].CustomerName)
	assert.Equal(t, invoice.StatusPaid, headers[0].Status)
	require.Len(t, e.store.Lines(), 1)

	p, err := e.store.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stock)

	c, err := e.store.GetTaxConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), c.NextSequence)

	out, err = run(ctx, s, "cart")
	require.NoError(t, err)
	assert.Contains(t, out, "Cart is empty")

	_, err = run(ctx, s, "logout")
	require.NoError(t, err)
	_, err = run(ctx, s, "cart")
	require.ErrorIs(t, err, session.ErrNoSession)
}

func TestCartPersistsAcrossRuns(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	blobs := kv.NewFile(filepath.Join(t.TempDir(), "state.json"))

	first := e.storefront(t, blobs)
	_, err := run(ctx, first, "login", "12345678", "pepe", "secret")
	require.NoError(t, err)
	_, err = run(ctx, first, "add", "1", "2")
	require.NoError(t, err)

	second := e.storefront(t, blobs)
	out, err := run(ctx, second, "cart")
	require.NoError(t, err)
	assert.Contains(t, out, "Lamp")
	assert.Contains(t, out, "Total: 23.60")
}

func TestCorruptStateFile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{trunc"), 0o600))

	s := e.storefront(t, kv.NewFile(path))
	assert.Zero(t, s.Cart.Len())

	_, err := run(ctx, s, "logout")
	require.NoError(t, err)
	_, err = run(ctx, s, "login", "12345678", "pepe", "secret")
	require.NoError(t, err)
	out, err := run(ctx, s, "cart")
	require.NoError(t, err)
	assert.Contains(t, out, "Cart is empty")
}

func TestExecUsage(t *testing.T) {
	e := newEnv(t)
	s := e.storefront(t, kv.NewMemory())
	ctx := context.Background()

	for _, args := range [][]string{
		nil,
		{"fly"},
		{"login", "only-dni"},
	} {
		_, err := run(ctx, s, args...)
		require.ErrorIs(t, err, ErrUsage, "%v", args)
	}

	_, err := run(ctx, s, "login", "12345678", "pepe", "secret")
	require.NoError(t, err)
	for _, args := range [][]string{
		{"add"},
		{"add", "x"},
		{"add", "1", "many"},
		{"remove", "1", "2"},
		{"checkout", "-bogus"},
	} {
		_, err := run(ctx, s, args...)
		require.ErrorIs(t, err, ErrUsage, "%v", args)
	}
}

func TestProbes(t *testing.T) {
	e := newEnv(t)

	get := func(path string) int {
		resp, err := http.Get(e.srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, get("/livez"))
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz"))
	e.probes.SetReady(true)
	assert.Equal(t, http.StatusOK, get("/readyz"))
	assert.Equal(t, http.StatusNotFound, get("/api/nothing"))
}

func TestNewMemoryBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("Defaults", func(t *testing.T) {
		store, err := NewMemoryBackend(ctx, ServerConfig{
			ConfigID: 3,
			Seed:     SeedConfig{TaxPercent: "12.5", NextSequence: 7},
		})
		require.NoError(t, err)
		c, err := store.GetTaxConfig(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), c.ID)
		assert.True(t, decimal.RequireFromString("12.5").Equal(c.TaxPercent))
	})
	t.Run("BadTax", func(t *testing.T) {
		_, err := NewMemoryBackend(ctx, ServerConfig{Seed: SeedConfig{TaxPercent: "lots"}})
		require.Error(t, err)
	})
	t.Run("MissingFile", func(t *testing.T) {
		_, err := NewMemoryBackend(ctx, ServerConfig{Seed: SeedConfig{File: "does-not-exist.json"}})
		require.Error(t, err)
	})
	t.Run("Fixture", func(t *testing.T) {
		store, err := NewMemoryBackend(ctx, ServerConfig{
			Seed: SeedConfig{File: filepath.Join("..", "..", "db", "seed", "store.json"), TaxPercent: "99"},
		})
		require.NoError(t, err)
		c, err := store.GetTaxConfig(ctx)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(18).Equal(c.TaxPercent), "fixture config wins")
		_, err = store.FindByDNI(ctx, "12345678")
		require.NoError(t, err)
	})
}

func TestOpenBlobs(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := OpenBlobs(ctx, BlobConfig{Backend: BlobMemory})
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, closeFn())

	_, _, err = OpenBlobs(ctx, BlobConfig{Backend: "tape"})
	require.Error(t, err)
}

func TestLoadClientConfig(t *testing.T) {
	t.Setenv("STOREFRONT_BASE_URL", "http://store.local/api")
	t.Setenv("STOREFRONT_BLOB_BACKEND", "memory")

	cfg, err := LoadClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://store.local/api", cfg.BaseURL)
	assert.Equal(t, BlobMemory, cfg.Blob.Backend)
	assert.Equal(t, invoice.DefaultPrefix, cfg.InvoicePrefix)

	t.Setenv("STOREFRONT_BLOB_BACKEND", "tape")
	_, err = LoadClientConfig()
	require.Error(t, err)
}

func TestClientConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  ClientConfig
		ok   bool
	}{
		{"File", ClientConfig{BaseURL: "http://x", Blob: BlobConfig{Backend: BlobFile, Path: "s.json"}}, true},
		{"FileNoPath", ClientConfig{BaseURL: "http://x", Blob: BlobConfig{Backend: BlobFile}}, false},
		{"Redis", ClientConfig{BaseURL: "http://x", Blob: BlobConfig{Backend: BlobRedis}}, true},
		{"NoBaseURL", ClientConfig{Blob: BlobConfig{Backend: BlobMemory}}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.validate()
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
		})
	}
}
