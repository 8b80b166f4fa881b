package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/checkout"
	"github.com/xenking/kart-storefront/internal/domain/session"
	"github.com/xenking/kart-storefront/internal/remote"
	"github.com/xenking/kart-storefront/internal/storage/kv"
	redisstore "github.com/xenking/kart-storefront/internal/storage/redis"
)

// Storefront wires the client components over one remote store and one blob
// store.
type Storefront struct {
	Remote   *remote.Client
	Session  *session.Gate
	Cart     *cart.Store
	Checkout *checkout.Service
}

// Telemetry is the subset of app.Telemetry the client needs.
type Telemetry struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// NewStorefront builds the client and loads the persisted cart.
func NewStorefront(ctx context.Context, cfg ClientConfig, blobs kv.Store, t Telemetry) (*Storefront, error) {
	client, err := remote.New(remote.Config{
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout,
		ConfigID:       cfg.ConfigID,
		TracerProvider: t.TracerProvider,
		MeterProvider:  t.MeterProvider,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create remote client")
	}

	c := cart.NewStore(blobs, cart.DefaultKey)
	if err := c.Load(ctx); err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	svc, err := checkout.NewService(checkout.Config{
		InvoicePrefix:  cfg.InvoicePrefix,
		TracerProvider: t.TracerProvider,
		MeterProvider:  t.MeterProvider,
	}, c, client, client, client)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout")
	}

	return &Storefront{
		Remote:   client,
		Session:  session.NewGate(client, blobs),
		Cart:     c,
		Checkout: svc,
	}, nil
}

// OpenBlobs returns the configured blob store and a func releasing it.
func OpenBlobs(ctx context.Context, cfg BlobConfig) (kv.Store, func() error, error) {
	switch cfg.Backend {
	case BlobMemory:
		return kv.NewMemory(), noClose, nil
	case BlobFile:
		return kv.NewFile(cfg.Path), noClose, nil
	case BlobRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store := redisstore.New(rdb, cfg.RedisPrefix)
		if err := store.Ping(ctx); err != nil {
			_ = rdb.Close()
			return nil, nil, errors.Wrap(err, "connect redis")
		}
		return store, rdb.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown blob backend %q", cfg.Backend)
	}
}

func noClose() error { return nil }
