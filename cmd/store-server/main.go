// Command store-server serves the remote store API over PostgreSQL or an
// in-memory backend.
package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	appkg "github.com/xenking/kart-storefront/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadServerConfig()
		if err != nil {
			return err
		}
		return appkg.RunServer(zctx.Base(ctx, lg), lg, m, cfg)
	})
}
