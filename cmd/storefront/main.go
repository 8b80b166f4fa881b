// Command storefront is the command-line storefront client.
package main

import (
	"context"
	"os"

	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	appkg "github.com/xenking/kart-storefront/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadClientConfig()
		if err != nil {
			return err
		}
		return appkg.RunClient(zctx.Base(ctx, lg), cfg, appkg.Telemetry{
			TracerProvider: m.TracerProvider(),
			MeterProvider:  m.MeterProvider(),
		}, os.Stdout, os.Args[1:])
	})
}
