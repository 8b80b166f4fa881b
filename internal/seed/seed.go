// Package seed reads store fixtures and writes them into a store backend.
//
// A fixture is a JSON object in the remote store's wire format:
//
//	{"products": [{"PRD_ID": 1, ...}], "config": {"IVA": 18, "NUM_FAC": 1}, "users": [{"USU_DNI": ...}]}
//
// Files ending in .gz are decompressed with pgzip.
package seed

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/invoice"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/domain/session"
	"github.com/xenking/kart-storefront/internal/storeapi"
)

// Data is the decoded content of a fixture.
type Data struct {
	Products []product.Product
	Config   *invoice.TaxConfig
	Users    []session.User
}

// Target is a backend that accepts fixture records.
type Target interface {
	UpsertProduct(ctx context.Context, p *product.Product) error
	UpdateTaxConfig(ctx context.Context, c *invoice.TaxConfig) error
	UpsertUser(ctx context.Context, u *session.User) error
}

// ReadFile opens and decodes a fixture file.
func ReadFile(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open fixture")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if filepath.Ext(path) == ".gz" {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	data, err := Read(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return data, nil
}

// Read decodes a fixture from r.
func Read(r io.Reader) (*Data, error) {
	var data Data
	d := jx.Decode(r, 64*1024)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "products":
			ps, err := storeapi.DecodeProducts(d)
			if err != nil {
				return errors.Wrap(err, "products")
			}
			data.Products = ps
		case "config":
			c, err := storeapi.DecodeTaxConfig(d)
			if err != nil {
				return errors.Wrap(err, "config")
			}
			data.Config = &c
		case "users":
			return d.Arr(func(d *jx.Decoder) error {
				u, err := storeapi.DecodeUser(d)
				if err != nil {
					return errors.Wrap(err, "user")
				}
				data.Users = append(data.Users, u)
				return nil
			})
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode fixture")
	}
	return &data, nil
}

// Apply upserts every record of data into t.
func Apply(ctx context.Context, t Target, data *Data) error {
	lg := zctx.From(ctx)

	for i := range data.Products {
		p := &data.Products[i]
		if err := t.UpsertProduct(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %d", p.ID)
		}
	}
	if data.Config != nil {
		if err := t.UpdateTaxConfig(ctx, data.Config); err != nil {
			return errors.Wrap(err, "write tax config")
		}
	}
	for i := range data.Users {
		u := &data.Users[i]
		if err := t.UpsertUser(ctx, u); err != nil {
			return errors.Wrapf(err, "upsert user %s", u.DNI)
		}
	}

	lg.Info("Seeded store",
		zap.Int("products", len(data.Products)),
		zap.Bool("config", data.Config != nil),
		zap.Int("users", len(data.Users)),
	)
	return nil
}
