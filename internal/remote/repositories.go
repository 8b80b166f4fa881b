package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/invoice"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/domain/session"
	"github.com/xenking/kart-storefront/internal/storeapi"
)

var (
	_ product.Repository       = (*Client)(nil)
	_ invoice.Repository       = (*Client)(nil)
	_ invoice.ConfigRepository = (*Client)(nil)
	_ session.UserRepository   = (*Client)(nil)
)

// List fetches the full catalog.
func (c *Client) List(ctx context.Context) ([]product.Product, error) {
	var ps []product.Product
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/Producto",
		decode: func(d *jx.Decoder) (err error) {
			ps, err = storeapi.DecodeProducts(d)
			return err
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	if ps == nil {
		ps = []product.Product{}
	}
	return ps, nil
}

// GetByID fetches one product through the PrdNombre query, which carries an
// id despite its name. A one-element array response is accepted as well.
func (c *Client) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	var (
		p     product.Product
		found bool
	)
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/Producto",
		query:  url.Values{"PrdNombre": {formatID(id)}},
		decode: func(d *jx.Decoder) error {
			if d.Next() == jx.Array {
				ps, err := storeapi.DecodeProducts(d)
				if err != nil {
					return err
				}
				for _, candidate := range ps {
					if candidate.ID == id {
						p, found = candidate, true
						break
					}
				}
				return nil
			}
			var err error
			p, err = storeapi.DecodeProduct(d)
			found = err == nil
			return err
		},
	})
	switch {
	case IsNotFound(err):
		return nil, errors.Wrapf(product.ErrNotFound, "product %d", id)
	case err != nil:
		return nil, errors.Wrapf(err, "get product %d", id)
	case !found:
		return nil, errors.Wrapf(product.ErrNotFound, "product %d", id)
	}
	return &p, nil
}

// Update replaces the full product record.
func (c *Client) Update(ctx context.Context, p *product.Product) error {
	err := c.do(ctx, request{
		method: http.MethodPut,
		path:   "/Producto/" + formatID(p.ID),
		encode: func(e *jx.Encoder) error {
			storeapi.EncodeProduct(e, p)
			return nil
		},
	})
	if IsNotFound(err) {
		return errors.Wrapf(product.ErrNotFound, "product %d", p.ID)
	}
	if err != nil {
		return errors.Wrapf(err, "update product %d", p.ID)
	}
	return nil
}

func (c *Client) GetTaxConfig(ctx context.Context) (*invoice.TaxConfig, error) {
	var cfg invoice.TaxConfig
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/DatosGenerales/" + formatID(c.configID),
		decode: func(d *jx.Decoder) (err error) {
			cfg, err = storeapi.DecodeTaxConfig(d)
			return err
		},
	})
	if IsNotFound(err) {
		return nil, invoice.ErrConfigNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get tax config")
	}
	return &cfg, nil
}

// UpdateTaxConfig overwrites the tax config record with cfg, unknown fields
// included.
func (c *Client) UpdateTaxConfig(ctx context.Context, cfg *invoice.TaxConfig) error {
	err := c.do(ctx, request{
		method: http.MethodPut,
		path:   "/DatosGenerales/" + formatID(c.configID),
		encode: func(e *jx.Encoder) error {
			storeapi.EncodeTaxConfig(e, cfg)
			return nil
		},
	})
	if IsNotFound(err) {
		return invoice.ErrConfigNotFound
	}
	if err != nil {
		return errors.Wrap(err, "update tax config")
	}
	return nil
}

func (c *Client) CreateHeader(ctx context.Context, h *invoice.Header) error {
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/Factura",
		encode: func(e *jx.Encoder) error {
			return storeapi.EncodeHeader(e, h)
		},
	})
	if err != nil {
		return errors.Wrapf(err, "create invoice %s", h.Number)
	}
	return nil
}

func (c *Client) CreateLine(ctx context.Context, l *invoice.Line) error {
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/Detalle_Factura",
		encode: func(e *jx.Encoder) error {
			storeapi.EncodeLine(e, l)
			return nil
		},
	})
	if err != nil {
		return errors.Wrapf(err, "create line for product %d", l.ProductID)
	}
	return nil
}

// FindByDNI fetches the user record for dni.
func (c *Client) FindByDNI(ctx context.Context, dni string) (*session.User, error) {
	var u session.User
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/Usuario",
		query:  url.Values{"DNI": {dni}},
		decode: func(d *jx.Decoder) (err error) {
			if d.Next() == jx.Null {
				return d.Null()
			}
			u, err = storeapi.DecodeUser(d)
			return err
		},
	})
	if IsNotFound(err) {
		return nil, session.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}
	// Some deployments answer 200 with null or an empty record.
	if u.Name == "" {
		return nil, session.ErrUserNotFound
	}
	if u.DNI == "" {
		u.DNI = dni
	}
	return &u, nil
}
