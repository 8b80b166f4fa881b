package storeapi

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/invoice"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/domain/session"
)

var productFields = []string{
	FieldProductID, FieldProductName, FieldProductPrice, FieldProductImage, FieldProductStock,
}

// EncodeProduct writes p as a Producto record.
func EncodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	e.FieldStart(FieldProductID)
	e.Int64(p.ID)
	e.FieldStart(FieldProductName)
	e.Str(p.Name)
	e.FieldStart(FieldProductPrice)
	encodeDecimal(e, p.Price)
	e.FieldStart(FieldProductImage)
	e.Str(p.Image)
	e.FieldStart(FieldProductStock)
	e.Int(p.Stock)
	encodeExtra(e, p.Extra, productFields...)
	e.ObjEnd()
}

// DecodeProduct reads a Producto record.
func DecodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case FieldProductID:
			p.ID, err = decodeInt64(d)
		case FieldProductName:
			p.Name, err = decodeString(d)
		case FieldProductPrice:
			p.Price, err = decodeDecimal(d)
		case FieldProductImage:
			p.Image, err = decodeString(d)
		case FieldProductStock:
			var n int64
			n, err = decodeInt64(d)
			p.Stock = int(n)
		default:
			return captureExtra(&p.Extra, d, key)
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return product.Product{}, errors.Wrap(err, "decode product")
	}
	return p, nil
}

// EncodeProducts writes a JSON array of Producto records.
func EncodeProducts(e *jx.Encoder, ps []product.Product) {
	e.ArrStart()
	for i := range ps {
		EncodeProduct(e, &ps[i])
	}
	e.ArrEnd()
}

// DecodeProducts reads a JSON array of Producto records.
func DecodeProducts(d *jx.Decoder) ([]product.Product, error) {
	ps := make([]product.Product, 0)
	err := d.Arr(func(d *jx.Decoder) error {
		p, err := DecodeProduct(d)
		if err != nil {
			return err
		}
		ps = append(ps, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return ps, nil
}

var configFields = []string{FieldConfigID, FieldConfigTax, FieldConfigSequence}

// EncodeTaxConfig writes c as a DatosGenerales record. The id field is only
// written when c came from a record that carried it.
func EncodeTaxConfig(e *jx.Encoder, c *invoice.TaxConfig) {
	e.ObjStart()
	if c.ID != 0 {
		e.FieldStart(FieldConfigID)
		e.Int64(c.ID)
	}
	e.FieldStart(FieldConfigTax)
	encodeDecimal(e, c.TaxPercent)
	e.FieldStart(FieldConfigSequence)
	e.Int64(c.NextSequence)
	encodeExtra(e, c.Extra, configFields...)
	e.ObjEnd()
}

// DecodeTaxConfig reads a DatosGenerales record.
func DecodeTaxConfig(d *jx.Decoder) (invoice.TaxConfig, error) {
	var c invoice.TaxConfig
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case FieldConfigID:
			c.ID, err = decodeInt64(d)
		case FieldConfigTax:
			c.TaxPercent, err = decodeDecimal(d)
		case FieldConfigSequence:
			c.NextSequence, err = decodeInt64(d)
		default:
			return captureExtra(&c.Extra, d, key)
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return invoice.TaxConfig{}, errors.Wrap(err, "decode tax config")
	}
	return c, nil
}

// EncodeHeader writes h as a Factura record.
func EncodeHeader(e *jx.Encoder, h *invoice.Header) error {
	status, err := EncodeStatus(h.Status)
	if err != nil {
		return err
	}
	e.Obj(func(e *jx.Encoder) {
		e.Field(FieldInvoiceNumber, func(e *jx.Encoder) { e.Str(h.Number) })
		e.Field(FieldCustomerDNI, func(e *jx.Encoder) { e.Str(h.CustomerID) })
		e.Field(FieldCustomerName, func(e *jx.Encoder) { e.Str(h.CustomerName) })
		e.Field(FieldCustomerEmail, func(e *jx.Encoder) { e.Str(h.Email) })
		e.Field(FieldInvoiceAddress, func(e *jx.Encoder) { e.Str(h.Address) })
		e.Field(FieldInvoicePhone, func(e *jx.Encoder) { e.Str(h.Phone) })
		e.Field(FieldInvoiceDate, func(e *jx.Encoder) { e.Str(h.IssuedAt.UTC().Format(TimeLayout)) })
		e.Field(FieldInvoiceTotal, func(e *jx.Encoder) { encodeDecimal(e, h.Total) })
		e.Field(FieldInvoiceStatus, func(e *jx.Encoder) { e.Str(status) })
	})
	return nil
}

// DecodeHeader reads a Factura record.
func DecodeHeader(d *jx.Decoder) (invoice.Header, error) {
	var h invoice.Header
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case FieldInvoiceNumber:
			h.Number, err = decodeString(d)
		case FieldCustomerDNI:
			h.CustomerID, err = decodeString(d)
		case FieldCustomerName:
			h.CustomerName, err = decodeString(d)
		case FieldCustomerEmail:
			h.Email, err = decodeString(d)
		case FieldInvoiceAddress:
			h.Address, err = decodeString(d)
		case FieldInvoicePhone:
			h.Phone, err = decodeString(d)
		case FieldInvoiceDate:
			h.IssuedAt, err = decodeTime(d)
		case FieldInvoiceTotal:
			h.Total, err = decodeDecimal(d)
		case FieldInvoiceStatus:
			var s string
			if s, err = d.Str(); err == nil {
				h.Status, err = DecodeStatus(s)
			}
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return invoice.Header{}, errors.Wrap(err, "decode invoice")
	}
	return h, nil
}

// EncodeLine writes l as a Detalle_Factura record.
func EncodeLine(e *jx.Encoder, l *invoice.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field(FieldInvoiceNumber, func(e *jx.Encoder) { e.Str(l.InvoiceNumber) })
		e.Field(FieldProductID, func(e *jx.Encoder) { e.Int64(l.ProductID) })
		e.Field(FieldLineQuantity, func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field(FieldLineSubtotal, func(e *jx.Encoder) { encodeDecimal(e, l.Subtotal) })
	})
}

// DecodeLine reads a Detalle_Factura record.
func DecodeLine(d *jx.Decoder) (invoice.Line, error) {
	var l invoice.Line
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case FieldInvoiceNumber:
			l.InvoiceNumber, err = decodeString(d)
		case FieldProductID:
			l.ProductID, err = decodeInt64(d)
		case FieldLineQuantity:
			var n int64
			n, err = decodeInt64(d)
			l.Quantity = int(n)
		case FieldLineSubtotal:
			l.Subtotal, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return invoice.Line{}, errors.Wrap(err, "decode invoice line")
	}
	return l, nil
}

// EncodeUser writes u as a Usuario record.
func EncodeUser(e *jx.Encoder, u *session.User) {
	e.Obj(func(e *jx.Encoder) {
		e.Field(FieldCustomerDNI, func(e *jx.Encoder) { e.Str(u.DNI) })
		e.Field(FieldCustomerName, func(e *jx.Encoder) { e.Str(u.Name) })
		e.Field(FieldUserPassword, func(e *jx.Encoder) { e.Str(u.Password) })
	})
}

// DecodeUser reads a Usuario record.
func DecodeUser(d *jx.Decoder) (session.User, error) {
	var u session.User
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case FieldCustomerDNI:
			u.DNI, err = decodeString(d)
		case FieldCustomerName:
			u.Name, err = decodeString(d)
		case FieldUserPassword:
			u.Password, err = decodeString(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return session.User{}, errors.Wrap(err, "decode user")
	}
	return u, nil
}
