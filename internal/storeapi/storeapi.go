// Package storeapi is the wire format of the remote store API: record field
// names, status values, and the jx encoders and decoders shared by the HTTP
// client and the reference server.
//
// Fields a record carries that this package does not know are kept as raw
// JSON in the domain type's Extra map and written back on encode, so a
// fetch-modify-put cycle never drops them.
package storeapi

import (
	"encoding/json"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/invoice"
)

// Product record fields.
const (
	FieldProductID    = "PRD_ID"
	FieldProductName  = "PRD_NOMBRE"
	FieldProductPrice = "PRD_PRECIO"
	FieldProductImage = "PRD_IMAGEN"
	FieldProductStock = "PRD_STOCK"
)

// TaxConfig record fields.
const (
	FieldConfigID       = "DAT_ID"
	FieldConfigTax      = "IVA"
	FieldConfigSequence = "NUM_FAC"
)

// Invoice header fields.
const (
	FieldInvoiceNumber  = "FAC_NUMERO"
	FieldCustomerDNI    = "USU_DNI"
	FieldCustomerName   = "USU_NOMBRE"
	FieldCustomerEmail  = "USU_CORREO"
	FieldInvoiceAddress = "FAC_DIRECCION"
	FieldInvoicePhone   = "FAC_TELEFONO"
	FieldInvoiceDate    = "FAC_FECHA"
	FieldInvoiceTotal   = "FAC_TOTAL"
	FieldInvoiceStatus  = "FAC_ESTADO"
)

// Invoice line fields.
const (
	FieldLineQuantity = "PRD_CANTIDAD"
	FieldLineSubtotal = "PRD_SUBTOTAL"
)

// User record fields.
const (
	FieldUserPassword = "USU_CONTRASENA"
)

// Wire values of invoice.Status.
const (
	StatusPaid    = "Pagado"
	StatusPending = "Pendiente"
)

// TimeLayout is the layout of FAC_FECHA: ISO 8601 in UTC with milliseconds.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// EncodeStatus maps a Status to its wire value.
func EncodeStatus(s invoice.Status) (string, error) {
	switch s {
	case invoice.StatusPaid:
		return StatusPaid, nil
	case invoice.StatusPending:
		return StatusPending, nil
	default:
		return "", errors.Errorf("unknown invoice status %q", s)
	}
}

// DecodeStatus maps a wire value to a Status.
func DecodeStatus(v string) (invoice.Status, error) {
	switch v {
	case StatusPaid:
		return invoice.StatusPaid, nil
	case StatusPending:
		return invoice.StatusPending, nil
	default:
		return "", errors.Errorf("unknown invoice status %q", v)
	}
}

// Error is the body of a non-2xx response.
type Error struct {
	Code    int
	Message string
}

// EncodeError writes an error body.
func EncodeError(e *jx.Encoder, v Error) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(v.Code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(v.Message) })
	})
}

// DecodeError reads an error body.
func DecodeError(data []byte) (Error, error) {
	var v Error
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			v.Code, err = d.Int()
		case "message":
			v.Message, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return Error{}, errors.Wrap(err, "decode error body")
	}
	return v, nil
}

// encodeDecimal writes d as a bare JSON number.
func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.String()))
}

// decodeDecimal accepts a JSON number or a string holding one.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		return decimal.Zero, errors.Errorf("unexpected %s, want number", d.Next())
	}
}

// decodeInt64 accepts a JSON integer or a string holding one.
func decodeInt64(d *jx.Decoder) (int64, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		return strconv.ParseInt(s, 10, 64)
	case jx.Null:
		return 0, d.Null()
	default:
		return d.Int64()
	}
}

// decodeString accepts a JSON string, a number (ids typed as numbers on some
// records) or null.
func decodeString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return d.Str()
	}
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := decodeString(d)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// Records created by other clients may omit the zone.
		t, err = time.Parse("2006-01-02T15:04:05.999999999", s)
	}
	return t, err
}

// captureExtra stores the raw value of an unknown field.
func captureExtra(extra *map[string]json.RawMessage, d *jx.Decoder, key string) error {
	raw, err := d.Raw()
	if err != nil {
		return err
	}
	if *extra == nil {
		*extra = make(map[string]json.RawMessage)
	}
	(*extra)[key] = json.RawMessage(slices.Clone([]byte(raw)))
	return nil
}

// encodeExtra writes unknown fields in key order, skipping any that collide
// with a field the caller already wrote.
func encodeExtra(e *jx.Encoder, extra map[string]json.RawMessage, known ...string) {
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		if slices.Contains(known, k) {
			continue
		}
		e.FieldStart(k)
		e.Raw(extra[k])
	}
}
