package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/storage/memory"
)

const fixture = `{
  "products": [
    {"PRD_ID": 1, "PRD_NOMBRE": "Lamp", "PRD_PRECIO": 19.99, "PRD_IMAGEN": "lamp.png", "PRD_STOCK": 4, "PRD_ACTIVO": true},
    {"PRD_ID": 2, "PRD_NOMBRE": "Chair", "PRD_PRECIO": "45.50", "PRD_STOCK": 1}
  ],
  "config": {"DAT_ID": 1, "IVA": 18, "NUM_FAC": 41},
  "users": [{"USU_DNI": "12345678", "USU_NOMBRE": "pepe", "USU_CONTRASENA": "secret"}],
  "comment": "ignored"
}`

func TestRead(t *testing.T) {
	data, err := Read(strings.NewReader(fixture))
	require.NoError(t, err)

	require.Len(t, data.Products, 2)
	assert.Equal(t, "Lamp", data.Products[0].Name)
	assert.True(t, decimal.RequireFromString("45.50").Equal(data.Products[1].Price))
	assert.Contains(t, data.Products[0].Extra, "PRD_ACTIVO")

	require.NotNil(t, data.Config)
	assert.Equal(t, int64(41), data.Config.NextSequence)

	require.Len(t, data.Users, 1)
	assert.Equal(t, "pepe", data.Users[0].Name)
}

func TestReadInvalid(t *testing.T) {
	_, err := Read(strings.NewReader(`{"products": {}}`))
	require.Error(t, err)
}

func TestReadFileGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := pgzip.NewWriter(f)
	_, err = zw.Write([]byte(fixture))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	data, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data.Products, 2)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	data, err := Read(strings.NewReader(fixture))
	require.NoError(t, err)

	store := memory.New()
	require.NoError(t, Apply(ctx, store, data))

	ps, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ps, 2)

	c, err := store.GetTaxConfig(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(18).Equal(c.TaxPercent))

	u, err := store.FindByDNI(ctx, "12345678")
	require.NoError(t, err)
	assert.Equal(t, "secret", u.Password)
}
