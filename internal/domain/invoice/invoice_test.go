package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumber(t *testing.T) {
	assert.Equal(t, "FAC42", Number(DefaultPrefix, 42))
	assert.Equal(t, "INV-0", Number("INV-", 0))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("paid")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, s)

	s, err = ParseStatus("pending")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, s)

	_, err = ParseStatus("Pagado")
	require.Error(t, err)
	assert.False(t, Status("").Valid())
}
