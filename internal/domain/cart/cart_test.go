package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/storage/kv"
)

type failingBlobs struct {
	kv.Store
	setErr error
	getErr error
}

func (f *failingBlobs) Get(ctx context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.Store.Get(ctx, key)
}

func (f *failingBlobs) Set(ctx context.Context, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Store.Set(ctx, key, value)
}

func newTestProduct(id int64, name, price string, stock int) product.Product {
	return product.Product{
		ID:    id,
		Name:  name,
		Price: decimal.RequireFromString(price),
		Image: "https://cdn.example.com/" + name + ".jpg",
		Stock: stock,
	}
}

func TestClampQuantity(t *testing.T) {
	tests := []struct {
		qty, stock, want int
	}{
		{qty: 0, stock: 5, want: 1},
		{qty: -3, stock: 5, want: 1},
		{qty: 3, stock: 5, want: 3},
		{qty: 9, stock: 5, want: 5},
		{qty: 1, stock: 0, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampQuantity(tt.qty, tt.stock), "qty=%d stock=%d", tt.qty, tt.stock)
	}
}

func TestStore_Add(t *testing.T) {
	tests := []struct {
		name     string
		adds     []int
		stock    int
		wantQty  int
		wantErr  error
		wantLens int
	}{
		{name: "new line clamps below one", adds: []int{0}, stock: 4, wantQty: 1, wantLens: 1},
		{name: "new line clamps above stock", adds: []int{10}, stock: 4, wantQty: 4, wantLens: 1},
		{name: "same product twice sums quantities", adds: []int{1, 2}, stock: 4, wantQty: 3, wantLens: 1},
		{name: "increment bounded by captured stock", adds: []int{3, 3}, stock: 4, wantQty: 4, wantLens: 1},
		{name: "out of stock rejected", adds: []int{1}, stock: 0, wantErr: ErrOutOfStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := NewStore(kv.NewMemory(), "")
			p := newTestProduct(1, "widget", "10.00", tt.stock)

			var (
				l   Line
				err error
			)
			for _, qty := range tt.adds {
				l, err = s.Add(ctx, p, qty)
			}

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, s.Len())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantQty, l.Quantity)
			assert.Equal(t, tt.wantLens, s.Len())
		})
	}
}

func TestStore_AddKeepsFirstSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory(), "")

	_, err := s.Add(ctx, newTestProduct(1, "widget", "10.00", 3), 1)
	require.NoError(t, err)

	// Live product now has a new price and more stock; the line keeps the
	// snapshot taken at insertion.
	l, err := s.Add(ctx, newTestProduct(1, "widget", "12.50", 50), 5)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10.00").Equal(l.Price))
	assert.Equal(t, 3, l.Stock)
	assert.Equal(t, 3, l.Quantity)
}

func TestStore_IncrementDecrement(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory(), "")
	_, err := s.Add(ctx, newTestProduct(7, "gadget", "5.00", 2), 1)
	require.NoError(t, err)

	l, err := s.Increment(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Quantity)

	l, err = s.Increment(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Quantity, "increment stops at captured stock")

	l, err = s.Decrement(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Quantity)

	l, err = s.Decrement(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Quantity, "decrement stops at one")

	_, err = s.Increment(ctx, 99)
	require.ErrorIs(t, err, ErrLineNotFound)
	_, err = s.Decrement(ctx, 99)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestStore_QuantityNeverLeavesBounds(t *testing.T) {
	ctx := context.Background()
	for stock := 1; stock <= 5; stock++ {
		s := NewStore(kv.NewMemory(), "")
		_, err := s.Add(ctx, newTestProduct(1, "widget", "1.00", stock), stock)
		require.NoError(t, err)

		for range stock + 3 {
			l, err := s.Increment(ctx, 1)
			require.NoError(t, err)
			assert.LessOrEqual(t, l.Quantity, stock)
		}
		for range stock + 3 {
			l, err := s.Decrement(ctx, 1)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, l.Quantity, 1)
		}
	}
}

func TestStore_Remove(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory(), "")
	_, err := s.Add(ctx, newTestProduct(1, "a", "1.00", 5), 1)
	require.NoError(t, err)
	_, err = s.Add(ctx, newTestProduct(2, "b", "2.00", 5), 1)
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, 1))
	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(2), lines[0].ProductID)

	require.NoError(t, s.Remove(ctx, 42))
	assert.Equal(t, 1, s.Len())
}

func TestStore_PersistLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	blobs := kv.NewMemory()

	s := NewStore(blobs, "")
	_, err := s.Add(ctx, newTestProduct(3, "c", "3.33", 9), 2)
	require.NoError(t, err)
	_, err = s.Add(ctx, newTestProduct(1, "a", "10.00", 5), 4)
	require.NoError(t, err)
	_, err = s.Decrement(ctx, 1)
	require.NoError(t, err)

	reloaded := NewStore(blobs, "")
	require.NoError(t, reloaded.Load(ctx))

	want := s.Lines()
	got := reloaded.Lines()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ProductID, got[i].ProductID)
		assert.Equal(t, want[i].Quantity, got[i].Quantity)
		assert.Equal(t, want[i].Stock, got[i].Stock)
		assert.True(t, want[i].Price.Equal(got[i].Price))
	}
}

func TestStore_Load(t *testing.T) {
	tests := []struct {
		name    string
		blob    *string
		want    []Line
		wantLen int
	}{
		{name: "no blob", wantLen: 0},
		{name: "unparseable blob", blob: ptr("{oops"), wantLen: 0},
		{name: "empty array", blob: ptr("[]"), wantLen: 0},
		{
			name:    "duplicates merged",
			blob:    ptr(`[{"id":1,"price":"2","stock":5,"quantity":2},{"id":1,"price":"2","stock":5,"quantity":2}]`),
			wantLen: 1,
			want:    []Line{{ProductID: 1, Stock: 5, Quantity: 4}},
		},
		{
			name:    "duplicates capped at stock",
			blob:    ptr(`[{"id":1,"stock":3,"quantity":2},{"id":1,"stock":3,"quantity":2}]`),
			wantLen: 1,
			want:    []Line{{ProductID: 1, Stock: 3, Quantity: 3}},
		},
		{
			name:    "quantities clamped",
			blob:    ptr(`[{"id":1,"stock":5,"quantity":0},{"id":2,"stock":4,"quantity":9},{"id":3,"stock":2,"quantity":-1}]`),
			wantLen: 3,
			want: []Line{
				{ProductID: 1, Stock: 5, Quantity: 1},
				{ProductID: 2, Stock: 4, Quantity: 4},
				{ProductID: 3, Stock: 2, Quantity: 1},
			},
		},
		{
			name:    "sold out lines dropped",
			blob:    ptr(`[{"id":1,"stock":0,"quantity":2},{"id":2,"stock":4,"quantity":1}]`),
			wantLen: 1,
			want:    []Line{{ProductID: 2, Stock: 4, Quantity: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			blobs := kv.NewMemory()
			if tt.blob != nil {
				require.NoError(t, blobs.Set(ctx, DefaultKey, *tt.blob))
			}

			s := NewStore(blobs, "")
			require.NoError(t, s.Load(ctx))
			lines := s.Lines()
			require.Len(t, lines, tt.wantLen)
			for i, w := range tt.want {
				assert.Equal(t, w.ProductID, lines[i].ProductID)
				assert.Equal(t, w.Quantity, lines[i].Quantity)
			}
		})
	}
}

func TestStore_StorageErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("load read failure", func(t *testing.T) {
		s := NewStore(&failingBlobs{Store: kv.NewMemory(), getErr: errors.New("disk gone")}, "")
		err := s.Load(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read cart")
	})

	t.Run("write failure keeps in-memory update", func(t *testing.T) {
		s := NewStore(&failingBlobs{Store: kv.NewMemory(), setErr: errors.New("disk full")}, "")
		_, err := s.Add(ctx, newTestProduct(1, "a", "1.00", 3), 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "write cart")
		assert.Equal(t, 1, s.Len())
	})
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	blobs := kv.NewMemory()
	s := NewStore(blobs, "")
	_, err := s.Add(ctx, newTestProduct(1, "a", "1.00", 3), 1)
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx))
	assert.Zero(t, s.Len())
	_, err = blobs.Get(ctx, DefaultKey)
	require.ErrorIs(t, err, kv.ErrNotFound)
}

func ptr(s string) *string { return &s }
