package deposit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fairpay/backend/services/session-service/internal/kv"
	"fairpay/backend/services/session-service/internal/models"
	"fairpay/backend/services/session-service/internal/money"
)

func TestAddAccumulatesWithoutDrift(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	l := NewLedger(mem, zap.NewNop())
	assert.Equal(t, models.DepositState{TotalDeposited: "0.0"}, l.State())

	for i := 0; i < 3; i++ {
		_, err := l.Add(ctx, money.MustParseEther("0.1"))
		require.NoError(t, err)
	}
	st := l.State()
	assert.True(t, st.HasDeposited)
	assert.Equal(t, "0.3", st.TotalDeposited)

	raw, err := mem.Get(ctx, kv.KeyDepositAmount)
	require.NoError(t, err)
	assert.Equal(t, "0.3", string(raw))
	raw, err = mem.Get(ctx, kv.KeyHasDeposited)
	require.NoError(t, err)
	assert.Equal(t, "true", string(raw))
}

func TestAddRejectsNonPositive(t *testing.T) {
	l := NewLedger(kv.NewMemoryStore(), zap.NewNop())
	_, err := l.Add(context.Background(), money.MustParseEther("0"))
	assert.ErrorIs(t, err, money.ErrInvalidAmount)
	assert.False(t, l.State().HasDeposited)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	require.NoError(t, mem.Set(ctx, kv.KeyHasDeposited, []byte("true")))
	require.NoError(t, mem.Set(ctx, kv.KeyDepositAmount, []byte("1.25")))

	l := NewLedger(mem, zap.NewNop())
	require.NoError(t, l.Load(ctx))
	assert.Equal(t, models.DepositState{HasDeposited: true, TotalDeposited: "1.25"}, l.State())
}

func TestLoadIgnoresAmountWithoutFlag(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	require.NoError(t, mem.Set(ctx, kv.KeyDepositAmount, []byte("1.25")))

	l := NewLedger(mem, zap.NewNop())
	require.NoError(t, l.Load(ctx))
	assert.Equal(t, models.DepositState{TotalDeposited: "0.0"}, l.State())
}

func TestLoadDiscardsCorruptAmount(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	require.NoError(t, mem.Set(ctx, kv.KeyHasDeposited, []byte("true")))
	require.NoError(t, mem.Set(ctx, kv.KeyDepositAmount, []byte("NaN")))

	l := NewLedger(mem, zap.NewNop())
	require.NoError(t, l.Load(ctx))
	assert.Equal(t, models.DepositState{HasDeposited: true, TotalDeposited: "0.0"}, l.State())
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	l := NewLedger(mem, zap.NewNop())
	_, err := l.Add(ctx, money.MustParseEther("0.5"))
	require.NoError(t, err)

	l.Clear(ctx)
	assert.False(t, l.State().HasDeposited)
	_, err = mem.Get(ctx, kv.KeyDepositAmount)
	assert.ErrorIs(t, err, kv.ErrNotFound)
	_, err = mem.Get(ctx, kv.KeyHasDeposited)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

type readOnlyStore struct{ *kv.MemoryStore }

func (readOnlyStore) Set(context.Context, string, []byte) error { return errors.New("read only") }

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	l := NewLedger(readOnlyStore{kv.NewMemoryStore()}, zap.NewNop())
	st, err := l.Add(context.Background(), money.MustParseEther("0.2"))
	require.NoError(t, err)
	assert.Equal(t, "0.2", st.TotalDeposited)
}
