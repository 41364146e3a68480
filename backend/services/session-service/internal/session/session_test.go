package session

import (
	"context"
	"errors"
	"math"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fairpay/backend/services/session-service/internal/clock"
	"fairpay/backend/services/session-service/internal/kv"
	"fairpay/backend/services/session-service/internal/models"
	"fairpay/backend/services/session-service/internal/money"
)

var epoch = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

// seqRand returns its values in order, repeating the last one.
type seqRand struct {
	values []int
	i      int
}

func (r *seqRand) IntN(n int) int {
	v := r.values[len(r.values)-1]
	if r.i < len(r.values) {
		v = r.values[r.i]
		r.i++
	}
	return v % n
}

func newTestStore(t *testing.T) (*Store, *kv.MemoryStore) {
	t.Helper()
	mem := kv.NewMemoryStore()
	return NewStore(mem, zap.NewNop()), mem
}

func startDefault(t *testing.T, s *Store) models.Session {
	t.Helper()
	sess, err := s.Start(context.Background(), money.MustParseEther("0.1"), money.MustParseEther("0.001"))
	require.NoError(t, err)
	return sess
}

func TestStartResetsUnitsAndActivates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	first := startDefault(t, s)
	_, err := s.AddUsage(ctx, 7)
	require.NoError(t, err)

	second := startDefault(t, s)
	assert.True(t, second.Active)
	assert.Zero(t, second.ConsumedUnits)
	assert.True(t, strings.HasPrefix(second.ID, "session_"))
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "0.1", money.FormatEther(second.DepositWei))
}

func TestStartValidatesAmounts(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Start(context.Background(), big.NewInt(0), big.NewInt(1))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.Start(context.Background(), big.NewInt(1), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.False(t, s.Active())
}

func TestUsageWhileInactiveFailsAndKeepsUnits(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for _, units := range []uint64{1, 5, 1000} {
		_, err := s.AddUsage(ctx, units)
		assert.ErrorIs(t, err, ErrInactiveSession)
	}
	assert.Zero(t, s.Snapshot().ConsumedUnits)

	startDefault(t, s)
	_, err := s.AddUsage(ctx, 4)
	require.NoError(t, err)
	_, err = s.Stop(ctx)
	require.NoError(t, err)

	_, err = s.AddUsage(ctx, 3)
	assert.ErrorIs(t, err, ErrInactiveSession)
	assert.Equal(t, uint64(4), s.Snapshot().ConsumedUnits)
}

func TestUsageSumsIncrements(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	startDefault(t, s)

	var want uint64
	for i := uint64(1); i <= 40; i++ {
		_, err := s.AddUsage(ctx, i)
		require.NoError(t, err)
		want += i
	}
	assert.Equal(t, want, s.Snapshot().ConsumedUnits)
}

func TestAddUsageRejectsZero(t *testing.T) {
	s, _ := newTestStore(t)
	startDefault(t, s)
	_, err := s.AddUsage(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddUsageRejectsCounterOverflow(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	startDefault(t, s)

	_, err := s.AddUsage(ctx, math.MaxUint64-1)
	require.NoError(t, err)
	_, err = s.AddUsage(ctx, 2)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, uint64(math.MaxUint64-1), s.Snapshot().ConsumedUnits, "rejected increment leaves the counter unchanged")

	sess, err := s.AddUsage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), sess.ConsumedUnits)
}

func TestStopRequiresActiveSession(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Stop(context.Background())
	assert.ErrorIs(t, err, ErrInactiveSession)
}

func TestAddDeposit(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.AddDeposit(ctx, money.MustParseEther("0.05"))
	assert.ErrorIs(t, err, ErrInactiveSession)

	startDefault(t, s)
	sess, err := s.AddDeposit(ctx, money.MustParseEther("0.05"))
	require.NoError(t, err)
	assert.Equal(t, "0.15", money.FormatEther(sess.DepositWei))

	_, err = s.AddDeposit(ctx, big.NewInt(-1))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSnapshotIsACopy(t *testing.T) {
	s, _ := newTestStore(t)
	startDefault(t, s)
	snap := s.Snapshot()
	snap.DepositWei.SetInt64(0)
	assert.Equal(t, "0.1", money.FormatEther(s.Snapshot().DepositWei))
}

func TestPersistLoadAndReset(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)
	started := startDefault(t, s)
	_, err := s.AddUsage(ctx, 12)
	require.NoError(t, err)
	s.SetAutoMode(ctx, true)

	restored := NewStore(mem, zap.NewNop())
	require.NoError(t, restored.Load(ctx))
	snap := restored.Snapshot()
	assert.Equal(t, started.ID, snap.ID)
	assert.Equal(t, uint64(12), snap.ConsumedUnits)
	assert.True(t, snap.Active)
	assert.False(t, snap.AutoMode, "auto mode is not restored")
	assert.Equal(t, 0, snap.UnitPriceWei.Cmp(money.MustParseEther("0.001")))

	s.Reset(ctx)
	assert.False(t, s.Active())
	assert.Empty(t, s.Snapshot().ID)
	assert.Zero(t, s.Snapshot().DepositWei.Sign())
	_, err = mem.Get(ctx, kv.KeySession)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestLoadIgnoresCorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)
	require.NoError(t, mem.Set(ctx, kv.KeySession, []byte("{")))
	require.NoError(t, s.Load(ctx))
	assert.False(t, s.Active())
}

type failingKV struct{ *kv.MemoryStore }

func (failingKV) Set(context.Context, string, []byte) error { return errors.New("disk full") }

func TestPersistFailureDoesNotFailMutation(t *testing.T) {
	s := NewStore(failingKV{kv.NewMemoryStore()}, zap.NewNop())
	startDefault(t, s)
	sess, err := s.AddUsage(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), sess.ConsumedUnits)
}

func newTestSimulator(t *testing.T, rnd Rand) (*Simulator, *Store, *clock.Fake) {
	t.Helper()
	s, _ := newTestStore(t)
	clk := clock.NewFake(epoch)
	return NewSimulator(s, clk, rnd, SimulatorConfig{}, zap.NewNop()), s, clk
}

func TestManualUsage(t *testing.T) {
	ctx := context.Background()
	sim, s, _ := newTestSimulator(t, &seqRand{values: []int{0}})

	_, err := sim.AddManual(ctx, 3)
	assert.ErrorIs(t, err, ErrInactiveSession)

	startDefault(t, s)
	for _, bad := range []int64{0, -4} {
		_, err = sim.AddManual(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	sess, err := sim.AddManual(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), sess.ConsumedUnits)
}

func TestRandomUsageRange(t *testing.T) {
	ctx := context.Background()
	sim, s, _ := newTestSimulator(t, &seqRand{values: []int{0, 9, 100}})
	startDefault(t, s)

	units, _, err := sim.AddRandom(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), units)

	units, _, err = sim.AddRandom(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(14), units)

	units, sess, err := sim.AddRandom(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, units, uint64(5))
	assert.LessOrEqual(t, units, uint64(14))
	assert.Equal(t, 19+units, sess.ConsumedUnits)
}

func TestAutoUsageTicks(t *testing.T) {
	ctx := context.Background()
	sim, s, clk := newTestSimulator(t, &seqRand{values: []int{0, 1, 0}})

	assert.ErrorIs(t, sim.StartAuto(ctx), ErrInactiveSession)
	startDefault(t, s)
	require.NoError(t, sim.StartAuto(ctx))
	assert.True(t, s.Snapshot().AutoMode)

	clk.Advance(time.Second)
	assert.Zero(t, s.Snapshot().ConsumedUnits)
	clk.Advance(5 * time.Second)
	assert.Equal(t, uint64(1+2+1), s.Snapshot().ConsumedUnits)
}

func TestStartAutoTwiceLeavesOneTimer(t *testing.T) {
	ctx := context.Background()
	sim, s, clk := newTestSimulator(t, &seqRand{values: []int{0}})
	startDefault(t, s)

	require.NoError(t, sim.StartAuto(ctx))
	require.NoError(t, sim.StartAuto(ctx))
	assert.Equal(t, 1, clk.Pending())

	clk.Advance(2 * time.Second)
	assert.Equal(t, uint64(1), s.Snapshot().ConsumedUnits, "one increment per tick")
	clk.Advance(10 * time.Second)
	assert.Equal(t, uint64(6), s.Snapshot().ConsumedUnits)
}

func TestStopAutoHaltsMutation(t *testing.T) {
	ctx := context.Background()
	sim, s, clk := newTestSimulator(t, &seqRand{values: []int{0}})
	startDefault(t, s)
	require.NoError(t, sim.StartAuto(ctx))
	clk.Advance(4 * time.Second)

	sim.StopAuto(ctx)
	assert.False(t, s.Snapshot().AutoMode)
	assert.Zero(t, clk.Pending())

	clk.Advance(time.Minute)
	assert.Equal(t, uint64(2), s.Snapshot().ConsumedUnits)
}

func TestAutoStopsWhenSessionEnds(t *testing.T) {
	ctx := context.Background()
	sim, s, clk := newTestSimulator(t, &seqRand{values: []int{0}})
	startDefault(t, s)
	require.NoError(t, sim.StartAuto(ctx))

	_, err := s.Stop(ctx)
	require.NoError(t, err)
	clk.Advance(2 * time.Second)

	assert.False(t, s.Snapshot().AutoMode)
	assert.Zero(t, clk.Pending())
	assert.Zero(t, s.Snapshot().ConsumedUnits)
}

func TestStaleTickIsDiscarded(t *testing.T) {
	ctx := context.Background()
	sim, s, _ := newTestSimulator(t, &seqRand{values: []int{0}})
	startDefault(t, s)
	require.NoError(t, sim.StartAuto(ctx))

	sim.mu.Lock()
	stale := sim.gen
	sim.mu.Unlock()
	sim.StopAuto(ctx)

	sim.tick(stale)
	assert.Zero(t, s.Snapshot().ConsumedUnits)
}
