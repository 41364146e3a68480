package status

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fairpay/backend/services/session-service/internal/clock"
	"fairpay/backend/services/session-service/internal/models"
	"fairpay/backend/services/session-service/internal/money"
)

func TestDeriveExample(t *testing.T) {
	spend, refund := Derive(money.MustParseEther("0.1"), money.MustParseEther("0.001"), 50)
	assert.Equal(t, "0.05", money.FormatEther(spend))
	assert.Equal(t, "0.05", money.FormatEther(refund))
}

func TestDeriveRefundFloorsAtZero(t *testing.T) {
	tests := []struct {
		deposit, price string
		units          uint64
		spend, refund  string
	}{
		{"0.1", "0.001", 0, "0.0", "0.1"},
		{"0.1", "0.001", 100, "0.1", "0.0"},
		{"0.1", "0.001", 101, "0.101", "0.0"},
		{"0.1", "0.0000001", 1_000_000, "0.1", "0.0"},
		{"1", "0.3", 3, "0.9", "0.1"},
		{"0.000000000000000001", "1", 1 << 40, "1099511627776.0", "0.0"},
	}
	for _, tt := range tests {
		spend, refund := Derive(money.MustParseEther(tt.deposit), money.MustParseEther(tt.price), tt.units)
		assert.Equal(t, tt.spend, money.FormatEther(spend), "spend %+v", tt)
		assert.Equal(t, tt.refund, money.FormatEther(refund), "refund %+v", tt)
		assert.GreaterOrEqual(t, refund.Sign(), 0)
	}
}

func TestDeriveHandlesNil(t *testing.T) {
	spend, refund := Derive(nil, nil, 10)
	assert.Zero(t, spend.Sign())
	assert.Zero(t, refund.Sign())
}

func TestComputeModes(t *testing.T) {
	sess := models.Session{
		ID:            "session_abc",
		DepositWei:    money.MustParseEther("0.1"),
		UnitPriceWei:  money.MustParseEther("0.001"),
		ConsumedUnits: 50,
		Active:        true,
	}

	single := Compute(sess, models.ModeSingle)
	assert.Equal(t, models.SessionStatus{
		ConsumedUnits: 50,
		UnitPrice:     "0.001",
		Deposit:       "0.1",
		Spend:         "0.05",
		Refund:        "0.05",
		IsActive:      true,
		SessionID:     "session_abc",
	}, single)

	direct := Compute(sess, models.ModeDirect)
	assert.Empty(t, direct.SessionID)
	assert.Equal(t, single.Spend, direct.Spend)
}

type counterSource struct {
	mu    sync.Mutex
	units uint64
}

func (c *counterSource) status() models.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units++
	return Compute(models.Session{
		DepositWei:    big.NewInt(100),
		UnitPriceWei:  big.NewInt(1),
		ConsumedUnits: c.units,
		Active:        true,
	}, models.ModeSingle)
}

func TestPollerPublishesOnEachTick(t *testing.T) {
	src := &counterSource{}
	clk := clock.NewFake(time.Unix(0, 0))
	p := NewPoller(src.status, clk, PollerConfig{}, zap.NewNop())

	var got []uint64
	unsubscribe := p.Subscribe(func(st models.SessionStatus) { got = append(got, st.ConsumedUnits) })
	p.Start()
	p.Start()

	clk.Advance(9 * time.Second)
	assert.Equal(t, []uint64{1, 2, 3}, got)
	assert.Equal(t, uint64(3), p.Latest().ConsumedUnits)

	unsubscribe()
	unsubscribe()
	clk.Advance(3 * time.Second)
	assert.Len(t, got, 3)

	p.Stop()
	assert.Zero(t, clk.Pending())
	clk.Advance(time.Minute)
	assert.Equal(t, uint64(4), p.Latest().ConsumedUnits)
}

func TestPollerRefreshIsThrottled(t *testing.T) {
	src := &counterSource{}
	p := NewPoller(src.status, clock.NewFake(time.Unix(0, 0)), PollerConfig{RefreshPerSecond: 0.001}, zap.NewNop())

	assert.Equal(t, uint64(1), p.Refresh().ConsumedUnits)
	assert.Equal(t, uint64(1), p.Refresh().ConsumedUnits, "throttled refresh returns the cached snapshot")
}

func TestPollerRefreshUnlimited(t *testing.T) {
	src := &counterSource{}
	p := NewPoller(src.status, clock.NewFake(time.Unix(0, 0)), PollerConfig{}, zap.NewNop())

	var published int
	p.Subscribe(func(models.SessionStatus) { published++ })
	for i := 1; i <= 5; i++ {
		require.Equal(t, uint64(i), p.Refresh().ConsumedUnits)
	}
	assert.Equal(t, 5, published)
}

func TestLatestComputesOnce(t *testing.T) {
	src := &counterSource{}
	p := NewPoller(src.status, clock.NewFake(time.Unix(0, 0)), PollerConfig{}, zap.NewNop())
	assert.Equal(t, uint64(1), p.Latest().ConsumedUnits)
	assert.Equal(t, uint64(1), p.Latest().ConsumedUnits)
}
