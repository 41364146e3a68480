package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func TestFakeAfterFuncFiresOnce(t *testing.T) {
	c := NewFake(epoch)
	fired := 0
	c.AfterFunc(2*time.Second, func() { fired++ })

	c.Advance(time.Second)
	assert.Equal(t, 0, fired)
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, c.Pending())

	c.Advance(time.Hour)
	assert.Equal(t, 1, fired)
	assert.Equal(t, epoch.Add(time.Hour+2*time.Second), c.Now())
}

func TestFakeEveryAndStop(t *testing.T) {
	c := NewFake(epoch)
	ticks := 0
	timer := c.Every(2*time.Second, func() { ticks++ })

	c.Advance(7 * time.Second)
	assert.Equal(t, 3, ticks)

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	c.Advance(10 * time.Second)
	assert.Equal(t, 3, ticks)
	assert.Equal(t, 0, c.Pending())
}

func TestFakeOrdersCallbacksByDeadline(t *testing.T) {
	c := NewFake(epoch)
	var order []string
	c.AfterFunc(3*time.Second, func() { order = append(order, "late") })
	c.AfterFunc(time.Second, func() { order = append(order, "early") })
	c.AfterFunc(time.Second, func() { order = append(order, "early-2") })

	c.Advance(5 * time.Second)
	assert.Equal(t, []string{"early", "early-2", "late"}, order)
}

func TestFakeCallbackCanScheduleAndStop(t *testing.T) {
	c := NewFake(epoch)
	var inner Timer
	fired := 0
	c.AfterFunc(time.Second, func() {
		inner = c.AfterFunc(time.Second, func() { fired++ })
	})

	c.Advance(time.Second)
	require.NotNil(t, inner)
	assert.True(t, inner.Stop())
	c.Advance(5 * time.Second)
	assert.Equal(t, 0, fired)
}

func TestRealEveryStops(t *testing.T) {
	var ticks atomic.Int32
	timer := NewReal().Every(5*time.Millisecond, func() { ticks.Add(1) })

	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, time.Millisecond)
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	stoppedAt := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, ticks.Load(), stoppedAt+1)
}
