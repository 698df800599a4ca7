package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickerFiresUntilStopped(t *testing.T) {
	tk := NewTicker(5 * time.Millisecond)
	defer tk.Close()

	var n atomic.Int64
	tk.Start(func() { n.Add(1) })
	assert.True(t, tk.Running())

	assert.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, time.Millisecond)

	tk.Stop()
	assert.False(t, tk.Running())
	time.Sleep(20 * time.Millisecond)
	settled := n.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, n.Load())
}

func TestTickerStopFromCallback(t *testing.T) {
	tk := NewTicker(2 * time.Millisecond)
	defer tk.Close()

	var n atomic.Int64
	tk.Start(func() {
		if n.Add(1) == 2 {
			tk.Stop()
		}
	})

	assert.Eventually(t, func() bool { return !tk.Running() }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(2), n.Load())
}

func TestTickerSetInterval(t *testing.T) {
	tk := NewTicker(time.Hour)
	defer tk.Close()

	var n atomic.Int64
	tk.Start(func() { n.Add(1) })
	tk.SetInterval(2 * time.Millisecond)
	assert.Equal(t, 2*time.Millisecond, tk.Interval())

	assert.Eventually(t, func() bool { return n.Load() >= 2 }, time.Second, time.Millisecond)
}

func TestTickerRestart(t *testing.T) {
	tk := NewTicker(2 * time.Millisecond)
	defer tk.Close()

	var n atomic.Int64
	tk.Start(func() { n.Add(1) })
	tk.Start(func() { n.Add(100) })
	assert.Eventually(t, func() bool { return n.Load() >= 1 }, time.Second, time.Millisecond)
	assert.Less(t, n.Load(), int64(100), "second Start while running is ignored")

	tk.Stop()
	tk.Start(func() { n.Add(1) })
	assert.True(t, tk.Running())
}

func TestManualAdvance(t *testing.T) {
	m := NewManual(time.Second)
	assert.Equal(t, 0, m.Advance(3), "stopped clock does not fire")

	calls := 0
	m.Start(func() {
		calls++
		if calls == 2 {
			m.Stop()
		}
	})
	assert.Equal(t, 2, m.Advance(5))
	assert.Equal(t, 2, calls)

	m.SetInterval(0)
	assert.Equal(t, time.Second, m.Interval())
	m.SetInterval(500 * time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, m.Interval())
}
