// Package clock drives playback steps at a configurable interval.
package clock

import (
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/threading"
)

// Clock invokes a callback once per interval while started. Stop may be
// called from inside the callback.
type Clock interface {
	Start(fn func())
	Stop()
	SetInterval(d time.Duration)
	Interval() time.Duration
	Running() bool
	Close()
}

// Ticker is a Clock backed by time.Ticker.
type Ticker struct {
	mu       sync.Mutex
	interval time.Duration
	stop     chan struct{}
	reset    chan time.Duration

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewTicker creates a stopped Ticker.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Ticker{
		interval: interval,
		closed:   make(chan struct{}),
	}
}

// Start begins invoking fn. It is a no-op if already started or closed.
func (t *Ticker) Start(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		return
	}
	select {
	case <-t.closed:
		return
	default:
	}

	stop := make(chan struct{})
	reset := make(chan time.Duration, 1)
	t.stop, t.reset = stop, reset

	t.wg.Add(1)
	interval := t.interval
	threading.GoSafe(func() {
		t.run(interval, fn, stop, reset)
	})
}

func (t *Ticker) run(interval time.Duration, fn func(), stop <-chan struct{}, reset <-chan time.Duration) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.closed:
			return
		case <-stop:
			return
		case d := <-reset:
			ticker.Reset(d)
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			fn()
		}
	}
}

// Stop halts the callbacks. It does not wait for an in-progress callback.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop == nil {
		return
	}
	close(t.stop)
	t.stop, t.reset = nil, nil
}

// SetInterval changes the interval, taking effect from the next tick.
func (t *Ticker) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.interval = d
	if t.reset == nil {
		return
	}
	select {
	case <-t.reset:
	default:
	}
	t.reset <- d
}

func (t *Ticker) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

// Close stops the ticker and waits for its goroutine. It must not be called
// from inside the callback.
func (t *Ticker) Close() {
	t.Stop()
	t.closeOnce.Do(func() {
		close(t.closed)
	})
	t.wg.Wait()
}

// Manual is a Clock advanced explicitly by tests and step-by-step runners.
type Manual struct {
	mu       sync.Mutex
	interval time.Duration
	fn       func()
	running  bool
}

// NewManual creates a stopped Manual clock.
func NewManual(interval time.Duration) *Manual {
	return &Manual{interval: interval}
}

func (m *Manual) Start(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	m.running = true
}

func (m *Manual) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
}

func (m *Manual) SetInterval(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.interval = d
	}
}

func (m *Manual) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

func (m *Manual) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manual) Close() { m.Stop() }

// Advance fires up to n ticks, stopping early if the clock is stopped. It
// returns the number of ticks fired.
func (m *Manual) Advance(n int) int {
	fired := 0
	for i := 0; i < n; i++ {
		m.mu.Lock()
		fn, running := m.fn, m.running
		m.mu.Unlock()
		if !running || fn == nil {
			break
		}
		fn()
		fired++
	}
	return fired
}
