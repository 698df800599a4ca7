// Package service runs synchronized playback over the selected symbols'
// series.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"

	"github.com/zappabad/stockpond/internal/datasource"
	"github.com/zappabad/stockpond/internal/market"
	"github.com/zappabad/stockpond/internal/mood"
	"github.com/zappabad/stockpond/internal/notice"
	"github.com/zappabad/stockpond/internal/playback/clock"
	playbackview "github.com/zappabad/stockpond/internal/playback/view"
)

// ErrClosed is returned by operations on a closed Controller.
var ErrClosed = errors.New("playback controller closed")

type (
	Snapshot    = playbackview.Snapshot
	SymbolState = playbackview.SymbolState
	Event       = playbackview.Event
)

// State is the controller lifecycle state.
type State int

const (
	StateIdle State = iota
	StateReady
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type request struct {
	epoch uint64
	done  chan struct{}
}

// Controller owns the selection, the series cache and the shared playback
// index. Series are fetched asynchronously from the injected source.
type Controller struct {
	cfg     Config
	source  datasource.Source
	clock   clock.Clock
	view    *playbackview.PlaybackView
	notices notice.Publisher

	mu       sync.Mutex
	selected []market.Symbol
	addedAt  map[market.Symbol]uint64
	epoch    uint64
	cache    map[market.Symbol]market.Series
	pending  map[market.Symbol]*request
	failures map[market.Symbol]*market.GenerationError
	quotes   map[market.Symbol]datasource.Quote
	index    int
	running  bool
	runID    string
	interval time.Duration

	// quoting is set while a quote batch is in flight; requoteAfter asks for
	// another batch for unquoted symbols once it lands.
	quoting      bool
	requoteAfter bool

	ctx    context.Context
	cancel context.CancelFunc

	events        chan Event
	droppedEvents atomic.Int64

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewController creates a Controller. A nil clk uses a clock.Ticker and a nil
// notices publisher discards notices.
func NewController(cfg Config, src datasource.Source, clk clock.Clock, notices notice.Publisher) *Controller {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if len(cfg.SpeedPresets) == 0 {
		cfg.SpeedPresets = def.SpeedPresets
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}
	if cfg.QuoteInterval == 0 {
		cfg.QuoteInterval = def.QuoteInterval
	}
	if clk == nil {
		clk = clock.NewTicker(cfg.TickInterval)
	}
	clk.SetInterval(cfg.TickInterval)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:      cfg,
		source:   src,
		clock:    clk,
		view:     playbackview.NewPlaybackView(),
		notices:  notices,
		addedAt:  make(map[market.Symbol]uint64),
		cache:    make(map[market.Symbol]market.Series),
		pending:  make(map[market.Symbol]*request),
		failures: make(map[market.Symbol]*market.GenerationError),
		quotes:   make(map[market.Symbol]datasource.Quote),
		interval: cfg.TickInterval,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan Event, cfg.EventBuffer),
		closed:   make(chan struct{}),
	}

	if cfg.QuoteInterval > 0 {
		c.wg.Add(1)
		threading.GoSafe(c.runQuoteRefresher)
	}
	return c
}

// NormalizeSymbol trims and upper-cases a user supplied symbol.
func NormalizeSymbol(raw string) (market.Symbol, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("%w: empty symbol", market.ErrInvalidInput)
	}
	if strings.ContainsAny(s, " /?#") {
		return "", fmt.Errorf("%w: bad symbol %q", market.ErrInvalidInput, raw)
	}
	return market.Symbol(s), nil
}

// AddSymbol appends s to the selection and requests its series if it is not
// cached.
func (c *Controller) AddSymbol(raw string) error {
	s, err := NormalizeSymbol(raw)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed() {
		return ErrClosed
	}
	if c.running {
		return market.ErrRunning
	}
	if c.indexOfLocked(s) >= 0 {
		return fmt.Errorf("%w: %s", market.ErrAlreadySelected, s)
	}
	if len(c.selected) >= market.MaxSelected {
		return fmt.Errorf("%w: at most %d symbols", market.ErrCapacityExceeded, market.MaxSelected)
	}

	c.epoch++
	c.selected = append(c.selected, s)
	c.addedAt[s] = c.epoch
	delete(c.failures, s)
	c.view.SetSelection(c.selected)

	if _, ok := c.cache[s]; !ok {
		c.requestLocked(s)
	}
	c.requestQuotesLocked([]market.Symbol{s})
	c.emitStateLocked()
	return nil
}

// RemoveSymbol evicts s and its cached series. Removing the last symbol
// returns the controller to idle.
func (c *Controller) RemoveSymbol(raw string) error {
	s, err := NormalizeSymbol(raw)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return market.ErrRunning
	}
	i := c.indexOfLocked(s)
	if i < 0 {
		return fmt.Errorf("%w: %s", market.ErrNotSelected, s)
	}

	c.epoch++
	c.selected = append(c.selected[:i], c.selected[i+1:]...)
	delete(c.addedAt, s)
	delete(c.cache, s)
	delete(c.failures, s)
	delete(c.pending, s)
	delete(c.quotes, s)
	c.view.SetSelection(c.selected)

	if len(c.selected) == 0 {
		c.index = 0
		c.runID = ""
		c.view.Clear()
	}
	c.emitStateLocked()
	return nil
}

// Start waits for outstanding requests and begins playback at index 0. If
// no selected symbol has data, missing series are requested once more
// before giving up with ErrNoDataAvailable.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if err := c.startableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if err := c.awaitPending(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	if !c.hasDataLocked() {
		c.requestMissingLocked()
		c.mu.Unlock()
		if err := c.awaitPending(ctx); err != nil {
			return err
		}
		c.mu.Lock()
	}
	defer c.mu.Unlock()

	if err := c.startableLocked(); err != nil {
		return err
	}
	failed := c.failedSymbolsLocked()
	if !c.hasDataLocked() {
		errs := []error{market.ErrNoDataAvailable}
		for _, s := range failed {
			errs = append(errs, c.failures[s])
		}
		c.noticeLocked(notice.Notice{Level: notice.LevelError, Message: "failed to fetch data for: " + joinSymbols(failed)})
		return errors.Join(errs...)
	}
	if len(failed) > 0 {
		c.noticeLocked(notice.Notice{Level: notice.LevelWarn, Message: "failed to fetch data for: " + joinSymbols(failed)})
	}

	c.index = 0
	c.runID = uuid.NewString()
	c.running = true

	snap := c.snapshotLocked()
	if snap.MaxIndex == 0 {
		c.running = false
		snap.Running = false
	}
	c.publishLocked(snap)

	if c.running {
		c.clock.SetInterval(c.interval)
		c.clock.Start(c.onTick)
	}
	logx.Infof("playback: run %s started with %d symbols, %d steps", c.runID, len(c.selected), snap.MaxIndex+1)
	c.noticeLocked(notice.Notice{Level: notice.LevelInfo, Message: fmt.Sprintf("playback started: %s", joinSymbols(c.selected))})
	c.emitStateLocked()
	return nil
}

func (c *Controller) startableLocked() error {
	if c.isClosed() {
		return ErrClosed
	}
	if c.running {
		return market.ErrAlreadyRunning
	}
	if len(c.selected) == 0 {
		return market.ErrNoSymbols
	}
	return nil
}

// Stop pauses playback. The index is kept.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.running = false
	c.clock.Stop()
	logx.Infof("playback: run %s stopped at index %d", c.runID, c.index)
	c.emitStateLocked()
}

// Retry requests series for selected symbols that have none and no request
// in flight. It returns the number of requests issued.
func (c *Controller) Retry() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return 0, market.ErrRunning
	}
	return c.requestMissingLocked(), nil
}

func (c *Controller) onTick() {
	c.Tick()
}

// Tick advances the shared index by one step. It reports false when playback
// is not running. Playback stops on reaching the last index of the longest
// series.
func (c *Controller) Tick() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return Snapshot{}, false
	}
	maxIdx := c.maxIndexLocked()
	if c.index >= maxIdx {
		c.finishLocked()
		return Snapshot{}, false
	}

	c.index++
	snap := c.snapshotLocked()
	done := c.index >= maxIdx
	if done {
		c.running = false
		snap.Running = false
	}
	c.publishLocked(snap)
	if done {
		c.finishLocked()
	}
	return snap, true
}

func (c *Controller) finishLocked() {
	c.running = false
	c.clock.Stop()
	logx.Infof("playback: run %s finished at index %d", c.runID, c.index)
	c.noticeLocked(notice.Notice{Level: notice.LevelInfo, Message: "playback finished"})
	c.emitStateLocked()
}

// SetSpeed sets the tick interval in milliseconds.
func (c *Controller) SetSpeed(ms int) error {
	if ms <= 0 {
		return fmt.Errorf("%w: speed %dms must be positive", market.ErrInvalidInput, ms)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.interval = time.Duration(ms) * time.Millisecond
	c.clock.SetInterval(c.interval)
	c.emitStateLocked()
	return nil
}

// NextSpeed moves to the next speed preset and returns it.
func (c *Controller) NextSpeed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	presets := c.cfg.SpeedPresets
	next := presets[0]
	for i, p := range presets {
		if p == c.interval {
			next = presets[(i+1)%len(presets)]
			break
		}
	}
	c.interval = next
	c.clock.SetInterval(next)
	c.emitStateLocked()
	return next
}

// requestLocked issues an asynchronous fetch for s stamped with its selection
// epoch.
func (c *Controller) requestLocked(s market.Symbol) {
	if c.isClosed() {
		return
	}
	req := &request{epoch: c.addedAt[s], done: make(chan struct{})}
	c.pending[s] = req

	c.wg.Add(1)
	threading.GoSafe(func() {
		defer c.wg.Done()
		defer close(req.done)

		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.FetchTimeout)
		defer cancel()
		series, err := c.source.Fetch(ctx, s)
		c.complete(s, req, series, err)
	})
}

func (c *Controller) requestMissingLocked() int {
	n := 0
	for _, s := range c.selected {
		if _, ok := c.cache[s]; ok {
			continue
		}
		if _, ok := c.pending[s]; ok {
			continue
		}
		c.requestLocked(s)
		n++
	}
	return n
}

func (c *Controller) complete(s market.Symbol, req *request, series market.Series, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending[s] == req {
		delete(c.pending, s)
	}
	if epoch, ok := c.addedAt[s]; !ok || epoch != req.epoch {
		logx.Infof("playback: discarding stale result for %s", s)
		return
	}

	if err == nil && series.Symbol != s {
		err = fmt.Errorf("%w: source returned %s", market.ErrInvalidInput, series.Symbol)
	}
	if err != nil {
		genErr := &market.GenerationError{Symbol: s, Err: err}
		c.failures[s] = genErr
		logx.WithContext(c.ctx).Errorf("playback: %v", genErr)
		c.noticeLocked(notice.Notice{Symbol: s, Level: notice.LevelError, Message: "failed to fetch data for: " + string(s)})
		c.emitLocked(Event{Type: playbackview.EventSeriesFailed, Symbol: s, Err: genErr, Message: genErr.Error()})
		return
	}

	c.cache[s] = series
	delete(c.failures, s)
	c.emitLocked(Event{Type: playbackview.EventSeriesReady, Symbol: s})
}

func (c *Controller) runQuoteRefresher() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.QuoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.mu.Lock()
			if !c.running {
				c.requestQuotesLocked(c.selected)
			}
			c.mu.Unlock()
		}
	}
}

// requestQuotesLocked quotes symbols one after another in the background.
// Only one batch runs at a time.
func (c *Controller) requestQuotesLocked(symbols []market.Symbol) {
	if c.cfg.QuoteInterval < 0 || len(symbols) == 0 || c.isClosed() {
		return
	}
	if c.quoting {
		c.requoteAfter = true
		return
	}
	c.quoting = true

	order := append([]market.Symbol(nil), symbols...)
	epochs := make(map[market.Symbol]uint64, len(order))
	for _, s := range order {
		epochs[s] = c.addedAt[s]
	}

	c.wg.Add(1)
	threading.GoSafe(func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.FetchTimeout)
		defer cancel()
		quotes, errs := datasource.QuoteAll(ctx, c.source, order)
		c.completeQuotes(epochs, quotes, errs)
	})
}

func (c *Controller) completeQuotes(epochs map[market.Symbol]uint64, quotes []datasource.Quote, errs []error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.quoting = false
	var stored []datasource.Quote
	for _, q := range quotes {
		if epoch, ok := c.addedAt[q.Symbol]; !ok || epoch != epochs[q.Symbol] {
			continue
		}
		c.quotes[q.Symbol] = q
		stored = append(stored, q)
	}
	for _, err := range errs {
		logx.WithContext(c.ctx).Errorf("playback: %v", err)
	}
	if len(stored) > 0 {
		c.emitLocked(Event{Type: playbackview.EventQuotes, Quotes: stored})
	}

	if c.requoteAfter {
		c.requoteAfter = false
		var missing []market.Symbol
		for _, s := range c.selected {
			if _, ok := c.quotes[s]; !ok {
				missing = append(missing, s)
			}
		}
		c.requestQuotesLocked(missing)
	}
}

// awaitPending blocks until every request for the current selection has
// completed or ctx is done.
func (c *Controller) awaitPending(ctx context.Context) error {
	c.mu.Lock()
	var waits []chan struct{}
	for _, s := range c.selected {
		if req, ok := c.pending[s]; ok {
			waits = append(waits, req.done)
		}
	}
	c.mu.Unlock()

	for _, done := range waits {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		RunID:     c.runID,
		Index:     c.index,
		MaxIndex:  c.maxIndexLocked(),
		Running:   c.running,
		PerSymbol: make(map[market.Symbol]SymbolState, len(c.selected)),
	}
	for _, s := range c.selected {
		series, ok := c.cache[s]
		if !ok {
			continue
		}
		p, ok := series.At(c.index)
		if !ok {
			continue
		}
		change := 0.0
		if prev, ok := series.At(c.index - 1); ok && prev.Price > 0 {
			change = (p.Price - prev.Price) / prev.Price * 100
		}
		snap.PerSymbol[s] = SymbolState{
			Price:         p.Price,
			ChangePercent: change,
			Mood:          mood.Classify(change),
			IsPrediction:  p.IsPrediction,
			Volume:        p.Volume,
			Date:          p.Date,
		}
		if snap.Day == "" {
			snap.Day = p.DateString()
		}
	}
	return snap
}

func (c *Controller) publishLocked(snap Snapshot) {
	c.view.Apply(snap)
	c.emitLocked(Event{Type: playbackview.EventSnapshot, Snapshot: &snap})
}

func (c *Controller) emitStateLocked() {
	c.emitLocked(Event{Type: playbackview.EventStateChanged, State: c.stateLocked().String()})
}

// emitLocked must be called with c.mu held so that Close cannot close the
// channel concurrently.
func (c *Controller) emitLocked(ev Event) {
	if c.isClosed() {
		return
	}
	if c.cfg.DropEvents {
		select {
		case c.events <- ev:
		default:
			c.droppedEvents.Add(1)
		}
		return
	}
	select {
	case c.events <- ev:
	case <-c.closed:
	}
}

func (c *Controller) noticeLocked(n notice.Notice) {
	if c.notices == nil || c.isClosed() {
		return
	}
	c.notices.Publish(n)
}

func (c *Controller) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Controller) indexOfLocked(s market.Symbol) int {
	for i, sel := range c.selected {
		if sel == s {
			return i
		}
	}
	return -1
}

func (c *Controller) hasDataLocked() bool {
	for _, s := range c.selected {
		if _, ok := c.cache[s]; ok {
			return true
		}
	}
	return false
}

func (c *Controller) maxIndexLocked() int {
	maxIdx := 0
	for _, s := range c.selected {
		if series, ok := c.cache[s]; ok && series.Len()-1 > maxIdx {
			maxIdx = series.Len() - 1
		}
	}
	return maxIdx
}

func (c *Controller) failedSymbolsLocked() []market.Symbol {
	var out []market.Symbol
	for _, s := range c.selected {
		if _, ok := c.failures[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (c *Controller) stateLocked() State {
	switch {
	case c.running:
		return StateRunning
	case c.hasDataLocked():
		return StateReady
	default:
		return StateIdle
	}
}

// Selected returns the selection in insertion order.
func (c *Controller) Selected() []market.Symbol {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]market.Symbol(nil), c.selected...)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// MaxIndex returns the last index playback can reach.
func (c *Controller) MaxIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxIndexLocked()
}

// Speed returns the tick interval.
func (c *Controller) Speed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// Loaded reports whether a series is cached for s.
func (c *Controller) Loaded(s market.Symbol) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.cache[s]
	return ok
}

// Pending reports whether a request for s is in flight.
func (c *Controller) Pending(s market.Symbol) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[s]
	return ok
}

// Failures returns the current per-symbol failures ordered by symbol.
func (c *Controller) Failures() []*market.GenerationError {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*market.GenerationError, 0, len(c.failures))
	for _, genErr := range c.failures {
		out = append(out, genErr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Quotes returns the latest quote of each selected symbol that has one.
func (c *Controller) Quotes() map[market.Symbol]datasource.Quote {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[market.Symbol]datasource.Quote, len(c.quotes))
	for s, q := range c.quotes {
		out[s] = q
	}
	return out
}

// Snapshot returns the latest published snapshot.
func (c *Controller) Snapshot() (Snapshot, bool) {
	return c.view.Latest()
}

// History returns the accumulated playback read model.
func (c *Controller) History() *playbackview.PlaybackView {
	return c.view
}

// SourceStats reports the data source's call accounting.
func (c *Controller) SourceStats() datasource.Stats {
	return c.source.Stats()
}

// SourceName names the data source.
func (c *Controller) SourceName() string {
	return c.source.Name()
}

// Events returns the controller events channel.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// DroppedEvents returns the count of dropped events.
func (c *Controller) DroppedEvents() int64 {
	return c.droppedEvents.Load()
}

// Close stops playback, cancels in-flight requests and closes the events
// channel.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.running = false
		close(c.closed)
		c.mu.Unlock()

		c.cancel()
		c.clock.Close()
		c.wg.Wait()

		c.mu.Lock()
		close(c.events)
		c.mu.Unlock()
	})
}

func joinSymbols(symbols []market.Symbol) string {
	parts := make([]string, len(symbols))
	for i, s := range symbols {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
