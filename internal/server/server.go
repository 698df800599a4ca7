// Package server exposes playback control and data over HTTP and a
// websocket stream.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/zappabad/stockpond/internal/chart"
	"github.com/zappabad/stockpond/internal/datasource"
	"github.com/zappabad/stockpond/internal/market"
	"github.com/zappabad/stockpond/internal/notice"
	noticeservice "github.com/zappabad/stockpond/internal/notice/service"
	playbackservice "github.com/zappabad/stockpond/internal/playback/service"
)

// Server serves the playback API.
type Server struct {
	cfg     Config
	ctrl    *playbackservice.Controller
	notices *noticeservice.NoticeService
	catalog market.Catalog
	hub     *Hub
	mux     *http.ServeMux

	stopNotices func()
}

// New creates a Server and subscribes its hub to the controller and notice
// event streams. notices may be nil.
func New(cfg Config, ctrl *playbackservice.Controller, notices *noticeservice.NoticeService, catalog market.Catalog) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = def.StartTimeout
	}
	if catalog == nil {
		catalog = market.DefaultCatalog()
	}

	s := &Server{
		cfg:     cfg,
		ctrl:    ctrl,
		notices: notices,
		catalog: catalog,
		mux:     http.NewServeMux(),

		stopNotices: func() {},
	}
	s.hub = NewHub(cfg, func() []Message {
		return []Message{{Type: "hello", Data: s.state()}}
	})
	s.hub.AttachPlaybackEvents(ctrl.Events())
	if notices != nil {
		var feed <-chan notice.Notice
		feed, s.stopNotices = notices.Subscribe(cfg.ClientBuffer)
		s.hub.AttachNoticeEvents(feed)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	s.mux.HandleFunc("POST /api/symbols/{symbol}", s.handleAddSymbol)
	s.mux.HandleFunc("DELETE /api/symbols/{symbol}", s.handleRemoveSymbol)
	s.mux.HandleFunc("POST /api/start", s.handleStart)
	s.mux.HandleFunc("POST /api/stop", s.handleStop)
	s.mux.HandleFunc("POST /api/retry", s.handleRetry)
	s.mux.HandleFunc("PUT /api/speed", s.handleSetSpeed)
	s.mux.HandleFunc("POST /api/speed/next", s.handleNextSpeed)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/notices", s.handleNotices)
	s.mux.Handle("GET /ws", s.hub)
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(rec, r)
		logx.WithContext(r.Context()).Infof("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logx.Infof("server: listening on %s", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.hub.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close stops the hub.
func (s *Server) Close() {
	s.stopNotices()
	s.hub.Close()
}

type failureDTO struct {
	Symbol market.Symbol `json:"symbol"`
	Error  string        `json:"error"`
}

type stateDTO struct {
	Selected []market.Symbol           `json:"selected"`
	Loaded   []market.Symbol           `json:"loaded"`
	State    playbackservice.State     `json:"state"`
	Index    int                       `json:"index"`
	MaxIndex int                       `json:"maxIndex"`
	SpeedMs  int64                     `json:"speedMs"`
	Failures []failureDTO              `json:"failures"`
	Latest   *playbackservice.Snapshot `json:"latest,omitempty"`
	// Quotes is only reported while playback is stopped.
	Quotes map[market.Symbol]datasource.Quote `json:"quotes,omitempty"`
}

func (s *Server) state() stateDTO {
	st := stateDTO{
		Selected: s.ctrl.Selected(),
		State:    s.ctrl.State(),
		Index:    s.ctrl.Index(),
		MaxIndex: s.ctrl.MaxIndex(),
		SpeedMs:  s.ctrl.Speed().Milliseconds(),
		Failures: []failureDTO{},
		Loaded:   []market.Symbol{},
	}
	for _, sym := range st.Selected {
		if s.ctrl.Loaded(sym) {
			st.Loaded = append(st.Loaded, sym)
		}
	}
	for _, f := range s.ctrl.Failures() {
		st.Failures = append(st.Failures, failureDTO{Symbol: f.Symbol, Error: f.Err.Error()})
	}
	if snap, ok := s.ctrl.Snapshot(); ok {
		st.Latest = &snap
	}
	if st.State != playbackservice.StateRunning {
		if q := s.ctrl.Quotes(); len(q) > 0 {
			st.Quotes = q
		}
	}
	return st
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Listings())
}

func (s *Server) handleAddSymbol(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.AddSymbol(r.PathValue("symbol")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.state())
}

func (s *Server) handleRemoveSymbol(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.RemoveSymbol(r.PathValue("symbol")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.StartTimeout)
	defer cancel()
	if err := s.ctrl.Start(ctx); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Stop()
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	n, err := s.ctrl.Retry()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"requested": n})
}

type speedRequest struct {
	Ms int `json:"ms"`
}

func (s *Server) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: decode body: %v", market.ErrInvalidInput, err))
		return
	}
	if err := s.ctrl.SetSpeed(req.Ms); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleNextSpeed(w http.ResponseWriter, r *http.Request) {
	s.ctrl.NextSpeed()
	writeJSON(w, http.StatusOK, s.state())
}

type historyDTO struct {
	Frame chart.Frame `json:"frame"`
	Width int         `json:"width,omitempty"`
	Ops   []chart.Op  `json:"ops,omitempty"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := chart.ParseMode(q.Get("mode"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	width, err := intParam(q.Get("width"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	height, err := intParam(q.Get("height"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	frame := chart.Normalize(chart.InputFromHistory(s.ctrl.History().History()), mode, s.catalog.Color)
	resp := historyDTO{Frame: frame}
	if width > 0 && height > 0 {
		rec := chart.NewRecorder(width, height)
		chart.Draw(rec, frame)
		resp.Width = width
		resp.Ops = rec.Ops
	}
	writeJSON(w, http.StatusOK, resp)
}

type statsDTO struct {
	Source              string           `json:"source"`
	Stats               datasource.Stats `json:"stats"`
	TimeUntilNextCallMs int64            `json:"timeUntilNextCallMs"`
	DroppedEvents       int64            `json:"droppedEvents"`
	DroppedMessages     int64            `json:"droppedMessages"`
	Clients             int              `json:"clients"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.SourceStats()
	writeJSON(w, http.StatusOK, statsDTO{
		Source:              s.ctrl.SourceName(),
		Stats:               st,
		TimeUntilNextCallMs: st.TimeUntilNextCall.Milliseconds(),
		DroppedEvents:       s.ctrl.DroppedEvents(),
		DroppedMessages:     s.hub.DroppedMessages(),
		Clients:             s.hub.Clients(),
	})
}

func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	n := 20
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := intParam(raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		n = v
	}
	out := []notice.Notice{}
	if s.notices != nil {
		var latest []notice.Notice
		if sym := r.URL.Query().Get("symbol"); sym != "" {
			latest = s.notices.ForSymbol(market.Symbol(strings.ToUpper(strings.TrimSpace(sym))), n)
		} else {
			latest = s.notices.Latest(n)
		}
		if latest != nil {
			out = latest
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q is not a non-negative integer", market.ErrInvalidInput, raw)
	}
	return v, nil
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, market.ErrCapacityExceeded),
		errors.Is(err, market.ErrAlreadySelected),
		errors.Is(err, market.ErrRunning),
		errors.Is(err, market.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, market.ErrNoDataAvailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, market.ErrNotSelected):
		return http.StatusNotFound
	case errors.Is(err, market.ErrInvalidInput), errors.Is(err, market.ErrNoSymbols):
		return http.StatusBadRequest
	case errors.Is(err, datasource.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, playbackservice.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logx.WithContext(r.Context()).Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Errorf("write response: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
