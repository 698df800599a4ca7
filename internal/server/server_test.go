package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappabad/stockpond/internal/datasource"
	"github.com/zappabad/stockpond/internal/generator"
	"github.com/zappabad/stockpond/internal/market"
	noticeservice "github.com/zappabad/stockpond/internal/notice/service"
	"github.com/zappabad/stockpond/internal/playback/clock"
	playbackservice "github.com/zappabad/stockpond/internal/playback/service"
)

type fixture struct {
	srv   *Server
	http  *httptest.Server
	ctrl  *playbackservice.Controller
	clock *clock.Manual
}

func newFixture(t *testing.T, failureRate float64) *fixture {
	t.Helper()
	catalog := market.DefaultCatalog()
	src := datasource.NewSynthetic(datasource.SyntheticConfig{
		HistoryDays:  4,
		ForecastDays: 2,
		FailureRate:  failureRate,
	}, generator.New(generator.Config{Seed: 5}), catalog)

	clk := clock.NewManual(time.Second)
	notices := noticeservice.NewNoticeService(noticeservice.DefaultConfig())
	ctrl := playbackservice.NewController(playbackservice.DefaultConfig(), src, clk, notices)
	srv := New(DefaultConfig(), ctrl, notices, catalog)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ts.Close()
		srv.Close()
		ctrl.Close()
		notices.Close()
	})
	return &fixture{srv: srv, http: ts, ctrl: ctrl, clock: clk}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var rdr *strings.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	} else {
		rdr = strings.NewReader("")
	}
	req, err := http.NewRequest(method, f.http.URL+path, rdr)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var raw any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
		if m, ok := raw.(map[string]any); ok {
			out = m
		} else {
			out["items"] = raw
		}
	}
	return resp.StatusCode, out
}

func TestSymbolEndpoints(t *testing.T) {
	f := newFixture(t, 0)

	code, body := f.do(t, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "idle", body["state"])

	code, body = f.do(t, http.MethodPost, "/api/symbols/aapl", "")
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, []any{"AAPL"}, body["selected"])
	assert.Contains(t, []any{"idle", "ready"}, body["state"])
	require.Eventually(t, func() bool {
		_, body := f.do(t, http.MethodGet, "/api/state", "")
		return body["state"] == "ready"
	}, 2*time.Second, 5*time.Millisecond)

	code, _ = f.do(t, http.MethodPost, "/api/symbols/AAPL", "")
	assert.Equal(t, http.StatusConflict, code)

	for _, s := range []string{"MSFT", "TSLA", "NVDA", "AMD"} {
		code, _ = f.do(t, http.MethodPost, "/api/symbols/"+s, "")
		require.Equal(t, http.StatusCreated, code)
	}
	code, body = f.do(t, http.MethodPost, "/api/symbols/UBER", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, body["error"], "capacity")

	code, _ = f.do(t, http.MethodDelete, "/api/symbols/ZZZ", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = f.do(t, http.MethodDelete, "/api/symbols/msft", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["selected"], 4)
}

func TestStartStopAndSpeed(t *testing.T) {
	f := newFixture(t, 0)

	code, _ := f.do(t, http.MethodPost, "/api/start", "")
	assert.Equal(t, http.StatusBadRequest, code, "no symbols")

	f.do(t, http.MethodPost, "/api/symbols/AAPL", "")
	code, body := f.do(t, http.MethodPost, "/api/start", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "running", body["state"])
	assert.Equal(t, float64(5), body["maxIndex"])

	code, _ = f.do(t, http.MethodPost, "/api/symbols/MSFT", "")
	assert.Equal(t, http.StatusConflict, code)
	code, _ = f.do(t, http.MethodPost, "/api/start", "")
	assert.Equal(t, http.StatusConflict, code)

	f.clock.Advance(2)
	code, body = f.do(t, http.MethodPost, "/api/stop", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body["state"])
	assert.Equal(t, float64(2), body["index"])

	code, _ = f.do(t, http.MethodPut, "/api/speed", `{"ms":0}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = f.do(t, http.MethodPut, "/api/speed", `nope`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, body = f.do(t, http.MethodPut, "/api/speed", `{"ms":300}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(300), body["speedMs"])

	code, body = f.do(t, http.MethodPost, "/api/speed/next", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(500), body["speedMs"])
}

func TestNoDataIsUnprocessable(t *testing.T) {
	f := newFixture(t, 1)

	f.do(t, http.MethodPost, "/api/symbols/AAPL", "")
	code, body := f.do(t, http.MethodPost, "/api/start", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, body["error"], "no data available")

	_, body = f.do(t, http.MethodGet, "/api/state", "")
	failures, ok := body["failures"].([]any)
	require.True(t, ok)
	assert.Len(t, failures, 1)

	code, body = f.do(t, http.MethodPost, "/api/retry", "")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, float64(1), body["requested"])
}

func TestHistoryEndpoint(t *testing.T) {
	f := newFixture(t, 0)

	code, _ := f.do(t, http.MethodGet, "/api/history?mode=candles", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = f.do(t, http.MethodGet, "/api/history?width=-3", "")
	assert.Equal(t, http.StatusBadRequest, code)

	f.do(t, http.MethodPost, "/api/symbols/AAPL", "")
	f.do(t, http.MethodPost, "/api/symbols/MSFT", "")
	f.do(t, http.MethodPost, "/api/start", "")
	f.clock.Advance(3)

	code, body := f.do(t, http.MethodGet, "/api/history?mode=individual", "")
	require.Equal(t, http.StatusOK, code)
	frame := body["frame"].(map[string]any)
	assert.Equal(t, "individual", frame["mode"])
	assert.Len(t, frame["lines"], 2)
	assert.Nil(t, body["ops"])

	code, body = f.do(t, http.MethodGet, "/api/history?mode=portfolio&width=40&height=10", "")
	require.Equal(t, http.StatusOK, code)
	frame = body["frame"].(map[string]any)
	lines := frame["lines"].([]any)
	require.Len(t, lines, 1)
	assert.Equal(t, "#8B5CF6", lines[0].(map[string]any)["color"])
	assert.NotEmpty(t, body["ops"])
}

func TestStatsAndNotices(t *testing.T) {
	f := newFixture(t, 0)
	f.do(t, http.MethodPost, "/api/symbols/AAPL", "")
	f.do(t, http.MethodPost, "/api/start", "")

	code, body := f.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "synthetic", body["source"])
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(1000), stats["maxCallsPerDay"])
	require.Eventually(t, func() bool {
		_, body := f.do(t, http.MethodGet, "/api/stats", "")
		return body["stats"].(map[string]any)["callsToday"] == float64(2)
	}, 2*time.Second, 5*time.Millisecond, "one series fetch and one quote")

	require.Eventually(t, func() bool {
		_, body := f.do(t, http.MethodGet, "/api/notices?n=5", "")
		items, _ := body["items"].([]any)
		return len(items) >= 1
	}, time.Second, 5*time.Millisecond)

	code, _ = f.do(t, http.MethodGet, "/api/notices?n=x", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(t, http.MethodGet, "/api/catalog", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 15)
}

func TestWebsocketStream(t *testing.T) {
	f := newFixture(t, 0)

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello.Type)

	require.Eventually(t, func() bool { return f.srv.Hub().Clients() == 1 }, time.Second, time.Millisecond)

	f.do(t, http.MethodPost, "/api/symbols/AAPL", "")
	f.do(t, http.MethodPost, "/api/start", "")

	seen := map[string]bool{}
	for !seen["snapshot"] {
		var m Message
		require.NoError(t, conn.ReadJSON(&m))
		seen[m.Type] = true
	}
	assert.True(t, seen["state"])
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", market.ErrCapacityExceeded), http.StatusConflict},
		{market.ErrAlreadySelected, http.StatusConflict},
		{market.ErrRunning, http.StatusConflict},
		{market.ErrAlreadyRunning, http.StatusConflict},
		{errors.Join(market.ErrNoDataAvailable, errors.New("boom")), http.StatusUnprocessableEntity},
		{market.ErrNotSelected, http.StatusNotFound},
		{market.ErrInvalidInput, http.StatusBadRequest},
		{market.ErrNoSymbols, http.StatusBadRequest},
		{datasource.ErrRateLimited, http.StatusTooManyRequests},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{playbackservice.ErrClosed, http.StatusServiceUnavailable},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestStateReportsQuotesWhileStopped(t *testing.T) {
	f := newFixture(t, 0)
	f.do(t, http.MethodPost, "/api/symbols/AAPL", "")

	var quote map[string]any
	require.Eventually(t, func() bool {
		_, body := f.do(t, http.MethodGet, "/api/state", "")
		quotes, _ := body["quotes"].(map[string]any)
		quote, _ = quotes["AAPL"].(map[string]any)
		return quote != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "AAPL", quote["symbol"])
	assert.Greater(t, quote["price"], float64(0))
	assert.Contains(t, quote, "changePercent")

	code, _ := f.do(t, http.MethodPost, "/api/start", "")
	require.Equal(t, http.StatusOK, code)
	_, body := f.do(t, http.MethodGet, "/api/state", "")
	require.Equal(t, "running", body["state"])
	assert.NotContains(t, body, "quotes")
}

func TestNoticesFilterBySymbol(t *testing.T) {
	f := newFixture(t, 1)
	f.do(t, http.MethodPost, "/api/symbols/AAPL", "")
	f.do(t, http.MethodPost, "/api/symbols/MSFT", "")

	var items []any
	require.Eventually(t, func() bool {
		_, body := f.do(t, http.MethodGet, "/api/notices?symbol=aapl", "")
		items, _ = body["items"].([]any)
		return len(items) >= 1
	}, 2*time.Second, 5*time.Millisecond)
	for _, it := range items {
		assert.Equal(t, "AAPL", it.(map[string]any)["symbol"])
	}
}
