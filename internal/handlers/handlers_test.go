package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botview/internal/engine"
	"botview/internal/interfaces"
	"botview/internal/session"
	"botview/internal/types"
)

type fakeEngine struct {
	mu    sync.Mutex
	view  types.View
	err   error
	calls []string
	subs  []func(types.View)
}

var _ interfaces.Engine = (*fakeEngine)(nil)

func (f *fakeEngine) call(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeEngine) Open(ctx context.Context) error { return f.call("open") }

func (f *fakeEngine) SelectMode(ctx context.Context, mode types.Mode) error {
	if err := f.call("mode:" + string(mode)); err != nil {
		return err
	}
	f.mu.Lock()
	f.view.Mode = mode
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) Start(ctx context.Context) error  { return f.call("start") }
func (f *fakeEngine) Pause(ctx context.Context)        { _ = f.call("pause") }
func (f *fakeEngine) Toggle(ctx context.Context) error { return f.call("toggle") }
func (f *fakeEngine) Reset(ctx context.Context) error  { return f.call("reset") }
func (f *fakeEngine) Close(ctx context.Context) error  { return f.call("close") }

func (f *fakeEngine) SetSymbol(ctx context.Context, symbol string) error {
	return f.call("symbol:" + symbol)
}

func (f *fakeEngine) SetTrainingLimit(ctx context.Context, limit int) error {
	return f.call(fmt.Sprintf("limit:%d", limit))
}

func (f *fakeEngine) Symbols(ctx context.Context) ([]string, error) {
	return []string{"BTCUSDT", "ETHUSDT"}, f.call("symbols")
}

func (f *fakeEngine) View() types.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *fakeEngine) Subscribe(fn func(types.View)) (cancel func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
	return func() {}
}

func (f *fakeEngine) publish() {
	f.mu.Lock()
	subs, v := f.subs, f.view
	f.mu.Unlock()
	for _, fn := range subs {
		fn(v)
	}
}

func (f *fakeEngine) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeEngine, *Hub) {
	t.Helper()
	eng := &fakeEngine{view: types.View{Mode: types.ModeTrading, Symbol: "BTCUSDT"}}
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return NewRouter(eng, hub), eng, hub
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetView(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/view", "")
	require.Equal(t, http.StatusOK, w.Code)

	var v types.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, types.ModeTrading, v.Mode)
	assert.Equal(t, "BTCUSDT", v.Symbol)
}

func TestSelectMode(t *testing.T) {
	r, eng, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/mode", `{"mode":"training"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mode:TRAINING", eng.lastCall())
	assert.Contains(t, w.Body.String(), `"TRAINING"`)

	w = do(r, http.MethodPost, "/api/mode", `{"mode":"paper"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown mode")

	w = do(r, http.MethodPost, "/api/mode", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestControlRoutes(t *testing.T) {
	r, eng, _ := newTestRouter(t)

	tests := []struct {
		path, body, call string
	}{
		{"/api/start", "", "start"},
		{"/api/pause", "", "pause"},
		{"/api/toggle", "", "toggle"},
		{"/api/reset", "", "reset"},
		{"/api/symbol", `{"symbol":"ETHUSDT"}`, "symbol:ETHUSDT"},
		{"/api/training/limit", `{"limit":120}`, "limit:120"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := do(r, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.call, eng.lastCall())
		})
	}
}

func TestErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"empty dataset", types.ErrEmptyDataset, http.StatusConflict},
		{"inactive mode", fmt.Errorf("%w: TRAINING", types.ErrNotActiveMode), http.StatusConflict},
		{"invalid limit", fmt.Errorf("%w: 5 < 21", session.ErrInvalidLimit), http.StatusBadRequest},
		{"unknown symbol", engine.ErrUnknownSymbol, http.StatusBadRequest},
		{"service failure", &types.ServiceError{Op: "getAccount", Status: 500, Message: "boom"}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, eng, _ := newTestRouter(t)
			eng.err = tt.err

			w := do(r, http.MethodPost, "/api/start", "")
			assert.Equal(t, tt.want, w.Code)

			var body struct {
				Error string     `json:"error"`
				View  types.View `json:"view"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.err.Error(), body.Error)
			assert.Equal(t, "BTCUSDT", body.View.Symbol)
		})
	}
}

func TestGetSymbols(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/symbols", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"symbols":["BTCUSDT","ETHUSDT"],"active":"BTCUSDT"}`, w.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)

	w = do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebSocketStreamsViews(t *testing.T) {
	r, eng, hub := newTestRouter(t)
	cancel := hub.Follow(eng)
	defer cancel()

	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Message {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var m Message
		require.NoError(t, conn.ReadJSON(&m))
		return m
	}

	assert.Equal(t, ConnectionStatus, read().Type)
	assert.Equal(t, ViewUpdate, read().Type)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	eng.mu.Lock()
	eng.view.Status = "Train: BUY | trades +1 | next=22"
	eng.mu.Unlock()
	eng.publish()

	m := read()
	require.Equal(t, ViewUpdate, m.Type)
	data, ok := m.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Train: BUY | trades +1 | next=22", data["status"])
}

func TestBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBuffer*3; i++ {
			hub.Broadcast(ViewUpdate, i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked without a running hub")
	}
}
