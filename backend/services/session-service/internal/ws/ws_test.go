package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fairpay/backend/services/session-service/internal/models"
)

type fakeSource struct {
	mu   sync.Mutex
	st   models.SessionStatus
	subs []func(models.SessionStatus)
}

func (f *fakeSource) Latest() models.SessionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

func (f *fakeSource) Refresh() models.SessionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.ConsumedUnits++
	return f.st
}

func (f *fakeSource) Subscribe(fn func(models.SessionStatus)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
	return func() {}
}

func (f *fakeSource) publish(st models.SessionStatus) {
	f.mu.Lock()
	f.st = st
	subs := append([]func(models.SessionStatus){}, f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}

func readStatus(t *testing.T, conn *websocket.Conn) models.SessionStatus {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Equal(t, TypeStatus, env.Type)
	var st models.SessionStatus
	require.NoError(t, json.Unmarshal(env.Data, &st))
	return st
}

func TestStatusFeedOverWebSocket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &fakeSource{st: models.SessionStatus{ConsumedUnits: 7, IsActive: true}}
	manager := NewManager(time.Hour)
	feed := NewStatusFeed(source, manager, zap.NewNop())
	go feed.Run(ctx)
	srv := NewServer(ctx, manager, feed, time.Second, nil, zap.NewNop())

	httpSrv := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	defer httpSrv.Close()

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, uint64(7), readStatus(t, conn).ConsumedUnits)
	require.Eventually(t, func() bool { return manager.Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(Envelope{Type: TypeRefresh}))
	assert.Equal(t, uint64(8), readStatus(t, conn).ConsumedUnits)

	require.Eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return len(source.subs) == 1
	}, time.Second, 10*time.Millisecond)
	source.publish(models.SessionStatus{ConsumedUnits: 42})
	assert.Equal(t, uint64(42), readStatus(t, conn).ConsumedUnits)

	conn.Close()
	require.Eventually(t, func() bool { return manager.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestProcessRejectsUnknownMessages(t *testing.T) {
	feed := NewStatusFeed(&fakeSource{}, NewManager(0), zap.NewNop())

	out, err := feed.Process(context.Background(), "c1", []byte("{"))
	require.NoError(t, err)
	assert.Contains(t, string(out), `"type":"error"`)

	out, err = feed.Process(context.Background(), "c1", []byte(`{"type":"stop"}`))
	require.NoError(t, err)
	assert.Contains(t, string(out), "unknown message type")
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.fairpay.xyz"})

	req := httptest.NewRequest("GET", "/ws/status", nil)
	assert.True(t, check(req), "non-browser clients send no origin")
	req.Header.Set("Origin", "https://app.fairpay.xyz")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker(nil)(req))
}
