package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/live-odds-sync/internal/odds-sync/reconnect"
	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

type supplier struct {
	srv    *httptest.Server
	refuse atomic.Bool
	hits   atomic.Int32
	conns  chan *websocket.Conn
}

func newSupplier(t *testing.T) *supplier {
	t.Helper()
	s := &supplier{conns: make(chan *websocket.Conn, 16)}
	up := websocket.Upgrader{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if s.refuse.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- conn
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *supplier) url() string { return "ws" + strings.TrimPrefix(s.srv.URL, "http") }

func (s *supplier) next(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-s.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

type stateLog struct {
	mu  sync.Mutex
	all []events.ConnectionState
}

func watch(t *testing.T, src *WSSource) *stateLog {
	l := &stateLog{}
	ch, cancel := src.SubscribeStates()
	t.Cleanup(cancel)
	go func() {
		for st := range ch {
			l.mu.Lock()
			l.all = append(l.all, st)
			l.mu.Unlock()
		}
	}()
	return l
}

func (l *stateLog) get() []events.ConnectionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]events.ConnectionState(nil), l.all...)
}

func policy() reconnect.Config {
	return reconnect.Config{
		InitialDelay:   20 * time.Millisecond,
		Multiplier:     2,
		MaxDelay:       80 * time.Millisecond,
		AttemptTimeout: time.Second,
	}
}

func TestConnectAndReceiveOdds(t *testing.T) {
	sup := newSupplier(t)
	src := NewWSSource(sup.url(), policy(), zap.NewNop())
	t.Cleanup(src.Close)

	odds, cancel := src.SubscribeOdds()
	defer cancel()

	require.NoError(t, src.Connect(context.Background()))
	assert.Equal(t, events.Connected(), src.State())

	// connect repetido é no-op
	require.NoError(t, src.Connect(context.Background()))
	assert.Equal(t, int32(1), sup.hits.Load())

	server := sup.next(t)
	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte(`{"match_id":1,"team_a_odds":1.9,"team_b_odds":2.1}`)))
	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte(`[{"match_id":2,"team_a_odds":1.5,"team_b_odds":2.6},{"match_id":3,"team_a_odds":3.1,"team_b_odds":1.3}]`)))

	var got []int
	for len(got) < 3 {
		select {
		case o := <-odds:
			got = append(got, o.MatchID)
		case <-time.After(2 * time.Second):
			t.Fatalf("received only %v", got)
		}
	}
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestConnectionLossReconnects(t *testing.T) {
	sup := newSupplier(t)
	src := NewWSSource(sup.url(), policy(), zap.NewNop())
	t.Cleanup(src.Close)
	states := watch(t, src)

	require.NoError(t, src.Connect(context.Background()))
	sup.next(t)

	src.SimulateConnectionLoss()
	sup.next(t)

	require.Eventually(t, func() bool {
		s := states.get()
		return len(s) > 0 && s[len(s)-1] == events.Connected()
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []events.ConnectionState{
		events.Connecting(),
		events.Connected(),
		events.Reconnecting(0, 20*time.Millisecond),
		events.Connecting(),
		events.Connected(),
	}, states.get())
	assert.Equal(t, 0, src.Supervisor().Attempt())
}

func TestServerCloseTriggersBackoff(t *testing.T) {
	sup := newSupplier(t)
	src := NewWSSource(sup.url(), policy(), zap.NewNop())
	t.Cleanup(src.Close)

	require.NoError(t, src.Connect(context.Background()))
	sup.refuse.Store(true)
	_ = sup.next(t).Close()

	require.Eventually(t, func() bool { return src.Supervisor().Attempt() >= 2 }, 2*time.Second, 5*time.Millisecond)

	sup.refuse.Store(false)
	require.Eventually(t, func() bool { return src.State().IsConnected() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, src.Supervisor().Attempt())
}

func TestDisconnectDuringBackoffWins(t *testing.T) {
	sup := newSupplier(t)
	cfg := policy()
	cfg.InitialDelay = 150 * time.Millisecond
	cfg.MaxDelay = time.Second
	src := NewWSSource(sup.url(), cfg, zap.NewNop())
	t.Cleanup(src.Close)
	states := watch(t, src)

	require.NoError(t, src.Connect(context.Background()))
	sup.next(t)
	src.SimulateConnectionLoss()
	require.Eventually(t, func() bool { return src.State().IsReconnecting() }, time.Second, time.Millisecond)

	src.Disconnect()
	assert.Equal(t, events.Disconnected(), src.State())
	hits := sup.hits.Load()

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, hits, sup.hits.Load(), "no reconnect attempt after user disconnect")
	assert.False(t, src.Supervisor().Running())
	assert.Equal(t, 0, src.Supervisor().Attempt())

	require.Eventually(t, func() bool {
		s := states.get()
		return len(s) > 0 && s[len(s)-1] == events.Disconnected()
	}, time.Second, 5*time.Millisecond)
}

func TestStaleReconnectLoopNeverDials(t *testing.T) {
	sup := newSupplier(t)
	src := NewWSSource(sup.url(), policy(), zap.NewNop())
	t.Cleanup(src.Close)

	require.NoError(t, src.Connect(context.Background()))
	sup.next(t)

	// perda registrada para o epoch atual, mas o loop ainda não começou
	src.mu.Lock()
	conn := src.conn
	src.conn = nil
	src.supEpoch = src.epoch
	src.mu.Unlock()
	_ = conn.Close()

	// o usuário desconecta antes do loop começar
	src.Disconnect()
	src.Supervisor().StartReconnecting()

	time.Sleep(300 * time.Millisecond)
	src.mu.Lock()
	installed := src.conn
	src.mu.Unlock()
	assert.Nil(t, installed, "no connection after user disconnect")
	assert.Equal(t, int32(1), sup.hits.Load())
	assert.Equal(t, events.Disconnected(), src.State())
}

func TestReconnectForSupersededEpochIsIgnored(t *testing.T) {
	sup := newSupplier(t)
	src := NewWSSource(sup.url(), policy(), zap.NewNop())
	t.Cleanup(src.Close)

	require.NoError(t, src.Connect(context.Background()))
	sup.next(t)
	src.mu.Lock()
	epoch := src.epoch
	src.mu.Unlock()

	src.Disconnect()
	src.startReconnecting(epoch)

	assert.False(t, src.Supervisor().Running())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), sup.hits.Load())
	assert.Equal(t, events.Disconnected(), src.State())
}

func TestInitialFailureGivesUp(t *testing.T) {
	sup := newSupplier(t)
	sup.refuse.Store(true)
	cfg := policy()
	cfg.MaxAttempts = 2
	src := NewWSSource(sup.url(), cfg, zap.NewNop())
	t.Cleanup(src.Close)

	assert.Error(t, src.Connect(context.Background()))
	require.Eventually(t, func() bool { return src.State().IsDisconnected() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), sup.hits.Load(), "initial dial plus two attempts")

	// novo connect parte do contador zerado
	sup.refuse.Store(false)
	require.NoError(t, src.Connect(context.Background()))
	assert.True(t, src.State().IsConnected())
}

func TestSimulateLossWithoutConnectionIsNoop(t *testing.T) {
	src := NewWSSource("ws://127.0.0.1:1/ws", policy(), nil)
	src.SimulateConnectionLoss()
	assert.Equal(t, events.Disconnected(), src.State())
	src.Close()
}
