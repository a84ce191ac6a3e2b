package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/live-odds-sync/internal/odds-sync/source"
	"github.com/radieske/live-odds-sync/internal/supplier-simulator/feed"
	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

type fixture struct {
	srv *Server
	ts  *httptest.Server
	g   *feed.Generator
	m   *Metrics
}

func newFixture(t *testing.T, refuse bool) *fixture {
	t.Helper()
	g := feed.NewGenerator(20, time.Now(), 11)
	m := NewMetrics(prometheus.NewRegistry())
	srv := New(g, m, zap.NewNop(), refuse)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &fixture{srv: srv, ts: ts, g: g, m: m}
}

func (f *fixture) wsURL() string {
	return "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return f.srv.Clients() > 0 }, time.Second, 5*time.Millisecond)
	return conn
}

func TestREST_MatchesAndOdds(t *testing.T) {
	f := newFixture(t, false)

	// o cliente HTTP do sync consome exatamente estas rotas
	client := source.NewHTTP(f.ts.URL, time.Second)
	matches, err := client.FetchMatches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.g.Matches(), normalize(matches))

	odds, err := client.FetchOdds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.g.Odds(), odds)
}

func normalize(ms []events.Match) []events.Match {
	for i := range ms {
		ms[i].StartTime = ms[i].StartTime.UTC()
	}
	return ms
}

func TestREST_FailMode(t *testing.T) {
	f := newFixture(t, false)

	resp, err := http.Post(f.ts.URL+"/v1/supplier/fail/rest", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = source.NewHTTP(f.ts.URL, time.Second).FetchMatches(context.Background())
	var apiErr *source.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, source.KindInvalidResponse, apiErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)

	resp, err = http.Post(f.ts.URL+"/v1/supplier/fail/rest?on=false", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	_, err = source.NewHTTP(f.ts.URL, time.Second).FetchMatches(context.Background())
	assert.NoError(t, err)

	resp, err = http.Post(f.ts.URL+"/v1/supplier/fail/rest?on=talvez", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWS_BroadcastReachesClient(t *testing.T) {
	f := newFixture(t, false)
	conn := f.dial(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Connections))

	updates := []events.Odds{
		{MatchID: 1001, TeamAOdds: 1.5, TeamBOdds: 2.5},
		{MatchID: 1002, TeamAOdds: 3.1, TeamBOdds: 1.4},
	}
	f.srv.Broadcast(updates)

	for _, want := range updates {
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var got events.Odds
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(f.m.MessagesSent))
}

func TestWS_RunTicks(t *testing.T) {
	f := newFixture(t, false)
	f.g.UpdateRatio = 0.1
	conn := f.dial(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.srv.Run(ctx, 10*time.Millisecond)

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var got events.Odds
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, got.IsValid())
	assert.GreaterOrEqual(t, got.MatchID, feed.FirstMatchID)
}

func TestWS_RefuseMode(t *testing.T) {
	f := newFixture(t, true)

	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL(), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Refused))

	f.srv.SetRefuse(false)
	f.dial(t)
	assert.Equal(t, 1, f.srv.Clients())
}

func TestWS_DropClosesClients(t *testing.T) {
	f := newFixture(t, false)
	conn := f.dial(t)

	resp, err := http.Post(f.ts.URL+"/v1/supplier/drop", "", nil)
	require.NoError(t, err)
	var body map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, 1, body["dropped"])

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)

	assert.Eventually(t, func() bool { return f.srv.Clients() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.m.Connections))
}
