package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/live-odds-sync/internal/odds-sync/service"
	"github.com/radieske/live-odds-sync/internal/odds-sync/store"
	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

type fakeCore struct {
	store    *store.Store
	view     service.ViewState
	conn     events.ConnectionState
	retryErr error
	connects int
}

func newFakeCore() *fakeCore {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	st := store.New()
	var matches []events.Match
	for i := 1; i <= 5; i++ {
		matches = append(matches, events.Match{MatchID: i, TeamA: "A", TeamB: "B", StartTime: base.Add(time.Duration(i) * time.Hour)})
	}
	st.Bootstrap(matches, []events.Odds{{MatchID: 2, TeamAOdds: 1.9, TeamBOdds: 2.0}})
	return &fakeCore{store: st, view: service.ViewState{Status: service.ViewLoaded}, conn: events.Connected()}
}

func (f *fakeCore) Count() int                              { return f.store.Count() }
func (f *fakeCore) Row(i int) (store.Row, bool)             { return f.store.Row(i) }
func (f *fakeCore) Odds(id int) (events.Odds, bool)         { return f.store.Odds(id) }
func (f *fakeCore) ViewState() service.ViewState            { return f.view }
func (f *fakeCore) ConnectionState() events.ConnectionState { return f.conn }
func (f *fakeCore) StopStreaming()                          { f.conn = events.Disconnected() }

func (f *fakeCore) StartStreaming(context.Context) error {
	f.connects++
	f.conn = events.Connected()
	return nil
}

func (f *fakeCore) Retry(context.Context) error {
	if f.retryErr != nil {
		f.view = service.ViewState{Status: service.ViewError, Message: "The request timed out. Please try again."}
	}
	return f.retryErr
}

func do(t *testing.T, h http.Handler, method, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func TestListMatchesPaging(t *testing.T) {
	h := (&API{Core: newFakeCore()}).Router()

	var page PageResponse
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/matches?offset=1&limit=2", &page))
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, 1, page.Rows[0].Index)
	require.NotNil(t, page.Rows[0].Odds)
	assert.Equal(t, 1.9, page.Rows[0].Odds.TeamAOdds)
	assert.Nil(t, page.Rows[1].Odds)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/matches?offset=10", &page))
	assert.Empty(t, page.Rows)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/matches?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/matches?offset=-1", nil))
}

func TestGetRowAndOdds(t *testing.T) {
	h := (&API{Core: newFakeCore()}).Router()

	var row store.Row
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/matches/0", &row))
	assert.Equal(t, 1, row.Match.MatchID)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/matches/5", nil))
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/matches/x", nil))

	var o events.Odds
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/odds/2", &o))
	assert.Equal(t, 2.0, o.TeamBOdds)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/odds/3", nil))
}

func TestStreamControls(t *testing.T) {
	core := newFakeCore()
	var lost bool
	h := (&API{Core: core, SimulateLoss: func() { lost = true }}).Router()

	var st StateResponse
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/stream/disconnect", &st))
	assert.Equal(t, events.StatusDisconnected, st.Connection.Status)
	assert.Equal(t, "Disconnected", st.StatusText)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/stream/connect", &st))
	assert.Equal(t, events.StatusConnected, st.Connection.Status)
	assert.Equal(t, 1, core.connects)
	assert.Equal(t, 5, st.Count)
	assert.Equal(t, service.ViewLoaded, st.View)

	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/v1/stream/simulate-loss", nil))
	assert.True(t, lost)
}

func TestReload(t *testing.T) {
	core := newFakeCore()
	h := (&API{Core: core}).Router()

	var st StateResponse
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/reload", &st))

	core.retryErr = errors.New("timeout")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/reload", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "timed out")
	assert.NotContains(t, rec.Body.String(), `"timeout"`)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/v1/stream/simulate-loss", nil))
}
