package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnectionStateEquality(t *testing.T) {
	assert.Equal(t, Connected(), Connected())
	assert.NotEqual(t, Connected(), Connecting())
	assert.Equal(t, Reconnecting(2, 4*time.Second), Reconnecting(2, 4*time.Second))
	assert.NotEqual(t, Reconnecting(2, 4*time.Second), Reconnecting(3, 4*time.Second))
	assert.NotEqual(t, Reconnecting(2, 4*time.Second), Reconnecting(2, 3*time.Second))
	assert.True(t, Reconnecting(1, time.Second) == Reconnecting(1, time.Second))
}

func TestReconnectingNormalizesNegativePayload(t *testing.T) {
	s := Reconnecting(-1, -time.Second)
	assert.Equal(t, 0, s.Attempt)
	assert.Equal(t, time.Duration(0), s.NextRetryIn)
}

func TestConnectionStatePredicates(t *testing.T) {
	assert.True(t, Connected().IsConnected())
	assert.False(t, Connecting().IsConnected())
	assert.True(t, Reconnecting(0, time.Second).IsReconnecting())
	assert.True(t, Disconnected().IsDisconnected())
	assert.True(t, ConnectionState{}.IsDisconnected())
}

func TestConnectionStateDisplayText(t *testing.T) {
	assert.Equal(t, "Disconnected", Disconnected().DisplayText())
	assert.Equal(t, "Connecting...", Connecting().DisplayText())
	assert.Equal(t, "Connected", Connected().DisplayText())
	assert.Equal(t, "Reconnecting in 4s...", Reconnecting(2, 4*time.Second).DisplayText())
	assert.Equal(t, "Reconnecting in 0s...", Reconnecting(0, 500*time.Millisecond).DisplayText())
}

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, "connected", Connected().String())
	assert.Equal(t, "disconnected", ConnectionState{}.String())
	assert.Equal(t, "reconnecting(attempt=1, next_retry_in=2s)", Reconnecting(1, 2*time.Second).String())
}
