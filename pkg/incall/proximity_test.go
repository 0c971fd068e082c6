package incall

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arzzra/incall/pkg/call"
	"github.com/arzzra/incall/pkg/telecom"
)

type fakeWakeLock struct {
	acquires int
	releases int
}

func (w *fakeWakeLock) Acquire() { w.acquires++ }
func (w *fakeWakeLock) Release() { w.releases++ }

func TestProximityAcquiresOnlyOffhookEarpieceBackground(t *testing.T) {
	f := newFixture(t)
	lock := &fakeWakeLock{}
	p := NewProximitySensor(lock)

	f.addCall(telecom.StateActive)

	// UI на переднем плане — экран не гасим
	p.OnUIShowing(true)
	p.OnStateChange(InCallStateNoCalls, InCallStateInCall, f.list)
	assert.Zero(t, lock.acquires)

	// UI ушел в фон, трубка у уха
	p.OnUIShowing(false)
	assert.Equal(t, 1, lock.acquires)

	// Повторный пересчет того же решения — no-op
	p.OnStateChange(InCallStateInCall, InCallStateInCall, f.list)
	assert.Equal(t, 1, lock.acquires)
	assert.Zero(t, lock.releases)
}

func TestProximityReleasedWhenAudioLeavesEarpiece(t *testing.T) {
	f := newFixture(t)
	lock := &fakeWakeLock{}
	p := NewProximitySensor(lock)

	f.addCall(telecom.StateActive)
	p.OnStateChange(InCallStateNoCalls, InCallStateInCall, f.list)
	assert.Equal(t, 1, lock.acquires)

	p.OnAudioRouteChanged(AudioRouteSpeaker)
	assert.Equal(t, 1, lock.releases)

	p.OnAudioRouteChanged(AudioRouteEarpiece)
	assert.Equal(t, 2, lock.acquires)
}

func TestProximityIgnoresVideoCall(t *testing.T) {
	f := newFixture(t)
	lock := &fakeWakeLock{}
	p := NewProximitySensor(lock)

	tc, _ := f.addCall(telecom.StateActive)
	tc.SetVideoState(telecom.VideoStateBidirectional)

	p.OnStateChange(InCallStateNoCalls, InCallStateInCall, f.list)
	assert.Zero(t, lock.acquires)
}

func TestProximityDisabledDuringUpgradeNegotiation(t *testing.T) {
	f := newFixture(t)
	lock := &fakeWakeLock{}
	p := NewProximitySensor(lock)

	f.addCall(telecom.StateActive)
	p.OnStateChange(InCallStateNoCalls, InCallStateInCall, f.list)
	assert.Equal(t, 1, lock.acquires)

	p.OnSessionModificationChange(call.SessionModificationWaitingForResponse)
	assert.Equal(t, 1, lock.releases)

	p.OnSessionModificationChange(call.SessionModificationNoRequest)
	assert.Equal(t, 2, lock.acquires)
}

func TestProximityReleasedWhenCallsEnd(t *testing.T) {
	f := newFixture(t)
	lock := &fakeWakeLock{}
	p := NewProximitySensor(lock)

	tc, c := f.addCall(telecom.StateActive)
	p.OnStateChange(InCallStateNoCalls, InCallStateInCall, f.list)
	assert.Equal(t, 1, lock.acquires)

	f.disconnect(tc, c, telecom.DisconnectCauseLocal)
	p.OnStateChange(InCallStateInCall, InCallStateNoCalls, f.list)
	assert.Equal(t, 1, lock.releases)
}
