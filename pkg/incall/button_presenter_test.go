package incall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/incall/pkg/call"
	"github.com/arzzra/incall/pkg/telecom"
)

type fakeButtonSurface struct {
	states []ButtonState
}

func (s *fakeButtonSurface) UpdateButtons(state ButtonState) {
	s.states = append(s.states, state)
}

func (s *fakeButtonSurface) last(t *testing.T) ButtonState {
	t.Helper()
	require.NotEmpty(t, s.states)
	return s.states[len(s.states)-1]
}

func TestButtonsDerivedFromCapabilities(t *testing.T) {
	f := newFixture(t)
	surface := &fakeButtonSurface{}
	b := NewCallButtonPresenter(f.adapter, surface)

	tc, _ := f.addCall(telecom.StateActive)
	tc.SetCapabilities(telecom.CapabilityMute | telecom.CapabilitySupportHold |
		telecom.CapabilityHold | telecom.CapabilityAddCall)

	b.OnCanAddCallChanged(true)
	b.OnStateChange(InCallStateNoCalls, InCallStateInCall, f.list)

	state := surface.last(t)
	assert.True(t, state.MuteVisible)
	assert.True(t, state.HoldVisible)
	assert.True(t, state.HoldEnabled)
	assert.False(t, state.HoldChecked)
	assert.True(t, state.AddCallVisible)
	assert.True(t, state.AddCallEnabled)
	assert.False(t, state.SwapVisible)
	assert.False(t, state.MergeVisible)
	assert.True(t, state.EndCallEnabled)
}

func TestButtonsHoldCheckedForHeldCall(t *testing.T) {
	f := newFixture(t)
	surface := &fakeButtonSurface{}
	b := NewCallButtonPresenter(f.adapter, surface)

	tc, _ := f.addCall(telecom.StateHolding)
	tc.SetCapabilities(telecom.CapabilitySupportHold | telecom.CapabilityHold)

	b.OnStateChange(InCallStateNoCalls, InCallStateInCall, f.list)

	assert.True(t, surface.last(t).HoldChecked)
}

func TestButtonsUpgradeVisibleForAudioCallWithVideoCaps(t *testing.T) {
	f := newFixture(t)
	surface := &fakeButtonSurface{}
	b := NewCallButtonPresenter(f.adapter, surface)

	tc, _ := f.addCall(telecom.StateActive)
	tc.SetCapabilities(telecom.CapabilitySupportsVideoLocalTx | telecom.CapabilitySupportsVideoRemoteRx)

	b.OnStateChange(InCallStateNoCalls, InCallStateInCall, f.list)
	assert.True(t, surface.last(t).UpgradeToVideoVisible)

	// Для уже идущего видео кнопка upgrade не показывается
	tc.SetVideoState(telecom.VideoStateBidirectional)
	b.OnStateChange(InCallStateInCall, InCallStateInCall, f.list)
	assert.False(t, surface.last(t).UpgradeToVideoVisible)
}

func TestButtonsClearedForIncoming(t *testing.T) {
	f := newFixture(t)
	surface := &fakeButtonSurface{}
	b := NewCallButtonPresenter(f.adapter, surface)

	_, c := f.addCall(telecom.StateRinging)
	b.OnIncomingCall(InCallStateNoCalls, InCallStateIncoming, c)

	assert.Equal(t, ButtonState{}, surface.last(t))
}

func TestHoldClicked(t *testing.T) {
	f := newFixture(t)
	b := NewCallButtonPresenter(f.adapter, &fakeButtonSurface{})

	_, c := f.addCall(telecom.StateActive)
	b.OnStateChange(InCallStateNoCalls, InCallStateInCall, f.list)

	b.HoldClicked(true)
	b.HoldClicked(false)

	cmds := f.adapter.Recorded()
	require.Len(t, cmds, 2)
	assert.Equal(t, "hold", cmds[0].Op)
	assert.Equal(t, c.ID(), cmds[0].CallID)
	assert.Equal(t, "unhold", cmds[1].Op)
}

func TestUpgradeToVideoClicked(t *testing.T) {
	f := newFixture(t)
	b := NewCallButtonPresenter(f.adapter, &fakeButtonSurface{})

	_, c := f.addCall(telecom.StateActive)
	b.OnStateChange(InCallStateNoCalls, InCallStateInCall, f.list)

	b.UpgradeToVideoClicked()

	cmds := f.adapter.Recorded()
	require.Len(t, cmds, 1)
	assert.Equal(t, "session_modify_request", cmds[0].Op)
	assert.Equal(t, telecom.VideoStateBidirectional, cmds[0].VideoState)
	assert.Equal(t, call.SessionModificationWaitingForResponse, c.SessionModificationState())
}

func TestCanAddCallChangeDeduped(t *testing.T) {
	f := newFixture(t)
	surface := &fakeButtonSurface{}
	b := NewCallButtonPresenter(f.adapter, surface)

	b.OnCanAddCallChanged(true)
	n := len(surface.states)
	b.OnCanAddCallChanged(true)

	assert.Len(t, surface.states, n)
}

func TestClickedWithoutCurrentCallIsNoOp(t *testing.T) {
	f := newFixture(t)
	b := NewCallButtonPresenter(f.adapter, &fakeButtonSurface{})

	b.HoldClicked(true)
	b.SwapClicked()
	b.MergeClicked()
	b.UpgradeToVideoClicked()
	b.EndCallClicked()

	assert.Empty(t, f.adapter.Recorded())
}
