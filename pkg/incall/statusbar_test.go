package incall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/incall/pkg/call"
	"github.com/arzzra/incall/pkg/telecom"
)

type fakeNotificationSurface struct {
	shown  []NotificationContent
	clears int
}

func (s *fakeNotificationSurface) ShowNotification(content NotificationContent) {
	s.shown = append(s.shown, content)
}

func (s *fakeNotificationSurface) Clear() { s.clears++ }

func (s *fakeNotificationSurface) last(t *testing.T) NotificationContent {
	t.Helper()
	require.NotEmpty(t, s.shown)
	return s.shown[len(s.shown)-1]
}

func TestNotificationKindByCallState(t *testing.T) {
	f := newFixture(t)
	surface := &fakeNotificationSurface{}
	n := NewStatusBarNotifier(f.list, surface)

	tc, c := f.addCall(telecom.StateActive)
	n.OnStateChange(InCallStateNoCalls, InCallStateInCall, f.list)
	assert.Equal(t, NotificationOngoing, surface.last(t).Kind)

	tc.SetState(telecom.StateHolding)
	c.Update()
	n.OnStateChange(InCallStateInCall, InCallStateInCall, f.list)
	assert.Equal(t, NotificationOnHold, surface.last(t).Kind)
}

func TestNotificationVideoUpgradeWins(t *testing.T) {
	f := newFixture(t)
	surface := &fakeNotificationSurface{}
	n := NewStatusBarNotifier(f.list, surface)

	_, c := f.addCall(telecom.StateActive)
	c.SetSessionModificationState(call.SessionModificationReceivedUpgradeToVideoRequest)

	n.OnStateChange(InCallStateNoCalls, InCallStateInCall, f.list)
	assert.Equal(t, NotificationVideoUpgrade, surface.last(t).Kind)
}

func TestNotificationIncomingWinsOverActive(t *testing.T) {
	f := newFixture(t)
	surface := &fakeNotificationSurface{}
	n := NewStatusBarNotifier(f.list, surface)

	f.addCall(telecom.StateActive)
	_, waiting := f.addCall(telecom.StateRinging)

	n.OnStateChange(InCallStateInCall, InCallStateIncoming, f.list)
	content := surface.last(t)
	assert.Equal(t, NotificationIncoming, content.Kind)
	assert.Equal(t, waiting.ID(), content.CallID)
}

func TestNotificationDeduped(t *testing.T) {
	f := newFixture(t)
	surface := &fakeNotificationSurface{}
	n := NewStatusBarNotifier(f.list, surface)

	f.addCall(telecom.StateActive)
	n.OnStateChange(InCallStateNoCalls, InCallStateInCall, f.list)
	n.OnStateChange(InCallStateInCall, InCallStateInCall, f.list)

	assert.Len(t, surface.shown, 1)
}

func TestNotificationClearedOnNoCalls(t *testing.T) {
	f := newFixture(t)
	surface := &fakeNotificationSurface{}
	n := NewStatusBarNotifier(f.list, surface)

	tc, c := f.addCall(telecom.StateActive)
	n.OnStateChange(InCallStateNoCalls, InCallStateInCall, f.list)

	f.disconnect(tc, c, telecom.DisconnectCauseLocal)
	n.OnStateChange(InCallStateInCall, InCallStateNoCalls, f.list)

	assert.Equal(t, 1, surface.clears)

	// Повторный переход без показанной нотификации не дергает Clear
	n.OnStateChange(InCallStateNoCalls, InCallStateNoCalls, f.list)
	assert.Equal(t, 1, surface.clears)
}

func TestFullScreenIncomingNotification(t *testing.T) {
	f := newFixture(t)
	surface := &fakeNotificationSurface{}
	n := NewStatusBarNotifier(f.list, surface)

	_, c := f.addCall(telecom.StateRinging)
	n.OnFullScreenIncoming(c)

	content := surface.last(t)
	assert.Equal(t, NotificationIncoming, content.Kind)
	assert.True(t, content.FullScreen)
	assert.Equal(t, c.ID(), content.CallID)
}
