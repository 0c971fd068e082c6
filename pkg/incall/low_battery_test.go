package incall

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/incall/pkg/telecom"
)

type fakeDialog struct {
	shows     []string
	dismisses int
}

func (d *fakeDialog) Show(callID string) { d.shows = append(d.shows, callID) }
func (d *fakeDialog) Dismiss()           { d.dismisses++ }

func markLowBattery(tc *telecom.MockCall) {
	tc.SetExtras(telecom.NewExtras(map[string]interface{}{
		telecom.ExtraLowBattery: true,
	}))
}

func TestLowBatteryShowsDialogOncePerCall(t *testing.T) {
	f := newFixture(t)
	dialog := &fakeDialog{}
	l := NewLowBatteryListener(f.adapter, dialog)

	tc, c := f.addCall(telecom.StateActive)
	tc.SetVideoState(telecom.VideoStateBidirectional)
	markLowBattery(tc)

	l.OnDetailsChanged(c)
	require.Equal(t, []string{c.ID()}, dialog.shows)

	// Повторные обновления деталей диалог не пересоздают
	l.OnDetailsChanged(c)
	assert.Len(t, dialog.shows, 1)
}

func TestLowBatteryIgnoredForAudioCall(t *testing.T) {
	f := newFixture(t)
	dialog := &fakeDialog{}
	l := NewLowBatteryListener(f.adapter, dialog)

	tc, c := f.addCall(telecom.StateActive)
	markLowBattery(tc)

	l.OnDetailsChanged(c)
	assert.Empty(t, dialog.shows)
}

func TestLowBatteryIgnoredOnCorruptExtras(t *testing.T) {
	f := newFixture(t)
	dialog := &fakeDialog{}
	l := NewLowBatteryListener(f.adapter, dialog)

	tc, c := f.addCall(telecom.StateActive)
	tc.SetVideoState(telecom.VideoStateBidirectional)
	tc.SetExtras(telecom.NewCorruptedExtras())

	l.OnDetailsChanged(c)
	assert.Empty(t, dialog.shows)
}

func TestLowBatteryContinueAsVoice(t *testing.T) {
	f := newFixture(t)
	dialog := &fakeDialog{}
	l := NewLowBatteryListener(f.adapter, dialog)

	tc, c := f.addCall(telecom.StateActive)
	tc.SetVideoState(telecom.VideoStateBidirectional)
	markLowBattery(tc)
	l.OnDetailsChanged(c)

	l.ContinueAsVoiceClicked(c.ID())

	cmds := f.adapter.Recorded()
	require.Len(t, cmds, 1)
	assert.Equal(t, "session_modify_request", cmds[0].Op)
	assert.Equal(t, telecom.VideoStateAudioOnly, cmds[0].VideoState)
	assert.Equal(t, 1, dialog.dismisses)
}

func TestLowBatteryHangUp(t *testing.T) {
	f := newFixture(t)
	dialog := &fakeDialog{}
	l := NewLowBatteryListener(f.adapter, dialog)

	tc, c := f.addCall(telecom.StateActive)
	tc.SetVideoState(telecom.VideoStateBidirectional)
	markLowBattery(tc)
	l.OnDetailsChanged(c)

	l.HangUpClicked(c.ID())

	cmds := f.adapter.Recorded()
	require.Len(t, cmds, 1)
	assert.Equal(t, "disconnect", cmds[0].Op)
	assert.Equal(t, c.ID(), cmds[0].CallID)
	assert.Equal(t, 1, dialog.dismisses)
}

func TestLowBatteryDialogClosedThroughDisconnectChannel(t *testing.T) {
	f := newFixture(t)
	dialog := &fakeDialog{}
	l := NewLowBatteryListener(f.adapter, dialog)
	f.p.AddDetailsListener(l)
	f.p.AddCallDisconnectedListener(l)

	tc, c := f.addCall(telecom.StateActive)
	tc.SetVideoState(telecom.VideoStateBidirectional)
	markLowBattery(tc)
	f.p.OnDetailsChanged(c)
	require.Equal(t, []string{c.ID()}, dialog.shows)

	// Завершение вызова доходит до слушателя через канал презентера
	f.disconnect(tc, c, telecom.DisconnectCauseRemote)
	f.exec.Advance(10 * time.Second)

	assert.Equal(t, 1, dialog.dismisses)
	assert.Zero(t, f.list.Len())
}

func TestLowBatteryDialogDismissedOnDisconnect(t *testing.T) {
	f := newFixture(t)
	dialog := &fakeDialog{}
	l := NewLowBatteryListener(f.adapter, dialog)

	tc, c := f.addCall(telecom.StateActive)
	tc.SetVideoState(telecom.VideoStateBidirectional)
	markLowBattery(tc)
	l.OnDetailsChanged(c)

	l.OnCallDisconnected(c)
	assert.Equal(t, 1, dialog.dismisses)

	// После отключения индикация для того же id обрабатывается заново
	l.OnDetailsChanged(c)
	assert.Len(t, dialog.shows, 2)
}
