package calllist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/incall/pkg/call"
	"github.com/arzzra/incall/pkg/telecom"
)

// recordingListener generic-слушатель, фиксирующий все уведомления
type recordingListener struct {
	incoming    int
	upgrades    int
	listChanges int
	disconnects int

	lastIncoming     *call.Call
	lastDisconnected *call.Call
}

func (l *recordingListener) OnIncomingCall(c *call.Call) {
	l.incoming++
	l.lastIncoming = c
}

func (l *recordingListener) OnUpgradeToVideo(c *call.Call) { l.upgrades++ }

func (l *recordingListener) OnCallListChange(list *CallList) { l.listChanges++ }

func (l *recordingListener) OnDisconnect(c *call.Call) {
	l.disconnects++
	l.lastDisconnected = c
}

// recordingCallListener per-call слушатель
type recordingCallListener struct {
	changed          int
	sessionStates    []call.SessionModificationState
	forwardedChanges int
	childChanges     int
}

func (l *recordingCallListener) OnCallChanged(c *call.Call) { l.changed++ }

func (l *recordingCallListener) OnSessionModificationChange(state call.SessionModificationState) {
	l.sessionStates = append(l.sessionStates, state)
}

func (l *recordingCallListener) OnLastForwardedNumberChange() { l.forwardedChanges++ }
func (l *recordingCallListener) OnChildNumberChange()         { l.childChanges++ }

func newTestList(t *testing.T, opts ...Option) (*CallList, *ManualExecutor, *recordingListener) {
	t.Helper()
	exec := NewManualExecutor()
	cl := New(exec, opts...)
	l := &recordingListener{}
	cl.AddListener(l)
	// Регистрация немедленно доставляет одно уведомление
	require.Equal(t, 1, l.listChanges)
	l.listChanges = 0
	return cl, exec, l
}

func addCall(cl *CallList, state telecom.CallState) (*telecom.MockCall, *call.Call) {
	tc := telecom.NewMockCall(state)
	cl.OnCallAdded(tc)
	return tc, cl.GetCallByTelecomCall(tc)
}

func disconnect(tc *telecom.MockCall, c *call.Call, cause telecom.DisconnectCauseCode) {
	tc.SetState(telecom.StateDisconnected)
	tc.SetDisconnectCause(telecom.NewDisconnectCause(cause))
	c.Update()
}

func TestAddListenerNotifiesImmediately(t *testing.T) {
	cl := New(NewManualExecutor())
	l := &recordingListener{}
	cl.AddListener(l)
	assert.Equal(t, 1, l.listChanges)
}

func TestIncomingGoesToIncomingChannelOnly(t *testing.T) {
	cl, _, l := newTestList(t)

	_, c := addCall(cl, telecom.StateRinging)
	require.NotNil(t, c)

	assert.Equal(t, 1, l.incoming)
	assert.Same(t, c, l.lastIncoming)
	// Входящий не сопровождается generic-уведомлением
	assert.Zero(t, l.listChanges)
	assert.Equal(t, 1, cl.Len())
}

func TestSecondIncomingBecomesCallWaiting(t *testing.T) {
	cl, _, l := newTestList(t)
	addCall(cl, telecom.StateActive)

	_, second := addCall(cl, telecom.StateRinging)
	require.NotNil(t, second)

	assert.Equal(t, call.StateCallWaiting, second.State())
	assert.Equal(t, 1, l.incoming)
}

func TestCallWaitingSurvivesTelecomUpdate(t *testing.T) {
	cl, _, _ := newTestList(t)
	addCall(cl, telecom.StateActive)

	tc, second := addCall(cl, telecom.StateRinging)
	require.Equal(t, call.StateCallWaiting, second.State())

	// Снимок телефонного слоя по-прежнему говорит RINGING
	tc.SetCapabilities(telecom.CapabilityMute)
	second.Update()

	assert.Equal(t, call.StateCallWaiting, second.State())
}

func TestNonIncomingAddGoesGenericPath(t *testing.T) {
	cl, _, l := newTestList(t)

	_, c := addCall(cl, telecom.StateDialing)
	require.NotNil(t, c)

	assert.Zero(t, l.incoming)
	assert.Equal(t, 1, l.listChanges)
}

func TestDisconnectedNeverInsertsNewEntry(t *testing.T) {
	cl, _, l := newTestList(t)

	// Первое же событие вызова — DISCONNECTED: запись не создается
	tc := telecom.NewMockCall(telecom.StateDisconnected)
	cl.OnCallAdded(tc)

	assert.Zero(t, cl.Len())
	assert.Zero(t, l.disconnects)
}

func TestDisconnectUsesDedicatedChannel(t *testing.T) {
	cl, _, l := newTestList(t)
	tc, c := addCall(cl, telecom.StateActive)
	l.listChanges = 0

	disconnect(tc, c, telecom.DisconnectCauseRemote)

	assert.Equal(t, 1, l.disconnects)
	// Generic-канал при disconnect молчит: иначе машина состояний
	// обработала бы одно событие дважды
	assert.Zero(t, l.listChanges)
	// Завершенный вызов остается в реестре до отложенной очистки
	assert.Equal(t, 1, cl.Len())
	assert.Equal(t, call.StateDisconnected, c.State())
}

func TestPurgeDelayDependsOnCause(t *testing.T) {
	cases := []struct {
		cause telecom.DisconnectCauseCode
		delay time.Duration
	}{
		{telecom.DisconnectCauseLocal, 200 * time.Millisecond},
		{telecom.DisconnectCauseRemote, 2 * time.Second},
		{telecom.DisconnectCauseError, 2 * time.Second},
		{telecom.DisconnectCauseRejected, 0},
		{telecom.DisconnectCauseMissed, 0},
		{telecom.DisconnectCauseCanceled, 0},
		{telecom.DisconnectCauseBusy, 5 * time.Second},
		{telecom.DisconnectCauseUnknown, 5 * time.Second},
	}

	for _, tt := range cases {
		t.Run(tt.cause.String(), func(t *testing.T) {
			cl, exec, l := newTestList(t)
			tc, c := addCall(cl, telecom.StateActive)
			l.listChanges = 0

			disconnect(tc, c, tt.cause)
			require.Equal(t, 1, cl.Len())

			if tt.delay > 0 {
				// За мгновение до срока вызов еще на месте
				exec.Advance(tt.delay - time.Millisecond)
				assert.Equal(t, 1, cl.Len())
				exec.Advance(time.Millisecond)
			} else {
				exec.Advance(0)
			}

			assert.Zero(t, cl.Len())
			// Очистка дает ровно одно generic-уведомление
			assert.Equal(t, 1, l.listChanges)
		})
	}
}

func TestPurgeForgetsBothIndexes(t *testing.T) {
	cl, exec, _ := newTestList(t)

	tc, c := addCall(cl, telecom.StateActive)
	id := c.ID()
	disconnect(tc, c, telecom.DisconnectCauseRemote)
	exec.Advance(10 * time.Second)

	assert.Nil(t, cl.GetCallByID(id))
	assert.Nil(t, cl.GetCallByTelecomCall(tc))
	assert.Zero(t, cl.Len())
}

func TestDuplicateDisconnectDoesNotExtendPurge(t *testing.T) {
	cl, exec, _ := newTestList(t)
	tc, c := addCall(cl, telecom.StateActive)

	disconnect(tc, c, telecom.DisconnectCauseLocal)
	exec.Advance(100 * time.Millisecond)

	// Дубликат DISCONNECTED не продлевает уже идущий таймер
	cl.OnDisconnect(c)
	exec.Advance(100 * time.Millisecond)

	assert.Zero(t, cl.Len())
}

func TestOnCallRemovedForcesDisconnect(t *testing.T) {
	cl, _, l := newTestList(t)
	tc, c := addCall(cl, telecom.StateActive)

	cl.OnCallRemoved(tc)

	assert.Equal(t, 1, l.disconnects)
	assert.Equal(t, call.StateDisconnected, c.State())
	assert.Equal(t, telecom.DisconnectCauseUnknown, c.DisconnectCause().Code)
}

func TestOnCallRemovedUnknownCallIsNoOp(t *testing.T) {
	cl, _, l := newTestList(t)

	cl.OnCallRemoved(telecom.NewMockCall(telecom.StateActive))

	assert.Zero(t, l.disconnects)
	assert.Zero(t, l.listChanges)
}

func TestClearOnDisconnectBatchesOneNotify(t *testing.T) {
	cl, _, l := newTestList(t)
	_, a := addCall(cl, telecom.StateActive)
	_, b := addCall(cl, telecom.StateDialing)
	l.listChanges = 0

	cl.ClearOnDisconnect()

	assert.Equal(t, call.StateDisconnected, a.State())
	assert.Equal(t, call.StateDisconnected, b.State())
	assert.Equal(t, telecom.DisconnectCauseUnknown, a.DisconnectCause().Code)
	// Один пакет — одно generic-уведомление, канал disconnect не задействуется
	assert.Equal(t, 1, l.listChanges)
	assert.Zero(t, l.disconnects)
}

func TestClearOnDisconnectWithoutLiveCallsIsSilent(t *testing.T) {
	cl, _, l := newTestList(t)

	cl.ClearOnDisconnect()

	assert.Zero(t, l.listChanges)
}

func TestOnErrorDialogDismissedFlushesPendingPurges(t *testing.T) {
	cl, exec, l := newTestList(t)
	tc, c := addCall(cl, telecom.StateActive)
	l.listChanges = 0

	disconnect(tc, c, telecom.DisconnectCauseError)
	require.Equal(t, 1, cl.Len())

	cl.OnErrorDialogDismissed()

	assert.Zero(t, cl.Len())
	assert.Equal(t, 1, l.listChanges)
	assert.Zero(t, exec.PendingCount())

	// Отмененный таймер после срока — безопасный no-op
	exec.Advance(5 * time.Second)
	assert.Equal(t, 1, l.listChanges)
}

func TestCallUpdateListenerScopedToCall(t *testing.T) {
	cl, _, _ := newTestList(t)
	_, a := addCall(cl, telecom.StateActive)
	_, b := addCall(cl, telecom.StateDialing)

	la := &recordingCallListener{}
	cl.AddCallUpdateListener(a.ID(), la)

	a.Update()
	b.Update()

	assert.Equal(t, 1, la.changed)

	cl.RemoveCallUpdateListener(a.ID(), la)
	a.Update()
	assert.Equal(t, 1, la.changed)
}

func TestSessionModificationFanOut(t *testing.T) {
	cl, _, _ := newTestList(t)
	_, c := addCall(cl, telecom.StateActive)

	l := &recordingCallListener{}
	cl.AddCallUpdateListener(c.ID(), l)

	c.SetSessionModificationState(call.SessionModificationWaitingForResponse)

	assert.Equal(t,
		[]call.SessionModificationState{call.SessionModificationWaitingForResponse},
		l.sessionStates)
}

func TestUpgradeRequestFanOut(t *testing.T) {
	cl, _, l := newTestList(t)
	_, c := addCall(cl, telecom.StateActive)

	c.SetRequestedVideoState(telecom.VideoStateBidirectional)

	assert.Equal(t, 1, l.upgrades)
	assert.Same(t, c, cl.GetVideoUpgradeRequestCall())
}

func TestBlockedCheckTimeoutAdmitsIncoming(t *testing.T) {
	// Проверка блокировки зависает до отмены контекста: решает таймер
	checker := func(ctx context.Context, number string) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	}
	cl, exec, l := newTestList(t, WithBlockedNumberChecker(checker, time.Second))

	tc := telecom.NewMockCall(telecom.StateRinging)
	cl.OnCallAdded(tc)
	assert.Zero(t, l.incoming)

	exec.Advance(time.Second)

	assert.Equal(t, 1, l.incoming)
	assert.Equal(t, 1, cl.Len())
}

func TestBlockedNumberRejectedSilently(t *testing.T) {
	checked := make(chan struct{})
	checker := func(ctx context.Context, number string) (bool, error) {
		defer close(checked)
		return true, nil
	}
	exec := NewManualExecutor()
	cl := New(exec, WithBlockedNumberChecker(checker, time.Second))
	l := &recordingListener{}
	cl.AddListener(l)
	l.listChanges = 0

	tc := telecom.NewMockCall(telecom.StateRinging)
	tc.SetHandle("+70000000000")
	cl.OnCallAdded(tc)

	<-checked
	// Результат постится в исполнитель из горутины проверки
	require.Eventually(t, func() bool { return exec.PendingCount() == 0 },
		time.Second, 5*time.Millisecond)

	// Заблокированный входящий никогда не попадает в реестр и не шумит
	assert.Zero(t, cl.Len())
	assert.Zero(t, l.incoming)
	assert.Zero(t, l.listChanges)
}

func TestBlockedCheckErrorAdmitsIncoming(t *testing.T) {
	checker := func(ctx context.Context, number string) (bool, error) {
		return false, context.DeadlineExceeded
	}
	exec := NewManualExecutor()
	cl := New(exec, WithBlockedNumberChecker(checker, time.Second))
	l := &recordingListener{}
	cl.AddListener(l)

	tc := telecom.NewMockCall(telecom.StateRinging)
	cl.OnCallAdded(tc)

	require.Eventually(t, func() bool { return l.incoming == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, cl.Len())
}

func TestEmergencyIncomingSkipsBlockCheck(t *testing.T) {
	checker := func(ctx context.Context, number string) (bool, error) {
		t.Error("проверка блокировки не должна вызываться для экстренного номера")
		return true, nil
	}
	emergency := func(number string) bool { return number == "112" }
	cl, _, l := newTestList(t,
		WithBlockedNumberChecker(checker, time.Second),
		WithEmergencyChecker(emergency))

	tc := telecom.NewMockCall(telecom.StateRinging)
	tc.SetHandle("112")
	cl.OnCallAdded(tc)

	assert.Equal(t, 1, l.incoming)
}

func TestTextResponsesCachedAndDroppedWithCall(t *testing.T) {
	cl, exec, _ := newTestList(t)

	tc := telecom.NewMockCall(telecom.StateRinging)
	tc.SetCannedTextResponses([]string{"Перезвоню позже"})
	cl.OnCallAdded(tc)
	c := cl.GetCallByTelecomCall(tc)
	require.NotNil(t, c)

	assert.Equal(t, []string{"Перезвоню позже"}, cl.GetTextResponses(c.ID()))

	disconnect(tc, c, telecom.DisconnectCauseMissed)
	exec.Advance(0)

	assert.Nil(t, cl.GetTextResponses(c.ID()))
}

func TestRemoveListenerStopsDelivery(t *testing.T) {
	cl, _, l := newTestList(t)

	cl.RemoveListener(l)
	addCall(cl, telecom.StateDialing)

	assert.Zero(t, l.listChanges)
}
