package calllist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/incall/pkg/call"
	"github.com/arzzra/incall/pkg/telecom"
)

func TestGetCallWithStatePositional(t *testing.T) {
	cl, _, _ := newTestList(t)
	_, first := addCall(cl, telecom.StateActive)
	_, second := addCall(cl, telecom.StateActive)

	// Обход идет по порядку вставки: позиция детерминирована
	assert.Same(t, first, cl.GetFirstCallWithState(call.StateActive))
	assert.Same(t, second, cl.GetCallWithState(call.StateActive, 1))
	assert.Nil(t, cl.GetCallWithState(call.StateActive, 2))

	assert.Same(t, first, cl.GetActiveCall())
	assert.Same(t, second, cl.GetSecondActiveCall())
}

func TestGetIncomingCallPrefersIncomingOverWaiting(t *testing.T) {
	cl, _, _ := newTestList(t)
	_, waiting := addCall(cl, telecom.StateRinging)
	waiting.SetState(call.StateCallWaiting)
	_, incoming := addCall(cl, telecom.StateRinging)

	assert.Same(t, incoming, cl.GetIncomingCall())

	// Без INCOMING годится и CALL_WAITING
	incoming.SetState(call.StateActive)
	assert.Same(t, waiting, cl.GetIncomingCall())
}

func TestGetOutgoingCallPrefersDialingOverRedialing(t *testing.T) {
	cl, _, _ := newTestList(t)
	_, redialing := addCall(cl, telecom.StateDialing)
	redialing.SetState(call.StateRedialing)
	_, dialing := addCall(cl, telecom.StateDialing)

	assert.Same(t, dialing, cl.GetOutgoingCall())

	dialing.SetState(call.StateActive)
	assert.Same(t, redialing, cl.GetOutgoingCall())
}

func TestGetFirstCallPriority(t *testing.T) {
	cl, _, _ := newTestList(t)

	tcDisc, disc := addCall(cl, telecom.StateActive)
	disconnect(tcDisc, disc, telecom.DisconnectCauseRemote)
	_, active := addCall(cl, telecom.StateActive)
	_, outgoing := addCall(cl, telecom.StateDialing)
	_, pending := addCall(cl, telecom.StateConnecting)
	_, incoming := addCall(cl, telecom.StateRinging)

	assert.Same(t, incoming, cl.GetFirstCall())
	incoming.SetState(call.StateIdle)
	cl.OnUpdate(incoming)

	assert.Same(t, pending, cl.GetFirstCall())
	pending.SetState(call.StateIdle)
	cl.OnUpdate(pending)

	assert.Same(t, outgoing, cl.GetFirstCall())
	outgoing.SetState(call.StateIdle)
	cl.OnUpdate(outgoing)

	assert.Same(t, active, cl.GetFirstCall())
	active.SetState(call.StateIdle)
	cl.OnUpdate(active)

	assert.Same(t, disc, cl.GetFirstCall())
}

func TestHasLiveCall(t *testing.T) {
	cl, _, _ := newTestList(t)
	assert.False(t, cl.HasLiveCall())

	// Входящий еще не живой медиа-путь
	_, incoming := addCall(cl, telecom.StateRinging)
	assert.False(t, cl.HasLiveCall())
	assert.True(t, cl.HasAnyLiveCall())

	incoming.SetState(call.StateActive)
	assert.True(t, cl.HasLiveCall())
}

func TestGetActiveOrBackgroundCall(t *testing.T) {
	cl, _, _ := newTestList(t)
	_, held := addCall(cl, telecom.StateHolding)
	assert.Same(t, held, cl.GetActiveOrBackgroundCall())

	_, active := addCall(cl, telecom.StateActive)
	assert.Same(t, active, cl.GetActiveOrBackgroundCall())
	assert.Same(t, held, cl.GetBackgroundCall())
}

func TestGetCallByTelecomCall(t *testing.T) {
	cl, _, _ := newTestList(t)
	tc, c := addCall(cl, telecom.StateActive)

	assert.Same(t, c, cl.GetCallByTelecomCall(tc))
	assert.Nil(t, cl.GetCallByTelecomCall(nil))
	assert.Nil(t, cl.GetCallByTelecomCall(telecom.NewMockCall(telecom.StateActive)))
}

func TestGetAllCallsInsertionOrder(t *testing.T) {
	cl, _, _ := newTestList(t)
	_, a := addCall(cl, telecom.StateActive)
	_, b := addCall(cl, telecom.StateDialing)
	_, c := addCall(cl, telecom.StateHolding)

	require.Equal(t, []*call.Call{a, b, c}, cl.GetAllCalls())
}
