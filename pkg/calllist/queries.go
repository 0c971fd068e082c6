package calllist

import (
	"github.com/arzzra/incall/pkg/call"
	"github.com/arzzra/incall/pkg/telecom"
)

// Запросы к реестру. Все обходы идут по порядку вставки (idOrder):
// "N-й вызов в состоянии X" детерминирован при повторных вызовах с
// неизменным содержимым реестра.

// GetCallByID возвращает вызов по идентификатору или nil
func (cl *CallList) GetCallByID(id string) *call.Call {
	return cl.callByID[id]
}

// GetCallByTelecomCall возвращает вызов по handle телефонного слоя или nil
func (cl *CallList) GetCallByTelecomCall(tc telecom.TelecomCall) *call.Call {
	if tc == nil {
		return nil
	}
	return cl.callByTelecomID[tc.HandleID()]
}

// GetFirstCallWithState возвращает первый вызов в заданном состоянии или nil
func (cl *CallList) GetFirstCallWithState(state call.State) *call.Call {
	return cl.GetCallWithState(state, 0)
}

// GetCallWithState возвращает N-й (с нуля) вызов в заданном состоянии или nil
func (cl *CallList) GetCallWithState(state call.State, position int) *call.Call {
	seen := 0
	for _, id := range cl.idOrder {
		c := cl.callByID[id]
		if c == nil || c.State() != state {
			continue
		}
		if seen == position {
			return c
		}
		seen++
	}
	return nil
}

// GetIncomingCall возвращает входящий вызов (INCOMING, затем CALL_WAITING)
// или nil
func (cl *CallList) GetIncomingCall() *call.Call {
	if c := cl.GetFirstCallWithState(call.StateIncoming); c != nil {
		return c
	}
	return cl.GetFirstCallWithState(call.StateCallWaiting)
}

// GetOutgoingCall возвращает исходящий набор (DIALING, затем REDIALING)
// или nil
func (cl *CallList) GetOutgoingCall() *call.Call {
	if c := cl.GetFirstCallWithState(call.StateDialing); c != nil {
		return c
	}
	return cl.GetFirstCallWithState(call.StateRedialing)
}

// GetPendingOutgoingCall возвращает вызов в предысходящем состоянии
// CONNECTING или nil
func (cl *CallList) GetPendingOutgoingCall() *call.Call {
	return cl.GetFirstCallWithState(call.StateConnecting)
}

// GetWaitingForAccountCall возвращает вызов, ждущий выбора аккаунта, или nil
func (cl *CallList) GetWaitingForAccountCall() *call.Call {
	return cl.GetFirstCallWithState(call.StateSelectPhoneAccount)
}

// GetActiveCall возвращает активный вызов или nil
func (cl *CallList) GetActiveCall() *call.Call {
	return cl.GetFirstCallWithState(call.StateActive)
}

// GetSecondActiveCall возвращает второй активный вызов или nil
func (cl *CallList) GetSecondActiveCall() *call.Call {
	return cl.GetCallWithState(call.StateActive, 1)
}

// GetBackgroundCall возвращает удержанный вызов или nil
func (cl *CallList) GetBackgroundCall() *call.Call {
	return cl.GetFirstCallWithState(call.StateOnHold)
}

// GetSecondBackgroundCall возвращает второй удержанный вызов или nil
func (cl *CallList) GetSecondBackgroundCall() *call.Call {
	return cl.GetCallWithState(call.StateOnHold, 1)
}

// GetDisconnectedCall возвращает завершенный вызов, еще не очищенный из
// реестра, или nil
func (cl *CallList) GetDisconnectedCall() *call.Call {
	return cl.GetFirstCallWithState(call.StateDisconnected)
}

// GetDisconnectingCall возвращает завершающийся вызов или nil
func (cl *CallList) GetDisconnectingCall() *call.Call {
	return cl.GetFirstCallWithState(call.StateDisconnecting)
}

// GetActiveOrBackgroundCall возвращает активный, иначе удержанный вызов
func (cl *CallList) GetActiveOrBackgroundCall() *call.Call {
	if c := cl.GetActiveCall(); c != nil {
		return c
	}
	return cl.GetBackgroundCall()
}

// GetIncomingOrActive возвращает входящий, иначе активный вызов
func (cl *CallList) GetIncomingOrActive() *call.Call {
	if c := cl.GetIncomingCall(); c != nil {
		return c
	}
	return cl.GetActiveCall()
}

// GetOutgoingOrActive возвращает исходящий, иначе активный вызов
func (cl *CallList) GetOutgoingOrActive() *call.Call {
	if c := cl.GetOutgoingCall(); c != nil {
		return c
	}
	return cl.GetActiveCall()
}

// GetFirstCall возвращает главный вызов реестра по приоритету:
// входящий, предысходящий, исходящий, активный, завершающийся, завершенный
func (cl *CallList) GetFirstCall() *call.Call {
	if c := cl.GetIncomingCall(); c != nil {
		return c
	}
	if c := cl.GetPendingOutgoingCall(); c != nil {
		return c
	}
	if c := cl.GetOutgoingCall(); c != nil {
		return c
	}
	if c := cl.GetActiveCall(); c != nil {
		return c
	}
	if c := cl.GetDisconnectingCall(); c != nil {
		return c
	}
	return cl.GetDisconnectedCall()
}

// HasLiveCall возвращает true при наличии вызова с живым медиа-путем:
// активного, удержанного или исходящего
func (cl *CallList) HasLiveCall() bool {
	return cl.GetActiveOrBackgroundCall() != nil || cl.GetOutgoingCall() != nil
}

// HasAnyLiveCall возвращает true при наличии любого вызова в состоянии
// установления или разговора
func (cl *CallList) HasAnyLiveCall() bool {
	for _, id := range cl.idOrder {
		if c := cl.callByID[id]; c != nil && call.IsConnectingOrConnected(c.State()) {
			return true
		}
	}
	return false
}

// GetVideoUpgradeRequestCall возвращает вызов с ожидающим запросом upgrade
// на видео или nil
func (cl *CallList) GetVideoUpgradeRequestCall() *call.Call {
	for _, id := range cl.idOrder {
		c := cl.callByID[id]
		if c == nil {
			continue
		}
		if c.SessionModificationState() == call.SessionModificationReceivedUpgradeToVideoRequest &&
			call.IsConnectingOrConnected(c.State()) {
			return c
		}
	}
	return nil
}

// GetTextResponses возвращает кэшированные текстовые ответы вызова или nil
func (cl *CallList) GetTextResponses(callID string) []string {
	return cl.textResponses[callID]
}

// GetAllCalls возвращает все вызовы реестра в порядке вставки
func (cl *CallList) GetAllCalls() []*call.Call {
	calls := make([]*call.Call, 0, len(cl.idOrder))
	for _, id := range cl.idOrder {
		if c := cl.callByID[id]; c != nil {
			calls = append(calls, c)
		}
	}
	return calls
}

// Len возвращает число вызовов в реестре
func (cl *CallList) Len() int {
	return len(cl.callByID)
}
