// Package incall содержит машину состояний in-call приложения и
// периферийные реакторы, подписанные на реестр вызовов.
//
// InCallPresenter выводит единое грубое состояние приложения из полного
// содержимого реестра и решает, когда поднимать и гасить UI-поверхность.
// Реакторы (кнопки, карточка, нотификации, датчик приближения, пауза
// видео, низкий заряд) — независимые наблюдатели, собственного
// bookkeeping'а вызовов не ведут.
package incall

import (
	"github.com/arzzra/incall/pkg/calllist"
)

// InCallState грубое состояние in-call приложения
type InCallState int

const (
	// InCallStateNoCalls вызовов нет
	InCallStateNoCalls InCallState = iota

	// InCallStateIncoming есть входящий вызов
	InCallStateIncoming

	// InCallStateWaitingForAccount вызов ждет выбора телефонного аккаунта
	InCallStateWaitingForAccount

	// InCallStatePendingOutgoing исходящий в предысходящем состоянии
	InCallStatePendingOutgoing

	// InCallStateOutgoing идет исходящий набор
	InCallStateOutgoing

	// InCallStateInCall есть установленный разговор
	InCallStateInCall
)

// String возвращает строковое представление состояния
func (s InCallState) String() string {
	switch s {
	case InCallStateNoCalls:
		return "NO_CALLS"
	case InCallStateIncoming:
		return "INCOMING"
	case InCallStateWaitingForAccount:
		return "WAITING_FOR_ACCOUNT"
	case InCallStatePendingOutgoing:
		return "PENDING_OUTGOING"
	case InCallStateOutgoing:
		return "OUTGOING"
	case InCallStateInCall:
		return "INCALL"
	default:
		return "UNKNOWN"
	}
}

// IsIncoming возвращает true для состояния с входящим вызовом
func (s InCallState) IsIncoming() bool {
	return s == InCallStateIncoming
}

// IsConnectingOrConnected возвращает true для состояний с вызовом
// в установлении или разговоре
func (s InCallState) IsConnectingOrConnected() bool {
	switch s {
	case InCallStateIncoming, InCallStateOutgoing, InCallStatePendingOutgoing, InCallStateInCall:
		return true
	default:
		return false
	}
}

// potentialStateFromCallList выводит состояние приложения из полного
// содержимого реестра строгим приоритетным каскадом. Вывод всегда с нуля,
// никогда не инкрементально: при коалесцированных или пришедших не по
// порядку событиях состояние сходится на следующем пересчете.
//
// boundAndWaiting учитывается только при пустом каскаде: UI-процесс
// запущен впрок, телефония еще не подтвердила исходящий.
func potentialStateFromCallList(list *calllist.CallList, boundAndWaiting bool) InCallState {
	newState := InCallStateNoCalls
	switch {
	case list.GetIncomingCall() != nil:
		newState = InCallStateIncoming
	case list.GetWaitingForAccountCall() != nil:
		newState = InCallStateWaitingForAccount
	case list.GetPendingOutgoingCall() != nil:
		newState = InCallStatePendingOutgoing
	case list.GetOutgoingCall() != nil:
		newState = InCallStateOutgoing
	case list.GetActiveCall() != nil || list.GetBackgroundCall() != nil ||
		list.GetDisconnectedCall() != nil || list.GetDisconnectingCall() != nil:
		newState = InCallStateInCall
	}

	if newState == InCallStateNoCalls && boundAndWaiting {
		return InCallStateOutgoing
	}
	return newState
}
