package call

import (
	"fmt"

	"github.com/arzzra/incall/pkg/telecom"
)

// State представляет состояние вызова на уровне in-call приложения.
//
// Порядок значений не несет смысла; важна только полнота перечисления.
// Состояние CONFERENCED никогда не хранится в вызове напрямую — оно
// выводится из наличия родительского вызова (см. Call.State).
type State int

const (
	StateInvalid State = iota
	StateNew
	StateIdle
	StateActive
	StateIncoming
	StateCallWaiting
	StateDialing
	StateRedialing
	StateOnHold
	StateDisconnecting
	StateDisconnected
	StateConferenced
	StateSelectPhoneAccount
	StateConnecting
)

// String возвращает строковое представление состояния
func (s State) String() string {
	switch s {
	case StateInvalid:
		return "INVALID"
	case StateNew:
		return "NEW"
	case StateIdle:
		return "IDLE"
	case StateActive:
		return "ACTIVE"
	case StateIncoming:
		return "INCOMING"
	case StateCallWaiting:
		return "CALL_WAITING"
	case StateDialing:
		return "DIALING"
	case StateRedialing:
		return "REDIALING"
	case StateOnHold:
		return "ONHOLD"
	case StateDisconnecting:
		return "DISCONNECTING"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConferenced:
		return "CONFERENCED"
	case StateSelectPhoneAccount:
		return "SELECT_PHONE_ACCOUNT"
	case StateConnecting:
		return "CONNECTING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// IsConnectingOrConnected возвращает true для состояний, в которых вызов
// устанавливается или уже установлен
func IsConnectingOrConnected(s State) bool {
	switch s {
	case StateActive, StateIncoming, StateCallWaiting, StateConnecting,
		StateDialing, StateRedialing, StateOnHold, StateConferenced:
		return true
	default:
		return false
	}
}

// IsDialing возвращает true для исходящего вызова в процессе набора
func IsDialing(s State) bool {
	return s == StateDialing || s == StateRedialing
}

// IsDead возвращает true для состояний, в которых вызов подлежит удалению
// из реестра
func IsDead(s State) bool {
	return s == StateIdle || s == StateInvalid
}

// TranslateState транслирует состояние телефонного слоя в состояние ядра
func TranslateState(s telecom.CallState) State {
	switch s {
	case telecom.StateNew, telecom.StateConnecting:
		return StateConnecting
	case telecom.StateSelectPhoneAccount:
		return StateSelectPhoneAccount
	case telecom.StateDialing:
		return StateDialing
	case telecom.StateRinging:
		return StateIncoming
	case telecom.StateActive:
		return StateActive
	case telecom.StateHolding:
		return StateOnHold
	case telecom.StateDisconnected:
		return StateDisconnected
	case telecom.StateDisconnecting:
		return StateDisconnecting
	default:
		return StateInvalid
	}
}
