package call

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

// SessionModificationState представляет состояние переговоров об изменении
// медиа-сессии (upgrade/downgrade видео) для одного вызова.
//
// Подмашина намеренно отделена от основной машины состояний вызова:
// переговоры о видео идут параллельно жизненному циклу вызова и не должны
// с ним гоняться.
type SessionModificationState int

const (
	SessionModificationNoRequest SessionModificationState = iota
	SessionModificationWaitingForResponse
	SessionModificationRequestFailed
	SessionModificationReceivedUpgradeToVideoRequest
	SessionModificationUpgradeToVideoRequestTimedOut
	SessionModificationRequestRejected
)

// String возвращает строковое представление состояния
func (s SessionModificationState) String() string {
	switch s {
	case SessionModificationNoRequest:
		return "NO_REQUEST"
	case SessionModificationWaitingForResponse:
		return "WAITING_FOR_RESPONSE"
	case SessionModificationRequestFailed:
		return "REQUEST_FAILED"
	case SessionModificationReceivedUpgradeToVideoRequest:
		return "RECEIVED_UPGRADE_TO_VIDEO_REQUEST"
	case SessionModificationUpgradeToVideoRequestTimedOut:
		return "UPGRADE_TO_VIDEO_REQUEST_TIMED_OUT"
	case SessionModificationRequestRejected:
		return "REQUEST_REJECTED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// Имена состояний и событий FSM
const (
	smNoRequest = "no_request"
	smWaiting   = "waiting_for_response"
	smFailed    = "request_failed"
	smReceived  = "received_upgrade_request"
	smTimedOut  = "upgrade_request_timed_out"
	smRejected  = "request_rejected"
)

var smStateNames = map[SessionModificationState]string{
	SessionModificationNoRequest:                     smNoRequest,
	SessionModificationWaitingForResponse:            smWaiting,
	SessionModificationRequestFailed:                 smFailed,
	SessionModificationReceivedUpgradeToVideoRequest: smReceived,
	SessionModificationUpgradeToVideoRequestTimedOut: smTimedOut,
	SessionModificationRequestRejected:               smRejected,
}

var smEventForTarget = map[SessionModificationState]string{
	SessionModificationNoRequest:                     "clear",
	SessionModificationWaitingForResponse:            "wait_response",
	SessionModificationRequestFailed:                 "fail",
	SessionModificationUpgradeToVideoRequestTimedOut: "timeout",
	SessionModificationRequestRejected:               "reject",
	// RECEIVED_UPGRADE_TO_VIDEO_REQUEST намеренно отсутствует:
	// в него входят только через событие "offer" (см. Offer)
}

// sessionModificationTracker подмашина состояний переговоров о видео.
//
// Инварианты:
//   - одновременно не более одного незавершенного запроса; новый запрос
//     перезаписывает старый, очередь не ведется;
//   - в состояние RECEIVED_UPGRADE_TO_VIDEO_REQUEST можно войти только
//     через Offer, generic сеттер отклоняет это целевое значение.
type sessionModificationTracker struct {
	machine *fsm.FSM
}

func newSessionModificationTracker() *sessionModificationTracker {
	allStates := []string{smNoRequest, smWaiting, smFailed, smReceived, smTimedOut, smRejected}

	events := fsm.Events{
		{Name: "offer", Src: allStates, Dst: smReceived},
	}
	for target, event := range smEventForTarget {
		events = append(events, fsm.EventDesc{
			Name: event,
			Src:  allStates,
			Dst:  smStateNames[target],
		})
	}

	return &sessionModificationTracker{
		machine: fsm.NewFSM(smNoRequest, events, fsm.Callbacks{}),
	}
}

// Current возвращает текущее состояние подмашины
func (t *sessionModificationTracker) Current() SessionModificationState {
	switch t.machine.Current() {
	case smNoRequest:
		return SessionModificationNoRequest
	case smWaiting:
		return SessionModificationWaitingForResponse
	case smFailed:
		return SessionModificationRequestFailed
	case smReceived:
		return SessionModificationReceivedUpgradeToVideoRequest
	case smTimedOut:
		return SessionModificationUpgradeToVideoRequestTimedOut
	case smRejected:
		return SessionModificationRequestRejected
	default:
		return SessionModificationNoRequest
	}
}

// Set выполняет generic переход в указанное состояние.
//
// Возвращает (changed, err): changed=false для no-op установки того же
// значения; err для зарезервированного RECEIVED_UPGRADE_TO_VIDEO_REQUEST —
// состояние при этом не меняется.
func (t *sessionModificationTracker) Set(target SessionModificationState) (bool, error) {
	if target == SessionModificationReceivedUpgradeToVideoRequest {
		return false, ErrInvalidModificationTarget(target)
	}
	if t.Current() == target {
		return false, nil
	}

	event, ok := smEventForTarget[target]
	if !ok {
		return false, NewCallError("UNKNOWN_MODIFICATION_STATE",
			"неизвестное целевое состояние session modification",
			ErrorCategoryUnreachable, ErrorSeverityWarning).
			WithField("target", int(target))
	}

	if err := t.machine.Event(context.Background(), event); err != nil {
		return false, fmt.Errorf("ошибка перехода session modification: %w", err)
	}
	return true, nil
}

// Offer переводит подмашину в RECEIVED_UPGRADE_TO_VIDEO_REQUEST.
// Единственная разрешенная точка входа в это состояние.
func (t *sessionModificationTracker) Offer() (bool, error) {
	if t.Current() == SessionModificationReceivedUpgradeToVideoRequest {
		return false, nil
	}
	if err := t.machine.Event(context.Background(), "offer"); err != nil {
		return false, fmt.Errorf("ошибка перехода session modification: %w", err)
	}
	return true, nil
}
