package incall

import (
	"github.com/arzzra/incall/pkg/call"
	"github.com/arzzra/incall/pkg/calllist"
	"github.com/arzzra/incall/pkg/telecom"
)

// callContext снимок главного вызова для решений о паузе видео.
// Снимок нужен потому, что к моменту следующего события живой объект
// вызова уже мог сменить состояние.
type callContext struct {
	call       *call.Call
	state      call.State
	videoState telecom.VideoState
}

func newCallContext(c *call.Call) *callContext {
	if c == nil {
		return nil
	}
	return &callContext{
		call:       c,
		state:      c.State(),
		videoState: c.VideoState(),
	}
}

func (cc *callContext) isVideoCall() bool {
	return cc != nil && cc.videoState.IsVideo()
}

func (cc *callContext) isDialing() bool {
	return cc != nil && call.IsDialing(cc.state)
}

func (cc *callContext) isIncoming() bool {
	return cc != nil && (cc.state == call.StateIncoming || cc.state == call.StateCallWaiting)
}

// VideoPauseController ставит видео главного вызова на паузу, когда UI
// уходит в фон или приходит второй вызов, и снимает паузу при возврате.
//
// Контроллер неактивен, пока не включен конфигурацией: не все удаленные
// стороны корректно обрабатывают запросы паузы.
type VideoPauseController struct {
	logger  call.StructuredLogger
	adapter telecom.TelecomAdapter
	enabled bool

	primary        *callContext
	isInBackground bool
}

// NewVideoPauseController создает контроллер паузы видео
func NewVideoPauseController(adapter telecom.TelecomAdapter, enabled bool) *VideoPauseController {
	return &VideoPauseController{
		logger:  call.GetDefaultLogger().WithComponent("videopause"),
		adapter: adapter,
		enabled: enabled,
	}
}

// OnStateChange применяет таблицу решений к переходу состояния приложения
func (v *VideoPauseController) OnStateChange(oldState, newState InCallState, list *calllist.CallList) {
	if !v.enabled {
		return
	}

	var c *call.Call
	switch newState {
	case InCallStateIncoming:
		c = list.GetIncomingCall()
	case InCallStateWaitingForAccount:
		c = list.GetWaitingForAccountCall()
	case InCallStatePendingOutgoing:
		c = list.GetPendingOutgoingCall()
	case InCallStateOutgoing:
		c = list.GetOutgoingCall()
	default:
		c = list.GetActiveCall()
	}

	primaryChanged := !v.sameAsPrimary(c)
	canPause := canVideoPause(c)

	if primaryChanged {
		v.onPrimaryCallChanged(c, canPause)
		v.primary = newCallContext(c)
		return
	}

	if v.primary.isDialing() && canPause && v.isInBackground {
		// Исходящий видео-вызов установился, пока UI в фоне
		v.sendRequest(c, false)
	} else if !v.primary.isVideoCall() && canPause && v.isInBackground {
		// Голосовой вызов стал видео, пока UI в фоне
		v.sendRequest(c, false)
	}
	v.primary = newCallContext(c)
}

// OnIncomingCall обрабатывает входящий во время видео-разговора
func (v *VideoPauseController) OnIncomingCall(oldState, newState InCallState, c *call.Call) {
	if !v.enabled || v.sameAsPrimary(c) {
		return
	}
	// Новый входящий закрывает видео главного вызова: пауза
	if v.primary != nil && v.primary.isVideoCall() {
		v.sendRequest(v.primary.call, false)
	}
	v.primary = newCallContext(c)
}

// OnUIShowing ставит и снимает паузу при уходе UI в фон и возврате
func (v *VideoPauseController) OnUIShowing(showing bool) {
	if !v.enabled {
		return
	}
	v.isInBackground = !showing
	if v.primary == nil || !canVideoPause(v.primary.call) {
		return
	}
	v.sendRequest(v.primary.call, showing)
}

// onPrimaryCallChanged обрабатывает смену главного вызова
func (v *VideoPauseController) onPrimaryCallChanged(c *call.Call, canPause bool) {
	switch {
	case canPause && !v.isInBackground:
		// Новый главный видео-вызов на переднем плане: снять паузу
		v.sendRequest(c, true)
	case newCallContext(c).isIncoming() && v.primary.isVideoCall():
		// Входящий поверх видео-разговора: пауза предыдущего главного
		v.sendRequest(v.primary.call, false)
	}
}

func (v *VideoPauseController) sameAsPrimary(c *call.Call) bool {
	if v.primary == nil {
		return c == nil
	}
	return call.AreSame(v.primary.call, c)
}

// sendRequest шлет запрос паузы или возобновления видео
func (v *VideoPauseController) sendRequest(c *call.Call, resume bool) {
	if c == nil {
		return
	}
	videoState := c.VideoState()
	if resume {
		videoState &^= telecom.VideoStatePaused
	} else {
		videoState |= telecom.VideoStatePaused
	}
	v.logger.Debug("запрос паузы видео",
		call.String("call_id", c.ID()), call.Bool("resume", resume))
	v.adapter.SendSessionModifyRequest(telecom.SessionModifyRequest{
		CallID:     c.ID(),
		VideoState: videoState,
	})
}

// canVideoPause возвращает true для активного видео-вызова
func canVideoPause(c *call.Call) bool {
	return c != nil && c.IsVideoCall() && c.State() == call.StateActive
}
