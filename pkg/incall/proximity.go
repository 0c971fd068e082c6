package incall

import (
	"github.com/arzzra/incall/pkg/call"
	"github.com/arzzra/incall/pkg/calllist"
)

// AudioRoute текущий маршрут звука вызова
type AudioRoute int

const (
	AudioRouteEarpiece AudioRoute = iota
	AudioRouteSpeaker
	AudioRouteWiredHeadset
	AudioRouteBluetooth
)

// ProximityWakeLock аппаратная блокировка экрана по датчику приближения
type ProximityWakeLock interface {
	Acquire()
	Release()
}

// ProximitySensor решает, когда гасить экран по датчику приближения.
//
// Экран гасится только когда трубка у уха: идет разговор, звук в динамике
// трубки, UI не на переднем плане и не идет попытка видео-вызова.
type ProximitySensor struct {
	logger   call.StructuredLogger
	wakeLock ProximityWakeLock

	isPhoneOffhook        bool
	uiShowing             bool
	audioRoute            AudioRoute
	isAttemptingVideoCall bool
	isVideoCall           bool
	wakeLockAcquired      bool
}

// NewProximitySensor создает контроллер датчика приближения
func NewProximitySensor(wakeLock ProximityWakeLock) *ProximitySensor {
	return &ProximitySensor{
		logger:   call.GetDefaultLogger().WithComponent("proximity"),
		wakeLock: wakeLock,
	}
}

// OnStateChange пересчитывает решение датчика при переходе состояния
func (p *ProximitySensor) OnStateChange(oldState, newState InCallState, list *calllist.CallList) {
	isOffhook := newState == InCallStateOutgoing ||
		newState == InCallStatePendingOutgoing ||
		newState == InCallStateInCall

	c := list.GetActiveOrBackgroundCall()
	if c == nil {
		c = list.GetOutgoingCall()
	}
	p.isVideoCall = c != nil && c.IsVideoCall()

	if isOffhook != p.isPhoneOffhook {
		p.isPhoneOffhook = isOffhook
	}
	p.updateProximitySensorMode()
}

// OnUIShowing учитывает видимость UI-поверхности
func (p *ProximitySensor) OnUIShowing(showing bool) {
	p.uiShowing = showing
	p.updateProximitySensorMode()
}

// OnAudioRouteChanged учитывает смену маршрута звука
func (p *ProximitySensor) OnAudioRouteChanged(route AudioRoute) {
	p.audioRoute = route
	p.updateProximitySensorMode()
}

// OnSessionModificationChange отслеживает попытку видео-вызова:
// во время переговоров об upgrade экран гасить нельзя
func (p *ProximitySensor) OnSessionModificationChange(state call.SessionModificationState) {
	p.SetIsAttemptingVideoCall(state == call.SessionModificationWaitingForResponse ||
		state == call.SessionModificationReceivedUpgradeToVideoRequest)
}

// SetIsAttemptingVideoCall фиксирует попытку видео-вызова
func (p *ProximitySensor) SetIsAttemptingVideoCall(attempting bool) {
	if p.isAttemptingVideoCall == attempting {
		return
	}
	p.isAttemptingVideoCall = attempting
	p.updateProximitySensorMode()
}

// updateProximitySensorMode применяет решение к аппаратной блокировке.
// Повторное применение того же решения — no-op.
func (p *ProximitySensor) updateProximitySensorMode() {
	screenOffAllowed := p.isPhoneOffhook &&
		!p.isAttemptingVideoCall &&
		!p.isVideoCall &&
		p.audioRoute == AudioRouteEarpiece &&
		!p.uiShowing

	if screenOffAllowed == p.wakeLockAcquired {
		return
	}
	p.wakeLockAcquired = screenOffAllowed
	if p.wakeLock == nil {
		return
	}
	if screenOffAllowed {
		p.logger.Debug("датчик приближения включен")
		p.wakeLock.Acquire()
	} else {
		p.logger.Debug("датчик приближения выключен")
		p.wakeLock.Release()
	}
}
