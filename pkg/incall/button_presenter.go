package incall

import (
	"github.com/arzzra/incall/pkg/call"
	"github.com/arzzra/incall/pkg/calllist"
	"github.com/arzzra/incall/pkg/telecom"
)

// ButtonState вычисленное состояние кнопок экрана разговора
type ButtonState struct {
	MuteVisible bool
	MuteEnabled bool

	HoldVisible bool
	HoldEnabled bool
	HoldChecked bool

	SwapVisible    bool
	MergeVisible   bool
	AddCallVisible bool
	AddCallEnabled bool

	UpgradeToVideoVisible bool

	EndCallEnabled bool
}

// ButtonSurface UI-слой кнопок
type ButtonSurface interface {
	UpdateButtons(state ButtonState)
}

// CallButtonPresenter выводит состояние кнопок из переходов состояния
// приложения и масок возможностей текущего вызова
type CallButtonPresenter struct {
	logger  call.StructuredLogger
	adapter telecom.TelecomAdapter
	surface ButtonSurface

	currentCall *call.Call
	canAddCall  bool
}

// NewCallButtonPresenter создает презентер кнопок
func NewCallButtonPresenter(adapter telecom.TelecomAdapter, surface ButtonSurface) *CallButtonPresenter {
	return &CallButtonPresenter{
		logger:  call.GetDefaultLogger().WithComponent("buttons"),
		adapter: adapter,
		surface: surface,
	}
}

// OnStateChange пересчитывает кнопки при переходе состояния приложения
func (b *CallButtonPresenter) OnStateChange(oldState, newState InCallState, list *calllist.CallList) {
	switch newState {
	case InCallStateOutgoing:
		b.currentCall = list.GetOutgoingCall()
	case InCallStateInCall:
		b.currentCall = list.GetActiveOrBackgroundCall()
	default:
		b.currentCall = nil
	}
	b.updateUI(newState)
}

// OnIncomingCall сбрасывает кнопки: для входящего панель кнопок не показывается
func (b *CallButtonPresenter) OnIncomingCall(oldState, newState InCallState, c *call.Call) {
	b.currentCall = nil
	b.updateUI(newState)
}

// OnCallChanged пересчитывает кнопки при обновлении текущего вызова
func (b *CallButtonPresenter) OnCallChanged(c *call.Call) {
	if call.AreSame(b.currentCall, c) {
		b.updateUI(InCallStateInCall)
	}
}

// OnSessionModificationChange входит в контракт per-call слушателя;
// кнопкам переговоры о видео не важны
func (b *CallButtonPresenter) OnSessionModificationChange(state call.SessionModificationState) {}

// OnLastForwardedNumberChange входит в контракт per-call слушателя
func (b *CallButtonPresenter) OnLastForwardedNumberChange() {}

// OnChildNumberChange входит в контракт per-call слушателя
func (b *CallButtonPresenter) OnChildNumberChange() {}

// OnCanAddCallChanged пересчитывает кнопку добавления вызова
func (b *CallButtonPresenter) OnCanAddCallChanged(canAddCall bool) {
	if b.canAddCall == canAddCall {
		return
	}
	b.canAddCall = canAddCall
	b.updateUI(InCallStateInCall)
}

func (b *CallButtonPresenter) updateUI(state InCallState) {
	if b.surface == nil {
		return
	}

	c := b.currentCall
	if c == nil {
		b.surface.UpdateButtons(ButtonState{})
		return
	}

	var buttons ButtonState
	buttons.EndCallEnabled = true
	buttons.MuteVisible = c.Can(telecom.CapabilityMute)
	buttons.MuteEnabled = buttons.MuteVisible

	buttons.HoldVisible = c.Can(telecom.CapabilitySupportHold)
	buttons.HoldEnabled = c.Can(telecom.CapabilityHold)
	buttons.HoldChecked = c.State() == call.StateOnHold

	buttons.SwapVisible = c.Can(telecom.CapabilitySwapConference)
	buttons.MergeVisible = c.Can(telecom.CapabilityMergeConference)

	buttons.AddCallVisible = c.Can(telecom.CapabilityAddCall)
	buttons.AddCallEnabled = buttons.AddCallVisible && b.canAddCall

	buttons.UpgradeToVideoVisible = !c.IsVideoCall() &&
		c.Can(telecom.CapabilitySupportsVideoLocalTx|telecom.CapabilitySupportsVideoRemoteRx)

	b.surface.UpdateButtons(buttons)
}

// MuteClicked переключает микрофон
func (b *CallButtonPresenter) MuteClicked(muted bool) {
	b.adapter.Mute(muted)
}

// HoldClicked переключает удержание текущего вызова
func (b *CallButtonPresenter) HoldClicked(hold bool) {
	if b.currentCall == nil {
		return
	}
	if hold {
		b.adapter.Hold(b.currentCall.ID())
	} else {
		b.adapter.Unhold(b.currentCall.ID())
	}
}

// SwapClicked меняет местами активный и удержанный вызовы
func (b *CallButtonPresenter) SwapClicked() {
	if b.currentCall != nil {
		b.adapter.Swap(b.currentCall.ID())
	}
}

// MergeClicked объединяет вызовы в конференцию
func (b *CallButtonPresenter) MergeClicked() {
	if b.currentCall != nil {
		b.adapter.Merge(b.currentCall.ID())
	}
}

// UpgradeToVideoClicked запрашивает upgrade текущего вызова до видео
func (b *CallButtonPresenter) UpgradeToVideoClicked() {
	c := b.currentCall
	if c == nil {
		return
	}
	b.logger.Info("запрошен upgrade на видео", call.String("call_id", c.ID()))
	b.adapter.SendSessionModifyRequest(telecom.SessionModifyRequest{
		CallID:     c.ID(),
		VideoState: telecom.VideoStateBidirectional,
	})
	c.SetSessionModificationState(call.SessionModificationWaitingForResponse)
}

// EndCallClicked завершает текущий вызов
func (b *CallButtonPresenter) EndCallClicked() {
	if b.currentCall != nil {
		b.adapter.Disconnect(b.currentCall.ID())
	}
}
