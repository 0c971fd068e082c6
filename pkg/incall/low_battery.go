package incall

import (
	"github.com/arzzra/incall/pkg/call"
	"github.com/arzzra/incall/pkg/calllist"
	"github.com/arzzra/incall/pkg/telecom"
)

// LowBatteryDialog UI-диалог низкого заряда для видео-вызова
type LowBatteryDialog interface {
	// Show показывает выбор: продолжить голосом или завершить вызов
	Show(callID string)

	// Dismiss закрывает диалог, если он показан
	Dismiss()
}

// LowBatteryListener обрабатывает индикацию низкого заряда в видео-вызове.
//
// Индикация приходит через extras вызова. На каждый вызов решение
// принимается один раз: карта обработанных вызовов не дает показывать
// диалог повторно на каждом обновлении деталей.
type LowBatteryListener struct {
	logger  call.StructuredLogger
	adapter telecom.TelecomAdapter
	dialog  LowBatteryDialog

	// id вызова -> индикация уже обработана
	lowBatteryCalls map[string]bool
	dialogCallID    string
}

// NewLowBatteryListener создает обработчик низкого заряда
func NewLowBatteryListener(adapter telecom.TelecomAdapter, dialog LowBatteryDialog) *LowBatteryListener {
	return &LowBatteryListener{
		logger:          call.GetDefaultLogger().WithComponent("lowbattery"),
		adapter:         adapter,
		dialog:          dialog,
		lowBatteryCalls: make(map[string]bool),
	}
}

// OnDetailsChanged проверяет индикацию низкого заряда в деталях вызова
func (l *LowBatteryListener) OnDetailsChanged(c *call.Call) {
	l.maybeProcessLowBattery(c)
}

// OnIncomingCall проверяет индикацию на входящем: решение должно быть
// принято до ответа
func (l *LowBatteryListener) OnIncomingCall(oldState, newState InCallState, c *call.Call) {
	l.maybeProcessLowBattery(c)
}

// OnStateChange входит в контракт слушателя состояния; переходы сами по
// себе индикацию не меняют
func (l *LowBatteryListener) OnStateChange(oldState, newState InCallState, list *calllist.CallList) {
}

// OnCallDisconnected забывает вызов и закрывает его диалог
func (l *LowBatteryListener) OnCallDisconnected(c *call.Call) {
	delete(l.lowBatteryCalls, c.ID())
	if l.dialogCallID == c.ID() {
		l.dismissDialog()
	}
}

// OnDialogDismissed обрабатывает закрытие диалога пользователем без выбора
func (l *LowBatteryListener) OnDialogDismissed() {
	l.dialogCallID = ""
}

// ContinueAsVoiceClicked переводит вызов в голосовой режим
func (l *LowBatteryListener) ContinueAsVoiceClicked(callID string) {
	l.logger.Info("низкий заряд: переход на голос", call.String("call_id", callID))
	l.adapter.SendSessionModifyRequest(telecom.SessionModifyRequest{
		CallID:     callID,
		VideoState: telecom.VideoStateAudioOnly,
	})
	l.dismissDialog()
}

// HangUpClicked завершает вызов
func (l *LowBatteryListener) HangUpClicked(callID string) {
	l.logger.Info("низкий заряд: вызов завершен", call.String("call_id", callID))
	l.adapter.Disconnect(callID)
	l.dismissDialog()
}

func (l *LowBatteryListener) maybeProcessLowBattery(c *call.Call) {
	if c == nil || l.lowBatteryCalls[c.ID()] {
		return
	}

	extras := c.TelecomCall().Extras()
	if extras.IsZero() {
		return
	}
	lowBattery, ok, err := extras.GetBool(telecom.ExtraLowBattery)
	if err != nil {
		// Поврежденные extras уже залогированы при обновлении вызова
		return
	}
	if !ok || !lowBattery || !c.IsVideoCall() {
		return
	}

	l.lowBatteryCalls[c.ID()] = true
	l.logger.Warn("низкий заряд в видео-вызове", call.String("call_id", c.ID()))

	if l.dialog != nil {
		l.dialogCallID = c.ID()
		l.dialog.Show(c.ID())
	}
}

func (l *LowBatteryListener) dismissDialog() {
	l.dialogCallID = ""
	if l.dialog != nil {
		l.dialog.Dismiss()
	}
}
