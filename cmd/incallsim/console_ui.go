package main

import (
	"log"

	"github.com/arzzra/incall/pkg/call"
	"github.com/arzzra/incall/pkg/incall"
)

// consoleUI консольная реализация всех UI-поверхностей приложения.
// Каждое обращение печатается в лог, состояние поверхности хранится
// в полях. Все методы вызываются из сериализованного контекста ядра.
type consoleUI struct {
	started bool
	visible bool
}

func newConsoleUI() *consoleUI {
	return &consoleUI{}
}

// --- incall.Surface ---

func (u *consoleUI) Started() bool { return u.started }
func (u *consoleUI) Visible() bool { return u.visible }

func (u *consoleUI) Finish() {
	log.Println("[UI] Закрытие экрана вызова")
	u.started = false
	u.visible = false
}

func (u *consoleUI) DismissPendingDialogs() {
	log.Println("[UI] Закрытие диалогов")
}

func (u *consoleUI) DismissKeyguard(dismiss bool) {
	log.Printf("[UI] Снятие экрана блокировки: %v", dismiss)
}

func (u *consoleUI) ShowCallCard() {
	log.Println("[UI] Показ карточки вызова")
	u.started = true
	u.visible = true
}

// --- incall.SurfaceLauncher ---

func (u *consoleUI) ShowInCall(showDialpad bool) {
	log.Printf("[UI] Запуск экрана вызова (dialpad=%v)", showDialpad)
	u.started = true
	u.visible = true
}

func (u *consoleUI) RestartInCall() {
	log.Println("[UI] Пересоздание экрана вызова")
	u.started = true
	u.visible = true
}

// --- incall.ScreenMonitor ---

func (u *consoleUI) IsScreenOn() bool { return true }

// --- incall.ButtonSurface ---

func (u *consoleUI) UpdateButtons(state incall.ButtonState) {
	log.Printf("[UI] Кнопки: mute=%v hold=%v(checked=%v) swap=%v merge=%v add=%v video=%v",
		state.MuteVisible, state.HoldVisible, state.HoldChecked,
		state.SwapVisible, state.MergeVisible, state.AddCallVisible,
		state.UpgradeToVideoVisible)
}

// --- incall.CardSurface ---

func (u *consoleUI) SetPrimary(callID string, info incall.ContactInfo, state call.State) {
	log.Printf("[UI] Карточка: %s (%s) %s", info.Name, info.Number, state)
}

func (u *consoleUI) SetSecondary(callID string, info incall.ContactInfo) {
	log.Printf("[UI] Вторая карточка: %s (%s)", info.Name, info.Number)
}

func (u *consoleUI) ClearSecondary() {
	log.Println("[UI] Вторая карточка скрыта")
}

func (u *consoleUI) SetCallState(state call.State, videoState int) {
	log.Printf("[UI] Состояние вызова: %s (video=%d)", state, videoState)
}

// --- incall.ContactLookup ---

func (u *consoleUI) FindInfo(c *call.Call, isIncoming bool, callback func(callID string, info incall.ContactInfo)) {
	// Справочника контактов нет: сразу возвращаем номер как имя
	callback(c.ID(), incall.ContactInfo{
		Name:   c.Number(),
		Number: c.Number(),
	})
}

// --- incall.NotificationSurface ---

func (u *consoleUI) ShowNotification(content incall.NotificationContent) {
	log.Printf("[UI] Нотификация: %d call=%s number=%s fullscreen=%v",
		content.Kind, content.CallID, content.Number, content.FullScreen)
}

func (u *consoleUI) Clear() {
	log.Println("[UI] Нотификация снята")
}

// --- incall.ProximityWakeLock ---

func (u *consoleUI) Acquire() {
	log.Println("[UI] Датчик приближения: экран может гаснуть")
}

func (u *consoleUI) Release() {
	log.Println("[UI] Датчик приближения: экран активен")
}

// --- incall.LowBatteryDialog ---

func (u *consoleUI) Show(callID string) {
	log.Printf("[UI] Диалог низкого заряда для вызова %s", callID)
}

func (u *consoleUI) Dismiss() {
	log.Println("[UI] Диалог низкого заряда закрыт")
}
