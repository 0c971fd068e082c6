package incall

import (
	"github.com/arzzra/incall/pkg/call"
	"github.com/arzzra/incall/pkg/calllist"
)

// Surface UI-поверхность in-call приложения (активность экрана разговора).
//
// Поверхность существует не всегда: ссылка появляется при создании экрана
// и снимается при разрушении. Поверхность, которая существует, но
// сообщает Started()==false, находится в середине разрушения — известная
// гонка, переходы состояния при этом откладываются до следующего события.
type Surface interface {
	// Started возвращает false для поверхности в середине разрушения
	Started() bool

	// Visible возвращает true, когда поверхность видима пользователю
	Visible() bool

	// Finish запрашивает закрытие поверхности
	Finish()

	// DismissPendingDialogs закрывает все блокирующие диалоги
	DismissPendingDialogs()

	// DismissKeyguard запрашивает снятие экрана блокировки на время вызова
	DismissKeyguard(dismiss bool)

	// ShowCallCard гарантирует видимость основной карточки вызова
	ShowCallCard()
}

// SurfaceLauncher поднимает UI-поверхность, когда ее еще нет
type SurfaceLauncher interface {
	// ShowInCall выводит поверхность на передний план
	ShowInCall(showDialpad bool)

	// RestartInCall принудительно пересоздает поверхность. Нужен для
	// второго входящего при погашенном экране: wake-флаг срабатывает
	// только при первом создании поверхности.
	RestartInCall()
}

// ScreenMonitor сообщает состояние экрана устройства
type ScreenMonitor interface {
	IsScreenOn() bool
}

// StateListener канал переходов состояния приложения
type StateListener interface {
	OnStateChange(oldState, newState InCallState, list *calllist.CallList)
}

// IncomingCallListener канал входящих вызовов
type IncomingCallListener interface {
	OnIncomingCall(oldState, newState InCallState, c *call.Call)
}

// DetailsListener канал изменений деталей одного вызова; питается напрямую
// от моста телефонии, не от машины состояний
type DetailsListener interface {
	OnDetailsChanged(c *call.Call)
}

// CanAddCallListener канал изменения возможности добавить вызов
type CanAddCallListener interface {
	OnCanAddCallChanged(canAddCall bool)
}

// UIVisibilityListener канал видимости UI-поверхности
type UIVisibilityListener interface {
	OnUIShowing(showing bool)
}

// OrientationListener канал смены ориентации устройства
type OrientationListener interface {
	OnDeviceOrientationChanged(rotation int)
}

// CallDisconnectedListener канал завершения вызовов: реакторы, держащие
// состояние на вызов, забывают его здесь
type CallDisconnectedListener interface {
	OnCallDisconnected(c *call.Call)
}

// EventListener канал редких UI-событий
type EventListener interface {
	// OnFullScreenIncoming вызывается, когда входящий должен занять
	// весь экран, минуя обычную нотификацию
	OnFullScreenIncoming(c *call.Call)
}
