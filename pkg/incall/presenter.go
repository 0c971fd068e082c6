package incall

import (
	"github.com/arzzra/incall/pkg/call"
	"github.com/arzzra/incall/pkg/calllist"
	"github.com/arzzra/incall/pkg/telecom"
)

// InCallPresenter машина состояний in-call приложения.
//
// Подписывается на реестр, выводит InCallState из его полного содержимого
// и решает, когда поднимать и гасить UI-поверхность. Все мутации идут в
// сериализованном контексте реестра.
type InCallPresenter struct {
	logger   call.StructuredLogger
	callList *calllist.CallList
	adapter  telecom.TelecomAdapter
	launcher SurfaceLauncher
	screen   ScreenMonitor
	metrics  *MetricsCollector

	surface          Surface
	serviceConnected bool
	inCallState      InCallState

	// UI-процесс запущен впрок, до подтверждения исходящего телефонией
	boundAndWaitingForOutgoingCall bool
	pendingAccountHandle           telecom.PhoneAccountHandle

	stateListeners       map[StateListener]struct{}
	incomingListeners    map[IncomingCallListener]struct{}
	detailsListeners     map[DetailsListener]struct{}
	canAddCallListeners  map[CanAddCallListener]struct{}
	uiListeners          map[UIVisibilityListener]struct{}
	orientationListeners map[OrientationListener]struct{}
	eventListeners       map[EventListener]struct{}
	disconnectListeners  map[CallDisconnectedListener]struct{}
}

// PresenterOption настройка презентера при создании
type PresenterOption func(*InCallPresenter)

// WithPresenterLogger задает logger презентера
func WithPresenterLogger(logger call.StructuredLogger) PresenterOption {
	return func(p *InCallPresenter) {
		p.logger = logger
	}
}

// WithScreenMonitor задает источник состояния экрана
func WithScreenMonitor(screen ScreenMonitor) PresenterOption {
	return func(p *InCallPresenter) {
		p.screen = screen
	}
}

// WithMetrics задает сборщик метрик презентера
func WithMetrics(metrics *MetricsCollector) PresenterOption {
	return func(p *InCallPresenter) {
		p.metrics = metrics
	}
}

// NewInCallPresenter создает презентер поверх реестра.
// Подписка на реестр выполняется в SetUp, не в конструкторе.
func NewInCallPresenter(list *calllist.CallList, adapter telecom.TelecomAdapter, launcher SurfaceLauncher, opts ...PresenterOption) *InCallPresenter {
	p := &InCallPresenter{
		logger:               call.GetDefaultLogger().WithComponent("presenter"),
		callList:             list,
		adapter:              adapter,
		launcher:             launcher,
		inCallState:          InCallStateNoCalls,
		stateListeners:       make(map[StateListener]struct{}),
		incomingListeners:    make(map[IncomingCallListener]struct{}),
		detailsListeners:     make(map[DetailsListener]struct{}),
		canAddCallListeners:  make(map[CanAddCallListener]struct{}),
		uiListeners:          make(map[UIVisibilityListener]struct{}),
		orientationListeners: make(map[OrientationListener]struct{}),
		eventListeners:       make(map[EventListener]struct{}),
		disconnectListeners:  make(map[CallDisconnectedListener]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetUp подписывает презентер на реестр. Регистрация синхронно доставляет
// первое OnCallListChange: презентер сразу видит текущее содержимое.
func (p *InCallPresenter) SetUp() {
	p.serviceConnected = true
	p.callList.AddListener(p)
}

// InCallState возвращает текущее состояние приложения
func (p *InCallPresenter) InCallState() InCallState {
	return p.inCallState
}

// CallList возвращает реестр вызовов презентера
func (p *InCallPresenter) CallList() *calllist.CallList {
	return p.callList
}

// OnCallListChange обрабатывает generic-изменение реестра: полный пересчет
// состояния, UI-переход, fan-out слушателям состояния, снятие keyguard
func (p *InCallPresenter) OnCallListChange(list *calllist.CallList) {
	if list == nil {
		return
	}

	newState := potentialStateFromCallList(list, p.boundAndWaitingForOutgoingCall)

	// Входящий во время выбора аккаунта: выбор отменяется в пользу
	// входящего — вызов-ожидание завершается, блокирующие диалоги закрываются
	if newState == InCallStateIncoming {
		if waiting := list.GetWaitingForAccountCall(); waiting != nil {
			p.logger.Info("входящий во время выбора аккаунта, выбор отменен",
				call.String("call_id", waiting.ID()))
			p.adapter.Disconnect(waiting.ID())
			if p.surface != nil {
				p.surface.DismissPendingDialogs()
			}
		}
	}

	oldState := p.inCallState
	newState = p.startOrFinishUi(newState)
	p.inCallState = newState

	if oldState != newState {
		p.logger.Info("переход состояния приложения",
			call.String("from", oldState.String()), call.String("to", newState.String()))
		if p.metrics != nil {
			p.metrics.StateTransition(oldState, newState)
		}
	}
	if p.metrics != nil {
		p.metrics.SetActiveCalls(list.Len())
	}

	for l := range p.stateListeners {
		l.OnStateChange(oldState, newState, list)
	}

	if p.surface != nil && p.surface.Started() {
		hasCall := list.HasAnyLiveCall()
		p.surface.DismissKeyguard(hasCall)
	}
}

// OnIncomingCall обрабатывает входящий вызов из канала входящих
func (p *InCallPresenter) OnIncomingCall(c *call.Call) {
	oldState := p.inCallState
	newState := p.startOrFinishUi(InCallStateIncoming)
	p.inCallState = newState

	if p.metrics != nil {
		p.metrics.IncomingCall(c)
	}

	for l := range p.incomingListeners {
		l.OnIncomingCall(oldState, newState, c)
	}
}

// OnUpgradeToVideo обрабатывает входящий запрос upgrade на видео:
// для ответа нужен видимый UI
func (p *InCallPresenter) OnUpgradeToVideo(c *call.Call) {
	if p.surface == nil || !p.surface.Visible() {
		p.launcher.ShowInCall(false)
	}
}

// OnDisconnect обрабатывает завершение вызова: keyguard возвращается,
// состояние пересчитывается по обычному пути
func (p *InCallPresenter) OnDisconnect(c *call.Call) {
	if p.metrics != nil {
		p.metrics.CallDisconnected(c)
	}
	for l := range p.disconnectListeners {
		l.OnCallDisconnected(c)
	}
	if p.surface != nil && p.surface.Started() {
		p.surface.DismissKeyguard(false)
	}
	p.OnCallListChange(p.callList)
}

// OnDetailsChanged транслирует изменение деталей вызова слушателям деталей.
// Канал питается напрямую от моста телефонии, минуя машину состояний.
func (p *InCallPresenter) OnDetailsChanged(c *call.Call) {
	for l := range p.detailsListeners {
		l.OnDetailsChanged(c)
	}
}

// OnCanAddCallChanged транслирует изменение возможности добавить вызов
func (p *InCallPresenter) OnCanAddCallChanged(canAddCall bool) {
	for l := range p.canAddCallListeners {
		l.OnCanAddCallChanged(canAddCall)
	}
}

// OnDeviceOrientationChanged транслирует смену ориентации устройства
func (p *InCallPresenter) OnDeviceOrientationChanged(rotation int) {
	for l := range p.orientationListeners {
		l.OnDeviceOrientationChanged(rotation)
	}
}

// SetUIShowing транслирует видимость UI-поверхности
func (p *InCallPresenter) SetUIShowing(showing bool) {
	for l := range p.uiListeners {
		l.OnUIShowing(showing)
	}
}

// startOrFinishUi решает UI-побочные эффекты перехода и возвращает
// состояние, которое следует зафиксировать.
//
// Поверхность в середине разрушения (существует, но не запущена)
// откладывает переход: возвращается старое состояние, следующее событие
// пересчитает заново. Контракт — сходимость, а не немедленность.
func (p *InCallPresenter) startOrFinishUi(newState InCallState) InCallState {
	oldState := p.inCallState
	if newState == oldState {
		return newState
	}

	if p.surface != nil && !p.surface.Started() {
		p.logger.Debug("поверхность разрушается, переход отложен",
			call.String("from", oldState.String()), call.String("to", newState.String()))
		return oldState
	}

	surfaceUp := p.surface != nil && p.surface.Visible()

	switch {
	case newState == InCallStateIncoming && !oldState.IsIncoming():
		p.startIncomingSequence()

	case newState == InCallStateWaitingForAccount && !surfaceUp:
		p.launcher.ShowInCall(false)

	case newState == InCallStateOutgoing && !surfaceUp:
		p.launcher.ShowInCall(false)

	case oldState == InCallStateIncoming && newState == InCallStateInCall && !surfaceUp:
		// Автоответ без экрана: разговор уже идет, поверхность поднимается вслед
		p.launcher.ShowInCall(false)

	case oldState == InCallStatePendingOutgoing && newState == InCallStateInCall && !surfaceUp:
		// Исходящий сорвался до набора: поверхность нужна, чтобы показать ошибку
		p.logger.Warn("предысходящий перешел в разговор без поверхности, путь ошибки")
		p.launcher.ShowInCall(false)

	case newState == InCallStateNoCalls:
		if p.surface != nil {
			p.surface.Finish()
		}
		p.attemptCleanup()
	}

	return newState
}

// startIncomingSequence выполняет полноэкранную последовательность входящего:
// закрыть блокирующие диалоги, показать карточку, уведомить слой нотификаций
func (p *InCallPresenter) startIncomingSequence() {
	incoming := p.callList.GetIncomingCall()
	if incoming == nil {
		return
	}

	// Второй входящий при погашенном экране: wake-флаг срабатывает только
	// при первом создании поверхности, поэтому поверхность пересоздается
	// принудительно
	if incoming.State() == call.StateCallWaiting {
		if p.screen != nil && !p.screen.IsScreenOn() {
			p.launcher.RestartInCall()
			return
		}
		if p.surface != nil && p.surface.Started() {
			p.surface.ShowCallCard()
		} else {
			p.launcher.ShowInCall(false)
		}
		return
	}

	if p.surface != nil {
		p.surface.DismissPendingDialogs()
		p.surface.ShowCallCard()
	}
	for l := range p.eventListeners {
		l.OnFullScreenIncoming(incoming)
	}
}

// SetSurface привязывает или снимает UI-поверхность.
// Привязка при непустом реестре немедленно пересчитывает состояние;
// снятие запускает попытку полной очистки.
func (p *InCallPresenter) SetSurface(s Surface) {
	p.surface = s
	if s != nil {
		if p.callList.Len() > 0 {
			p.OnCallListChange(p.callList)
		}
		return
	}
	p.attemptCleanup()
}

// SetServiceConnected отражает состояние привязки к телефонному сервису.
// Потеря сервиса завершает все вызовы пакетом и пытается выполнить очистку.
func (p *InCallPresenter) SetServiceConnected(connected bool) {
	p.serviceConnected = connected
	if !connected {
		p.callList.ClearOnDisconnect()
		p.attemptCleanup()
	}
}

// SetBoundAndWaitingForOutgoingCall фиксирует спекулятивный запуск UI
// до подтверждения исходящего телефонией
func (p *InCallPresenter) SetBoundAndWaitingForOutgoingCall(bound bool, handle telecom.PhoneAccountHandle) {
	p.boundAndWaitingForOutgoingCall = bound
	p.pendingAccountHandle = handle
	if bound && p.inCallState == InCallStateNoCalls {
		p.inCallState = InCallStateOutgoing
	}
}

// attemptCleanup выполняет полную очистку ресурсов, только когда все
// три условия истинны: поверхность снята, сервис отвязан, вызовов нет.
// Любое ложное условие откладывает очистку — другой callback может быть
// еще в пути.
func (p *InCallPresenter) attemptCleanup() {
	if p.surface != nil || p.serviceConnected || p.inCallState != InCallStateNoCalls {
		return
	}

	p.logger.Info("очистка презентера")
	p.boundAndWaitingForOutgoingCall = false
	p.pendingAccountHandle = telecom.PhoneAccountHandle{}
	p.callList.RemoveListener(p)

	p.stateListeners = make(map[StateListener]struct{})
	p.incomingListeners = make(map[IncomingCallListener]struct{})
	p.detailsListeners = make(map[DetailsListener]struct{})
	p.canAddCallListeners = make(map[CanAddCallListener]struct{})
	p.uiListeners = make(map[UIVisibilityListener]struct{})
	p.orientationListeners = make(map[OrientationListener]struct{})
	p.eventListeners = make(map[EventListener]struct{})
	p.disconnectListeners = make(map[CallDisconnectedListener]struct{})
}

// GetCallToDisplay возвращает вызов для главной карточки по приоритету:
// активный, завершающийся, завершенный, фоновый, второй фоновый.
// ignore исключается из кандидатов; skipDisconnected пропускает
// завершенные состояния.
func GetCallToDisplay(list *calllist.CallList, ignore *call.Call, skipDisconnected bool) *call.Call {
	active := list.GetActiveCall()
	if active != nil && !call.AreSame(active, ignore) {
		return active
	}
	if active != nil {
		if second := list.GetSecondActiveCall(); second != nil {
			return second
		}
	}

	if !skipDisconnected {
		if c := list.GetDisconnectingCall(); c != nil && !call.AreSame(c, ignore) {
			return c
		}
		if c := list.GetDisconnectedCall(); c != nil && !call.AreSame(c, ignore) {
			return c
		}
	}

	if c := list.GetBackgroundCall(); c != nil && !call.AreSame(c, ignore) {
		return c
	}
	return list.GetSecondBackgroundCall()
}

// AnswerIncomingCall отвечает на входящий с заданным видео-состоянием
func (p *InCallPresenter) AnswerIncomingCall(videoState telecom.VideoState) {
	if c := p.callList.GetIncomingCall(); c != nil {
		p.adapter.Answer(c.ID(), videoState)
		p.launcher.ShowInCall(false)
	}
}

// DeclineIncomingCall отклоняет входящий
func (p *InCallPresenter) DeclineIncomingCall() {
	if c := p.callList.GetIncomingCall(); c != nil {
		p.adapter.Reject(c.ID(), false, "")
	}
}

// HangUpOngoingCall завершает текущий разговор
func (p *InCallPresenter) HangUpOngoingCall() {
	c := p.callList.GetOutgoingCall()
	if c == nil {
		c = p.callList.GetActiveOrBackgroundCall()
	}
	if c != nil {
		p.adapter.Disconnect(c.ID())
	}
}

// AcceptUpgradeRequest принимает запрос upgrade на видео
func (p *InCallPresenter) AcceptUpgradeRequest(videoState telecom.VideoState) {
	c := p.callList.GetVideoUpgradeRequestCall()
	if c == nil {
		p.logger.Warn("запрос upgrade принят, но вызова с запросом нет")
		return
	}
	p.adapter.SendSessionModifyResponse(c.ID(), videoState)
	c.SetSessionModificationState(call.SessionModificationNoRequest)
}

// DeclineUpgradeRequest отклоняет запрос upgrade на видео
func (p *InCallPresenter) DeclineUpgradeRequest() {
	c := p.callList.GetVideoUpgradeRequestCall()
	if c == nil {
		return
	}
	p.adapter.SendSessionModifyResponse(c.ID(), c.VideoState())
	c.SetSessionModificationState(call.SessionModificationNoRequest)
}

// AddStateListener регистрирует слушателя состояния
func (p *InCallPresenter) AddStateListener(l StateListener) {
	if l != nil {
		p.stateListeners[l] = struct{}{}
	}
}

// RemoveStateListener снимает слушателя состояния
func (p *InCallPresenter) RemoveStateListener(l StateListener) {
	delete(p.stateListeners, l)
}

// AddIncomingCallListener регистрирует слушателя входящих
func (p *InCallPresenter) AddIncomingCallListener(l IncomingCallListener) {
	if l != nil {
		p.incomingListeners[l] = struct{}{}
	}
}

// RemoveIncomingCallListener снимает слушателя входящих
func (p *InCallPresenter) RemoveIncomingCallListener(l IncomingCallListener) {
	delete(p.incomingListeners, l)
}

// AddDetailsListener регистрирует слушателя деталей
func (p *InCallPresenter) AddDetailsListener(l DetailsListener) {
	if l != nil {
		p.detailsListeners[l] = struct{}{}
	}
}

// RemoveDetailsListener снимает слушателя деталей
func (p *InCallPresenter) RemoveDetailsListener(l DetailsListener) {
	delete(p.detailsListeners, l)
}

// AddCanAddCallListener регистрирует слушателя возможности добавить вызов
func (p *InCallPresenter) AddCanAddCallListener(l CanAddCallListener) {
	if l != nil {
		p.canAddCallListeners[l] = struct{}{}
	}
}

// RemoveCanAddCallListener снимает слушателя возможности добавить вызов
func (p *InCallPresenter) RemoveCanAddCallListener(l CanAddCallListener) {
	delete(p.canAddCallListeners, l)
}

// AddUIVisibilityListener регистрирует слушателя видимости UI
func (p *InCallPresenter) AddUIVisibilityListener(l UIVisibilityListener) {
	if l != nil {
		p.uiListeners[l] = struct{}{}
	}
}

// RemoveUIVisibilityListener снимает слушателя видимости UI
func (p *InCallPresenter) RemoveUIVisibilityListener(l UIVisibilityListener) {
	delete(p.uiListeners, l)
}

// AddOrientationListener регистрирует слушателя ориентации
func (p *InCallPresenter) AddOrientationListener(l OrientationListener) {
	if l != nil {
		p.orientationListeners[l] = struct{}{}
	}
}

// RemoveOrientationListener снимает слушателя ориентации
func (p *InCallPresenter) RemoveOrientationListener(l OrientationListener) {
	delete(p.orientationListeners, l)
}

// AddEventListener регистрирует слушателя UI-событий
func (p *InCallPresenter) AddEventListener(l EventListener) {
	if l != nil {
		p.eventListeners[l] = struct{}{}
	}
}

// RemoveEventListener снимает слушателя UI-событий
func (p *InCallPresenter) RemoveEventListener(l EventListener) {
	delete(p.eventListeners, l)
}

// AddCallDisconnectedListener регистрирует слушателя завершения вызовов
func (p *InCallPresenter) AddCallDisconnectedListener(l CallDisconnectedListener) {
	if l != nil {
		p.disconnectListeners[l] = struct{}{}
	}
}

// RemoveCallDisconnectedListener снимает слушателя завершения вызовов
func (p *InCallPresenter) RemoveCallDisconnectedListener(l CallDisconnectedListener) {
	delete(p.disconnectListeners, l)
}
