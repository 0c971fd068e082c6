package calllist

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/arzzra/incall/pkg/call"
	"github.com/arzzra/incall/pkg/telecom"
)

// Задержки отложенной очистки завершенных вызовов: разные причины
// завершения заслуживают разного времени на экране
const (
	disconnectedPurgeShort  = 200 * time.Millisecond
	disconnectedPurgeMedium = 2 * time.Second
	disconnectedPurgeLong   = 5 * time.Second

	// defaultBlockQueryTimeout предел ожидания проверки заблокированного
	// номера: по истечении входящий обрабатывается как незаблокированный
	defaultBlockQueryTimeout = time.Second
)

// Listener generic-канал уведомлений реестра.
//
// Каналы нарочно раздельные: потребители подписываются только на то,
// что им нужно. OnDisconnect не сопровождается OnCallListChange —
// disconnect это собственный канал, иначе машина состояний обработала бы
// одно событие дважды.
type Listener interface {
	// OnIncomingCall вызывается для нового входящего вызова
	OnIncomingCall(c *call.Call)

	// OnUpgradeToVideo вызывается при входящем запросе upgrade на видео
	OnUpgradeToVideo(c *call.Call)

	// OnCallListChange вызывается при любом generic-изменении реестра
	OnCallListChange(list *CallList)

	// OnDisconnect вызывается, когда вызов впервые перешел в DISCONNECTED
	OnDisconnect(c *call.Call)
}

// CallUpdateListener канал уведомлений об изменениях одного вызова,
// привязанный к его идентификатору
type CallUpdateListener interface {
	// OnCallChanged вызывается при каждом обновлении вызова
	OnCallChanged(c *call.Call)

	// OnSessionModificationChange вызывается при смене состояния
	// переговоров о видео
	OnSessionModificationChange(state call.SessionModificationState)

	// OnLastForwardedNumberChange вызывается при смене номера переадресации
	OnLastForwardedNumberChange()

	// OnChildNumberChange вызывается при смене дочернего номера
	OnChildNumberChange()
}

// BlockedNumberChecker асинхронная проверка номера по списку блокировки.
// Возвращает true для заблокированного номера. Ошибка трактуется как
// "не заблокирован".
type BlockedNumberChecker func(ctx context.Context, number string) (bool, error)

// CallList реестр вызовов: авторитетное отображение идентичности вызова
// на *call.Call, применение событий телефонии и fan-out уведомлений.
//
// Все методы должны вызываться из сериализованного контекста (Executor).
type CallList struct {
	executor Executor
	logger   call.StructuredLogger

	emergencyChecker  call.EmergencyNumberChecker
	blockedChecker    BlockedNumberChecker
	blockQueryTimeout time.Duration

	// Два индекса всегда синхронны: каждый живой вызов присутствует
	// в обоих и отображается на один и тот же объект
	callByID        map[string]*call.Call
	callByTelecomID map[string]*call.Call

	// idOrder хранит порядок вставки: запросы "N-й вызов в состоянии X"
	// детерминированы
	idOrder []string

	textResponses map[string][]string

	listeners           map[Listener]struct{}
	callUpdateListeners map[string][]CallUpdateListener

	pendingDisconnect map[string]*DelayedTask
}

// Option настройка реестра при создании
type Option func(*CallList)

// WithLogger задает logger реестра
func WithLogger(logger call.StructuredLogger) Option {
	return func(cl *CallList) {
		cl.logger = logger
	}
}

// WithEmergencyChecker задает проверку экстренных номеров для новых вызовов
func WithEmergencyChecker(checker call.EmergencyNumberChecker) Option {
	return func(cl *CallList) {
		cl.emergencyChecker = checker
	}
}

// WithBlockedNumberChecker задает проверку блокировки входящих номеров
func WithBlockedNumberChecker(checker BlockedNumberChecker, timeout time.Duration) Option {
	return func(cl *CallList) {
		cl.blockedChecker = checker
		if timeout > 0 {
			cl.blockQueryTimeout = timeout
		}
	}
}

// New создает реестр вызовов
func New(executor Executor, opts ...Option) *CallList {
	cl := &CallList{
		executor:            executor,
		logger:              call.GetDefaultLogger().WithComponent("calllist"),
		blockQueryTimeout:   defaultBlockQueryTimeout,
		callByID:            make(map[string]*call.Call),
		callByTelecomID:     make(map[string]*call.Call),
		textResponses:       make(map[string][]string),
		listeners:           make(map[Listener]struct{}),
		callUpdateListeners: make(map[string][]CallUpdateListener),
		pendingDisconnect:   make(map[string]*DelayedTask),
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// OnCallAdded обрабатывает появление нового вызова в телефонном слое.
//
// Входящий вызов (INCOMING или CALL_WAITING) идет в канал входящих —
// его слушатели не видят generic-обновлений; остальные состояния идут
// обычным generic-путем.
func (cl *CallList) OnCallAdded(tc telecom.TelecomCall) {
	c := call.NewCall(tc, cl,
		call.WithLogger(cl.logger),
		call.WithEmergencyChecker(cl.emergencyChecker),
	)

	// Второй входящий при живом вызове — это CALL_WAITING
	if c.State() == call.StateIncoming && cl.HasLiveCall() {
		c.SetState(call.StateCallWaiting)
	}

	cl.logger.Debug("вызов добавлен",
		call.String("call_id", c.ID()), call.String("state", c.State().String()))

	if c.State() == call.StateIncoming || c.State() == call.StateCallWaiting {
		cl.maybeFilterIncoming(c)
	} else {
		cl.OnUpdate(c)
	}
}

// maybeFilterIncoming пропускает входящий через проверку блокировки номера.
//
// Проверка асинхронная с жестким таймаутом: кто первый — результат запроса
// или таймер — тот и решает, второй безопасно игнорируется (атомарный
// флаг "уже обработано"). Таймаут или ошибка проверки трактуются как
// "не заблокирован": входящий нельзя потерять из-за медленного запроса.
func (cl *CallList) maybeFilterIncoming(c *call.Call) {
	if cl.blockedChecker == nil || c.IsEmergencyCall() {
		cl.onIncoming(c)
		return
	}

	var handled atomic.Bool
	timeoutTask := cl.executor.PostDelayed(cl.blockQueryTimeout, func() {
		if !handled.CompareAndSwap(false, true) {
			return
		}
		cl.logger.Warn("проверка блокировки не успела, входящий пропущен как незаблокированный",
			call.String("call_id", c.ID()))
		cl.onIncoming(c)
	})

	number := c.Number()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cl.blockQueryTimeout)
		defer cancel()
		blocked, err := cl.blockedChecker(ctx, number)
		cl.executor.Post(func() {
			if !handled.CompareAndSwap(false, true) {
				return
			}
			timeoutTask.Cancel()
			if err != nil {
				cl.logger.LogError(err, "ошибка проверки блокировки",
					call.String("call_id", c.ID()))
				blocked = false
			}
			if blocked {
				cl.logger.Info("входящий с заблокированного номера отклонен",
					call.String("call_id", c.ID()))
				c.SetState(call.StateDisconnected)
				c.SetDisconnectCause(telecom.NewDisconnectCause(telecom.DisconnectCauseRestricted))
				cl.OnDisconnect(c)
				return
			}
			cl.onIncoming(c)
		})
	}()
}

// onIncoming регистрирует входящий и уведомляет канал входящих
func (cl *CallList) onIncoming(c *call.Call) {
	if cl.updateCallInMap(c) {
		cl.logger.Info("входящий вызов", call.String("call_id", c.ID()))
	}
	cl.updateTextResponses(c)
	for l := range cl.listeners {
		l.OnIncomingCall(c)
	}
}

// OnCallRemoved обрабатывает исчезновение вызова из телефонного слоя:
// вызов принудительно завершается с неизвестной причиной и проходит
// обычный путь disconnect
func (cl *CallList) OnCallRemoved(tc telecom.TelecomCall) {
	c, ok := cl.callByTelecomID[tc.HandleID()]
	if !ok {
		return
	}
	if c.State() != call.StateDisconnected {
		cl.logger.Warn("вызов удален без предварительного disconnect",
			call.String("call_id", c.ID()))
		c.SetState(call.StateDisconnected)
		c.SetDisconnectCause(telecom.NewDisconnectCause(telecom.DisconnectCauseUnknown))
	}
	cl.OnDisconnect(c)
	delete(cl.textResponses, c.ID())
}

// OnUpdate обрабатывает generic-обновление вызова: правило обновления карт,
// обновление кэша текстовых ответов, уведомление per-call слушателей
// и всех generic-слушателей
func (cl *CallList) OnUpdate(c *call.Call) {
	cl.updateCallInMap(c)
	cl.updateTextResponses(c)
	cl.notifyCallUpdateListeners(c)
	cl.notifyGenericListeners()
}

// OnDisconnect обрабатывает переход вызова в DISCONNECTED.
//
// Уведомления уходят только если карта фактически изменилась — дубликат
// disconnect молчит. Generic-канал не задействуется: disconnect это
// отдельный канал.
func (cl *CallList) OnDisconnect(c *call.Call) {
	if !cl.updateCallInMap(c) {
		return
	}
	cl.logger.Info("вызов завершен",
		call.String("call_id", c.ID()),
		call.String("cause", c.DisconnectCause().Code.String()))
	cl.notifyCallUpdateListeners(c)
	for l := range cl.listeners {
		l.OnDisconnect(c)
	}
}

// OnUpgradeToVideo уведомляет канал "предложен upgrade на видео"
func (cl *CallList) OnUpgradeToVideo(c *call.Call) {
	cl.logger.Info("запрошен upgrade на видео", call.String("call_id", c.ID()))
	for l := range cl.listeners {
		l.OnUpgradeToVideo(c)
	}
}

// OnSessionModificationChange уведомляет per-call слушателей о смене
// состояния переговоров о видео
func (cl *CallList) OnSessionModificationChange(c *call.Call, state call.SessionModificationState) {
	for _, l := range cl.callUpdateListeners[c.ID()] {
		l.OnSessionModificationChange(state)
	}
}

// OnChildNumberChange уведомляет per-call слушателей о смене дочернего номера
func (cl *CallList) OnChildNumberChange(c *call.Call) {
	for _, l := range cl.callUpdateListeners[c.ID()] {
		l.OnChildNumberChange()
	}
}

// OnLastForwardedNumberChange уведомляет per-call слушателей о смене
// номера переадресации
func (cl *CallList) OnLastForwardedNumberChange(c *call.Call) {
	for _, l := range cl.callUpdateListeners[c.ID()] {
		l.OnLastForwardedNumberChange()
	}
}

// ClearOnDisconnect обрабатывает потерю соединения с телефонным слоем:
// каждый живой вызов принудительно завершается с неизвестной причиной,
// после чего уходит ровно одно generic-уведомление на весь пакет
func (cl *CallList) ClearOnDisconnect() {
	cleared := false
	for _, id := range append([]string(nil), cl.idOrder...) {
		c, ok := cl.callByID[id]
		if !ok {
			continue
		}
		switch c.State() {
		case call.StateIdle, call.StateInvalid, call.StateDisconnected:
			continue
		}
		c.SetState(call.StateDisconnected)
		c.SetDisconnectCause(telecom.NewDisconnectCause(telecom.DisconnectCauseUnknown))
		cl.updateCallInMap(c)
		cleared = true
	}
	if cleared {
		cl.logger.Warn("соединение с телефонным слоем потеряно, все вызовы завершены")
		cl.notifyGenericListeners()
	}
}

// OnErrorDialogDismissed немедленно выполняет все отложенные очистки
// завершенных вызовов: диалог ошибки закрыт, держать их на экране незачем
func (cl *CallList) OnErrorDialogDismissed() {
	for id, task := range cl.pendingDisconnect {
		task.Cancel()
		delete(cl.pendingDisconnect, id)
		if c, ok := cl.callByID[id]; ok {
			cl.finishDisconnectedCall(c)
		}
	}
}

// updateCallInMap единственный источник истины консистентности реестра.
//
// DISCONNECTED: обновить существующую запись (никогда не вставлять новую)
// и запланировать отложенную очистку; "изменилось" только если запись была.
// Живой вызов: вставить/обновить в обоих индексах. Мертвый (IDLE/INVALID):
// удалить из обоих индексов, если присутствовал.
func (cl *CallList) updateCallInMap(c *call.Call) bool {
	// Снимок телефонного слоя знает только INCOMING: ожидание при живом
	// вызове выводится заново, иначе Update() откатил бы CALL_WAITING
	if c.State() == call.StateIncoming && cl.HasLiveCall() {
		c.SetState(call.StateCallWaiting)
	}

	switch {
	case c.State() == call.StateDisconnected:
		if _, ok := cl.callByID[c.ID()]; !ok {
			return false
		}
		cl.schedulePurge(c)
		cl.putCall(c)
		return true
	case !isCallDead(c):
		cl.putCall(c)
		return true
	default:
		return cl.removeCall(c)
	}
}

// isCallDead возвращает true для состояний, в которых вызов не должен
// оставаться в реестре
func isCallDead(c *call.Call) bool {
	state := c.State()
	return state == call.StateIdle || state == call.StateInvalid
}

func (cl *CallList) putCall(c *call.Call) {
	if _, exists := cl.callByID[c.ID()]; !exists {
		cl.idOrder = append(cl.idOrder, c.ID())
	}
	cl.callByID[c.ID()] = c
	cl.callByTelecomID[c.TelecomCall().HandleID()] = c
}

func (cl *CallList) removeCall(c *call.Call) bool {
	if _, exists := cl.callByID[c.ID()]; !exists {
		return false
	}
	delete(cl.callByID, c.ID())
	delete(cl.callByTelecomID, c.TelecomCall().HandleID())
	for i, id := range cl.idOrder {
		if id == c.ID() {
			cl.idOrder = append(cl.idOrder[:i], cl.idOrder[i+1:]...)
			break
		}
	}
	delete(cl.textResponses, c.ID())
	return true
}

// schedulePurge планирует отложенную очистку завершенного вызова.
// Повторный DISCONNECTED того же вызова не продлевает уже идущий таймер.
func (cl *CallList) schedulePurge(c *call.Call) {
	if _, pending := cl.pendingDisconnect[c.ID()]; pending {
		return
	}
	delay := delayForDisconnect(c.DisconnectCause().Code)
	cl.pendingDisconnect[c.ID()] = cl.executor.PostDelayed(delay, func() {
		delete(cl.pendingDisconnect, c.ID())
		cl.finishDisconnectedCall(c)
	})
}

// finishDisconnectedCall выполняет очистку завершенного вызова: IDLE,
// повторный прогон правила обновления карт, одно generic-уведомление.
// Условие перепроверяется в момент срабатывания: уже очищенный вызов — no-op.
func (cl *CallList) finishDisconnectedCall(c *call.Call) {
	if _, ok := cl.callByID[c.ID()]; !ok {
		return
	}
	c.SetState(call.StateIdle)
	cl.updateCallInMap(c)
	cl.notifyGenericListeners()
}

// delayForDisconnect возвращает время жизни завершенного вызова на экране
// по причине завершения
func delayForDisconnect(cause telecom.DisconnectCauseCode) time.Duration {
	switch cause {
	case telecom.DisconnectCauseLocal:
		return disconnectedPurgeShort
	case telecom.DisconnectCauseRemote, telecom.DisconnectCauseError:
		return disconnectedPurgeMedium
	case telecom.DisconnectCauseRejected, telecom.DisconnectCauseMissed, telecom.DisconnectCauseCanceled:
		return 0
	default:
		return disconnectedPurgeLong
	}
}

// updateTextResponses обновляет кэш готовых текстовых ответов вызова
func (cl *CallList) updateTextResponses(c *call.Call) {
	if responses := c.CannedTextResponses(); len(responses) > 0 {
		cl.textResponses[c.ID()] = responses
	}
}

func (cl *CallList) notifyCallUpdateListeners(c *call.Call) {
	for _, l := range cl.callUpdateListeners[c.ID()] {
		l.OnCallChanged(c)
	}
}

func (cl *CallList) notifyGenericListeners() {
	for l := range cl.listeners {
		l.OnCallListChange(cl)
	}
}

// AddListener регистрирует generic-слушателя.
//
// Регистрация немедленно синхронно доставляет одно уведомление "список
// изменился": новый слушатель видит текущее состояние, не дожидаясь
// следующего события.
func (cl *CallList) AddListener(l Listener) {
	if l == nil {
		return
	}
	cl.listeners[l] = struct{}{}
	l.OnCallListChange(cl)
}

// RemoveListener снимает generic-слушателя
func (cl *CallList) RemoveListener(l Listener) {
	delete(cl.listeners, l)
}

// AddCallUpdateListener регистрирует слушателя обновлений одного вызова
func (cl *CallList) AddCallUpdateListener(callID string, l CallUpdateListener) {
	if l == nil {
		return
	}
	cl.callUpdateListeners[callID] = append(cl.callUpdateListeners[callID], l)
}

// RemoveCallUpdateListener снимает слушателя обновлений одного вызова
func (cl *CallList) RemoveCallUpdateListener(callID string, l CallUpdateListener) {
	listeners := cl.callUpdateListeners[callID]
	for i, existing := range listeners {
		if existing == l {
			cl.callUpdateListeners[callID] = append(listeners[:i], listeners[i+1:]...)
			break
		}
	}
	if len(cl.callUpdateListeners[callID]) == 0 {
		delete(cl.callUpdateListeners, callID)
	}
}
