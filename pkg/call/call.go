// Package call содержит сущность одного вызова in-call приложения.
//
// Call — мутабельный снимок состояния одного вызова телефонного слоя.
// Слушатели держат долгоживущие ссылки на Call: объект обновляется на месте
// при каждом callback'е телефонии и никогда не заменяется.
//
// Модель владения: все мутации Call, реестра и машины состояний выполняются
// в одном сериализованном контексте (см. calllist.Serializer). Внутренних
// блокировок нет намеренно — конкурентная мутация из нескольких горутин
// не является поддерживаемым режимом.
package call

import (
	"fmt"
	"strings"
	"time"

	"github.com/arzzra/incall/pkg/telecom"
)

// Registry поверхность реестра, необходимая вызову для уведомлений
// и разрешения идентичности связанных вызовов.
//
// Реализуется пакетом calllist; интерфейс объявлен здесь, чтобы не
// создавать циклическую зависимость.
type Registry interface {
	// OnUpdate вызывается после обычного обновления вызова
	OnUpdate(c *Call)

	// OnDisconnect вызывается, когда переход только что завершился в DISCONNECTED
	OnDisconnect(c *Call)

	// OnUpgradeToVideo вызывается при входящем запросе upgrade на видео
	OnUpgradeToVideo(c *Call)

	// OnSessionModificationChange вызывается при смене состояния переговоров о видео
	OnSessionModificationChange(c *Call, state SessionModificationState)

	// OnChildNumberChange вызывается при смене дочернего номера
	OnChildNumberChange(c *Call)

	// OnLastForwardedNumberChange вызывается при смене номера переадресации
	OnLastForwardedNumberChange(c *Call)

	// GetCallByTelecomCall возвращает вызов по handle телефонного слоя или nil
	GetCallByTelecomCall(tc telecom.TelecomCall) *Call
}

// EmergencyNumberChecker проверяет, является ли номер экстренным.
// Проверка может быть дорогой, поэтому результат кэшируется вызовом
// и пересчитывается только при смене handle.
type EmergencyNumberChecker func(number string) bool

// Call представляет один вызов с точки зрения in-call приложения
type Call struct {
	id          string
	telecomCall telecom.TelecomCall
	registry    Registry
	logger      StructuredLogger

	emergencyChecker EmergencyNumberChecker

	state           State
	disconnectCause telecom.DisconnectCause
	childCallIDs    []string

	// mVideoState из снимка прошлого обновления; используется только для
	// обнаружения смены видео-состояния (maybeCancelVideoUpgrade)
	videoState telecom.VideoState

	sessionModification *sessionModificationTracker
	requestedVideoState telecom.VideoState

	// Кэшированные поля из extras; обновляются и уведомляются только
	// при фактическом изменении значения
	childNumber         string
	lastForwardedNumber string
	callSubject         string

	// Кэш проверки экстренного номера: пересчитывается только при смене handle
	handle      string
	isEmergency bool

	accountHandle          telecom.PhoneAccountHandle
	isCallSubjectSupported bool

	isOutgoing bool
	timeAdded  time.Time
}

// NewCall создает вызов поверх handle телефонного слоя.
//
// Конструктор выполняет первичное чтение снимка, но не уведомляет реестр:
// маршрутизацию первого события (incoming или generic) выполняет
// CallList.OnCallAdded.
func NewCall(tc telecom.TelecomCall, registry Registry, opts ...Option) *Call {
	c := &Call{
		id:                  nextCallID(),
		telecomCall:         tc,
		registry:            registry,
		logger:              GetDefaultLogger().WithComponent("call"),
		state:               StateInvalid,
		sessionModification: newSessionModificationTracker(),
		timeAdded:           time.Now(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.updateFromTelecomCall()
	return c
}

// Option настройка вызова при создании
type Option func(*Call)

// WithLogger задает logger вызова
func WithLogger(logger StructuredLogger) Option {
	return func(c *Call) {
		c.logger = logger
	}
}

// WithEmergencyChecker задает проверку экстренных номеров
func WithEmergencyChecker(checker EmergencyNumberChecker) Option {
	return func(c *Call) {
		c.emergencyChecker = checker
	}
}

// ID возвращает стабильный идентификатор вызова
func (c *Call) ID() string {
	return c.id
}

// TelecomCall возвращает handle телефонного слоя
func (c *Call) TelecomCall() telecom.TelecomCall {
	return c.telecomCall
}

// TimeAdded возвращает момент создания вызова
func (c *Call) TimeAdded() time.Time {
	return c.timeAdded
}

// State возвращает состояние вызова.
//
// Членство в конференции всегда выигрывает: вызов с родителем сообщает
// CONFERENCED независимо от хранимого сырого состояния. Это производное
// чтение, а не хранимое значение.
func (c *Call) State() State {
	if c.telecomCall != nil && c.telecomCall.Parent() != nil {
		return StateConferenced
	}
	return c.state
}

// TrueState возвращает хранимое сырое состояние без учета конференции
func (c *Call) TrueState() State {
	return c.state
}

// SetState выполняет сырое присваивание состояния без валидации.
//
// Побочные эффекты (уведомления, тайминги) принадлежат реестру, который
// вызывает SetState и затем заново выводит производное состояние.
func (c *Call) SetState(state State) {
	c.state = state
	if state == StateDialing || state == StateConnecting {
		c.isOutgoing = true
	}
}

// IsOutgoing возвращает true, если вызов когда-либо был исходящим
func (c *Call) IsOutgoing() bool {
	return c.isOutgoing
}

// DisconnectCause возвращает причину завершения.
// Валидное значение существует только после DISCONNECTED/IDLE.
func (c *Call) DisconnectCause() telecom.DisconnectCause {
	if c.state == StateDisconnected || c.state == StateIdle {
		return c.disconnectCause
	}
	return telecom.NewDisconnectCause(telecom.DisconnectCauseUnknown)
}

// SetDisconnectCause устанавливает причину завершения
func (c *Call) SetDisconnectCause(cause telecom.DisconnectCause) {
	c.disconnectCause = cause
}

// Number возвращает номер удаленной стороны
func (c *Call) Number() string {
	if c.telecomCall == nil {
		return ""
	}
	return c.telecomCall.Handle()
}

// Handle возвращает кэшированный handle вызова
func (c *Call) Handle() string {
	return c.handle
}

// IsEmergencyCall возвращает кэшированный результат проверки экстренного номера
func (c *Call) IsEmergencyCall() bool {
	return c.isEmergency
}

// ChildCallIDs возвращает идентификаторы дочерних вызовов конференции
func (c *Call) ChildCallIDs() []string {
	return c.childCallIDs
}

// ParentID возвращает идентификатор родительского вызова конференции
// или пустую строку
func (c *Call) ParentID() string {
	if c.telecomCall == nil {
		return ""
	}
	parent := c.telecomCall.Parent()
	if parent == nil {
		return ""
	}
	if parentCall := c.registry.GetCallByTelecomCall(parent); parentCall != nil {
		return parentCall.ID()
	}
	return ""
}

// ChildNumber возвращает дочерний номер вызова или пустую строку
func (c *Call) ChildNumber() string {
	return c.childNumber
}

// LastForwardedNumber возвращает последний номер переадресации или пустую строку
func (c *Call) LastForwardedNumber() string {
	return c.lastForwardedNumber
}

// CallSubject возвращает тему вызова или пустую строку
func (c *Call) CallSubject() string {
	return c.callSubject
}

// IsCallSubjectSupported возвращает true, если аккаунт вызова поддерживает
// тему вызова
func (c *Call) IsCallSubjectSupported() bool {
	return c.isCallSubjectSupported
}

// AccountHandle возвращает телефонный аккаунт вызова
func (c *Call) AccountHandle() telecom.PhoneAccountHandle {
	if c.telecomCall == nil {
		return telecom.PhoneAccountHandle{}
	}
	return c.telecomCall.AccountHandle()
}

// CannedTextResponses возвращает готовые текстовые ответы для входящего
func (c *Call) CannedTextResponses() []string {
	if c.telecomCall == nil {
		return nil
	}
	return c.telecomCall.CannedTextResponses()
}

// ConnectTime возвращает unix-миллисекунды момента соединения
func (c *Call) ConnectTime() int64 {
	if c.telecomCall == nil {
		return 0
	}
	return c.telecomCall.ConnectTime()
}

// VideoState возвращает текущее состояние видео из снимка телефонии
func (c *Call) VideoState() telecom.VideoState {
	if c.telecomCall == nil {
		return telecom.VideoStateAudioOnly
	}
	return c.telecomCall.VideoState()
}

// IsVideoCall возвращает true для вызова с активным видео
func (c *Call) IsVideoCall() bool {
	return c.VideoState().IsVideo()
}

// HasProperty проверяет свойство вызова
func (c *Call) HasProperty(p telecom.Property) bool {
	if c.telecomCall == nil {
		return false
	}
	return c.telecomCall.Properties()&p == p
}

// IsConferenceCall возвращает true для вызова-конференции
func (c *Call) IsConferenceCall() bool {
	return c.HasProperty(telecom.PropertyConference)
}

// IsForwarded возвращает true для переадресованного вызова
func (c *Call) IsForwarded() bool {
	return c.HasProperty(telecom.PropertyWasForwarded)
}

// IsWaitingForRemoteSide возвращает true, когда вызов ждет удаленную сторону
// (активный, но удержан удаленно, либо набор в ожидании)
func (c *Call) IsWaitingForRemoteSide() bool {
	if c.state == StateActive && c.HasProperty(telecom.PropertyHeldRemotely) {
		return true
	}
	if c.state == StateDialing && c.HasProperty(telecom.PropertyDialingIsWaiting) {
		return true
	}
	return false
}

// WasUnansweredForwarded возвращает true для неотвеченного переадресованного
// вызова
func (c *Call) WasUnansweredForwarded() bool {
	return c.DisconnectCause().Code == telecom.DisconnectCauseMissed &&
		c.HasProperty(telecom.PropertyAdditionalCallForwarded)
}

// Can проверяет наличие набора возможностей по битовой маске.
//
// Особый случай merge: возможность объединения считается присутствующей
// и тогда, когда у вызова есть конференцируемые соседи, даже если сырой
// бит возможности не выставлен.
func (c *Call) Can(capabilities telecom.Capability) bool {
	if c.telecomCall == nil {
		return false
	}
	supported := c.telecomCall.Capabilities()

	if capabilities&telecom.CapabilityMergeConference != 0 {
		if len(c.telecomCall.ConferenceableCalls()) == 0 &&
			supported&telecom.CapabilityMergeConference == 0 {
			// Без кандидатов на merge объединять не с кем
			return false
		}
		capabilities &^= telecom.CapabilityMergeConference
	}

	return capabilities == capabilities&supported
}

// SessionModificationState возвращает состояние переговоров о видео
func (c *Call) SessionModificationState() SessionModificationState {
	return c.sessionModification.Current()
}

// SetSessionModificationState выполняет generic переход подмашины переговоров.
//
// Установка того же значения молчалива; зарезервированное
// RECEIVED_UPGRADE_TO_VIDEO_REQUEST отклоняется с предупреждением в лог,
// состояние не меняется.
func (c *Call) SetSessionModificationState(state SessionModificationState) {
	changed, err := c.sessionModification.Set(state)
	if err != nil {
		c.logger.LogError(err, "переход session modification отклонен",
			String("call_id", c.id), String("target", state.String()))
		return
	}
	if changed {
		c.registry.OnSessionModificationChange(c, state)
	}
}

// RequestedVideoState возвращает видео-состояние, запрошенное удаленной стороной
func (c *Call) RequestedVideoState() telecom.VideoState {
	return c.requestedVideoState
}

// SetRequestedVideoState обрабатывает входящий запрос изменения медиа-сессии.
//
// Если запрошенное состояние совпадает с текущим, переговоры не нужны:
// подмашина немедленно схлопывается в NO_REQUEST. Иначе вызов входит в
// RECEIVED_UPGRADE_TO_VIDEO_REQUEST и реестр уведомляет отдельный канал
// "предложен upgrade".
func (c *Call) SetRequestedVideoState(videoState telecom.VideoState) {
	if videoState == c.VideoState() {
		c.logger.Warn("запрошенное видео-состояние совпадает с текущим, сброс переговоров",
			String("call_id", c.id))
		if _, err := c.sessionModification.Set(SessionModificationNoRequest); err != nil {
			c.logger.LogError(err, "ошибка сброса session modification", String("call_id", c.id))
		}
		return
	}

	if _, err := c.sessionModification.Offer(); err != nil {
		c.logger.LogError(err, "ошибка входа в received upgrade request", String("call_id", c.id))
		return
	}
	c.requestedVideoState = videoState
	c.registry.OnUpgradeToVideo(c)

	c.Update()
}

// Update обрабатывает очередной callback телефонного слоя: заново читает
// весь снимок и сообщает реестру об изменении.
//
// Если переход только что завершился в DISCONNECTED, реестр уведомляется
// через выделенный канал OnDisconnect, иначе через generic OnUpdate.
// Наружу ошибки не распространяются.
func (c *Call) Update() {
	oldState := c.State()
	c.updateFromTelecomCall()
	if oldState != c.State() && c.State() == StateDisconnected {
		c.registry.OnDisconnect(c)
	} else {
		c.registry.OnUpdate(c)
	}
}

// updateFromTelecomCall заново читает все производные поля из снимка телефонии
func (c *Call) updateFromTelecomCall() {
	if c.telecomCall == nil {
		return
	}

	c.SetState(TranslateState(c.telecomCall.State()))
	c.SetDisconnectCause(c.telecomCall.DisconnectCause())
	c.maybeCancelVideoUpgrade(c.telecomCall.VideoState())

	// Дочерние вызовы резолвятся через реестр; вызов, еще не попавший
	// в реестр, пропускается и подтянется следующим событием.
	// Старый срез мог быть отдан наружу через ChildCallIDs — не трогаем его
	var children []string
	for _, child := range c.telecomCall.Children() {
		if childCall := c.registry.GetCallByTelecomCall(child); childCall != nil {
			children = append(children, childCall.ID())
		}
	}
	c.childCallIDs = children

	c.updateFromExtras(c.telecomCall.Extras())

	// Проверка экстренного номера дорогая: пересчет только при смене handle
	if newHandle := c.telecomCall.Handle(); newHandle != c.handle {
		c.handle = newHandle
		c.updateEmergencyCallState()
	}

	if newAccount := c.telecomCall.AccountHandle(); newAccount != c.accountHandle {
		c.accountHandle = newAccount
		if !newAccount.IsZero() {
			c.isCallSubjectSupported = c.telecomCall.Capabilities()&telecom.CapabilityCallSubject != 0
		}
	}
}

// updateFromExtras обновляет кэшированные поля из контейнера extras.
//
// Контейнер может быть поврежден нижним слоем: первая же ошибка доступа
// отменяет весь цикл обновления extras, без паники и без частичных данных.
// Поля обновляются, а слушатели уведомляются, только при фактическом
// изменении значения.
func (c *Call) updateFromExtras(extras telecom.Extras) {
	if extras.IsZero() {
		return
	}
	if err := extras.Validate(); err != nil {
		c.logger.LogError(ErrCorruptExtras(err).WithCall(c), "extras повреждены, обновление пропущено")
		return
	}

	childNumber, ok, err := extras.GetString(telecom.ExtraChildAddress)
	if err != nil {
		c.logger.LogError(ErrCorruptExtras(err).WithCall(c), "extras повреждены, обновление пропущено")
		return
	}
	if ok && childNumber != c.childNumber {
		c.childNumber = childNumber
		c.registry.OnChildNumberChange(c)
	}

	// Номера переадресации приходят списком; интересен последний элемент.
	// Список приходит независимо от установления вызова, поэтому об
	// изменении нужно уведомлять отдельно.
	forwarded, ok, err := extras.GetStringSlice(telecom.ExtraLastForwardedNumber)
	if err != nil {
		c.logger.LogError(ErrCorruptExtras(err).WithCall(c), "extras повреждены, обновление пропущено")
		return
	}
	if ok {
		var lastForwarded string
		if len(forwarded) > 0 {
			lastForwarded = forwarded[len(forwarded)-1]
		}
		if lastForwarded != c.lastForwardedNumber {
			c.lastForwardedNumber = lastForwarded
			c.registry.OnLastForwardedNumberChange(c)
		}
	}

	// Тема вызова присутствует с самого начала, отдельного уведомления не нужно
	subject, ok, err := extras.GetString(telecom.ExtraCallSubject)
	if err != nil {
		c.logger.LogError(ErrCorruptExtras(err).WithCall(c), "extras повреждены, обновление пропущено")
		return
	}
	if ok && subject != c.callSubject {
		c.callSubject = subject
	}
}

// maybeCancelVideoUpgrade сбрасывает полученный запрос upgrade, если
// видео-состояние изменилось: значит, на запрос ответил другой UI
func (c *Call) maybeCancelVideoUpgrade(newVideoState telecom.VideoState) {
	if c.sessionModification.Current() == SessionModificationReceivedUpgradeToVideoRequest &&
		c.videoState != newVideoState {
		c.logger.Debug("видео-состояние изменилось, отмена уведомления об upgrade",
			String("call_id", c.id))
		c.SetSessionModificationState(SessionModificationNoRequest)
	}
	c.videoState = newVideoState
}

// updateEmergencyCallState пересчитывает кэш проверки экстренного номера
func (c *Call) updateEmergencyCallState() {
	if c.emergencyChecker == nil {
		c.isEmergency = false
		return
	}
	c.isEmergency = c.emergencyChecker(c.handle)
}

// String возвращает строковое представление вызова
func (c *Call) String() string {
	if c.telecomCall == nil {
		return c.id
	}
	return fmt.Sprintf("[%s, %s, children:%v, parent:%s, videoState:%d, sessionModification:%s]",
		c.id, c.State(), c.childCallIDs, c.ParentID(),
		c.VideoState(), c.sessionModification.Current())
}

// AreSame сравнивает два вызова по идентификатору.
// Оба nil — равны; ровно один nil — не равны.
func AreSame(a, b *Call) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.ID() == b.ID()
}

// AreSameNumber сравнивает два вызова по нормализованному номеру.
// Оба nil — равны; ровно один nil — не равны.
func AreSameNumber(a, b *Call) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return normalizeNumber(a.Number()) == normalizeNumber(b.Number())
}

// normalizeNumber приводит номер к сравниваемому виду: убирает разделители
func normalizeNumber(number string) string {
	var b strings.Builder
	for _, r := range number {
		switch r {
		case ' ', '-', '(', ')', '.':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
