// Package telecom описывает контракты телефонного слоя, от которого зависит
// ядро in-call приложения.
//
// Ядро (pkg/call, pkg/calllist, pkg/incall) не работает с телефонией напрямую:
// оно читает снимки состояния через узкий интерфейс TelecomCall и отправляет
// команды через TelecomAdapter. Все ответы телефонии приходят асинхронно,
// новыми событиями через те же callback'и.
package telecom

import "fmt"

// CallState представляет состояние вызова на уровне телефонного слоя.
//
// Это "сырые" состояния платформы; ядро транслирует их в собственный
// enum (pkg/call.State) при каждом обновлении.
type CallState int

const (
	StateNew CallState = iota
	StateConnecting
	StateSelectPhoneAccount
	StateDialing
	StateRinging
	StateActive
	StateHolding
	StateDisconnecting
	StateDisconnected
)

// String возвращает строковое представление состояния
func (s CallState) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateConnecting:
		return "Connecting"
	case StateSelectPhoneAccount:
		return "SelectPhoneAccount"
	case StateDialing:
		return "Dialing"
	case StateRinging:
		return "Ringing"
	case StateActive:
		return "Active"
	case StateHolding:
		return "Holding"
	case StateDisconnecting:
		return "Disconnecting"
	case StateDisconnected:
		return "Disconnected"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// DisconnectCauseCode причина завершения вызова
type DisconnectCauseCode int

const (
	DisconnectCauseUnknown DisconnectCauseCode = iota
	DisconnectCauseLocal
	DisconnectCauseRemote
	DisconnectCauseRejected
	DisconnectCauseMissed
	DisconnectCauseCanceled
	DisconnectCauseBusy
	DisconnectCauseRestricted
	DisconnectCauseError
)

// String возвращает строковое представление причины завершения
func (c DisconnectCauseCode) String() string {
	switch c {
	case DisconnectCauseLocal:
		return "Local"
	case DisconnectCauseRemote:
		return "Remote"
	case DisconnectCauseRejected:
		return "Rejected"
	case DisconnectCauseMissed:
		return "Missed"
	case DisconnectCauseCanceled:
		return "Canceled"
	case DisconnectCauseBusy:
		return "Busy"
	case DisconnectCauseRestricted:
		return "Restricted"
	case DisconnectCauseError:
		return "Error"
	default:
		return "Unknown"
	}
}

// DisconnectCause причина завершения вызова с опциональным описанием
type DisconnectCause struct {
	Code  DisconnectCauseCode
	Label string
}

// NewDisconnectCause создает причину завершения без описания
func NewDisconnectCause(code DisconnectCauseCode) DisconnectCause {
	return DisconnectCause{Code: code}
}

// Capability битовая маска возможностей вызова
type Capability uint32

const (
	CapabilityHold Capability = 1 << iota
	CapabilitySupportHold
	CapabilityMergeConference
	CapabilitySwapConference
	CapabilityMute
	CapabilityAddCall
	CapabilitySupportsVideoLocalTx
	CapabilitySupportsVideoLocalRx
	CapabilitySupportsVideoRemoteTx
	CapabilitySupportsVideoRemoteRx
	CapabilityCannotDowngradeVideoToAudio
	CapabilityCallSubject
)

// Property битовая маска свойств вызова
type Property uint32

const (
	PropertyConference Property = 1 << iota
	PropertyWasForwarded
	PropertyHeldRemotely
	PropertyDialingIsWaiting
	PropertyAdditionalCallForwarded
	PropertyRemoteIncomingCallsBarred
	PropertyEmergencyCallbackMode
)

// VideoState битовая маска направления видео в вызове
type VideoState uint8

const (
	VideoStateAudioOnly VideoState = 0
	VideoStateTxEnabled VideoState = 1 << 0
	VideoStateRxEnabled VideoState = 1 << 1
	VideoStatePaused    VideoState = 1 << 2

	VideoStateBidirectional = VideoStateTxEnabled | VideoStateRxEnabled
)

// IsVideo возвращает true, если видео включено хотя бы в одном направлении
func (v VideoState) IsVideo() bool {
	return v&(VideoStateTxEnabled|VideoStateRxEnabled) != 0
}

// IsPaused возвращает true, если видео поставлено на паузу
func (v VideoState) IsPaused() bool {
	return v&VideoStatePaused != 0
}

// IsBidirectional возвращает true для двунаправленного видео
func (v VideoState) IsBidirectional() bool {
	return v&VideoStateBidirectional == VideoStateBidirectional
}

// PhoneAccountHandle ссылка на телефонный аккаунт, через который идет вызов
type PhoneAccountHandle struct {
	ID            string
	ComponentName string
}

// IsZero возвращает true для пустого handle
func (h PhoneAccountHandle) IsZero() bool {
	return h.ID == "" && h.ComponentName == ""
}

// TelecomCall представляет снимок одного вызова телефонного слоя.
//
// Интерфейс намеренно узкий: ядро читает ровно те поля, которые ему нужны
// для ведения реестра и вывода состояния. Реализация может быть мутабельной
// (значения меняются между вызовами Update ядра) — ядро никогда не кэширует
// снимок дольше одного цикла обновления, кроме явно оговоренных полей.
type TelecomCall interface {
	// HandleID возвращает стабильный идентификатор вызова в телефонном слое.
	// Используется как ключ вторичного индекса реестра.
	HandleID() string

	// State возвращает текущее "сырое" состояние вызова
	State() CallState

	// DisconnectCause возвращает причину завершения (валидна после Disconnected)
	DisconnectCause() DisconnectCause

	// Handle возвращает номер/URI удаленной стороны
	Handle() string

	// Children возвращает дочерние вызовы конференции
	Children() []TelecomCall

	// Parent возвращает родительский вызов конференции или nil
	Parent() TelecomCall

	// ConferenceableCalls возвращает вызовы, с которыми возможен merge
	ConferenceableCalls() []TelecomCall

	// Capabilities возвращает маску возможностей вызова
	Capabilities() Capability

	// Properties возвращает маску свойств вызова
	Properties() Property

	// VideoState возвращает текущее состояние видео
	VideoState() VideoState

	// AccountHandle возвращает телефонный аккаунт вызова
	AccountHandle() PhoneAccountHandle

	// Extras возвращает контейнер дополнительных полей вызова.
	// Контейнер может быть поврежден нижним слоем — любое чтение fallible.
	Extras() Extras

	// CannedTextResponses возвращает готовые текстовые ответы для входящего
	CannedTextResponses() []string

	// ConnectTime возвращает unix-миллисекунды момента соединения, 0 если не было
	ConnectTime() int64
}

// SessionModifyRequest запрос изменения медиа-сессии (upgrade/downgrade видео)
type SessionModifyRequest struct {
	CallID     string
	VideoState VideoState
}

// TelecomAdapter поверхность команд в сторону телефонного слоя.
//
// Все методы fire-and-forget: результат приходит асинхронным событием
// обратно в реестр, никакой метод не блокирует.
type TelecomAdapter interface {
	Answer(callID string, videoState VideoState)
	Reject(callID string, sendMessage bool, message string)
	Disconnect(callID string)
	Hold(callID string)
	Unhold(callID string)
	Swap(callID string)
	Merge(callID string)
	Mute(muted bool)
	SendSessionModifyRequest(req SessionModifyRequest)

	// SendSessionModifyResponse отвечает на запрос изменения медиа-сессии.
	// Ответ с запрошенным видео-состоянием означает согласие, с текущим — отказ.
	SendSessionModifyResponse(callID string, videoState VideoState)
}
