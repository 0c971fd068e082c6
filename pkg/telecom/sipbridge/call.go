package sipbridge

import (
	"sync"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/incall/pkg/telecom"
)

// SIPCall вызов поверх SIP-диалога, реализует telecom.TelecomCall.
//
// В отличие от ядра, мост мутирует вызовы из горутин sipgo, поэтому
// доступ к полям защищен mutex'ом.
type SIPCall struct {
	mu sync.RWMutex

	callID       string
	remoteURI    string
	state        telecom.CallState
	cause        telecom.DisconnectCause
	videoState   telecom.VideoState
	capabilities telecom.Capability
	properties   telecom.Property
	extras       telecom.Extras
	account      telecom.PhoneAccountHandle
	connectTime  int64

	// Незавершенная INVITE-транзакция; нужна для ответа Answer/Reject
	inviteReq *sip.Request
	inviteTx  sip.ServerTransaction

	// Адрес удаленной стороны для исходящих запросов в диалоге
	remoteTarget sip.Uri
}

var _ telecom.TelecomCall = (*SIPCall)(nil)

// HandleID возвращает Call-ID SIP-диалога
func (c *SIPCall) HandleID() string {
	return c.callID
}

// State возвращает текущее состояние вызова
func (c *SIPCall) State() telecom.CallState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// DisconnectCause возвращает причину завершения
func (c *SIPCall) DisconnectCause() telecom.DisconnectCause {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cause
}

// Handle возвращает URI удаленной стороны
func (c *SIPCall) Handle() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.remoteURI
}

// Children возвращает nil: SIP-мост конференции не ведет
func (c *SIPCall) Children() []telecom.TelecomCall {
	return nil
}

// Parent возвращает nil: SIP-мост конференции не ведет
func (c *SIPCall) Parent() telecom.TelecomCall {
	return nil
}

// ConferenceableCalls возвращает nil: merge в SIP-мосте не поддержан
func (c *SIPCall) ConferenceableCalls() []telecom.TelecomCall {
	return nil
}

// Capabilities возвращает маску возможностей вызова
func (c *SIPCall) Capabilities() telecom.Capability {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capabilities
}

// Properties возвращает маску свойств вызова
func (c *SIPCall) Properties() telecom.Property {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.properties
}

// VideoState возвращает видео-состояние, выведенное из SDP
func (c *SIPCall) VideoState() telecom.VideoState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.videoState
}

// AccountHandle возвращает телефонный аккаунт вызова
func (c *SIPCall) AccountHandle() telecom.PhoneAccountHandle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account
}

// Extras возвращает контейнер дополнительных полей
func (c *SIPCall) Extras() telecom.Extras {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.extras
}

// CannedTextResponses возвращает готовые текстовые ответы для входящего
func (c *SIPCall) CannedTextResponses() []string {
	if c.State() != telecom.StateRinging {
		return nil
	}
	return []string{
		"Не могу говорить, перезвоню позже",
		"Я на встрече",
		"Перезвоните через час",
	}
}

// ConnectTime возвращает unix-миллисекунды момента соединения
func (c *SIPCall) ConnectTime() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connectTime
}

// setState переводит вызов в новое состояние с причиной завершения
func (c *SIPCall) setState(state telecom.CallState, cause telecom.DisconnectCause) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.cause = cause
}

// setVideoState обновляет видео-состояние из нового SDP
func (c *SIPCall) setVideoState(videoState telecom.VideoState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.videoState = videoState
}
