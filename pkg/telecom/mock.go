package telecom

import (
	"sync"

	"github.com/google/uuid"
)

// Проверка соответствия интерфейсу во время компиляции
var _ TelecomCall = (*MockCall)(nil)

// MockCall мутабельная реализация TelecomCall для тестов и симулятора.
//
// Сеттеры меняют снимок на месте; реального телефонного стека за MockCall
// нет, поэтому события в ядро нужно доставлять вручную (вызовом Update у
// соответствующего Call или методов реестра).
type MockCall struct {
	mu sync.RWMutex

	handleID        string
	state           CallState
	disconnectCause DisconnectCause
	handle          string
	children        []TelecomCall
	parent          TelecomCall
	conferenceable  []TelecomCall
	capabilities    Capability
	properties      Property
	videoState      VideoState
	accountHandle   PhoneAccountHandle
	extras          Extras
	cannedResponses []string
	connectTime     int64
}

// NewMockCall создает mock-вызов в указанном состоянии
func NewMockCall(state CallState) *MockCall {
	return &MockCall{
		handleID: uuid.NewString(),
		state:    state,
	}
}

// HandleID возвращает идентификатор вызова
func (m *MockCall) HandleID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handleID
}

// State возвращает текущее состояние
func (m *MockCall) State() CallState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SetState устанавливает состояние
func (m *MockCall) SetState(state CallState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

// DisconnectCause возвращает причину завершения
func (m *MockCall) DisconnectCause() DisconnectCause {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.disconnectCause
}

// SetDisconnectCause устанавливает причину завершения
func (m *MockCall) SetDisconnectCause(cause DisconnectCause) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectCause = cause
}

// Handle возвращает номер удаленной стороны
func (m *MockCall) Handle() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handle
}

// SetHandle устанавливает номер удаленной стороны
func (m *MockCall) SetHandle(handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handle = handle
}

// Children возвращает дочерние вызовы конференции
func (m *MockCall) Children() []TelecomCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]TelecomCall(nil), m.children...)
}

// SetChildren устанавливает дочерние вызовы конференции
func (m *MockCall) SetChildren(children []TelecomCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.children = children
}

// Parent возвращает родительский вызов или nil
func (m *MockCall) Parent() TelecomCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parent
}

// SetParent устанавливает родительский вызов
func (m *MockCall) SetParent(parent TelecomCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parent = parent
}

// ConferenceableCalls возвращает вызовы, доступные для merge
func (m *MockCall) ConferenceableCalls() []TelecomCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]TelecomCall(nil), m.conferenceable...)
}

// SetConferenceableCalls устанавливает список вызовов для merge
func (m *MockCall) SetConferenceableCalls(calls []TelecomCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conferenceable = calls
}

// Capabilities возвращает маску возможностей
func (m *MockCall) Capabilities() Capability {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.capabilities
}

// SetCapabilities устанавливает маску возможностей
func (m *MockCall) SetCapabilities(caps Capability) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capabilities = caps
}

// Properties возвращает маску свойств
func (m *MockCall) Properties() Property {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.properties
}

// SetProperties устанавливает маску свойств
func (m *MockCall) SetProperties(props Property) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.properties = props
}

// VideoState возвращает состояние видео
func (m *MockCall) VideoState() VideoState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.videoState
}

// SetVideoState устанавливает состояние видео
func (m *MockCall) SetVideoState(vs VideoState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videoState = vs
}

// AccountHandle возвращает телефонный аккаунт
func (m *MockCall) AccountHandle() PhoneAccountHandle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accountHandle
}

// SetAccountHandle устанавливает телефонный аккаунт
func (m *MockCall) SetAccountHandle(h PhoneAccountHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountHandle = h
}

// Extras возвращает контейнер дополнительных полей
func (m *MockCall) Extras() Extras {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.extras
}

// SetExtras устанавливает контейнер дополнительных полей
func (m *MockCall) SetExtras(extras Extras) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extras = extras
}

// CannedTextResponses возвращает готовые текстовые ответы
func (m *MockCall) CannedTextResponses() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.cannedResponses...)
}

// SetCannedTextResponses устанавливает готовые текстовые ответы
func (m *MockCall) SetCannedTextResponses(responses []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cannedResponses = responses
}

// ConnectTime возвращает момент соединения (unix ms)
func (m *MockCall) ConnectTime() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connectTime
}

// SetConnectTime устанавливает момент соединения
func (m *MockCall) SetConnectTime(ms int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectTime = ms
}

// MockAdapter реализация TelecomAdapter, записывающая команды для проверки
// в тестах.
type MockAdapter struct {
	mu       sync.Mutex
	Commands []MockCommand
}

// MockCommand одна зафиксированная команда в телефонный слой
type MockCommand struct {
	Op         string
	CallID     string
	VideoState VideoState
	Flag       bool
	Message    string
}

// NewMockAdapter создает пустой адаптер
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{}
}

func (a *MockAdapter) record(cmd MockCommand) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Commands = append(a.Commands, cmd)
}

// Recorded возвращает копию списка команд
func (a *MockAdapter) Recorded() []MockCommand {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]MockCommand(nil), a.Commands...)
}

func (a *MockAdapter) Answer(callID string, videoState VideoState) {
	a.record(MockCommand{Op: "answer", CallID: callID, VideoState: videoState})
}

func (a *MockAdapter) Reject(callID string, sendMessage bool, message string) {
	a.record(MockCommand{Op: "reject", CallID: callID, Flag: sendMessage, Message: message})
}

func (a *MockAdapter) Disconnect(callID string) {
	a.record(MockCommand{Op: "disconnect", CallID: callID})
}

func (a *MockAdapter) Hold(callID string) {
	a.record(MockCommand{Op: "hold", CallID: callID})
}

func (a *MockAdapter) Unhold(callID string) {
	a.record(MockCommand{Op: "unhold", CallID: callID})
}

func (a *MockAdapter) Swap(callID string) {
	a.record(MockCommand{Op: "swap", CallID: callID})
}

func (a *MockAdapter) Merge(callID string) {
	a.record(MockCommand{Op: "merge", CallID: callID})
}

func (a *MockAdapter) Mute(muted bool) {
	a.record(MockCommand{Op: "mute", Flag: muted})
}

func (a *MockAdapter) SendSessionModifyRequest(req SessionModifyRequest) {
	a.record(MockCommand{Op: "session_modify_request", CallID: req.CallID, VideoState: req.VideoState})
}

func (a *MockAdapter) SendSessionModifyResponse(callID string, videoState VideoState) {
	a.record(MockCommand{Op: "session_modify_response", CallID: callID, VideoState: videoState})
}
