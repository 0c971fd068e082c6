package sipbridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/incall/pkg/call"
	"github.com/arzzra/incall/pkg/telecom"
)

// EventSink принимает события моста. Реализация обязана переносить
// обработку в сериализованный контекст ядра: callback'и приходят из
// горутин sipgo.
type EventSink interface {
	// OnCallAdded вызывается при появлении нового вызова
	OnCallAdded(tc telecom.TelecomCall)

	// OnCallUpdated вызывается при каждом изменении снимка вызова
	OnCallUpdated(tc telecom.TelecomCall)

	// OnCallRemoved вызывается, когда SIP-диалог окончательно завершен
	OnCallRemoved(tc telecom.TelecomCall)
}

// Config конфигурация SIP-моста
type Config struct {
	Hostname  string
	Host      string
	Port      int
	AudioPort int
	VideoPort int
	AccountID string
}

// DefaultConfig возвращает конфигурацию моста по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Hostname:  "localhost",
		Host:      "127.0.0.1",
		Port:      5060,
		AudioPort: 10000,
		VideoPort: 10002,
		AccountID: "sip-local",
	}
}

// Bridge SIP-мост: реализует telecom.TelecomAdapter поверх sipgo и
// публикует изменения вызовов в EventSink
type Bridge struct {
	config *Config
	logger call.StructuredLogger
	sink   EventSink

	ua     *sipgo.UserAgent
	client *sipgo.Client
	server *sipgo.Server

	mu    sync.RWMutex
	calls map[string]*SIPCall
}

var _ telecom.TelecomAdapter = (*Bridge)(nil)

// New создает SIP-мост
func New(config *Config, sink EventSink, logger call.StructuredLogger) (*Bridge, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = call.GetDefaultLogger().WithComponent("sipbridge")
	}

	b := &Bridge{
		config: config,
		logger: logger,
		sink:   sink,
		calls:  make(map[string]*SIPCall),
	}

	ua, err := sipgo.NewUA(
		sipgo.WithUserAgentHostname(config.Hostname),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания User Agent: %w", err)
	}
	b.ua = ua

	client, err := sipgo.NewClient(ua,
		sipgo.WithClientHostname(config.Hostname),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента: %w", err)
	}
	b.client = client

	server, err := sipgo.NewServer(ua)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания сервера: %w", err)
	}
	b.server = server

	b.registerHandlers()
	return b, nil
}

func (b *Bridge) registerHandlers() {
	b.server.OnInvite(b.handleInvite)
	b.server.OnAck(b.handleAck)
	b.server.OnBye(b.handleBye)
	b.server.OnCancel(b.handleCancel)
}

// Listen запускает прослушивание SIP-трафика
func (b *Bridge) Listen(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", b.config.Host, b.config.Port)
	b.logger.Info("запуск SIP-моста", call.String("address", addr))
	return b.server.ListenAndServe(ctx, "udp", addr)
}

// Close завершает работу моста
func (b *Bridge) Close() error {
	return b.ua.Close()
}

// handleInvite обрабатывает входящий INVITE: новый диалог или re-INVITE
func (b *Bridge) handleInvite(req *sip.Request, tx sip.ServerTransaction) {
	callID := req.CallID()
	if callID == nil {
		_ = tx.Respond(sip.NewResponseFromRequest(req, sip.StatusBadRequest, "empty call id", nil))
		return
	}

	videoState, err := VideoStateFromSDP(req.Body())
	if err != nil {
		b.logger.LogError(err, "некорректный SDP во входящем INVITE",
			call.String("sip_call_id", callID.Value()))
	}

	b.mu.Lock()
	existing, known := b.calls[callID.Value()]
	b.mu.Unlock()

	if known {
		// re-INVITE: переговоры об изменении медиа-сессии
		b.handleReinvite(existing, req, tx, videoState)
		return
	}

	c := &SIPCall{
		callID:       callID.Value(),
		remoteURI:    req.From().Address.String(),
		state:        telecom.StateRinging,
		videoState:   videoState,
		capabilities: defaultCapabilities(),
		extras:       telecom.NewExtras(nil),
		account: telecom.PhoneAccountHandle{
			ID:            b.config.AccountID,
			ComponentName: "sipbridge",
		},
		inviteReq:    req,
		inviteTx:     tx,
		remoteTarget: req.From().Address,
	}

	b.mu.Lock()
	b.calls[c.callID] = c
	b.mu.Unlock()

	b.logger.Info("входящий INVITE",
		call.String("sip_call_id", c.callID), call.String("from", c.remoteURI))

	_ = tx.Respond(sip.NewResponseFromRequest(req, sip.StatusRinging, "Ringing", nil))
	b.sink.OnCallAdded(c)
}

// handleReinvite обрабатывает re-INVITE существующего диалога:
// удаленная сторона меняет видео-состояние
func (b *Bridge) handleReinvite(c *SIPCall, req *sip.Request, tx sip.ServerTransaction, videoState telecom.VideoState) {
	b.logger.Debug("re-INVITE",
		call.String("sip_call_id", c.callID),
		call.Int("video_state", int(videoState)))

	body, err := BuildSDP(b.config.Host, b.config.AudioPort, b.config.VideoPort, videoState)
	if err != nil {
		_ = tx.Respond(sip.NewResponseFromRequest(req, sip.StatusInternalServerError, "SDP error", nil))
		return
	}
	res := sip.NewResponseFromRequest(req, sip.StatusOK, "OK", body)
	res.AppendHeader(sip.NewHeader("Content-Type", "application/sdp"))
	if err := tx.Respond(res); err != nil {
		b.logger.LogError(err, "ошибка ответа на re-INVITE", call.String("sip_call_id", c.callID))
		return
	}

	c.setVideoState(videoState)
	b.sink.OnCallUpdated(c)
}

// handleAck завершает установление вызова после нашего 200 OK
func (b *Bridge) handleAck(req *sip.Request, tx sip.ServerTransaction) {
	c := b.findCall(req)
	if c == nil {
		return
	}
	if c.State() == telecom.StateActive {
		b.sink.OnCallUpdated(c)
	}
}

// handleBye обрабатывает завершение вызова удаленной стороной
func (b *Bridge) handleBye(req *sip.Request, tx sip.ServerTransaction) {
	c := b.findCall(req)
	if c == nil {
		_ = tx.Respond(sip.NewResponseFromRequest(req, sip.StatusCallTransactionDoesNotExists, "call does not exist", nil))
		return
	}

	_ = tx.Respond(sip.NewResponseFromRequest(req, sip.StatusOK, "OK", nil))

	b.logger.Info("BYE от удаленной стороны", call.String("sip_call_id", c.callID))
	c.setState(telecom.StateDisconnected, telecom.NewDisconnectCause(telecom.DisconnectCauseRemote))
	b.sink.OnCallUpdated(c)
	b.removeCall(c)
}

// handleCancel обрабатывает отмену входящего до ответа
func (b *Bridge) handleCancel(req *sip.Request, tx sip.ServerTransaction) {
	c := b.findCall(req)
	if c == nil {
		return
	}

	b.logger.Info("CANCEL от удаленной стороны", call.String("sip_call_id", c.callID))
	c.setState(telecom.StateDisconnected, telecom.NewDisconnectCause(telecom.DisconnectCauseMissed))
	b.sink.OnCallUpdated(c)
	b.removeCall(c)
}

func (b *Bridge) findCall(req *sip.Request) *SIPCall {
	callID := req.CallID()
	if callID == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.calls[callID.Value()]
}

func (b *Bridge) findCallByID(callID string) *SIPCall {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.calls[callID]
}

func (b *Bridge) removeCall(c *SIPCall) {
	b.mu.Lock()
	delete(b.calls, c.callID)
	b.mu.Unlock()
	b.sink.OnCallRemoved(c)
}

// Answer отвечает на входящий вызов с заданным видео-состоянием
func (b *Bridge) Answer(callID string, videoState telecom.VideoState) {
	c := b.findCallByID(callID)
	if c == nil || c.inviteTx == nil {
		b.logger.Warn("answer для неизвестного вызова", call.String("sip_call_id", callID))
		return
	}

	body, err := BuildSDP(b.config.Host, b.config.AudioPort, b.config.VideoPort, videoState)
	if err != nil {
		b.logger.LogError(err, "ошибка построения SDP для ответа", call.String("sip_call_id", callID))
		return
	}

	res := sip.NewResponseFromRequest(c.inviteReq, sip.StatusOK, "OK", body)
	res.AppendHeader(sip.NewHeader("Content-Type", "application/sdp"))
	if err := tx2Respond(c.inviteTx, res); err != nil {
		b.logger.LogError(err, "ошибка отправки 200 OK", call.String("sip_call_id", callID))
		return
	}

	c.mu.Lock()
	c.state = telecom.StateActive
	c.videoState = videoState
	c.connectTime = time.Now().UnixMilli()
	c.mu.Unlock()
	b.sink.OnCallUpdated(c)
}

// Reject отклоняет входящий вызов
func (b *Bridge) Reject(callID string, sendMessage bool, message string) {
	c := b.findCallByID(callID)
	if c == nil || c.inviteTx == nil {
		return
	}

	_ = tx2Respond(c.inviteTx, sip.NewResponseFromRequest(c.inviteReq, sip.StatusBusyHere, "Busy Here", nil))

	c.setState(telecom.StateDisconnected, telecom.NewDisconnectCause(telecom.DisconnectCauseRejected))
	b.sink.OnCallUpdated(c)
	b.removeCall(c)
}

// Disconnect завершает вызов локально через BYE
func (b *Bridge) Disconnect(callID string) {
	c := b.findCallByID(callID)
	if c == nil {
		return
	}

	byeReq := sip.NewRequest(sip.BYE, c.remoteTarget)
	byeReq.AppendHeader(sip.NewHeader("Call-ID", c.callID))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	go func() {
		defer cancel()
		if _, err := b.client.TransactionRequest(ctx, byeReq); err != nil {
			b.logger.LogError(err, "ошибка отправки BYE", call.String("sip_call_id", c.callID))
		}
	}()

	c.setState(telecom.StateDisconnected, telecom.NewDisconnectCause(telecom.DisconnectCauseLocal))
	b.sink.OnCallUpdated(c)
	b.removeCall(c)
}

// Hold ставит вызов на удержание через re-INVITE с sendonly
func (b *Bridge) Hold(callID string) {
	c := b.findCallByID(callID)
	if c == nil {
		return
	}
	b.sendReinvite(c, telecom.VideoStateAudioOnly)
	c.setState(telecom.StateHolding, telecom.DisconnectCause{})
	b.sink.OnCallUpdated(c)
}

// Unhold снимает вызов с удержания
func (b *Bridge) Unhold(callID string) {
	c := b.findCallByID(callID)
	if c == nil {
		return
	}
	b.sendReinvite(c, c.VideoState())
	c.setState(telecom.StateActive, telecom.DisconnectCause{})
	b.sink.OnCallUpdated(c)
}

// Swap меняет местами активный и удержанный вызовы
func (b *Bridge) Swap(callID string) {
	held := b.findCallByID(callID)
	if held == nil {
		return
	}

	b.mu.RLock()
	var active *SIPCall
	for _, c := range b.calls {
		if c != held && c.State() == telecom.StateActive {
			active = c
			break
		}
	}
	b.mu.RUnlock()

	if active != nil {
		b.Hold(active.callID)
	}
	b.Unhold(held.callID)
}

// Merge не поддержан: SIP-мост не ведет конференций
func (b *Bridge) Merge(callID string) {
	b.logger.Warn("merge не поддержан SIP-мостом", call.String("sip_call_id", callID))
}

// Mute управляется локальным медиа-движком; SIP-сигнализации не требует
func (b *Bridge) Mute(muted bool) {
	b.logger.Debug("mute", call.Bool("muted", muted))
}

// SendSessionModifyRequest шлет re-INVITE с новым видео-состоянием
func (b *Bridge) SendSessionModifyRequest(req telecom.SessionModifyRequest) {
	c := b.findCallByID(req.CallID)
	if c == nil {
		return
	}
	b.sendReinvite(c, req.VideoState)
}

// SendSessionModifyResponse применяет согласованное видео-состояние
func (b *Bridge) SendSessionModifyResponse(callID string, videoState telecom.VideoState) {
	c := b.findCallByID(callID)
	if c == nil {
		return
	}
	c.setVideoState(videoState)
	b.sink.OnCallUpdated(c)
}

// sendReinvite шлет re-INVITE в существующем диалоге
func (b *Bridge) sendReinvite(c *SIPCall, videoState telecom.VideoState) {
	body, err := BuildSDP(b.config.Host, b.config.AudioPort, b.config.VideoPort, videoState)
	if err != nil {
		b.logger.LogError(err, "ошибка построения SDP для re-INVITE", call.String("sip_call_id", c.callID))
		return
	}

	inviteReq := sip.NewRequest(sip.INVITE, c.remoteTarget)
	inviteReq.AppendHeader(sip.NewHeader("Call-ID", c.callID))
	inviteReq.AppendHeader(sip.NewHeader("Content-Type", "application/sdp"))
	inviteReq.SetBody(body)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	go func() {
		defer cancel()
		if _, err := b.client.TransactionRequest(ctx, inviteReq); err != nil {
			b.logger.LogError(err, "ошибка отправки re-INVITE", call.String("sip_call_id", c.callID))
		}
	}()
}

// tx2Respond отвечает в транзакцию, терпимо к уже завершенной
func tx2Respond(tx sip.ServerTransaction, res *sip.Response) error {
	if tx == nil {
		return fmt.Errorf("транзакция отсутствует")
	}
	return tx.Respond(res)
}

// defaultCapabilities возвращает возможности вызова SIP-моста
func defaultCapabilities() telecom.Capability {
	return telecom.CapabilityHold |
		telecom.CapabilitySupportHold |
		telecom.CapabilityMute |
		telecom.CapabilitySupportsVideoLocalTx |
		telecom.CapabilitySupportsVideoLocalRx |
		telecom.CapabilitySupportsVideoRemoteTx |
		telecom.CapabilitySupportsVideoRemoteRx
}
