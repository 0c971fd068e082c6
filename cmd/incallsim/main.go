// Команда incallsim запускает ядро in-call приложения с консольным UI.
//
// Режим sip поднимает SIP-мост и обслуживает реальные вызовы; режим demo
// прогоняет скриптованный сценарий на mock-телефонии.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arzzra/incall/pkg/call"
	"github.com/arzzra/incall/pkg/calllist"
	"github.com/arzzra/incall/pkg/incall"
	"github.com/arzzra/incall/pkg/telecom"
	"github.com/arzzra/incall/pkg/telecom/sipbridge"
)

func main() {
	var (
		mode     = flag.String("mode", "demo", "Режим: demo, sip")
		sipAddr  = flag.String("sip", "127.0.0.1:5060", "Адрес SIP-моста (режим sip)")
		logLevel = flag.String("log", "", "Уровень логирования (перекрывает окружение)")
	)
	flag.Parse()

	cfg, err := incall.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := call.NewDefaultLogger()
	logger.SetLevel(parseLogLevel(cfg.LogLevel))
	call.SetDefaultLogger(logger)

	metrics := incall.NewMetricsCollector(&incall.MetricsConfig{
		Enabled:   cfg.MetricsEnabled,
		Namespace: cfg.MetricsNamespace,
		Subsystem: "core",
		Logger:    logger.WithComponent("metrics"),
	})

	if cfg.MetricsEnabled {
		go serveMetrics(cfg.MetricsAddr)
	}

	exec := calllist.NewSerializer()
	defer exec.Stop()

	list := calllist.New(exec, calllist.WithLogger(logger.WithComponent("calllist")))

	switch *mode {
	case "demo":
		runDemo(exec, list, metrics, logger)
	case "sip":
		runSIP(exec, list, metrics, logger, cfg, *sipAddr)
	default:
		fmt.Printf("Неизвестный режим: %s\n", *mode)
		fmt.Println("Доступные режимы: demo, sip")
		os.Exit(1)
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("Метрики на http://%s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("Ошибка сервера метрик: %v", err)
	}
}

// buildPresenter собирает презентер и все реакторы поверх реестра
func buildPresenter(list *calllist.CallList, adapter telecom.TelecomAdapter, metrics *incall.MetricsCollector, videoPause bool) *incall.InCallPresenter {
	ui := newConsoleUI()

	presenter := incall.NewInCallPresenter(list, adapter, ui,
		incall.WithMetrics(metrics),
		incall.WithScreenMonitor(ui),
	)

	buttons := incall.NewCallButtonPresenter(adapter, ui)
	card := incall.NewCallCardPresenter(list, ui, ui)
	statusBar := incall.NewStatusBarNotifier(list, ui)
	proximity := incall.NewProximitySensor(ui)
	videoPauseCtl := incall.NewVideoPauseController(adapter, videoPause)
	lowBattery := incall.NewLowBatteryListener(adapter, ui)

	presenter.AddStateListener(buttons)
	presenter.AddStateListener(card)
	presenter.AddStateListener(statusBar)
	presenter.AddStateListener(proximity)
	presenter.AddStateListener(videoPauseCtl)
	presenter.AddStateListener(lowBattery)
	presenter.AddIncomingCallListener(buttons)
	presenter.AddIncomingCallListener(card)
	presenter.AddIncomingCallListener(videoPauseCtl)
	presenter.AddIncomingCallListener(lowBattery)
	presenter.AddDetailsListener(card)
	presenter.AddDetailsListener(lowBattery)
	presenter.AddCallDisconnectedListener(lowBattery)
	presenter.AddCanAddCallListener(buttons)
	presenter.AddUIVisibilityListener(proximity)
	presenter.AddUIVisibilityListener(videoPauseCtl)
	presenter.AddEventListener(statusBar)

	presenter.SetUp()
	presenter.SetSurface(ui)
	return presenter
}

// runSIP обслуживает реальные SIP-вызовы
func runSIP(exec *calllist.Serializer, list *calllist.CallList, metrics *incall.MetricsCollector, logger call.StructuredLogger, cfg *incall.Config, sipAddr string) {
	bridgeCfg := sipbridge.DefaultConfig()
	if host, port, ok := splitHostPort(sipAddr); ok {
		bridgeCfg.Host = host
		bridgeCfg.Port = port
	}

	sink := &coreSink{exec: exec, list: list}
	bridge, err := sipbridge.New(bridgeCfg, sink, logger.WithComponent("sipbridge"))
	if err != nil {
		log.Fatalf("Ошибка создания SIP-моста: %v", err)
	}
	defer bridge.Close()

	buildPresenter(list, bridge, metrics, cfg.VideoPauseEnabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := bridge.Listen(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("Ошибка SIP-моста: %v", err)
		}
	}()

	log.Printf("SIP-мост слушает %s, ожидание вызовов", sipAddr)
	waitForSignal()
}

// runDemo прогоняет скриптованный сценарий на mock-телефонии
func runDemo(exec *calllist.Serializer, list *calllist.CallList, metrics *incall.MetricsCollector, logger call.StructuredLogger) {
	adapter := telecom.NewMockAdapter()
	presenter := buildPresenter(list, adapter, metrics, true)

	log.Println("=== Сценарий: входящий, ответ, удержание, завершение ===")

	incoming := telecom.NewMockCall(telecom.StateRinging)
	incoming.SetHandle("sip:alice@example.com")

	exec.Post(func() { list.OnCallAdded(incoming) })
	time.Sleep(300 * time.Millisecond)

	exec.Post(func() { presenter.AnswerIncomingCall(telecom.VideoStateAudioOnly) })
	exec.Post(func() {
		incoming.SetState(telecom.StateActive)
		incoming.SetConnectTime(time.Now().UnixMilli())
		if c := list.GetCallByTelecomCall(incoming); c != nil {
			c.Update()
		}
	})
	time.Sleep(300 * time.Millisecond)

	exec.Post(func() {
		incoming.SetState(telecom.StateHolding)
		if c := list.GetCallByTelecomCall(incoming); c != nil {
			c.Update()
		}
	})
	time.Sleep(300 * time.Millisecond)

	exec.Post(func() {
		incoming.SetState(telecom.StateDisconnected)
		incoming.SetDisconnectCause(telecom.NewDisconnectCause(telecom.DisconnectCauseRemote))
		if c := list.GetCallByTelecomCall(incoming); c != nil {
			c.Update()
		}
	})
	time.Sleep(300 * time.Millisecond)

	exec.Post(func() { list.OnCallRemoved(incoming) })

	// Отложенная очистка завершенного вызова: Remote — 2 секунды
	time.Sleep(2500 * time.Millisecond)

	done := make(chan struct{})
	exec.Post(func() {
		log.Printf("Вызовов в реестре: %d, состояние: %s", list.Len(), presenter.InCallState())
		close(done)
	})
	<-done

	log.Println("Команды адаптера:")
	for _, cmd := range adapter.Recorded() {
		log.Printf("  %s call=%s", cmd.Op, cmd.CallID)
	}
}

// coreSink переносит события SIP-моста в сериализованный контекст ядра
type coreSink struct {
	exec *calllist.Serializer
	list *calllist.CallList
}

func (s *coreSink) OnCallAdded(tc telecom.TelecomCall) {
	s.exec.Post(func() { s.list.OnCallAdded(tc) })
}

func (s *coreSink) OnCallUpdated(tc telecom.TelecomCall) {
	s.exec.Post(func() {
		if c := s.list.GetCallByTelecomCall(tc); c != nil {
			c.Update()
			return
		}
		s.list.OnCallAdded(tc)
	})
}

func (s *coreSink) OnCallRemoved(tc telecom.TelecomCall) {
	s.exec.Post(func() { s.list.OnCallRemoved(tc) })
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Завершение")
}

func parseLogLevel(level string) call.LogLevel {
	switch level {
	case "trace":
		return call.LogLevelTrace
	case "debug":
		return call.LogLevelDebug
	case "warn":
		return call.LogLevelWarn
	case "error":
		return call.LogLevelError
	default:
		return call.LogLevelInfo
	}
}

func splitHostPort(addr string) (string, int, bool) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, false
	}
	return host, port, true
}
