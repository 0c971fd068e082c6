package call

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogLevel уровни логирования
type LogLevel int

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var logLevelNames = map[LogLevel]string{
	LogLevelTrace: "TRACE",
	LogLevelDebug: "DEBUG",
	LogLevelInfo:  "INFO",
	LogLevelWarn:  "WARN",
	LogLevelError: "ERROR",
}

func (l LogLevel) String() string {
	if name, ok := logLevelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// LogEntry структура записи лога
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Component string    `json:"component"`

	// Контекст вызова
	CallID string `json:"call_id,omitempty"`
	State  string `json:"state,omitempty"`

	// Техническая информация
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`

	// Произвольные поля
	Fields map[string]interface{} `json:"fields,omitempty"`

	// Ошибка (если есть)
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorCat  string `json:"error_category,omitempty"`
}

// StructuredLogger интерфейс структурированного логирования ядра
type StructuredLogger interface {
	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// LogError логирует ошибку с контекстом из CallError, если она им является
	LogError(err error, msg string, fields ...Field)

	// Контекстные логгеры
	WithComponent(component string) StructuredLogger
	WithCall(c *Call) StructuredLogger
	WithFields(fields ...Field) StructuredLogger

	SetLevel(level LogLevel)
	IsEnabled(level LogLevel) bool
}

// Field представляет поле лога
type Field struct {
	Key   string
	Value interface{}
}

// Helpers для создания полей
func String(key, value string) Field                 { return Field{key, value} }
func Int(key string, value int) Field                { return Field{key, value} }
func Bool(key string, value bool) Field              { return Field{key, value} }
func Duration(key string, value time.Duration) Field { return Field{key, value} }
func Any(key string, value interface{}) Field        { return Field{key, value} }
func Err(err error) Field                            { return Field{"error", err} }

// DefaultLogger реализация StructuredLogger с JSON выводом построчно
type DefaultLogger struct {
	mu        sync.RWMutex
	level     LogLevel
	output    io.Writer
	component string
	fields    map[string]interface{}

	includeCaller bool
	jsonOutput    bool
}

// NewDefaultLogger создает logger с настройками по умолчанию
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{
		level:         LogLevelInfo,
		output:        os.Stdout,
		fields:        make(map[string]interface{}),
		includeCaller: true,
		jsonOutput:    true,
	}
}

// SetLevel устанавливает минимальный уровень логирования
func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// IsEnabled проверяет, включен ли уровень логирования
func (l *DefaultLogger) IsEnabled(level LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

func (l *DefaultLogger) clone(component string, fields map[string]interface{}) *DefaultLogger {
	return &DefaultLogger{
		level:         l.level,
		output:        l.output,
		component:     component,
		fields:        fields,
		includeCaller: l.includeCaller,
		jsonOutput:    l.jsonOutput,
	}
}

// WithComponent создает logger с указанным компонентом
func (l *DefaultLogger) WithComponent(component string) StructuredLogger {
	return l.clone(component, copyFields(l.fields))
}

// WithCall создает logger с контекстом вызова
func (l *DefaultLogger) WithCall(c *Call) StructuredLogger {
	if c == nil {
		return l
	}

	fields := copyFields(l.fields)
	fields["call_id"] = c.ID()
	fields["state"] = c.State().String()

	return l.clone(l.component, fields)
}

// WithFields создает logger с дополнительными полями
func (l *DefaultLogger) WithFields(fields ...Field) StructuredLogger {
	newFields := copyFields(l.fields)
	for _, field := range fields {
		newFields[field.Key] = field.Value
	}
	return l.clone(l.component, newFields)
}

func (l *DefaultLogger) Trace(msg string, fields ...Field) { l.log(LogLevelTrace, msg, nil, fields...) }
func (l *DefaultLogger) Debug(msg string, fields ...Field) { l.log(LogLevelDebug, msg, nil, fields...) }
func (l *DefaultLogger) Info(msg string, fields ...Field)  { l.log(LogLevelInfo, msg, nil, fields...) }
func (l *DefaultLogger) Warn(msg string, fields ...Field)  { l.log(LogLevelWarn, msg, nil, fields...) }
func (l *DefaultLogger) Error(msg string, fields ...Field) { l.log(LogLevelError, msg, nil, fields...) }

// LogError логирует ошибку; для CallError добавляет код и категорию
func (l *DefaultLogger) LogError(err error, msg string, fields ...Field) {
	if err == nil {
		l.Error(msg, fields...)
		return
	}

	errorFields := append(fields, Err(err))
	if ce, ok := err.(*CallError); ok {
		errorFields = append(errorFields,
			String("error_code", ce.Code),
			String("error_category", string(ce.Category)),
			String("error_severity", string(ce.Severity)),
		)
	}

	l.log(LogLevelError, msg, err, errorFields...)
}

// log основной метод логирования
func (l *DefaultLogger) log(level LogLevel, msg string, err error, fields ...Field) {
	if !l.IsEnabled(level) {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Message:   msg,
		Component: l.component,
		Fields:    make(map[string]interface{}, len(l.fields)+len(fields)),
	}

	for k, v := range l.fields {
		entry.Fields[k] = v
	}
	for _, field := range fields {
		entry.Fields[field.Key] = field.Value
	}

	if id, ok := entry.Fields["call_id"].(string); ok {
		entry.CallID = id
		delete(entry.Fields, "call_id")
	}
	if st, ok := entry.Fields["state"].(string); ok {
		entry.State = st
		delete(entry.Fields, "state")
	}

	if l.includeCaller {
		if _, file, line, ok := runtime.Caller(2); ok {
			entry.File = shortenFilePath(file)
			entry.Line = line
		}
	}

	if err != nil {
		entry.Error = err.Error()
		if ce, ok := err.(*CallError); ok {
			entry.ErrorCode = ce.Code
			entry.ErrorCat = string(ce.Category)
		}
	}

	l.writeEntry(&entry)
}

// writeEntry выводит запись лога
func (l *DefaultLogger) writeEntry(entry *LogEntry) {
	l.mu.RLock()
	output := l.output
	jsonOutput := l.jsonOutput
	l.mu.RUnlock()

	var line string
	if jsonOutput {
		if data, err := json.Marshal(entry); err == nil {
			line = string(data) + "\n"
		} else {
			line = l.formatSimple(entry)
		}
	} else {
		line = l.formatSimple(entry)
	}

	output.Write([]byte(line))
}

// formatSimple форматирует запись в простом читаемом формате
func (l *DefaultLogger) formatSimple(entry *LogEntry) string {
	var parts []string

	parts = append(parts, entry.Timestamp.Format("2006-01-02 15:04:05.000"))
	parts = append(parts, fmt.Sprintf("[%-5s]", entry.Level))
	if entry.Component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", entry.Component))
	}
	if entry.CallID != "" {
		parts = append(parts, fmt.Sprintf("call:%s", entry.CallID))
	}
	parts = append(parts, entry.Message)
	if entry.Error != "" {
		parts = append(parts, fmt.Sprintf("error=%s", entry.Error))
	}
	if entry.File != "" {
		parts = append(parts, fmt.Sprintf("(%s:%d)", entry.File, entry.Line))
	}

	return strings.Join(parts, " ") + "\n"
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	copied := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return copied
}

func shortenFilePath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) > 2 {
		return strings.Join(parts[len(parts)-2:], "/")
	}
	return path
}

// NoOpLogger логгер-заглушка для тестов
type NoOpLogger struct{}

func (NoOpLogger) Trace(msg string, fields ...Field)              {}
func (NoOpLogger) Debug(msg string, fields ...Field)              {}
func (NoOpLogger) Info(msg string, fields ...Field)               {}
func (NoOpLogger) Warn(msg string, fields ...Field)               {}
func (NoOpLogger) Error(msg string, fields ...Field)              {}
func (NoOpLogger) LogError(err error, msg string, fields ...Field) {}
func (NoOpLogger) WithComponent(component string) StructuredLogger { return NoOpLogger{} }
func (NoOpLogger) WithCall(c *Call) StructuredLogger               { return NoOpLogger{} }
func (NoOpLogger) WithFields(fields ...Field) StructuredLogger     { return NoOpLogger{} }
func (NoOpLogger) SetLevel(level LogLevel)                         {}
func (NoOpLogger) IsEnabled(level LogLevel) bool                   { return false }

// Глобальный logger (можно заменить на DI)
var defaultLogger StructuredLogger = NewDefaultLogger()

// SetDefaultLogger устанавливает глобальный logger
func SetDefaultLogger(logger StructuredLogger) {
	defaultLogger = logger
}

// GetDefaultLogger возвращает глобальный logger
func GetDefaultLogger() StructuredLogger {
	return defaultLogger
}
