package call

import (
	"fmt"
	"time"
)

// ErrorCategory категории ошибок ядра для классификации
type ErrorCategory string

const (
	// Повреждение данных нижнего слоя (extras и т.п.)
	ErrorCategoryCorruptData ErrorCategory = "CORRUPT_DATA"
	// Гонка с устаревшей ссылкой (callback на уже удаленный вызов)
	ErrorCategoryStaleReference ErrorCategory = "STALE_REFERENCE"
	// Недопустимый запрос перехода состояния
	ErrorCategoryState ErrorCategory = "STATE"
	// Таймаут внешнего запроса
	ErrorCategoryTimeout ErrorCategory = "TIMEOUT"
	// Теоретически недостижимая ветка
	ErrorCategoryUnreachable ErrorCategory = "UNREACHABLE"
)

// ErrorSeverity уровни критичности ошибок
type ErrorSeverity string

const (
	ErrorSeverityError   ErrorSeverity = "ERROR"
	ErrorSeverityWarning ErrorSeverity = "WARNING"
	ErrorSeverityInfo    ErrorSeverity = "INFO"
)

// CallError структурированная ошибка ядра с контекстом вызова.
//
// Ни одна ошибка этой категории не распространяется за границы компонента:
// политика ядра — log-and-continue либо log-and-default. CallError нужна,
// чтобы лог нес код, категорию и контекст, а не только текст.
type CallError struct {
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`

	CallID    string    `json:"call_id,omitempty"`
	State     State     `json:"state,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Fields map[string]interface{} `json:"fields,omitempty"`
	Cause  error                  `json:"cause,omitempty"`
}

// Error реализует интерфейс error
func (e *CallError) Error() string {
	if e.CallID != "" {
		return fmt.Sprintf("[%s:%s] %s (call: %s)", e.Category, e.Code, e.Message, e.CallID)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap позволяет использовать errors.Is и errors.As
func (e *CallError) Unwrap() error {
	return e.Cause
}

// WithCall добавляет контекст вызова к ошибке
func (e *CallError) WithCall(c *Call) *CallError {
	if c != nil {
		e.CallID = c.ID()
		e.State = c.State()
	}
	return e
}

// WithField добавляет дополнительное поле к ошибке
func (e *CallError) WithField(key string, value interface{}) *CallError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// WithCause добавляет исходную ошибку
func (e *CallError) WithCause(cause error) *CallError {
	e.Cause = cause
	return e
}

// NewCallError создает новую структурированную ошибку
func NewCallError(code, message string, category ErrorCategory, severity ErrorSeverity) *CallError {
	return &CallError{
		Code:      code,
		Message:   message,
		Category:  category,
		Severity:  severity,
		Timestamp: time.Now(),
	}
}

// ErrCorruptExtras ошибка чтения поврежденного контейнера extras
func ErrCorruptExtras(cause error) *CallError {
	return NewCallError("EXTRAS_CORRUPTED", "контейнер extras поврежден, цикл обновления пропущен",
		ErrorCategoryCorruptData, ErrorSeverityWarning).WithCause(cause)
}

// ErrStaleCall ошибка обращения к вызову, которого уже нет в реестре
func ErrStaleCall(callID string) *CallError {
	err := NewCallError("STALE_CALL", "вызов отсутствует в реестре",
		ErrorCategoryStaleReference, ErrorSeverityInfo)
	err.CallID = callID
	return err
}

// ErrInvalidModificationTarget ошибка недопустимого целевого состояния
// для generic сеттера session modification
func ErrInvalidModificationTarget(target SessionModificationState) *CallError {
	return NewCallError("INVALID_MODIFICATION_TARGET",
		"состояние устанавливается только через выделенную точку входа",
		ErrorCategoryState, ErrorSeverityWarning).
		WithField("target", target.String())
}
