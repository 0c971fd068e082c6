package telecom

import (
	"errors"
	"fmt"
)

// Ключи известных полей контейнера Extras
const (
	ExtraChildAddress        = "child_address"
	ExtraLastForwardedNumber = "last_forwarded_number"
	ExtraCallSubject         = "call_subject"
	ExtraLowBattery          = "low_battery"
)

// ErrExtrasCorrupted возвращается при любом доступе к поврежденному контейнеру.
//
// Нижний телефонный слой может отдать контейнер в неконсистентном состоянии
// (известный дефект платформы). Ядро обязано перехватить эту ошибку и
// пропустить цикл обновления extras целиком, не падая и не угадывая данные.
var ErrExtrasCorrupted = errors.New("telecom: extras container is corrupted")

// Extras контейнер дополнительных полей вызова с fallible доступом.
//
// Любой метод чтения сначала валидирует контейнер и возвращает
// ErrExtrasCorrupted, если данные повреждены.
type Extras struct {
	values    map[string]interface{}
	corrupted bool
}

// NewExtras создает контейнер из набора значений
func NewExtras(values map[string]interface{}) Extras {
	return Extras{values: values}
}

// NewCorruptedExtras создает заведомо поврежденный контейнер (для тестов
// и для транспортов, обнаруживших порчу данных при десериализации).
func NewCorruptedExtras() Extras {
	return Extras{corrupted: true}
}

// IsZero возвращает true для пустого контейнера
func (e Extras) IsZero() bool {
	return !e.corrupted && e.values == nil
}

// Validate проверяет целостность контейнера
func (e Extras) Validate() error {
	if e.corrupted {
		return ErrExtrasCorrupted
	}
	return nil
}

// Contains проверяет наличие ключа
func (e Extras) Contains(key string) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	_, ok := e.values[key]
	return ok, nil
}

// GetString возвращает строковое значение по ключу.
// Отсутствующий ключ не является ошибкой: возвращается ("", false, nil).
func (e Extras) GetString(key string) (string, bool, error) {
	if err := e.Validate(); err != nil {
		return "", false, err
	}
	raw, ok := e.values[key]
	if !ok {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", false, fmt.Errorf("telecom: extras key %q holds %T, not string: %w", key, raw, ErrExtrasCorrupted)
	}
	return s, true, nil
}

// GetStringSlice возвращает список строк по ключу
func (e Extras) GetStringSlice(key string) ([]string, bool, error) {
	if err := e.Validate(); err != nil {
		return nil, false, err
	}
	raw, ok := e.values[key]
	if !ok {
		return nil, false, nil
	}
	list, ok := raw.([]string)
	if !ok {
		return nil, false, fmt.Errorf("telecom: extras key %q holds %T, not []string: %w", key, raw, ErrExtrasCorrupted)
	}
	return list, true, nil
}

// GetBool возвращает булево значение по ключу
func (e Extras) GetBool(key string) (bool, bool, error) {
	if err := e.Validate(); err != nil {
		return false, false, err
	}
	raw, ok := e.values[key]
	if !ok {
		return false, false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, false, fmt.Errorf("telecom: extras key %q holds %T, not bool: %w", key, raw, ErrExtrasCorrupted)
	}
	return b, true, nil
}
