package valueobject

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrorCode машиночитаемый код ошибки валидации
type ErrorCode string

const (
	CodeInvalidEnumValue ErrorCode = "invalid_enum_value"
	CodeTooSmall         ErrorCode = "too_small"
	CodeTooBig           ErrorCode = "too_big"
	CodeInvalidDate      ErrorCode = "invalid_date"
	CodeParseError       ErrorCode = "parse_error"
	CodeInvalidString    ErrorCode = "invalid_string"
)

// Шаблоны для errors.Is: сравниваются только по коду
var (
	ErrUnitNotRecognized = &ValidationError{Code: CodeInvalidEnumValue}
	ErrTooSmall          = &ValidationError{Code: CodeTooSmall}
	ErrTooBig            = &ValidationError{Code: CodeTooBig}
	ErrInvalidDate       = &ValidationError{Code: CodeInvalidDate}
	ErrParse             = &ValidationError{Code: CodeParseError}
	ErrInvalidString     = &ValidationError{Code: CodeInvalidString}
)

// ValidationError структурированная ошибка валидации с путем до поля
type ValidationError struct {
	Code     ErrorCode `json:"code"`
	Path     []string  `json:"path"`
	Message  string    `json:"message"`
	Options  []string  `json:"options,omitempty"`
	Bound    *float64  `json:"bound,omitempty"`
	Received string    `json:"received,omitempty"`
}

// NewValidationError создает ошибку для указанного поля
func NewValidationError(code ErrorCode, field, message string) *ValidationError {
	return &ValidationError{
		Code:    code,
		Path:    fieldPath(field),
		Message: message,
	}
}

// Error реализует интерфейс error
func (e *ValidationError) Error() string {
	if len(e.Path) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.PathString(), e.Message)
}

// Is сравнивает ошибки по коду
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// PathString возвращает путь в виде "0.temperature"
func (e *ValidationError) PathString() string {
	return strings.Join(e.Path, ".")
}

// WithPathPrefix возвращает копию ошибки с путем, вложенным под prefix
func (e *ValidationError) WithPathPrefix(prefix ...string) *ValidationError {
	clone := *e
	clone.Path = make([]string, 0, len(prefix)+len(e.Path))
	clone.Path = append(clone.Path, prefix...)
	clone.Path = append(clone.Path, e.Path...)
	if e.Options != nil {
		clone.Options = append([]string(nil), e.Options...)
	}
	return &clone
}

// ValidationErrors набор ошибок валидации одного или нескольких элементов
type ValidationErrors []*ValidationError

// Error реализует интерфейс error
func (errs ValidationErrors) Error() string {
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Unwrap позволяет errors.Is / errors.As проходить по вложенным ошибкам
func (errs ValidationErrors) Unwrap() []error {
	result := make([]error, len(errs))
	for i, err := range errs {
		result[i] = err
	}
	return result
}

// Append добавляет ошибку; ValidationErrors разворачиваются,
// неструктурированные ошибки становятся parse_error без пути
func (errs ValidationErrors) Append(err error) ValidationErrors {
	if err == nil {
		return errs
	}

	var many ValidationErrors
	if errors.As(err, &many) {
		return append(errs, many...)
	}

	if single, ok := AsValidationError(err); ok {
		return append(errs, single)
	}

	return append(errs, &ValidationError{Code: CodeParseError, Message: err.Error()})
}

// Flatten группирует сообщения по пути поля
func (errs ValidationErrors) Flatten() map[string][]string {
	result := make(map[string][]string, len(errs))
	for _, err := range errs {
		key := err.PathString()
		result[key] = append(result[key], err.Message)
	}
	return result
}

// AsValidationError извлекает *ValidationError из цепочки ошибок
func AsValidationError(err error) (*ValidationError, bool) {
	var target *ValidationError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// ParseNumber разбирает строковое значение измерения.
// Пробелы по краям отбрасываются, NaN и Inf не допускаются.
func ParseNumber(field, raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, newParseError(field, raw)
	}

	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, newParseError(field, raw)
	}

	return value, nil
}

func newParseError(field, raw string) *ValidationError {
	return &ValidationError{
		Code:     CodeParseError,
		Path:     fieldPath(field),
		Message:  fmt.Sprintf("Expected number, received %q", raw),
		Received: raw,
	}
}

func newInvalidEnumError(field, received string, options []string) *ValidationError {
	quoted := make([]string, len(options))
	for i, option := range options {
		quoted[i] = "'" + option + "'"
	}

	return &ValidationError{
		Code:     CodeInvalidEnumValue,
		Path:     fieldPath(field),
		Message:  fmt.Sprintf("Invalid enum value. Expected %s, received '%s'", strings.Join(quoted, " | "), received),
		Options:  append([]string(nil), options...),
		Received: received,
	}
}

func newTooSmallError(field string, bound float64, unitName string) *ValidationError {
	return &ValidationError{
		Code:    CodeTooSmall,
		Path:    fieldPath(field),
		Message: fmt.Sprintf("Number must be greater than or equal to %s (%s)", formatBound(bound), unitName),
		Bound:   &bound,
	}
}

func newTooBigError(field string, bound float64, unitName string) *ValidationError {
	return &ValidationError{
		Code:    CodeTooBig,
		Path:    fieldPath(field),
		Message: fmt.Sprintf("Number must be less than or equal to %s (%s)", formatBound(bound), unitName),
		Bound:   &bound,
	}
}

func formatBound(bound float64) string {
	return strconv.FormatFloat(bound, 'f', -1, 64)
}

func fieldPath(field string) []string {
	if field == "" {
		return []string{}
	}
	return []string{field}
}
