package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dreschagin/water-quality-dashboard/internal/application/dto"
	"github.com/dreschagin/water-quality-dashboard/internal/application/usecase"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/repository"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/water-quality-dashboard/internal/interfaces/http/middleware"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

const codeValidationError = "validation_error"

// requestValidator общий экземпляр: validator кеширует разобранные теги структур
var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Пути ошибок строятся по json-именам полей
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON читает тело запроса и проверяет его тегами validate
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dest any) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &requestError{status: http.StatusRequestEntityTooLarge, code: "body_too_large",
				message: fmt.Sprintf("Request body must be at most %d bytes", maxErr.Limit)}
		}
		if errors.Is(err, io.EOF) {
			return &requestError{status: http.StatusBadRequest, code: "invalid_body", message: "Request body is empty"}
		}
		return &requestError{status: http.StatusBadRequest, code: "invalid_body", message: "Invalid request body: " + err.Error()}
	}

	return requestValidator.Struct(dest)
}

type requestError struct {
	status  int
	code    string
	message string
}

func (e *requestError) Error() string {
	return e.message
}

// writeError переводит ошибку слоя приложения в HTTP ответ
func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		middleware.WriteJSON(w, reqErr.status, dto.ErrorResponseDTO{Error: reqErr.message, Code: reqErr.code})
		return
	}

	var many valueobject.ValidationErrors
	if errors.As(err, &many) && len(many) > 0 {
		middleware.WriteJSON(w, http.StatusBadRequest, dto.ErrorResponseDTO{
			Error:  "Validation failed",
			Code:   string(many[0].Code),
			Fields: many.Flatten(),
		})
		return
	}

	if single, ok := valueobject.AsValidationError(err); ok {
		middleware.WriteJSON(w, http.StatusBadRequest, dto.ErrorResponseDTO{
			Error:  single.Message,
			Code:   string(single.Code),
			Fields: valueobject.ValidationErrors{single}.Flatten(),
		})
		return
	}

	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		middleware.WriteJSON(w, http.StatusBadRequest, dto.ErrorResponseDTO{
			Error:  "Validation failed",
			Code:   codeValidationError,
			Fields: requestFieldErrors(invalid),
		})
		return
	}

	switch {
	case errors.Is(err, usecase.ErrBatchTooLarge):
		middleware.WriteJSON(w, http.StatusRequestEntityTooLarge, dto.ErrorResponseDTO{Error: err.Error(), Code: "batch_too_large"})
	case errors.Is(err, usecase.ErrEmptyBatch):
		middleware.WriteJSON(w, http.StatusBadRequest, dto.ErrorResponseDTO{Error: err.Error(), Code: "empty_batch"})
	case errors.Is(err, usecase.ErrCursorRequiresIndex):
		middleware.WriteJSON(w, http.StatusBadRequest, dto.ErrorResponseDTO{Error: err.Error(), Code: "cursor_unsupported"})
	case errors.Is(err, usecase.ErrStorageNotConfigured):
		middleware.WriteJSON(w, http.StatusServiceUnavailable, dto.ErrorResponseDTO{Error: err.Error(), Code: "storage_disabled"})
	case errors.Is(err, repository.ErrReadingNotFound):
		middleware.WriteJSON(w, http.StatusNotFound, dto.ErrorResponseDTO{Error: err.Error(), Code: "not_found"})
	default:
		log.Error("Request failed", err)
		middleware.WriteJSON(w, http.StatusInternalServerError, dto.ErrorResponseDTO{Error: "Internal server error", Code: "internal"})
	}
}

// requestFieldErrors группирует ошибки validator по пути поля ("readings.0.temperature_unit")
func requestFieldErrors(errs validator.ValidationErrors) map[string][]string {
	fields := make(map[string][]string, len(errs))
	for _, fe := range errs {
		path := fe.Namespace()
		if _, rest, found := strings.Cut(path, "."); found {
			path = rest
		}
		path = strings.NewReplacer("[", ".", "]", "").Replace(path)
		fields[path] = append(fields[path], describeFieldError(fe))
	}
	return fields
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "min":
		return fmt.Sprintf("Must contain at least %s item(s)", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s", fe.Param())
	case "gtfield":
		return fmt.Sprintf("Must be after %s", strings.ToLower(fe.Param()))
	default:
		return fmt.Sprintf("Failed %s validation", fe.Tag())
	}
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	middleware.WriteJSON(w, http.StatusMethodNotAllowed, dto.ErrorResponseDTO{Error: "Method not allowed", Code: "method_not_allowed"})
	return false
}

// queryInt разбирает необязательный целочисленный параметр
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, valueobject.NewValidationError(valueobject.CodeParseError, name,
			fmt.Sprintf("Expected non-negative integer, received %q", raw))
	}
	return value, nil
}

// queryTime разбирает необязательный параметр в формате RFC 3339
func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, valueobject.NewValidationError(valueobject.CodeInvalidDate, name, "Invalid datetime")
	}
	return value.UTC(), nil
}
