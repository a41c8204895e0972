// Пакет service — бизнес-логика видеосервиса: whitelist ключей,
// chunk-загрузки, выдача видео, фоновая очистка.
package service

import (
	"fmt"
	"net/http"

	apierrors "github.com/bigkaa/vidstore/internal/api/errors"
)

// Error — ошибка бизнес-логики с HTTP-кодом.
// Handlers транслируют её в ответ через apierrors.WriteError.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Write записывает ошибку в HTTP-ответ в стандартном формате.
func (e *Error) Write(w http.ResponseWriter) {
	apierrors.WriteError(w, e.StatusCode, e.Code, e.Message)
}

// internalError — 500 с фиксированным кодом INTERNAL_ERROR.
func internalError(message string) *Error {
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Code:       apierrors.CodeInternalError,
		Message:    message,
	}
}

// validationError — 400 некорректные входные данные.
func validationError(message string) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Code:       apierrors.CodeValidationError,
		Message:    message,
	}
}
