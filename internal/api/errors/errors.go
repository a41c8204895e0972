// Пакет errors — конструкторы стандартных ошибок API видеосервиса.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // конфликт со stdlib, исторически сложилось

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок API.
const (
	CodeValidationError      = "VALIDATION_ERROR"
	CodeKeyNotFound          = "KEY_NOT_FOUND"
	CodeDuplicateKey         = "DUPLICATE_KEY"
	CodeBadEncoding          = "BAD_ENCODING"
	CodeInvalidSignature     = "INVALID_SIGNATURE"
	CodeMessageMismatch      = "MESSAGE_MISMATCH"
	CodeNotAdmin             = "NOT_ADMIN"
	CodeOwnerMismatch        = "OWNER_MISMATCH"
	CodeUploadNotFound       = "UPLOAD_NOT_FOUND"
	CodeUploadIncomplete     = "UPLOAD_INCOMPLETE"
	CodeCompletionInProgress = "COMPLETION_IN_PROGRESS"
	CodeVideoNotFound        = "VIDEO_NOT_FOUND"
	CodeNotFound             = "NOT_FOUND"
	CodeInternalError        = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// DuplicateKey — 400 ключ с таким идентификатором уже зарегистрирован.
func DuplicateKey(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeDuplicateKey, message)
}

// KeyNotFound — 404 ключ не найден в whitelist.
func KeyNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeKeyNotFound, message)
}

// Unauthorized — 401 с указанным кодом (BAD_ENCODING, INVALID_SIGNATURE,
// MESSAGE_MISMATCH, NOT_ADMIN, KEY_NOT_FOUND при аутентификации).
func Unauthorized(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusUnauthorized, code, message)
}

// OwnerMismatch — 403 сессия принадлежит другому ключу.
func OwnerMismatch(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeOwnerMismatch, message)
}

// UploadNotFound — 404 сессия загрузки не найдена.
func UploadNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeUploadNotFound, message)
}

// UploadIncomplete — 400 получены не все chunk-и.
func UploadIncomplete(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeUploadIncomplete, message)
}

// CompletionInProgress — 409 сборка этой сессии уже выполняется.
func CompletionInProgress(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeCompletionInProgress, message)
}

// VideoNotFound — 404 видео не найдено (неизвестный токен или файл отсутствует).
func VideoNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeVideoNotFound, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
