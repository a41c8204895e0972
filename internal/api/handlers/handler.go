// Пакет handlers — HTTP-обработчики API видеосервиса.
// handler.go — общие помощники: JSON-ответы и проверка канонического
// сообщения подписи.
package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/bigkaa/vidstore/internal/api/errors"
	"github.com/bigkaa/vidstore/internal/api/middleware"
	"github.com/bigkaa/vidstore/internal/auth"
)

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// verifyMessage сравнивает подписанное клиентом сообщение из контекста
// с каноническим сообщением, реконструированным из параметров запроса.
// При несовпадении пишет 401 MESSAGE_MISMATCH и возвращает false:
// подпись, выданная для одного действия, не авторизует другое.
func verifyMessage(w http.ResponseWriter, r *http.Request, canonical string) bool {
	signed := middleware.MessageFromContext(r.Context())
	if !auth.MessageMatches(signed, canonical) {
		apierrors.Unauthorized(w, apierrors.CodeMessageMismatch,
			"Подписанное сообщение не соответствует параметрам запроса")
		return false
	}
	return true
}

// decodeJSONBody разбирает JSON-тело запроса в dst.
// При ошибке пишет 400 VALIDATION_ERROR и возвращает false.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректное JSON-тело запроса: "+err.Error())
		return false
	}
	return true
}
