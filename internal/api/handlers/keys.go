// keys.go — обработчики управления whitelist публичных ключей.
// Все операции требуют подписи административным ключом.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/vidstore/internal/api/middleware"
	"github.com/bigkaa/vidstore/internal/auth"
	"github.com/bigkaa/vidstore/internal/service"
)

// WhitelistHandler — обработчики /auth/whitelist/*.
type WhitelistHandler struct {
	keys   *service.KeyService
	logger *slog.Logger
}

// NewWhitelistHandler создаёт обработчик whitelist.
func NewWhitelistHandler(keys *service.KeyService, logger *slog.Logger) *WhitelistHandler {
	return &WhitelistHandler{
		keys:   keys,
		logger: logger.With(slog.String("component", "whitelist_handler")),
	}
}

// addKeyRequest — тело запроса регистрации ключа.
type addKeyRequest struct {
	KeyID        string `json:"key_id"`
	PublicKeyPEM string `json:"public_key_pem"`
	IsAdmin      bool   `json:"is_admin"`
	Domain       string `json:"domain,omitempty"`
}

// removeKeyRequest — тело запроса удаления ключа.
type removeKeyRequest struct {
	KeyID string `json:"key_id"`
}

// keyMetadata — метаданные ключа в ответе списка (без материала ключа).
type keyMetadata struct {
	IsAdmin   bool      `json:"is_admin"`
	CreatedBy *string   `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	Domain    string    `json:"domain,omitempty"`
}

// Add обрабатывает POST /auth/whitelist/add.
func (h *WhitelistHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addKeyRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if !verifyMessage(w, r, auth.WhitelistAddMessage(req.KeyID)) {
		return
	}

	_, svcErr := h.keys.Add(r.Context(), service.AddKeyParams{
		KeyID:        req.KeyID,
		PublicKeyPEM: req.PublicKeyPEM,
		IsAdmin:      req.IsAdmin,
		Domain:       req.Domain,
		CreatedBy:    middleware.KeyIDFromContext(r.Context()),
	})
	if svcErr != nil {
		svcErr.Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "added",
		"key_id": req.KeyID,
	})
}

// Remove обрабатывает POST /auth/whitelist/remove.
func (h *WhitelistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	var req removeKeyRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if !verifyMessage(w, r, auth.WhitelistRemoveMessage(req.KeyID)) {
		return
	}

	if svcErr := h.keys.Remove(r.Context(), req.KeyID); svcErr != nil {
		svcErr.Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "removed",
		"key_id": req.KeyID,
	})
}

// List обрабатывает GET /auth/whitelist/list.
// Возвращает map key_id → метаданные. Материал ключей не раскрывается.
func (h *WhitelistHandler) List(w http.ResponseWriter, r *http.Request) {
	if !verifyMessage(w, r, auth.WhitelistListMessage()) {
		return
	}

	keys, svcErr := h.keys.List(r.Context())
	if svcErr != nil {
		svcErr.Write(w)
		return
	}

	out := make(map[string]keyMetadata, len(keys))
	for _, k := range keys {
		out[k.KeyID] = keyMetadata{
			IsAdmin:   k.IsAdmin,
			CreatedBy: k.CreatedBy,
			CreatedAt: k.CreatedAt,
			Domain:    k.Domain,
		}
	}

	writeJSON(w, http.StatusOK, out)
}
