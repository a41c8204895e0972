// message.go — канонические подписываемые сообщения endpoint-ов.
//
// Сервер не доверяет содержимому заголовка message: для каждого
// endpoint-а он реконструирует каноническое сообщение из параметров
// запроса и сравнивает его с тем, что подписал клиент. Подпись,
// выданная для одного действия, не может авторизовать другое.
package auth

import (
	"crypto/subtle"
	"fmt"
)

// InitiateMessage — сообщение для POST /upload/initiate.
func InitiateMessage(filename string, totalChunks int) string {
	return fmt.Sprintf("initiate:%s:%d", filename, totalChunks)
}

// ChunkMessage — сообщение для POST /upload/chunk.
func ChunkMessage(uploadID string, chunkNumber, totalChunks int) string {
	return fmt.Sprintf("chunk:%s:%d:%d", uploadID, chunkNumber, totalChunks)
}

// CompleteMessage — сообщение для POST /upload/complete.
func CompleteMessage(uploadID string) string {
	return fmt.Sprintf("complete:%s", uploadID)
}

// WhitelistAddMessage — сообщение для POST /auth/whitelist/add.
// keyID — идентификатор ДОБАВЛЯЕМОГО ключа.
func WhitelistAddMessage(keyID string) string {
	return fmt.Sprintf("whitelist:add:%s", keyID)
}

// WhitelistRemoveMessage — сообщение для POST /auth/whitelist/remove.
func WhitelistRemoveMessage(keyID string) string {
	return fmt.Sprintf("whitelist:remove:%s", keyID)
}

// WhitelistListMessage — сообщение для GET /auth/whitelist/list.
func WhitelistListMessage() string {
	return "whitelist:list"
}

// MessageMatches сравнивает подписанное клиентом сообщение с каноническим
// за константное время.
func MessageMatches(signed []byte, canonical string) bool {
	return subtle.ConstantTimeCompare(signed, []byte(canonical)) == 1
}
