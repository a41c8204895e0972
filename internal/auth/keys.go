// keys.go — генерация и сериализация Ed25519-ключей.
//
// Используется клиентом загрузки и утилитами: сервер ключи не создаёт,
// только проверяет подписи по публичной части.
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
)

// GenerateKeyPair создаёт новую пару ключей Ed25519.
func GenerateKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("генерация ключа Ed25519: %w", err)
	}
	return pub, priv, nil
}

// MarshalPublicKeyPEM сериализует публичный ключ в PEM (SubjectPublicKeyInfo).
func MarshalPublicKeyPEM(pub ed25519.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("сериализация публичного ключа: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// MarshalPrivateKeyPEM сериализует приватный ключ в PEM (PKCS#8).
func MarshalPrivateKeyPEM(priv ed25519.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("сериализация приватного ключа: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})), nil
}

// ParsePrivateKeyPEM разбирает Ed25519 приватный ключ из PEM (PKCS#8).
func ParsePrivateKeyPEM(pemData string) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("%w: PEM-блок не найден", ErrBadEncoding)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: разбор PKCS#8: %v", ErrBadEncoding, err)
	}

	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: ожидался ключ Ed25519, получен %T", ErrBadEncoding, parsed)
	}
	return priv, nil
}

// SignEncoded подписывает сообщение и возвращает base64-значения
// для заголовков signature и message.
func SignEncoded(priv ed25519.PrivateKey, message string) (signatureB64, messageB64 string) {
	sig := ed25519.Sign(priv, []byte(message))
	return base64.StdEncoding.EncodeToString(sig),
		base64.StdEncoding.EncodeToString([]byte(message))
}
