// Пакет auth — проверка Ed25519-подписей запросов.
//
// Клиент подписывает сообщение своим приватным ключом и передаёт
// в заголовках: key-id (идентификатор ключа), signature (base64),
// message (base64). Сервер находит публичный ключ по key-id и
// проверяет подпись. Ошибки кодирования (некорректный base64, PEM)
// отличаются от ошибок верификации: первые — BAD_ENCODING,
// вторые — INVALID_SIGNATURE.
package auth

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
)

// Ошибки проверки подписи.
var (
	// ErrBadEncoding — некорректное base64- или PEM-кодирование входных данных.
	ErrBadEncoding = errors.New("некорректное кодирование")
	// ErrInvalidSignature — подпись не прошла криптографическую проверку.
	ErrInvalidSignature = errors.New("подпись недействительна")
)

// ParsePublicKeyPEM разбирает Ed25519 публичный ключ из PEM
// (SubjectPublicKeyInfo). Возвращает ErrBadEncoding для некорректного
// PEM и для ключей других алгоритмов.
func ParsePublicKeyPEM(pemData string) (ed25519.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("%w: PEM-блок не найден", ErrBadEncoding)
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: разбор PKIX: %v", ErrBadEncoding, err)
	}

	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: ожидался ключ Ed25519, получен %T", ErrBadEncoding, parsed)
	}
	return pub, nil
}

// DecodeBase64 декодирует base64-значение заголовка.
// Возвращает ErrBadEncoding при некорректном кодировании.
func DecodeBase64(value string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrBadEncoding, err)
	}
	return data, nil
}

// Verify проверяет отсоединённую подпись signature над message
// публичным ключом pub. Проверка детерминирована и не изменяет
// состояние; некорректная по длине подпись — просто недействительна.
func Verify(pub ed25519.PublicKey, message, signature []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: некорректная длина публичного ключа", ErrBadEncoding)
	}
	if !ed25519.Verify(pub, message, signature) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyEncoded — полный цикл проверки значений заголовков:
// декодирует base64 подписи и сообщения, разбирает PEM ключа,
// проверяет подпись. Возвращает декодированное сообщение.
func VerifyEncoded(publicKeyPEM, signatureB64, messageB64 string) ([]byte, error) {
	signature, err := DecodeBase64(signatureB64)
	if err != nil {
		return nil, fmt.Errorf("заголовок signature: %w", err)
	}

	message, err := DecodeBase64(messageB64)
	if err != nil {
		return nil, fmt.Errorf("заголовок message: %w", err)
	}

	pub, err := ParsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("публичный ключ: %w", err)
	}

	if err := Verify(pub, message, signature); err != nil {
		return nil, err
	}
	return message, nil
}
