package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"testing"
)

// genKeyPEM генерирует пару Ed25519 и возвращает приватный ключ
// и публичный ключ в PEM-формате.
func genKeyPEM(t *testing.T) (ed25519.PrivateKey, string) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ошибка генерации ключа: %v", err)
	}

	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("ошибка сериализации ключа: %v", err)
	}

	pemData := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return priv, string(pemData)
}

// TestVerifyEncoded_Valid проверяет успешную верификацию корректной подписи.
func TestVerifyEncoded_Valid(t *testing.T) {
	priv, pubPEM := genKeyPEM(t)

	message := []byte("complete:0b7ab015-9f34-4c8e-8f19-111111111111")
	signature := ed25519.Sign(priv, message)

	decoded, err := VerifyEncoded(pubPEM,
		base64.StdEncoding.EncodeToString(signature),
		base64.StdEncoding.EncodeToString(message),
	)
	if err != nil {
		t.Fatalf("подпись должна быть действительна: %v", err)
	}
	if string(decoded) != string(message) {
		t.Errorf("декодированное сообщение не совпадает: %q", decoded)
	}
}

// TestVerifyEncoded_FlippedSignatureBit проверяет, что искажение любого
// бита подписи приводит к ErrInvalidSignature.
func TestVerifyEncoded_FlippedSignatureBit(t *testing.T) {
	priv, pubPEM := genKeyPEM(t)

	message := []byte("chunk:abc:1:3")
	signature := ed25519.Sign(priv, message)

	for i := 0; i < len(signature); i++ {
		corrupted := append([]byte(nil), signature...)
		corrupted[i] ^= 0x01

		_, err := VerifyEncoded(pubPEM,
			base64.StdEncoding.EncodeToString(corrupted),
			base64.StdEncoding.EncodeToString(message),
		)
		if !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("байт %d: ожидалась ErrInvalidSignature, получено %v", i, err)
		}
	}
}

// TestVerifyEncoded_ModifiedMessage проверяет, что изменение сообщения
// делает подпись недействительной.
func TestVerifyEncoded_ModifiedMessage(t *testing.T) {
	priv, pubPEM := genKeyPEM(t)

	message := []byte("initiate:movie.mp4:3")
	signature := ed25519.Sign(priv, message)

	tampered := append([]byte(nil), message...)
	tampered[0] ^= 0xFF

	_, err := VerifyEncoded(pubPEM,
		base64.StdEncoding.EncodeToString(signature),
		base64.StdEncoding.EncodeToString(tampered),
	)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("ожидалась ErrInvalidSignature, получено %v", err)
	}
}

// TestVerifyEncoded_BadBase64 проверяет, что некорректный base64
// отличим от недействительной подписи.
func TestVerifyEncoded_BadBase64(t *testing.T) {
	_, pubPEM := genKeyPEM(t)

	cases := []struct {
		name      string
		signature string
		message   string
	}{
		{"подпись не base64", "%%%не-base64%%%", base64.StdEncoding.EncodeToString([]byte("msg"))},
		{"сообщение не base64", base64.StdEncoding.EncodeToString([]byte("sig")), "%%%не-base64%%%"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := VerifyEncoded(pubPEM, tc.signature, tc.message)
			if !errors.Is(err, ErrBadEncoding) {
				t.Fatalf("ожидалась ErrBadEncoding, получено %v", err)
			}
		})
	}
}

// TestParsePublicKeyPEM_Invalid проверяет отклонение некорректного PEM.
func TestParsePublicKeyPEM_Invalid(t *testing.T) {
	cases := []struct {
		name string
		pem  string
	}{
		{"пустая строка", ""},
		{"мусор", "не pem вообще"},
		{"PEM с мусором внутри", "-----BEGIN PUBLIC KEY-----\nAAAA\n-----END PUBLIC KEY-----\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParsePublicKeyPEM(tc.pem); !errors.Is(err, ErrBadEncoding) {
				t.Fatalf("ожидалась ErrBadEncoding, получено %v", err)
			}
		})
	}
}

// TestParsePublicKeyPEM_WrongAlgorithm проверяет отклонение не-Ed25519 ключей.
func TestParsePublicKeyPEM_WrongAlgorithm(t *testing.T) {
	// RSA-ключ не должен приниматься, даже если PEM корректен.
	const rsaPEM = `-----BEGIN PUBLIC KEY-----
MIGfMA0GCSqGSIb3DQEBAQUAA4GNADCBiQKBgQDKx3Sz9ZJG1Y8X3TVvjBIyZtGW
NuY8S0t0rfSdccnZZTltcPzIdANY0cB1fJ1vY5S4H6TxCfjTcAqNGQbyUW7dWNhP
bK0pXjLP6jZmqJhf1k0H2s5HW1rIVwFm2cWzUfOQ0ZthvJHLvDL2BrTWkLUZ9HNS
w5rbRRGpr9G2z5PAGwIDAQAB
-----END PUBLIC KEY-----`

	if _, err := ParsePublicKeyPEM(rsaPEM); !errors.Is(err, ErrBadEncoding) {
		t.Fatalf("ожидалась ErrBadEncoding для RSA-ключа, получено %v", err)
	}
}

// TestMessageMatches проверяет сравнение канонических сообщений.
func TestMessageMatches(t *testing.T) {
	if !MessageMatches([]byte("complete:abc"), CompleteMessage("abc")) {
		t.Error("идентичные сообщения должны совпадать")
	}
	if MessageMatches([]byte("complete:abc"), CompleteMessage("xyz")) {
		t.Error("разные сообщения не должны совпадать")
	}
	if MessageMatches([]byte("chunk:u:1:3"), ChunkMessage("u", 2, 3)) {
		t.Error("сообщение другого chunk-а не должно совпадать")
	}
}
