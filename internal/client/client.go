// Пакет client — HTTP-клиент видеосервиса с подписью запросов Ed25519.
//
// Клиент подписывает каноническое сообщение каждого действия приватным
// ключом и передаёт его в заголовках key-id, signature, message (base64).
// Поддерживает TLS с кастомным CA для self-hosted инсталляций.
//
// Операции: управление whitelist (add, remove, list), chunk-загрузка
// (initiate, chunk, complete) и UploadFile, выполняющий полный цикл
// загрузки файла с разбиением на части.
package client

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/vidstore/internal/auth"
)

// Имена заголовков подписи. Дублируют серверные константы, чтобы
// пакет можно было вынести в отдельный модуль без зависимостей.
const (
	headerKeyID     = "key-id"
	headerSignature = "signature"
	headerMessage   = "message"
)

// DefaultChunkSize — размер части по умолчанию при разбиении файла.
const DefaultChunkSize int64 = 10 * 1024 * 1024 // 10 MB

// APIError — ошибка видеосервиса из envelope {"error":{"code","message"}}.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("сервер вернул %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// KeyMetadata — метаданные ключа в ответе whitelist/list.
type KeyMetadata struct {
	IsAdmin   bool    `json:"is_admin"`
	CreatedBy *string `json:"created_by"`
	CreatedAt string  `json:"created_at"`
	Domain    string  `json:"domain"`
}

// Client — подписывающий HTTP-клиент видеосервиса.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	priv       ed25519.PrivateKey
	logger     *slog.Logger
}

// New создаёт клиент.
// baseURL — адрес сервиса (https://video.example.com).
// keyID — идентификатор ключа в whitelist, priv — его приватная часть.
// caCertPath — путь к CA-сертификату для TLS (пустая строка — стандартный пул).
func New(baseURL, keyID string, priv ed25519.PrivateKey, caCertPath string, logger *slog.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: 5 * time.Minute}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		keyID:      keyID,
		priv:       priv,
		logger:     logger.With(slog.String("component", "vidstore_client")),
	}, nil
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{
		RootCAs: caCertPool,
	}, nil
}

// sign подписывает каноническое сообщение и проставляет заголовки запроса.
func (c *Client) sign(req *http.Request, message string) {
	sigB64, msgB64 := auth.SignEncoded(c.priv, message)
	req.Header.Set(headerKeyID, c.keyID)
	req.Header.Set(headerSignature, sigB64)
	req.Header.Set(headerMessage, msgB64)
}

// do выполняет запрос и декодирует JSON-ответ в out.
// Не-2xx статусы превращаются в *APIError.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("декодирование ответа %s: %w", req.URL.Path, err)
	}
	return nil
}

// decodeAPIError разбирает error envelope сервера.
func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Code == "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       "UNKNOWN",
			Message:    strings.TrimSpace(string(body)),
		}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       envelope.Error.Code,
		Message:    envelope.Error.Message,
	}
}

// postJSON отправляет подписанный JSON POST.
func (c *Client) postJSON(ctx context.Context, path, message string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("сериализация тела %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("создание запроса %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.sign(req, message)

	return c.do(req, out)
}

// WhitelistAdd регистрирует публичный ключ на сервере.
// Требует, чтобы ключ клиента был административным.
func (c *Client) WhitelistAdd(ctx context.Context, keyID, publicKeyPEM string, isAdmin bool, domain string) error {
	body := map[string]any{
		"key_id":         keyID,
		"public_key_pem": publicKeyPEM,
		"is_admin":       isAdmin,
		"domain":         domain,
	}
	return c.postJSON(ctx, "/auth/whitelist/add", auth.WhitelistAddMessage(keyID), body, nil)
}

// WhitelistRemove удаляет ключ из whitelist.
func (c *Client) WhitelistRemove(ctx context.Context, keyID string) error {
	body := map[string]any{"key_id": keyID}
	return c.postJSON(ctx, "/auth/whitelist/remove", auth.WhitelistRemoveMessage(keyID), body, nil)
}

// WhitelistList возвращает метаданные всех ключей whitelist.
func (c *Client) WhitelistList(ctx context.Context) (map[string]KeyMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/whitelist/list", nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса list: %w", err)
	}
	c.sign(req, auth.WhitelistListMessage())

	var keys map[string]KeyMetadata
	if err := c.do(req, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// Initiate создаёт сессию загрузки и возвращает upload_id.
func (c *Client) Initiate(ctx context.Context, filename string, totalChunks int) (string, error) {
	body := map[string]any{
		"filename":     filename,
		"total_chunks": totalChunks,
	}
	var resp struct {
		UploadID string `json:"upload_id"`
	}
	if err := c.postJSON(ctx, "/upload/initiate", auth.InitiateMessage(filename, totalChunks), body, &resp); err != nil {
		return "", err
	}
	return resp.UploadID, nil
}

// SendChunk отправляет одну часть multipart-формой.
// Повторная отправка той же части безопасна.
func (c *Client) SendChunk(ctx context.Context, uploadID string, chunkNumber, totalChunks int, data []byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"upload_id":    uploadID,
		"chunk_number": strconv.Itoa(chunkNumber),
		"total_chunks": strconv.Itoa(totalChunks),
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return fmt.Errorf("поле формы %s: %w", name, err)
		}
	}

	part, err := mw.CreateFormFile("file", fmt.Sprintf("chunk_%d", chunkNumber))
	if err != nil {
		return fmt.Errorf("создание file-части формы: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("запись данных части: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("закрытие multipart-формы: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/chunk", &buf)
	if err != nil {
		return fmt.Errorf("создание запроса chunk: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.sign(req, auth.ChunkMessage(uploadID, chunkNumber, totalChunks))

	return c.do(req, nil)
}

// Complete завершает загрузку и возвращает ссылку на видео.
func (c *Client) Complete(ctx context.Context, uploadID string) (string, error) {
	body := map[string]any{"upload_id": uploadID}
	var resp struct {
		Status    string `json:"status"`
		VideoLink string `json:"video_link"`
	}
	if err := c.postJSON(ctx, "/upload/complete", auth.CompleteMessage(uploadID), body, &resp); err != nil {
		return "", err
	}
	return resp.VideoLink, nil
}

// UploadFile выполняет полный цикл загрузки файла: разбиение на части
// размером chunkSize, initiate, последовательная отправка, complete.
// Возвращает ссылку на загруженное видео.
func (c *Client) UploadFile(ctx context.Context, path string, chunkSize int64) (string, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("открытие файла: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat файла: %w", err)
	}
	if stat.Size() == 0 {
		return "", fmt.Errorf("файл %s пуст", path)
	}

	totalChunks := int((stat.Size() + chunkSize - 1) / chunkSize)
	filename := stat.Name()

	uploadID, err := c.Initiate(ctx, filename, totalChunks)
	if err != nil {
		return "", err
	}

	c.logger.Info("Сессия загрузки создана",
		slog.String("upload_id", uploadID),
		slog.String("filename", filename),
		slog.Int("total_chunks", totalChunks),
		slog.Int64("size", stat.Size()),
	)

	buf := make([]byte, chunkSize)
	for n := 1; n <= totalChunks; n++ {
		read, err := io.ReadFull(f, buf)
		if err != nil && err != io.ErrUnexpectedEOF {
			return "", fmt.Errorf("чтение части %d: %w", n, err)
		}

		if err := c.SendChunk(ctx, uploadID, n, totalChunks, buf[:read]); err != nil {
			return "", fmt.Errorf("отправка части %d/%d: %w", n, totalChunks, err)
		}

		c.logger.Debug("Часть отправлена",
			slog.String("upload_id", uploadID),
			slog.Int("chunk_number", n),
			slog.Int("bytes", read),
		)
	}

	link, err := c.Complete(ctx, uploadID)
	if err != nil {
		return "", err
	}

	c.logger.Info("Загрузка завершена",
		slog.String("upload_id", uploadID),
		slog.String("video_link", link),
	)
	return link, nil
}
