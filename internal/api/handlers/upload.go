// upload.go — обработчики chunk-загрузки: initiate, chunk, complete.
// Каждый запрос подписан; канонические сообщения привязывают подпись
// к конкретному действию и его параметрам.
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	apierrors "github.com/bigkaa/vidstore/internal/api/errors"
	"github.com/bigkaa/vidstore/internal/api/middleware"
	"github.com/bigkaa/vidstore/internal/auth"
	"github.com/bigkaa/vidstore/internal/config"
	"github.com/bigkaa/vidstore/internal/service"
)

// multipartMemoryLimit — объём части multipart-формы, удерживаемый в памяти.
// Остальное net/http сбрасывает во временные файлы.
const multipartMemoryLimit = 32 << 20 // 32 MB

// UploadHandler — обработчики /upload/*.
type UploadHandler struct {
	upload *service.UploadService
	cfg    *config.Config
	logger *slog.Logger
}

// NewUploadHandler создаёт обработчик загрузки.
func NewUploadHandler(upload *service.UploadService, cfg *config.Config, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		upload: upload,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "upload_handler")),
	}
}

// initiateRequest — тело запроса создания сессии.
type initiateRequest struct {
	Filename    string `json:"filename"`
	TotalChunks int    `json:"total_chunks"`
}

// completeRequest — тело запроса завершения загрузки.
type completeRequest struct {
	UploadID string `json:"upload_id"`
}

// Initiate обрабатывает POST /upload/initiate.
func (h *UploadHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if !verifyMessage(w, r, auth.InitiateMessage(req.Filename, req.TotalChunks)) {
		return
	}

	res, svcErr := h.upload.Initiate(r.Context(), req.Filename, req.TotalChunks,
		middleware.KeyIDFromContext(r.Context()))
	if svcErr != nil {
		svcErr.Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"upload_id": res.UploadID,
	})
}

// Chunk обрабатывает POST /upload/chunk (multipart/form-data).
// Поля формы: upload_id, chunk_number, total_chunks, file.
func (h *UploadHandler) Chunk(w http.ResponseWriter, r *http.Request) {
	// Ограничение размера запроса: один chunk не может превышать
	// максимальный размер файла целиком
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxFileSize)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		apierrors.ValidationError(w, "Некорректная multipart-форма: "+err.Error())
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	uploadID := r.FormValue("upload_id")
	if uploadID == "" {
		apierrors.ValidationError(w, "Поле upload_id обязательно")
		return
	}
	chunkNumber, err := strconv.Atoi(r.FormValue("chunk_number"))
	if err != nil {
		apierrors.ValidationError(w, "Поле chunk_number должно быть целым числом")
		return
	}
	totalChunks, err := strconv.Atoi(r.FormValue("total_chunks"))
	if err != nil {
		apierrors.ValidationError(w, "Поле total_chunks должно быть целым числом")
		return
	}

	if !verifyMessage(w, r, auth.ChunkMessage(uploadID, chunkNumber, totalChunks)) {
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле file обязательно")
		return
	}
	defer file.Close()

	res, svcErr := h.upload.ReceiveChunk(r.Context(), uploadID, chunkNumber, file,
		middleware.KeyIDFromContext(r.Context()))
	if svcErr != nil {
		svcErr.Write(w)
		return
	}

	status := "received"
	if res.AlreadyReceived {
		status = "already_received"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       status,
		"chunk_number": res.ChunkNumber,
	})
}

// Complete обрабатывает POST /upload/complete.
func (h *UploadHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if !verifyMessage(w, r, auth.CompleteMessage(req.UploadID)) {
		return
	}

	res, svcErr := h.upload.Complete(r.Context(), req.UploadID,
		middleware.KeyIDFromContext(r.Context()))
	if svcErr != nil {
		svcErr.Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "complete",
		"video_link": res.VideoLink,
	})
}
