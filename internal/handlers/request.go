package handlers

import (
	"accountsvc/internal/logger"
	"accountsvc/internal/models"
	"accountsvc/internal/services"
	"accountsvc/internal/utils/helpers"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const (
	maxJSONBody     = 1 << 20
	fieldData       = "data"
	fieldSingle     = "single"
	fieldMultiple   = "multiple"
	msgInternal     = "Internal server error"
	msgInvalidInput = "Invalid request payload"
)

var errBadPayload = errors.New("bad payload")

// decodePayload читает JSON запроса: поле формы data (multipart или urlencoded)
// либо тело целиком. Тело вида {"data": "<json>"} тоже понимаем.
func decodePayload(r *http.Request, maxUpload int64, dst interface{}) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var raw []byte
	switch ct {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			return fmt.Errorf("%w: %w", errBadPayload, err)
		}
		raw = []byte(r.FormValue(fieldData))
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("%w: %w", errBadPayload, err)
		}
		raw = []byte(r.FormValue(fieldData))
	default:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
		if err != nil {
			return fmt.Errorf("%w: %w", errBadPayload, err)
		}
		raw = unwrapData(body)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %w", errBadPayload, err)
	}
	return nil
}

func unwrapData(body []byte) []byte {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Data) == 0 {
		return body
	}

	var s string
	if err := json.Unmarshal(env.Data, &s); err == nil {
		return []byte(s)
	}
	return env.Data
}

// formFile достаёт первый файл из поля multipart-формы.
func formFile(r *http.Request, field string) (*services.UploadedFile, func(), error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, func() {}, nil
	}
	fh := r.MultipartForm.File[field][0]
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return uploadedFrom(fh, f), func() { _ = f.Close() }, nil
}

func uploadedFrom(fh *multipart.FileHeader, f multipart.File) *services.UploadedFile {
	return &services.UploadedFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}
}

// statusFor: отображение вида ошибки в HTTP-статус.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidCredential),
		errors.Is(err, models.ErrMismatch),
		errors.Is(err, models.ErrExpired):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrInvalidIdentifier),
		errors.Is(err, models.ErrValidation),
		errors.Is(err, errBadPayload):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidToken):
		return http.StatusForbidden
	case errors.Is(err, models.ErrDeliveryFailed),
		errors.Is(err, models.ErrUploadFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// messageFor: текст для клиента. Внутренние детали наружу не уходят.
func messageFor(kind models.Kind, err error) string {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Msg
	case errors.Is(err, errBadPayload):
		return msgInvalidInput
	case errors.Is(err, models.ErrNoPendingOTP):
		return "No OTP found for this email"
	case errors.Is(err, models.ErrNotFound):
		return kind.Title() + " not found"
	case errors.Is(err, models.ErrAlreadyExists):
		return kind.Title() + " already exists"
	case errors.Is(err, models.ErrInvalidCredential):
		return "Invalid password"
	case errors.Is(err, models.ErrInvalidIdentifier):
		return "Invalid ObjectId"
	case errors.Is(err, models.ErrExpired):
		return "OTP expired"
	case errors.Is(err, models.ErrMismatch):
		return "Invalid OTP"
	case errors.Is(err, models.ErrDeliveryFailed):
		return "Failed to send OTP"
	case errors.Is(err, models.ErrUploadFailed):
		return "Failed to upload file"
	case errors.Is(err, models.ErrInvalidToken):
		return "Invalid token"
	case errors.Is(err, models.ErrValidation):
		return msgInvalidInput
	default:
		return msgInternal
	}
}

// fail логирует ошибку с контекстом операции и отвечает клиенту.
func fail(w http.ResponseWriter, r *http.Request, kind models.Kind, op string, err error, fields ...zap.Field) {
	status := statusFor(err)
	fields = append(fields,
		zap.String("op", op),
		zap.String("kind", kind.Name),
		zap.Int("status", status),
		zap.Error(err),
	)
	if status >= http.StatusInternalServerError {
		logger.WithCtx(r.Context()).Error("Ошибка обработки запроса", fields...)
	} else {
		logger.WithCtx(r.Context()).Warn("Запрос отклонён", fields...)
	}
	helpers.Error(w, status, messageFor(kind, err))
}

func plural(kind models.Kind) string {
	return strings.ToUpper(kind.Collection[:1]) + kind.Collection[1:]
}
