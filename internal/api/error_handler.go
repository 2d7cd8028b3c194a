package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/nota-esign/internal/auth"
	"github.com/mautops/nota-esign/internal/esign"
	"github.com/mautops/nota-esign/internal/repository"
	"github.com/mautops/nota-esign/internal/routing"
	"github.com/mautops/nota-esign/internal/service"
	"github.com/mautops/nota-esign/internal/sharelink"
	"github.com/mautops/nota-esign/internal/storage"
	"github.com/mautops/nota-esign/internal/utils"
	"github.com/sirupsen/logrus"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
	cause   error
}

func (e *APIError) Error() string {
	return e.Message
}

// Unwrap 返回原始错误
func (e *APIError) Unwrap() error {
	return e.cause
}

// errorMapping 错误到 HTTP 状态码与提示信息的映射
var errorMapping = []struct {
	target  error
	code    int
	message string
}{
	{service.ErrNotFound, http.StatusNotFound, "Data tidak ditemukan."},
	{auth.ErrAccessDenied, http.StatusForbidden, "Anda tidak memiliki akses."},
	{auth.ErrUnknownUser, http.StatusForbidden, "Pengguna belum terdaftar."},
	{routing.ErrRoleNotAllowed, http.StatusForbidden, "Peran Anda tidak dapat melakukan tindakan ini."},
	{routing.ErrRoleUnknown, http.StatusForbidden, "Peran pengguna tidak dikenali."},
	{sharelink.ErrLinkGone, http.StatusGone, "Tautan tidak valid atau sudah kedaluwarsa."},
	{sharelink.ErrInvalidCode, http.StatusGone, "Tautan tidak valid atau sudah kedaluwarsa."},
	{routing.ErrNoteRequired, http.StatusUnprocessableEntity, "Catatan wajib diisi."},
	{routing.ErrInvalidTarget, http.StatusUnprocessableEntity, "Tujuan pengiriman tidak valid."},
	{routing.ErrInvalidDecision, http.StatusUnprocessableEntity, "Keputusan harus disetujui atau ditolak."},
	{routing.ErrAsistenNotAssigned, http.StatusUnprocessableEntity, "SKPD belum memiliki asisten."},
	{routing.ErrTerminal, http.StatusUnprocessableEntity, "Nota sudah selesai diproses."},
	{routing.ErrNotEditable, http.StatusUnprocessableEntity, "Nota hanya dapat diubah saat draft atau dikembalikan."},
	{repository.ErrStaleTransition, http.StatusConflict, "Nota telah diubah oleh permintaan lain, silakan muat ulang."},
	{service.ErrInvalidDocument, http.StatusUnprocessableEntity, "Dokumen harus berupa PDF yang valid."},
	{storage.ErrNotPDF, http.StatusUnprocessableEntity, "Dokumen harus berupa PDF yang valid."},
	{storage.ErrInvalidVersion, http.StatusUnprocessableEntity, "Versi dokumen tidak valid."},
	{service.ErrCertificateNotEligible, http.StatusUnprocessableEntity, "Sertifikat elektronik penandatangan tidak aktif."},
	{service.ErrMissingPlacement, http.StatusUnprocessableEntity, "Posisi atau gambar tanda tangan belum lengkap."},
	{service.ErrMissingCredential, http.StatusUnprocessableEntity, "Passphrase atau TOTP wajib diisi."},
	{service.ErrInvalidIdentifier, http.StatusUnprocessableEntity, "NIK atau email penandatangan tidak valid."},
	{esign.ErrProviderSignFailed, http.StatusBadGateway, "Layanan tanda tangan elektronik gagal memproses permintaan."},
	{storage.ErrIntegrityFailure, http.StatusInternalServerError, "Dokumen gagal disimpan dengan benar."},
}

// MapError 将领域错误转换为 APIError,详情中不包含凭据或服务响应内容
func MapError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var validation *utils.ValidationError
	if errors.As(err, &validation) {
		return &APIError{
			Code:    http.StatusUnprocessableEntity,
			Message: validation.Message,
			Detail:  validation.Code,
			cause:   err,
		}
	}

	for _, m := range errorMapping {
		if !errors.Is(err, m.target) {
			continue
		}
		apiErr := &APIError{Code: m.code, Message: m.message, cause: err}
		var providerErr *esign.ProviderError
		if errors.As(err, &providerErr) && providerErr.CorrelationID != "" {
			apiErr.Detail = "correlation_id=" + providerErr.CorrelationID
		}
		return apiErr
	}

	return &APIError{
		Code:    http.StatusInternalServerError,
		Message: "Terjadi kesalahan pada server.",
		cause:   err,
	}
}

// BadRequest 请求格式错误
func BadRequest(err error) *APIError {
	return &APIError{
		Code:    http.StatusBadRequest,
		Message: "Permintaan tidak valid.",
		Detail:  err.Error(),
		cause:   err,
	}
}

// ErrorHandlerMiddleware 错误处理中间件
func ErrorHandlerMiddleware(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		apiErr := MapError(err)
		if apiErr.Code >= http.StatusInternalServerError {
			logger.WithError(err).WithFields(logrus.Fields{
				"request_id": c.GetString("request_id"),
				"path":       c.Request.URL.Path,
			}).Error("request failed")
		}
		Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
		cause:   err,
	}
}
