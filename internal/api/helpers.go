package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mautops/nota-esign/internal/auth"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/service"
	"github.com/mautops/nota-esign/internal/utils"
)

// currentUser 返回当前登录用户,未登录时写入 401
func currentUser(ctx *gin.Context) (*model.User, bool) {
	user, ok := auth.CurrentUser(ctx)
	if !ok {
		Error(ctx, http.StatusUnauthorized, "Silakan login terlebih dahulu.", "")
		return nil, false
	}
	return user, true
}

// paramID 解析路径参数中的数字 ID
func paramID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		Error(ctx, http.StatusBadRequest, "ID tidak valid.", "")
		return 0, false
	}
	return uint(id), true
}

// queryInt 解析查询参数,缺省或无效时返回 def
func queryInt(ctx *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(ctx.Query(name))
	if err != nil {
		return def
	}
	return v
}

// fail 将错误交给 ErrorHandlerMiddleware 渲染
func fail(ctx *gin.Context, err error) {
	_ = ctx.Error(err)
	ctx.Abort()
}

// readUpload 读取 multipart 文件,超过 limit 时返回校验错误
func readUpload(fh *multipart.FileHeader, limit int64, code, message string) (service.Upload, error) {
	if fh.Size > limit {
		return service.Upload{}, utils.NewValidationError(code, message)
	}
	f, err := fh.Open()
	if err != nil {
		return service.Upload{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return service.Upload{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return service.Upload{}, utils.NewValidationError(code, message)
	}
	return service.Upload{
		Name:     fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

// readAttachment 读取附件上传
func readAttachment(fh *multipart.FileHeader) (service.Upload, error) {
	return readUpload(fh, service.MaxUploadSize, "FILE_TOO_LARGE", "Ukuran lampiran maksimal 4 MB")
}

// sendFile 以附件形式返回文件内容
func sendFile(ctx *gin.Context, contentType string, d *service.Download, inline bool) {
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	ctx.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, d.Name))
	ctx.Data(http.StatusOK, contentType, d.Data)
}
