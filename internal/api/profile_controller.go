package api

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/repository"
	"github.com/mautops/nota-esign/internal/service"
)

// ProfileController 用户电子签名资料控制器
type ProfileController struct {
	users *service.UserService
}

// NewProfileController 创建资料控制器
func NewProfileController(users *service.UserService) *ProfileController {
	return &ProfileController{users: users}
}

// Me 当前用户
func (c *ProfileController) Me(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	Success(ctx, user)
}

// UpdateEsign 更新 NIK 与签名图片 (multipart: nik, signature_image)
func (c *ProfileController) UpdateEsign(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	var image *service.Upload
	if fh, err := ctx.FormFile("signature_image"); err == nil {
		upload, err := readUpload(fh, service.MaxSignatureImageSize, "IMAGE_TOO_LARGE", "Ukuran gambar tanda tangan maksimal 2 MB")
		if err != nil {
			fail(ctx, err)
			return
		}
		image = &upload
	}

	updated, err := c.users.UpdateEsignProfile(ctx.Request.Context(), user, ctx.PostForm("nik"), image)
	if err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, updated)
}

// ApiLogController 电子签名调用日志控制器
type ApiLogController struct {
	logs *service.ApiLogService
}

// NewApiLogController 创建调用日志控制器
func NewApiLogController(logs *service.ApiLogService) *ApiLogController {
	return &ApiLogController{logs: logs}
}

// List 调用日志列表,支持 search, method, status, page
func (c *ApiLogController) List(ctx *gin.Context) {
	filter := repository.ApiLogFilter{
		Search: strings.TrimSpace(ctx.Query("search")),
		Method: strings.ToUpper(strings.TrimSpace(ctx.Query("method"))),
		Page:   queryInt(ctx, "page", 1),
	}
	if raw := ctx.Query("status"); raw != "" {
		status, err := strconv.Atoi(raw)
		if err != nil {
			fail(ctx, BadRequest(err))
			return
		}
		filter.StatusCode = &status
	}

	page, err := c.logs.List(ctx.Request.Context(), filter)
	if err != nil {
		fail(ctx, err)
		return
	}

	Paginated(ctx, page.Items, NewPagination(page.Page, page.PageSize, page.Total))
}

// AuditLogController 审计日志控制器
type AuditLogController struct {
	audit service.AuditLogService
}

// NewAuditLogController 创建审计日志控制器
func NewAuditLogController(audit service.AuditLogService) *AuditLogController {
	return &AuditLogController{audit: audit}
}

// List 按 resource_type + resource_id 或 user_id 查询审计日志
func (c *AuditLogController) List(ctx *gin.Context) {
	filter := service.AuditFilter{
		ResourceType: strings.TrimSpace(ctx.Query("resource_type")),
		ResourceID:   strings.TrimSpace(ctx.Query("resource_id")),
		UserID:       uint(max(queryInt(ctx, "user_id", 0), 0)),
	}

	logs, err := c.audit.List(ctx.Request.Context(), filter)
	if err != nil {
		fail(ctx, err)
		return
	}
	if logs == nil {
		logs = []*model.AuditLogModel{}
	}
	Success(ctx, logs)
}
