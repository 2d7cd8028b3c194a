package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/nota-esign/internal/service"
)

// LampiranController 附件与文档控制器
type LampiranController struct {
	lampirans  *service.LampiranService
	signatures *service.SignatureService
}

// NewLampiranController 创建附件控制器
func NewLampiranController(lampirans *service.LampiranService, signatures *service.SignatureService) *LampiranController {
	return &LampiranController{
		lampirans:  lampirans,
		signatures: signatures,
	}
}

// signedUploadRequest base64 形式的已签名文件
type signedUploadRequest struct {
	File string `json:"file" form:"file"`
}

// View 附件当前版本描述
func (c *LampiranController) View(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	view, err := c.lampirans.View(ctx.Request.Context(), user, id)
	if err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, view)
}

// Status 签名人列表
func (c *LampiranController) Status(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	status, err := c.lampirans.Status(ctx.Request.Context(), user, id)
	if err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, status)
}

// Sign 签署附件
func (c *LampiranController) Sign(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var opts service.SignOptions
	if err := ctx.ShouldBindJSON(&opts); err != nil {
		fail(ctx, BadRequest(err))
		return
	}

	result, err := c.signatures.SignAttachment(ctx.Request.Context(), user, id, opts)
	if err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, result)
}

// Share 生成公开分享链接
func (c *LampiranController) Share(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	link, err := c.lampirans.Share(ctx.Request.Context(), user, id)
	if err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, link)
}

// UploadOriginal 上传原始文件 (multipart 字段 file)
func (c *LampiranController) UploadOriginal(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		fail(ctx, service.ErrInvalidDocument)
		return
	}
	upload, err := readAttachment(fh)
	if err != nil {
		fail(ctx, err)
		return
	}

	stored, err := c.lampirans.UploadOriginal(ctx.Request.Context(), user, id, upload)
	if err != nil {
		fail(ctx, err)
		return
	}

	Created(ctx, stored)
}

// UploadSigned 上传已签名文件,multipart 字段 file 或 base64 字段 file
func (c *LampiranController) UploadSigned(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	var (
		upload *service.Upload
		b64    string
	)
	if fh, err := ctx.FormFile("file"); err == nil {
		u, err := readAttachment(fh)
		if err != nil {
			fail(ctx, err)
			return
		}
		upload = &u
	} else {
		var req signedUploadRequest
		if err := ctx.ShouldBind(&req); err != nil {
			fail(ctx, BadRequest(err))
			return
		}
		b64 = req.File
	}

	stored, err := c.lampirans.UploadSigned(ctx.Request.Context(), user, id, upload, b64)
	if err != nil {
		fail(ctx, err)
		return
	}

	Created(ctx, stored)
}

// Download 下载文件,type=original|signed
func (c *LampiranController) Download(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	d, err := c.lampirans.Download(ctx.Request.Context(), user, id, ctx.Query("type"), ctx.Query("version"))
	if err != nil {
		fail(ctx, err)
		return
	}

	sendFile(ctx, "application/pdf", d, false)
}

// Manifest 签名清单
func (c *LampiranController) Manifest(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	manifest, err := c.lampirans.Manifest(ctx.Request.Context(), user, id, ctx.Query("version"))
	if err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, manifest)
}

// Versions 已签名版本
func (c *LampiranController) Versions(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	versions, err := c.lampirans.Versions(ctx.Request.Context(), user, id)
	if err != nil {
		fail(ctx, err)
		return
	}
	if versions == nil {
		versions = []string{}
	}

	Success(ctx, versions)
}
