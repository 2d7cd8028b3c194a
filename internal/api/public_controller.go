package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/nota-esign/internal/service"
)

// PublicController 公开文档控制器,无需登录
type PublicController struct {
	documents *service.PublicDocumentService
}

// NewPublicController 创建公开文档控制器
func NewPublicController(documents *service.PublicDocumentService) *PublicController {
	return &PublicController{documents: documents}
}

// QR 解析二维码短码并重定向到带新令牌的公开页面
func (c *PublicController) QR(ctx *gin.Context) {
	target, err := c.documents.QR(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.Header("Cache-Control", "no-store")
	ctx.Redirect(http.StatusFound, target)
}

// Document 公开文档描述,直接返回 {id,name,url,hasSigned}
func (c *PublicController) Document(ctx *gin.Context) {
	doc, err := c.documents.View(ctx.Request.Context(), ctx.Param("token"))
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.Header("Cache-Control", "no-store")
	ctx.JSON(http.StatusOK, doc)
}

// PDF 公开文档内容
func (c *PublicController) PDF(ctx *gin.Context) {
	d, err := c.documents.PDF(ctx.Request.Context(), ctx.Param("token"))
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.Header("Cache-Control", "no-store")
	sendFile(ctx, "application/pdf", d, true)
}
