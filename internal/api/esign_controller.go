package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/service"
)

// EsignController 电子签名控制器
type EsignController struct {
	signatures *service.SignatureService
	esign      *service.EsignService
}

// NewEsignController 创建电子签名控制器
func NewEsignController(signatures *service.SignatureService, esign *service.EsignService) *EsignController {
	return &EsignController{
		signatures: signatures,
		esign:      esign,
	}
}

// standaloneSignRequest 批量签署请求
type standaloneSignRequest struct {
	service.SignOptions
	File []string `json:"file"`
}

// totpRequest OTP 请求
type totpRequest struct {
	NIK   string `json:"nik"`
	Email string `json:"email"`
}

// verifyRequest 验证请求
type verifyRequest struct {
	File     string `json:"file"`
	Password string `json:"password"`
}

// Sign 签署调用方提供的 PDF
func (c *EsignController) Sign(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req standaloneSignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, BadRequest(err))
		return
	}

	result, err := c.signatures.SignContent(ctx.Request.Context(), user, req.File, req.SignOptions)
	if err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, result)
}

// TOTP 请求签名 OTP
func (c *EsignController) TOTP(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req totpRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, BadRequest(err))
		return
	}

	data, err := c.esign.RequestTOTP(ctx.Request.Context(), user, req.NIK, req.Email)
	if err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, data)
}

// Verify 验证已签名文档
func (c *EsignController) Verify(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req verifyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, BadRequest(err))
		return
	}

	data, err := c.esign.Verify(ctx.Request.Context(), user, req.File, req.Password)
	if err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, data)
}

// Seal 机构印章签署
func (c *EsignController) Seal(ctx *gin.Context) {
	c.passThrough(ctx, c.esign.Seal)
}

// SealActivation 印章激活
func (c *EsignController) SealActivation(ctx *gin.Context) {
	c.passThrough(ctx, c.esign.SealActivation)
}

// SealTOTP 印章 OTP
func (c *EsignController) SealTOTP(ctx *gin.Context) {
	c.passThrough(ctx, c.esign.SealTOTP)
}

type sealCall func(ctx context.Context, user *model.User, payload map[string]any) (map[string]any, error)

func (c *EsignController) passThrough(ctx *gin.Context, call sealCall) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	payload := map[string]any{}
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		fail(ctx, BadRequest(err))
		return
	}

	data, err := call(ctx.Request.Context(), user, payload)
	if err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, data)
}
