package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/service"
)

// NotaController 公文控制器
type NotaController struct {
	notas   *service.NotaService
	routing *service.RoutingService
}

// NewNotaController 创建公文控制器
func NewNotaController(notas *service.NotaService, routing *service.RoutingService) *NotaController {
	return &NotaController{
		notas:   notas,
		routing: routing,
	}
}

// notaRequest 创建或更新公文的请求体
type notaRequest struct {
	Nomor            string   `json:"nomor_nota"`
	Perihal          string   `json:"perihal"`
	Anggaran         *float64 `json:"anggaran"`
	TanggalPengajuan string   `json:"tanggal_pengajuan"`
}

// input 转换为服务层输入,日期接受 YYYY-MM-DD 或 RFC3339
func (r notaRequest) input() service.NotaInput {
	in := service.NotaInput{
		Nomor:    r.Nomor,
		Perihal:  r.Perihal,
		Anggaran: r.Anggaran,
	}
	raw := strings.TrimSpace(r.TanggalPengajuan)
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			in.TanggalPengajuan = t
			break
		}
	}
	return in
}

// decisionRequest Bupati 决定请求
type decisionRequest struct {
	Status  model.Status `json:"status" form:"status"`
	Catatan string       `json:"catatan" form:"catatan"`
}

// returnRequest 退回请求
type returnRequest struct {
	Catatan string `json:"catatan" form:"catatan"`
}

// List 公文列表
func (c *NotaController) List(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	page, err := c.notas.List(ctx.Request.Context(), user, ctx.Query("search"), queryInt(ctx, "page", 1), queryInt(ctx, "page_size", 10))
	if err != nil {
		fail(ctx, err)
		return
	}

	Paginated(ctx, page.Items, NewPagination(page.Page, page.PageSize, page.Total))
}

// Create 创建公文
func (c *NotaController) Create(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req notaRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, BadRequest(err))
		return
	}

	nota, err := c.notas.Create(ctx.Request.Context(), user, req.input())
	if err != nil {
		fail(ctx, err)
		return
	}

	Created(ctx, nota)
}

// Get 公文详情
func (c *NotaController) Get(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	nota, err := c.notas.Get(ctx.Request.Context(), user, id)
	if err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, nota)
}

// Update 更新公文
func (c *NotaController) Update(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req notaRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, BadRequest(err))
		return
	}

	nota, err := c.notas.Update(ctx.Request.Context(), user, id, req.input())
	if err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, nota)
}

// Delete 删除公文
func (c *NotaController) Delete(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	if err := c.notas.Delete(ctx.Request.Context(), user, id); err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, nil)
}

// Send 发送公文至下一阶段,表单字段: catatan, dikirim_ke, lampiran[]
func (c *NotaController) Send(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	in := service.SendInput{
		Target:  model.Stage(strings.TrimSpace(ctx.PostForm("dikirim_ke"))),
		Catatan: ctx.PostForm("catatan"),
	}
	if form, err := ctx.MultipartForm(); err == nil && form != nil {
		files := form.File["lampiran[]"]
		if len(files) == 0 {
			files = form.File["lampiran"]
		}
		for _, fh := range files {
			upload, err := readAttachment(fh)
			if err != nil {
				fail(ctx, err)
				return
			}
			in.Uploads = append(in.Uploads, upload)
		}
	}

	pengiriman, err := c.routing.Send(ctx.Request.Context(), user, id, in)
	if err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, pengiriman)
}

// Return 退回公文至 SKPD
func (c *NotaController) Return(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req returnRequest
	if err := ctx.ShouldBind(&req); err != nil {
		fail(ctx, BadRequest(err))
		return
	}

	pengiriman, err := c.routing.Return(ctx.Request.Context(), user, id, req.Catatan)
	if err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, pengiriman)
}

// Decide Bupati 最终审批
func (c *NotaController) Decide(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req decisionRequest
	if err := ctx.ShouldBind(&req); err != nil {
		fail(ctx, BadRequest(err))
		return
	}

	pengiriman, err := c.routing.Decide(ctx.Request.Context(), user, id, req.Status, req.Catatan)
	if err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, pengiriman)
}

// History 流转记录
func (c *NotaController) History(ctx *gin.Context) {
	c.listByNota(ctx, func(user *model.User, id uint) (any, error) {
		return c.notas.History(ctx.Request.Context(), user, id)
	})
}

// Approvals 审批记录
func (c *NotaController) Approvals(ctx *gin.Context) {
	c.listByNota(ctx, func(user *model.User, id uint) (any, error) {
		return c.notas.Approvals(ctx.Request.Context(), user, id)
	})
}

// Attachments 公文附件
func (c *NotaController) Attachments(ctx *gin.Context) {
	c.listByNota(ctx, func(user *model.User, id uint) (any, error) {
		return c.notas.Attachments(ctx.Request.Context(), user, id)
	})
}

// TransmittalAttachments 某次发送携带的附件
func (c *NotaController) TransmittalAttachments(ctx *gin.Context) {
	c.listByNota(ctx, func(user *model.User, id uint) (any, error) {
		return c.notas.TransmittalAttachments(ctx.Request.Context(), user, id)
	})
}

func (c *NotaController) listByNota(ctx *gin.Context, load func(user *model.User, id uint) (any, error)) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	items, err := load(user, id)
	if err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, items)
}
