package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/nota-esign/internal/service"
)

// StatisticsController 统计控制器
type StatisticsController struct {
	statistics service.StatisticsService
}

// NewStatisticsController 创建统计控制器
func NewStatisticsController(statistics service.StatisticsService) *StatisticsController {
	return &StatisticsController{statistics: statistics}
}

// Nota 按状态、阶段与日期统计公文,days 默认 30
func (c *StatisticsController) Nota(ctx *gin.Context) {
	reqCtx := ctx.Request.Context()

	byStatus, err := c.statistics.NotaByStatus(reqCtx)
	if err != nil {
		fail(ctx, err)
		return
	}
	byStage, err := c.statistics.NotaByStage(reqCtx)
	if err != nil {
		fail(ctx, err)
		return
	}
	days := queryInt(ctx, "days", 30)
	if days <= 0 || days > 366 {
		days = 30
	}
	byDate, err := c.statistics.NotaByDate(reqCtx, days)
	if err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, gin.H{
		"by_status": byStatus,
		"by_stage":  byStage,
		"by_date":   byDate,
	})
}

// Approvals 审批统计
func (c *StatisticsController) Approvals(ctx *gin.Context) {
	stats, err := c.statistics.Approvals(ctx.Request.Context())
	if err != nil {
		fail(ctx, err)
		return
	}

	Success(ctx, stats)
}
