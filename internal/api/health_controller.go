package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/nota-esign/internal/database"
	"github.com/mautops/nota-esign/internal/storage"
	"gorm.io/gorm"
)

// HealthController 健康检查控制器
type HealthController struct {
	db   *gorm.DB
	disk storage.Disk
}

// NewHealthController 创建健康检查控制器
func NewHealthController(db *gorm.DB, disk storage.Disk) *HealthController {
	return &HealthController{
		db:   db,
		disk: disk,
	}
}

// Check 健康检查
func (c *HealthController) Check(ctx *gin.Context) {
	status := "healthy"
	checks := make(map[string]string)

	if err := database.Ping(ctx.Request.Context(), c.db); err != nil {
		status = "unhealthy"
		checks["database"] = "unhealthy"
	} else {
		checks["database"] = "healthy"
	}

	if c.disk != nil {
		if err := c.checkStorage(ctx.Request.Context()); err != nil {
			status = "unhealthy"
			checks["storage"] = "unhealthy"
		} else {
			checks["storage"] = "healthy"
		}
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	ctx.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

// checkStorage 通过查询一个不存在的对象确认存储可达
func (c *HealthController) checkStorage(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.disk.Exists(ctx, "health/.probe")
	return err
}
