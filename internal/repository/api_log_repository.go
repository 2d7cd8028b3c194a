package repository

import (
	"context"

	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/utils"
	"gorm.io/gorm"
)

// ApiLogPageSize 调用日志每页条数
const ApiLogPageSize = 20

// ApiLogRepository 电子签名调用日志仓储接口
type ApiLogRepository interface {
	Save(ctx context.Context, log *model.ApiLog) error
	FindByFilter(ctx context.Context, filter *ApiLogFilter) ([]*model.ApiLog, int64, error)
}

// ApiLogFilter 调用日志查询过滤器
type ApiLogFilter struct {
	Search     string
	Method     string
	StatusCode *int
	Page       int
}

type apiLogRepository struct {
	db *gorm.DB
}

// NewApiLogRepository 创建调用日志仓储
func NewApiLogRepository(db *gorm.DB) ApiLogRepository {
	return &apiLogRepository{db: db}
}

// Save 保存调用日志
func (r *apiLogRepository) Save(ctx context.Context, log *model.ApiLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(log).Error
}

// FindByFilter 分页查询调用日志，最新的在前
func (r *apiLogRepository) FindByFilter(ctx context.Context, filter *ApiLogFilter) ([]*model.ApiLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.ApiLog{})
	page := 1
	if filter != nil {
		if filter.Search != "" {
			like := utils.LikePattern(filter.Search)
			query = query.Where(
				"(endpoint LIKE ? ESCAPE '\\' OR correlation_id LIKE ? ESCAPE '\\' OR error_message LIKE ? ESCAPE '\\')",
				like, like, like,
			)
		}
		if filter.Method != "" {
			query = query.Where("method = ?", filter.Method)
		}
		if filter.StatusCode != nil {
			query = query.Where("status_code = ?", *filter.StatusCode)
		}
		page, _ = utils.NormalizePage(filter.Page, ApiLogPageSize, ApiLogPageSize, ApiLogPageSize)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []*model.ApiLog
	err := query.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * ApiLogPageSize).
		Limit(ApiLogPageSize).
		Find(&logs).Error
	return logs, total, err
}
