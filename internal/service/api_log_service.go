package service

import (
	"context"

	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/repository"
	"gorm.io/gorm"
)

// ApiLogPage 接口日志分页结果
type ApiLogPage struct {
	Items    []*model.ApiLog `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// ApiLogService 电子签名调用日志查询
type ApiLogService struct {
	repo repository.ApiLogRepository
}

// NewApiLogService 创建接口日志服务
func NewApiLogService(db *gorm.DB) *ApiLogService {
	return &ApiLogService{repo: repository.NewApiLogRepository(db)}
}

// List 分页查询调用日志
func (s *ApiLogService) List(ctx context.Context, filter repository.ApiLogFilter) (*ApiLogPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	items, total, err := s.repo.FindByFilter(ctx, &filter)
	if err != nil {
		return nil, err
	}
	return &ApiLogPage{Items: items, Total: total, Page: filter.Page, PageSize: repository.ApiLogPageSize}, nil
}
