package service

import (
	"context"
	"fmt"

	"github.com/mautops/nota-esign/internal/model"
	"gorm.io/gorm"
)

// StatisticsService 统计服务接口
type StatisticsService interface {
	NotaByStatus(ctx context.Context) ([]*CountByKey, error)
	NotaByStage(ctx context.Context) ([]*CountByKey, error)
	NotaByDate(ctx context.Context, days int) ([]*CountByKey, error)
	Approvals(ctx context.Context) (*ApprovalStatistics, error)
}

// CountByKey 分组计数
type CountByKey struct {
	Key   string `json:"key" gorm:"column:label"`
	Count int64  `json:"count"`
}

// ApprovalStatistics 审批统计
type ApprovalStatistics struct {
	TotalDecisions int64   `json:"total_decisions"`
	ApprovedCount  int64   `json:"approved_count"`
	RejectedCount  int64   `json:"rejected_count"`
	ReturnedCount  int64   `json:"returned_count"`
	ApprovalRate   float64 `json:"approval_rate"`
	SignatureCount int64   `json:"signature_count"`
}

// statisticsService 统计服务实现
type statisticsService struct {
	db *gorm.DB
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

func (s *statisticsService) groupNota(ctx context.Context, column string) ([]*CountByKey, error) {
	var results []*CountByKey
	err := s.db.WithContext(ctx).Model(&model.NotaDinas{}).
		Select(column + " AS label, COUNT(*) AS count").
		Group(column).
		Order(column).
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count nota by %s: %w", column, err)
	}
	return results, nil
}

// NotaByStatus 按状态统计公文
func (s *statisticsService) NotaByStatus(ctx context.Context) ([]*CountByKey, error) {
	return s.groupNota(ctx, "status")
}

// NotaByStage 按阶段统计公文
func (s *statisticsService) NotaByStage(ctx context.Context) ([]*CountByKey, error) {
	return s.groupNota(ctx, "tahap_saat_ini")
}

// NotaByDate 按提交日期统计最近的公文
func (s *statisticsService) NotaByDate(ctx context.Context, days int) ([]*CountByKey, error) {
	if days <= 0 {
		days = 30
	}
	var results []*CountByKey
	err := s.db.WithContext(ctx).Model(&model.NotaDinas{}).
		Select("DATE(tanggal_pengajuan) AS label, COUNT(*) AS count").
		Group("DATE(tanggal_pengajuan)").
		Order("label DESC").
		Limit(days).
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count nota by date: %w", err)
	}
	return results, nil
}

// Approvals 获取审批统计
func (s *statisticsService) Approvals(ctx context.Context) (*ApprovalStatistics, error) {
	db := s.db.WithContext(ctx)
	var rows []*CountByKey
	err := db.Model(&model.NotaPersetujuan{}).
		Select("status AS label, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count approval records: %w", err)
	}

	stats := &ApprovalStatistics{}
	for _, r := range rows {
		switch model.Status(r.Key) {
		case model.StatusDisetujui:
			stats.ApprovedCount = r.Count
		case model.StatusDitolak:
			stats.RejectedCount = r.Count
		case model.StatusDikembalikan:
			stats.ReturnedCount = r.Count
		}
	}
	stats.TotalDecisions = stats.ApprovedCount + stats.RejectedCount + stats.ReturnedCount
	if stats.TotalDecisions > 0 {
		stats.ApprovalRate = float64(stats.ApprovedCount) / float64(stats.TotalDecisions) * 100
	}

	if err := db.Model(&model.NotaLampiranSignature{}).Count(&stats.SignatureCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count signatures: %w", err)
	}
	return stats, nil
}
