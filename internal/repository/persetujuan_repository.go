package repository

import (
	"context"

	"github.com/mautops/nota-esign/internal/model"
	"gorm.io/gorm"
)

// PersetujuanRepository 审批记录仓储接口
type PersetujuanRepository interface {
	Create(ctx context.Context, record *model.NotaPersetujuan) error
	FindByNota(ctx context.Context, notaID uint) ([]*model.NotaPersetujuan, error)
}

// persetujuanRepository 审批记录仓储实现
type persetujuanRepository struct {
	db *gorm.DB
}

// NewPersetujuanRepository 创建审批记录仓储
func NewPersetujuanRepository(db *gorm.DB) PersetujuanRepository {
	return &persetujuanRepository{db: db}
}

// Create 创建审批记录
func (r *persetujuanRepository) Create(ctx context.Context, record *model.NotaPersetujuan) error {
	if err := record.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// FindByNota 查找公文的审批记录，按时间先后
func (r *persetujuanRepository) FindByNota(ctx context.Context, notaID uint) ([]*model.NotaPersetujuan, error) {
	var records []*model.NotaPersetujuan
	err := r.db.WithContext(ctx).
		Where("nota_dinas_id = ?", notaID).
		Order("tanggal_update ASC").Order("id ASC").
		Find(&records).Error
	return records, err
}
