package repository

import (
	"context"

	"github.com/mautops/nota-esign/internal/model"
	"gorm.io/gorm"
)

// LampiranRepository 附件仓储接口
type LampiranRepository interface {
	Create(ctx context.Context, lampiran *model.NotaLampiran) error
	FindByID(ctx context.Context, id uint) (*model.NotaLampiran, error)
	FindByNota(ctx context.Context, notaID uint) ([]*model.NotaLampiran, error)
	FindByPengiriman(ctx context.Context, pengirimanID uint) ([]*model.NotaLampiran, error)
}

// lampiranRepository 附件仓储实现
type lampiranRepository struct {
	db *gorm.DB
}

// NewLampiranRepository 创建附件仓储
func NewLampiranRepository(db *gorm.DB) LampiranRepository {
	return &lampiranRepository{db: db}
}

// Create 创建附件
func (r *lampiranRepository) Create(ctx context.Context, lampiran *model.NotaLampiran) error {
	return r.db.WithContext(ctx).Create(lampiran).Error
}

// FindByID 根据 ID 查找附件
func (r *lampiranRepository) FindByID(ctx context.Context, id uint) (*model.NotaLampiran, error) {
	var lampiran model.NotaLampiran
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&lampiran).Error; err != nil {
		return nil, err
	}
	return &lampiran, nil
}

// FindByNota 查找公文的附件，最新的在前
func (r *lampiranRepository) FindByNota(ctx context.Context, notaID uint) ([]*model.NotaLampiran, error) {
	var lampirans []*model.NotaLampiran
	err := r.db.WithContext(ctx).
		Where("nota_dinas_id = ?", notaID).
		Order("created_at DESC").Order("id DESC").
		Find(&lampirans).Error
	return lampirans, err
}

// FindByPengiriman 查找流转记录携带的附件
func (r *lampiranRepository) FindByPengiriman(ctx context.Context, pengirimanID uint) ([]*model.NotaLampiran, error) {
	var lampirans []*model.NotaLampiran
	err := r.db.WithContext(ctx).
		Joins("JOIN nota_pengiriman_lampiran npl ON npl.nota_lampiran_id = nota_lampirans.id").
		Where("npl.nota_pengiriman_id = ?", pengirimanID).
		Order("nota_lampirans.id ASC").
		Find(&lampirans).Error
	return lampirans, err
}
