package repository

import (
	"context"
	"errors"

	"github.com/mautops/nota-esign/internal/model"
	"gorm.io/gorm"
)

// PengirimanRepository 流转记录仓储接口
type PengirimanRepository interface {
	Create(ctx context.Context, pengiriman *model.NotaPengiriman) error
	FindByID(ctx context.Context, id uint) (*model.NotaPengiriman, error)
	Latest(ctx context.Context, notaID uint) (*model.NotaPengiriman, error)
	LatestCarrying(ctx context.Context, lampiranID uint) (*model.NotaPengiriman, error)
	History(ctx context.Context, notaID uint) ([]*model.NotaPengiriman, error)
}

// pengirimanRepository 流转记录仓储实现
type pengirimanRepository struct {
	db *gorm.DB
}

// NewPengirimanRepository 创建流转记录仓储
func NewPengirimanRepository(db *gorm.DB) PengirimanRepository {
	return &pengirimanRepository{db: db}
}

// Create inserts the transmittal together with its carried attachment links.
// Attachments must already exist.
func (r *pengirimanRepository) Create(ctx context.Context, pengiriman *model.NotaPengiriman) error {
	return r.db.WithContext(ctx).
		Omit("Lampirans.*").
		Create(pengiriman).Error
}

// FindByID 根据 ID 查找流转记录
func (r *pengirimanRepository) FindByID(ctx context.Context, id uint) (*model.NotaPengiriman, error) {
	var p model.NotaPengiriman
	if err := r.db.WithContext(ctx).Preload("Lampirans").Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Latest 公文最近一次流转，没有时返回 nil
func (r *pengirimanRepository) Latest(ctx context.Context, notaID uint) (*model.NotaPengiriman, error) {
	var p model.NotaPengiriman
	err := r.db.WithContext(ctx).
		Preload("Lampirans").
		Where("nota_dinas_id = ?", notaID).
		Order("tanggal_kirim DESC").Order("id DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LatestCarrying returns the most recent transmittal whose carried set
// includes lampiranID, ties broken by highest id, or nil.
func (r *pengirimanRepository) LatestCarrying(ctx context.Context, lampiranID uint) (*model.NotaPengiriman, error) {
	var p model.NotaPengiriman
	err := r.db.WithContext(ctx).
		Joins("JOIN nota_pengiriman_lampiran npl ON npl.nota_pengiriman_id = nota_pengirimans.id").
		Where("npl.nota_lampiran_id = ?", lampiranID).
		Order("nota_pengirimans.tanggal_kirim DESC").Order("nota_pengirimans.id DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// History 公文流转历史，最新的在前
func (r *pengirimanRepository) History(ctx context.Context, notaID uint) ([]*model.NotaPengiriman, error) {
	var list []*model.NotaPengiriman
	err := r.db.WithContext(ctx).
		Preload("Lampirans").
		Where("nota_dinas_id = ?", notaID).
		Order("tanggal_kirim DESC").Order("id DESC").
		Find(&list).Error
	return list, err
}
