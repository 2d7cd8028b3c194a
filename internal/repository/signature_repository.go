package repository

import (
	"context"
	"errors"

	"github.com/mautops/nota-esign/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SignatureRepository 附件签名仓储接口
type SignatureRepository interface {
	Record(ctx context.Context, lampiranID, userID uint, path string) (bool, error)
	FindByLampiran(ctx context.Context, lampiranID uint) ([]*model.NotaLampiranSignature, error)
	Latest(ctx context.Context, lampiranID uint) (*model.NotaLampiranSignature, error)
	HasSigned(ctx context.Context, lampiranID, userID uint) (bool, error)
}

// signatureRepository 附件签名仓储实现
type signatureRepository struct {
	db *gorm.DB
}

// NewSignatureRepository 创建附件签名仓储
func NewSignatureRepository(db *gorm.DB) SignatureRepository {
	return &signatureRepository{db: db}
}

// Record inserts the (lampiran, user) signature row. A second insert for the
// same pair is a no-op and reports false.
func (r *signatureRepository) Record(ctx context.Context, lampiranID, userID uint, path string) (bool, error) {
	sig := &model.NotaLampiranSignature{
		NotaLampiranID: lampiranID,
		UserID:         userID,
		Path:           path,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "nota_lampiran_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(sig)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindByLampiran 查找附件的签名记录，按签名先后排序
func (r *signatureRepository) FindByLampiran(ctx context.Context, lampiranID uint) ([]*model.NotaLampiranSignature, error) {
	var sigs []*model.NotaLampiranSignature
	err := r.db.WithContext(ctx).
		Where("nota_lampiran_id = ?", lampiranID).
		Order("created_at ASC").Order("id ASC").
		Find(&sigs).Error
	return sigs, err
}

// Latest 最近一次签名，没有时返回 nil
func (r *signatureRepository) Latest(ctx context.Context, lampiranID uint) (*model.NotaLampiranSignature, error) {
	var sig model.NotaLampiranSignature
	err := r.db.WithContext(ctx).
		Where("nota_lampiran_id = ?", lampiranID).
		Order("created_at DESC").Order("id DESC").
		First(&sig).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

// HasSigned 用户是否已签署附件
func (r *signatureRepository) HasSigned(ctx context.Context, lampiranID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.NotaLampiranSignature{}).
		Where("nota_lampiran_id = ? AND user_id = ?", lampiranID, userID).
		Count(&count).Error
	return count > 0, err
}
