package repository

import (
	"context"

	"github.com/mautops/nota-esign/internal/model"
	"gorm.io/gorm"
)

// SkpdRepository SKPD 仓储接口
type SkpdRepository interface {
	Create(ctx context.Context, skpd *model.Skpd) error
	FindByID(ctx context.Context, id uint) (*model.Skpd, error)
}

type skpdRepository struct {
	db *gorm.DB
}

// NewSkpdRepository 创建 SKPD 仓储
func NewSkpdRepository(db *gorm.DB) SkpdRepository {
	return &skpdRepository{db: db}
}

func (r *skpdRepository) Create(ctx context.Context, skpd *model.Skpd) error {
	return r.db.WithContext(ctx).Create(skpd).Error
}

func (r *skpdRepository) FindByID(ctx context.Context, id uint) (*model.Skpd, error) {
	var skpd model.Skpd
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&skpd).Error; err != nil {
		return nil, err
	}
	return &skpd, nil
}
