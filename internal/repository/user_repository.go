package repository

import (
	"context"

	"github.com/mautops/nota-esign/internal/model"
	"gorm.io/gorm"
)

// UserRepository 用户仓储接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByKeycloakID(ctx context.Context, keycloakID string) (*model.User, error)
	NIKTaken(ctx context.Context, nik string, exceptUserID uint) (bool, error)
	UpdateEsignProfile(ctx context.Context, id uint, nik string, signaturePath string) error
}

// userRepository 用户仓储实现
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create 创建用户
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID 根据 ID 查找用户
func (r *userRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByKeycloakID 根据 Keycloak subject 查找启用的用户
func (r *userRepository) FindByKeycloakID(ctx context.Context, keycloakID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("keycloak_id = ? AND status = ?", keycloakID, true).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// NIKTaken 其他用户是否已使用该 NIK
func (r *userRepository) NIKTaken(ctx context.Context, nik string, exceptUserID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("nik = ? AND id <> ?", nik, exceptUserID).
		Count(&count).Error
	return count > 0, err
}

// UpdateEsignProfile 更新 NIK 与签名图片，空值不覆盖
func (r *userRepository) UpdateEsignProfile(ctx context.Context, id uint, nik string, signaturePath string) error {
	updates := map[string]any{}
	if nik != "" {
		updates["nik"] = nik
	}
	if signaturePath != "" {
		updates["signature_path"] = signaturePath
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates).Error
}
