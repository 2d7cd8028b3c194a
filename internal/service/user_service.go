package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/nota-esign/internal/auth"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/repository"
	"github.com/mautops/nota-esign/internal/storage"
	"github.com/mautops/nota-esign/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MaxSignatureImageSize 签名图片上限 2 MiB
const MaxSignatureImageSize = 2 << 20

// UserService 用户电子签名资料服务
type UserService struct {
	db       *gorm.DB
	disk     storage.Disk
	audit    AuditLogService
	logger   logrus.FieldLogger
	onChange func(userID uint)
}

// NewUserService 创建用户服务，onChange 在资料更新后调用
func NewUserService(db *gorm.DB, disk storage.Disk, audit AuditLogService, logger logrus.FieldLogger, onChange func(userID uint)) *UserService {
	if onChange == nil {
		onChange = func(uint) {}
	}
	return &UserService{db: db, disk: disk, audit: audit, logger: logger, onChange: onChange}
}

// UpdateEsignProfile 更新 NIK 与签名图片
func (s *UserService) UpdateEsignProfile(ctx context.Context, user *model.User, nik string, image *Upload) (*model.User, error) {
	if user == nil {
		return nil, auth.ErrAccessDenied
	}
	nik = strings.TrimSpace(nik)
	if nik == "" && image == nil {
		return nil, utils.NewValidationError("EMPTY_PROFILE", "NIK atau gambar tanda tangan wajib diisi")
	}

	users := repository.NewUserRepository(s.db)
	if nik != "" {
		if err := utils.ValidateNIK(nik); err != nil {
			return nil, err
		}
		taken, err := users.NIKTaken(ctx, nik, user.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, utils.NewValidationError("NIK_TAKEN", "NIK sudah digunakan")
		}
	}

	imagePath := ""
	if image != nil {
		ext, err := imageExtension(image.Data)
		if err != nil {
			return nil, err
		}
		imagePath = fmt.Sprintf("signatures/images/%d/%s-%s.%s", user.ID, time.Now().Format("20060102150405"), uuid.NewString(), ext)
		if err := s.disk.Put(ctx, imagePath, image.Data); err != nil {
			return nil, fmt.Errorf("failed to store signature image: %w", err)
		}
	}

	if err := users.UpdateEsignProfile(ctx, user.ID, nik, imagePath); err != nil {
		if imagePath != "" {
			_ = s.disk.Delete(context.WithoutCancel(ctx), imagePath)
		}
		return nil, err
	}
	s.onChange(user.ID)

	updated, err := users.FindByID(ctx, user.ID)
	if err != nil {
		return nil, notFound(err)
	}
	recordAudit(ctx, s.audit, s.logger, user.ID, "update", model.AuditResourceProfile, idString(user.ID), map[string]bool{
		"nik": nik != "", "image": imagePath != "",
	})
	return updated, nil
}

// imageExtension 仅接受 jpg 与 png
func imageExtension(data []byte) (string, error) {
	if len(data) == 0 {
		return "", utils.NewValidationError("EMPTY_IMAGE", "Gambar tanda tangan kosong")
	}
	if len(data) > MaxSignatureImageSize {
		return "", utils.NewValidationError("IMAGE_TOO_LARGE", "Ukuran gambar tanda tangan maksimal 2 MB")
	}
	switch http.DetectContentType(data) {
	case "image/png":
		return "png", nil
	case "image/jpeg":
		return "jpg", nil
	default:
		return "", utils.NewValidationError("INVALID_IMAGE", "Gambar tanda tangan harus JPG atau PNG")
	}
}
