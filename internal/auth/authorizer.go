package auth

import (
	"context"
	"errors"

	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/repository"
	"gorm.io/gorm"
)

// ErrAccessDenied 无权访问
var ErrAccessDenied = errors.New("access denied")

// AttachmentAuthorizer decides whether a user may read or sign an attachment.
type AttachmentAuthorizer struct {
	notas      repository.NotaRepository
	pengiriman repository.PengirimanRepository
	signatures repository.SignatureRepository
}

// NewAttachmentAuthorizer 创建附件授权器
func NewAttachmentAuthorizer(db *gorm.DB) *AttachmentAuthorizer {
	return &AttachmentAuthorizer{
		notas:      repository.NewNotaRepository(db),
		pengiriman: repository.NewPengirimanRepository(db),
		signatures: repository.NewSignatureRepository(db),
	}
}

// Authorize grants access when any of these holds: the user is admin; the
// user is skpd of the owning organisation; the user sent, or holds the
// destination role of, the latest transmittal carrying the attachment; the
// user already signed it.
func (a *AttachmentAuthorizer) Authorize(ctx context.Context, user *model.User, lampiran *model.NotaLampiran) error {
	if user == nil || lampiran == nil {
		return ErrAccessDenied
	}

	switch user.Role {
	case model.RoleAdmin:
		return nil
	case model.RoleSkpd:
		nota, err := a.notas.FindByID(ctx, lampiran.NotaDinasID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if nota != nil && user.SkpdID != nil && *user.SkpdID == nota.SkpdID {
			return nil
		}
	case model.RoleAsisten, model.RoleSekda, model.RoleBupati:
	default:
		return ErrAccessDenied
	}

	latest, err := a.pengiriman.LatestCarrying(ctx, lampiran.ID)
	if err != nil {
		return err
	}
	if latest != nil {
		if latest.PengirimID == user.ID {
			return nil
		}
		if string(latest.DikirimKe) == string(user.Role) {
			return nil
		}
	}

	signed, err := a.signatures.HasSigned(ctx, lampiran.ID, user.ID)
	if err != nil {
		return err
	}
	if signed {
		return nil
	}
	return ErrAccessDenied
}
