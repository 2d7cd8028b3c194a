package service

import (
	"context"

	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/repository"
	"github.com/mautops/nota-esign/internal/storage"
	"gorm.io/gorm"
)

// 附件版本类型
const (
	RenditionSigned   = "signed"
	RenditionOriginal = "original"
)

// latestRendition returns the current file of an attachment: the latest
// signed object, then the latest signature record, then the latest original,
// then the lampiran pointer. An empty path means no file exists.
func latestRendition(ctx context.Context, db *gorm.DB, store *storage.DocumentStore, lampiran *model.NotaLampiran) (string, string, error) {
	signed, err := store.LatestSigned(ctx, lampiran.ID, storage.DefaultVersion)
	if err != nil {
		return "", "", err
	}
	if signed != "" {
		return signed, RenditionSigned, nil
	}

	sig, err := repository.NewSignatureRepository(db).Latest(ctx, lampiran.ID)
	if err != nil {
		return "", "", err
	}
	if sig != nil {
		if ok, _ := store.Exists(ctx, sig.Path); ok {
			return sig.Path, RenditionSigned, nil
		}
	}

	original, err := store.LatestOriginal(ctx, lampiran.ID)
	if err != nil {
		return "", "", err
	}
	if original != "" {
		return original, RenditionOriginal, nil
	}
	if ok, _ := store.Exists(ctx, lampiran.Path); ok {
		return lampiran.Path, RenditionOriginal, nil
	}
	return "", "", nil
}
