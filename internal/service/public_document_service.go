package service

import (
	"context"
	"path"

	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/repository"
	"github.com/mautops/nota-esign/internal/sharelink"
	"github.com/mautops/nota-esign/internal/storage"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PublicDocument 公开查看的附件描述
type PublicDocument struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	HasSigned bool   `json:"hasSigned"`
}

// PublicDocumentService serves anonymous verification links. Every failure
// is reported as sharelink.ErrLinkGone so callers cannot probe for ids.
type PublicDocumentService struct {
	db     *gorm.DB
	store  *storage.DocumentStore
	links  *sharelink.Issuer
	logger logrus.FieldLogger
}

// NewPublicDocumentService 创建公开文档服务
func NewPublicDocumentService(db *gorm.DB, store *storage.DocumentStore, links *sharelink.Issuer, logger logrus.FieldLogger) *PublicDocumentService {
	return &PublicDocumentService{db: db, store: store, links: links, logger: logger}
}

// QR 解析二维码并返回带新令牌的查看地址
func (s *PublicDocumentService) QR(ctx context.Context, code string) (string, error) {
	id, err := sharelink.ResolveCode(code)
	if err != nil {
		return "", err
	}
	if _, err := s.lampiran(ctx, id); err != nil {
		return "", err
	}
	token, _, err := s.links.Issue(id)
	if err != nil {
		return "", err
	}
	return s.links.ViewURL(token), nil
}

// View 令牌对应的附件描述
func (s *PublicDocumentService) View(ctx context.Context, token string) (*PublicDocument, error) {
	id, err := s.links.Validate(token)
	if err != nil {
		return nil, err
	}
	lampiran, err := s.lampiran(ctx, id)
	if err != nil {
		return nil, err
	}
	sigs, err := repository.NewSignatureRepository(s.db).FindByLampiran(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PublicDocument{
		ID:        lampiran.ID,
		Name:      lampiran.NamaFile,
		URL:       s.links.PDFURL(token),
		HasSigned: len(sigs) > 0,
	}, nil
}

// PDF 最新已签名文件，没有时返回最新原始文件
func (s *PublicDocumentService) PDF(ctx context.Context, token string) (*Download, error) {
	id, err := s.links.Validate(token)
	if err != nil {
		return nil, err
	}
	lampiran, err := s.lampiran(ctx, id)
	if err != nil {
		return nil, err
	}
	p, _, err := latestRendition(ctx, s.db, s.store, lampiran)
	if err != nil {
		return nil, err
	}
	if p == "" {
		return nil, sharelink.ErrLinkGone
	}
	data, err := s.store.Read(ctx, p)
	if err != nil {
		s.logger.WithError(err).WithField("lampiran_id", id).Warn("public document is unreadable")
		return nil, sharelink.ErrLinkGone
	}
	return &Download{Name: path.Base(p), Data: data}, nil
}

func (s *PublicDocumentService) lampiran(ctx context.Context, id uint) (*model.NotaLampiran, error) {
	lampiran, err := repository.NewLampiranRepository(s.db).FindByID(ctx, id)
	if err != nil {
		if notFound(err) == ErrNotFound {
			return nil, sharelink.ErrLinkGone
		}
		return nil, err
	}
	return lampiran, nil
}
