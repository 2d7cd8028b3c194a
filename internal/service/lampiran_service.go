package service

import (
	"context"
	"errors"
	"path"
	"time"

	"github.com/mautops/nota-esign/internal/auth"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/repository"
	"github.com/mautops/nota-esign/internal/sharelink"
	"github.com/mautops/nota-esign/internal/storage"
	"github.com/mautops/nota-esign/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LampiranView 附件当前版本描述
type LampiranView struct {
	ID          uint   `json:"id"`
	NotaDinasID uint   `json:"nota_dinas_id"`
	NamaFile    string `json:"nama_file"`
	Rendition   string `json:"rendition"`
	Path        string `json:"path"`
	HasSigned   bool   `json:"has_signed"`
	Signatures  int    `json:"signatures"`
}

// Signer 已签名用户
type Signer struct {
	UserID   uint      `json:"user_id"`
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	SignedAt time.Time `json:"signed_at"`
}

// LampiranStatus 附件签名状态
type LampiranStatus struct {
	Signers   []Signer `json:"signers"`
	HasSigned bool     `json:"has_signed"`
}

// ShareLink 公开链接
type ShareLink struct {
	URL       string    `json:"url"`
	PDFURL    string    `json:"pdf_url"`
	QRURL     string    `json:"qr_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Download 下载内容
type Download struct {
	Name string
	Data []byte
}

// LampiranService 附件与文档服务
type LampiranService struct {
	db         *gorm.DB
	store      *storage.DocumentStore
	authorizer *auth.AttachmentAuthorizer
	links      *sharelink.Issuer
	audit      AuditLogService
	logger     logrus.FieldLogger
}

// NewLampiranService 创建附件服务
func NewLampiranService(db *gorm.DB, store *storage.DocumentStore, links *sharelink.Issuer, audit AuditLogService, logger logrus.FieldLogger) *LampiranService {
	return &LampiranService{
		db:         db,
		store:      store,
		authorizer: auth.NewAttachmentAuthorizer(db),
		links:      links,
		audit:      audit,
		logger:     logger,
	}
}

// load 查找附件并校验访问权限
func (s *LampiranService) load(ctx context.Context, user *model.User, id uint) (*model.NotaLampiran, error) {
	lampiran, err := repository.NewLampiranRepository(s.db).FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if err := s.authorizer.Authorize(ctx, user, lampiran); err != nil {
		return nil, err
	}
	return lampiran, nil
}

// View 当前版本描述
func (s *LampiranService) View(ctx context.Context, user *model.User, id uint) (*LampiranView, error) {
	lampiran, err := s.load(ctx, user, id)
	if err != nil {
		return nil, err
	}
	p, kind, err := latestRendition(ctx, s.db, s.store, lampiran)
	if err != nil {
		return nil, err
	}
	sigs, err := repository.NewSignatureRepository(s.db).FindByLampiran(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &LampiranView{
		ID:          lampiran.ID,
		NotaDinasID: lampiran.NotaDinasID,
		NamaFile:    lampiran.NamaFile,
		Rendition:   kind,
		Path:        p,
		Signatures:  len(sigs),
	}
	for _, sig := range sigs {
		if sig.UserID == user.ID {
			view.HasSigned = true
		}
	}
	return view, nil
}

// Status 签名人列表与当前用户是否已签
func (s *LampiranService) Status(ctx context.Context, user *model.User, id uint) (*LampiranStatus, error) {
	if _, err := s.load(ctx, user, id); err != nil {
		return nil, err
	}
	sigs, err := repository.NewSignatureRepository(s.db).FindByLampiran(ctx, id)
	if err != nil {
		return nil, err
	}
	users := repository.NewUserRepository(s.db)
	status := &LampiranStatus{Signers: make([]Signer, 0, len(sigs))}
	for _, sig := range sigs {
		signer := Signer{UserID: sig.UserID, Path: sig.Path, SignedAt: sig.CreatedAt}
		if u, err := users.FindByID(ctx, sig.UserID); err == nil {
			signer.Name = u.Name
		}
		status.Signers = append(status.Signers, signer)
		if sig.UserID == user.ID {
			status.HasSigned = true
		}
	}
	return status, nil
}

// Share 生成限时公开链接
func (s *LampiranService) Share(ctx context.Context, user *model.User, id uint) (*ShareLink, error) {
	lampiran, err := s.load(ctx, user, id)
	if err != nil {
		return nil, err
	}
	token, exp, err := s.links.Issue(lampiran.ID)
	if err != nil {
		return nil, err
	}
	return &ShareLink{
		URL:       s.links.ViewURL(token),
		PDFURL:    s.links.PDFURL(token),
		QRURL:     s.links.QRURL(lampiran.ID),
		ExpiresAt: exp,
	}, nil
}

// UploadOriginal 上传新的原始文件并更新附件指针
func (s *LampiranService) UploadOriginal(ctx context.Context, user *model.User, id uint, upload Upload) (*storage.Stored, error) {
	lampiran, err := s.load(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if len(upload.Data) > MaxUploadSize {
		return nil, utils.NewValidationError("FILE_TOO_LARGE", "Ukuran lampiran maksimal 4 MB")
	}
	stored, err := s.store.StoreOriginal(ctx, lampiran.ID, upload.Name, upload.MimeType, upload.Data)
	if err != nil {
		return nil, uploadErr(err)
	}
	if err := s.db.WithContext(ctx).Model(lampiran).Update("path", stored.Path).Error; err != nil {
		return nil, err
	}
	recordAudit(ctx, s.audit, s.logger, user.ID, "upload_original", model.AuditResourceLampiran, idString(id), stored)
	return stored, nil
}

// UploadSigned 上传已签名文件，data 或 base64 二选一
func (s *LampiranService) UploadSigned(ctx context.Context, user *model.User, id uint, upload *Upload, b64 string) (*storage.Stored, error) {
	lampiran, err := s.load(ctx, user, id)
	if err != nil {
		return nil, err
	}
	meta := storage.SignerMeta{UserID: user.ID, Name: user.Name, NIK: user.NIKValue(), Method: "upload"}

	var stored *storage.Stored
	switch {
	case upload != nil:
		if len(upload.Data) > MaxUploadSize {
			return nil, utils.NewValidationError("FILE_TOO_LARGE", "Ukuran lampiran maksimal 4 MB")
		}
		stored, err = s.store.StoreSigned(ctx, lampiran.ID, upload.Name, upload.MimeType, upload.Data, meta)
	case b64 != "":
		stored, err = s.store.StoreSignedBase64(ctx, lampiran.ID, b64, meta)
	default:
		return nil, ErrInvalidDocument
	}
	if err != nil {
		return nil, uploadErr(err)
	}
	recordAudit(ctx, s.audit, s.logger, user.ID, "upload_signed", model.AuditResourceLampiran, idString(id), stored)
	return stored, nil
}

// Download 下载原始或已签名文件，version 仅用于已签名文件
func (s *LampiranService) Download(ctx context.Context, user *model.User, id uint, kind, version string) (*Download, error) {
	lampiran, err := s.load(ctx, user, id)
	if err != nil {
		return nil, err
	}
	var p string
	switch kind {
	case RenditionSigned:
		p, err = s.store.LatestSigned(ctx, lampiran.ID, version)
	case RenditionOriginal, "":
		p, err = s.store.LatestOriginal(ctx, lampiran.ID)
		if err == nil && p == "" {
			if ok, _ := s.store.Exists(ctx, lampiran.Path); ok {
				p = lampiran.Path
			}
		}
	default:
		return nil, utils.NewValidationError("INVALID_TYPE", "Tipe harus original atau signed")
	}
	if err != nil {
		return nil, err
	}
	if p == "" {
		return nil, ErrNotFound
	}
	data, err := s.store.Read(ctx, p)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Download{Name: path.Base(p), Data: data}, nil
}

// Manifest 读取签名清单
func (s *LampiranService) Manifest(ctx context.Context, user *model.User, id uint, version string) (*storage.Manifest, error) {
	lampiran, err := s.load(ctx, user, id)
	if err != nil {
		return nil, err
	}
	m, err := s.store.GetManifest(ctx, lampiran.ID, version)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound
	}
	return m, nil
}

// Versions 已签名版本列表
func (s *LampiranService) Versions(ctx context.Context, user *model.User, id uint) ([]string, error) {
	lampiran, err := s.load(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return s.store.SignedVersions(ctx, lampiran.ID)
}

func uploadErr(err error) error {
	if errors.Is(err, storage.ErrNotPDF) {
		return ErrInvalidDocument
	}
	return err
}
