package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/mautops/nota-esign/internal/auth"
	"github.com/mautops/nota-esign/internal/esign"
	"github.com/mautops/nota-esign/internal/metrics"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/pdfstamp"
	"github.com/mautops/nota-esign/internal/repository"
	"github.com/mautops/nota-esign/internal/sharelink"
	"github.com/mautops/nota-esign/internal/storage"
	"github.com/mautops/nota-esign/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 签名方式
const (
	MethodPassphrase = "passphrase"
	MethodTOTP       = "totp"
)

// SignOptions 签名参数
type SignOptions struct {
	Method     string `json:"method"`
	Passphrase string `json:"passphrase"`
	TOTP       string `json:"totp"`
	NIK        string `json:"nik"`
	Email      string `json:"email"`

	Tampilan      string   `json:"tampilan"`
	ImageBase64   string   `json:"image_base64"`
	SignaturePath string   `json:"signature_path"`
	Page          *int     `json:"page"`
	OriginX       *float64 `json:"origin_x"`
	OriginY       *float64 `json:"origin_y"`
	Width         *float64 `json:"width"`
	Height        *float64 `json:"height"`
	Tag           string   `json:"tag_koordinat"`
	Location      string   `json:"location"`
	Reason        string   `json:"reason"`
	PdfPassword   string   `json:"pdf_password"`
}

// SignResult 签名结果
type SignResult struct {
	Paths    []string          `json:"paths"`
	Stored   []*storage.Stored `json:"stored"`
	Recorded bool              `json:"recorded"`
}

// signPlan is the validated provider request minus the files.
type signPlan struct {
	request esign.SignRequest
	method  string
	meta    map[string]any
}

// SignatureService 签名流程服务
type SignatureService struct {
	db         *gorm.DB
	store      *storage.DocumentStore
	client     *esign.Client
	authorizer *auth.AttachmentAuthorizer
	stamper    pdfstamp.Stamper
	links      *sharelink.Issuer
	audit      AuditLogService
	logger     logrus.FieldLogger
}

// NewSignatureService 创建签名服务
func NewSignatureService(
	db *gorm.DB,
	store *storage.DocumentStore,
	client *esign.Client,
	stamper pdfstamp.Stamper,
	links *sharelink.Issuer,
	audit AuditLogService,
	logger logrus.FieldLogger,
) *SignatureService {
	return &SignatureService{
		db:         db,
		store:      store,
		client:     client,
		authorizer: auth.NewAttachmentAuthorizer(db),
		stamper:    stamper,
		links:      links,
		audit:      audit,
		logger:     logger,
	}
}

// SignAttachment signs the current rendition of an attachment. The first
// signature is applied to the original stamped with a verification footer;
// later signatures counter-sign the latest signed file.
func (s *SignatureService) SignAttachment(ctx context.Context, user *model.User, lampiranID uint, opts SignOptions) (*SignResult, error) {
	lampiran, err := repository.NewLampiranRepository(s.db).FindByID(ctx, lampiranID)
	if err != nil {
		return nil, notFound(err)
	}
	if err := s.authorizer.Authorize(ctx, user, lampiran); err != nil {
		return nil, err
	}

	base, first, err := s.signingBase(ctx, lampiran)
	if err != nil {
		return nil, err
	}

	ctx = s.callerContext(ctx, user)
	plan, err := s.prepare(ctx, user, opts)
	if err != nil {
		return nil, err
	}

	if first {
		stamped, err := s.stamper.Stamp(base, s.links.QRURL(lampiran.ID))
		if err != nil {
			metrics.RecordSignature("rejected")
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		base = stamped
	}

	files, err := s.callSign(ctx, user, plan, []string{base64.StdEncoding.EncodeToString(base)})
	if err != nil {
		return nil, err
	}

	meta := storage.SignerMeta{
		UserID:        user.ID,
		Name:          user.Name,
		NIK:           plan.request.NIK,
		Method:        plan.method,
		SignatureMeta: plan.meta,
	}
	result := &SignResult{}
	for _, f := range files {
		stored, err := s.store.StoreSignedBase64(ctx, lampiran.ID, f, meta)
		if err != nil {
			metrics.RecordSignature("storage_failed")
			return nil, storedErr(err)
		}
		result.Stored = append(result.Stored, stored)
		result.Paths = append(result.Paths, stored.Path)
	}

	latest := result.Paths[len(result.Paths)-1]
	result.Recorded, err = repository.NewSignatureRepository(s.db).Record(ctx, lampiran.ID, user.ID, latest)
	if err != nil {
		return nil, err
	}

	metrics.RecordSignature("success")
	s.logger.WithFields(logrus.Fields{
		"event":       "esign.sign.completed",
		"lampiran_id": lampiran.ID,
		"user_id":     user.ID,
		"first":       first,
		"recorded":    result.Recorded,
	}).Info("attachment signed")
	recordAudit(ctx, s.audit, s.logger, user.ID, "sign", model.AuditResourceLampiran, idString(lampiran.ID), map[string]any{
		"method": plan.method, "paths": result.Paths,
	})
	return result, nil
}

// SignContent signs caller supplied PDFs that belong to no attachment and
// stores every returned file under the caller's standalone namespace.
func (s *SignatureService) SignContent(ctx context.Context, user *model.User, files []string, opts SignOptions) (*SignResult, error) {
	if user == nil {
		return nil, auth.ErrAccessDenied
	}
	if len(files) == 0 {
		return nil, ErrInvalidDocument
	}
	payload := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := storage.DecodePDFBase64(f); err != nil {
			metrics.RecordSignature("rejected")
			return nil, ErrInvalidDocument
		}
		payload = append(payload, strings.TrimSpace(storage.NormalizeBase64(f)))
	}

	ctx = s.callerContext(ctx, user)
	plan, err := s.prepare(ctx, user, opts)
	if err != nil {
		return nil, err
	}

	signed, err := s.callSign(ctx, user, plan, payload)
	if err != nil {
		return nil, err
	}

	result := &SignResult{}
	for _, f := range signed {
		stored, err := s.store.StoreStandalone(ctx, user.ID, f)
		if err != nil {
			metrics.RecordSignature("storage_failed")
			return nil, storedErr(err)
		}
		result.Stored = append(result.Stored, stored)
		result.Paths = append(result.Paths, stored.Path)
	}

	metrics.RecordSignature("success")
	recordAudit(ctx, s.audit, s.logger, user.ID, "sign", model.AuditResourceDocument, "standalone", map[string]any{
		"method": plan.method, "paths": result.Paths,
	})
	return result, nil
}

// signingBase returns the PDF to send to the provider and whether this is
// the first signature on the attachment.
func (s *SignatureService) signingBase(ctx context.Context, lampiran *model.NotaLampiran) ([]byte, bool, error) {
	p, kind, err := latestRendition(ctx, s.db, s.store, lampiran)
	if err != nil {
		return nil, false, err
	}
	if p == "" {
		return nil, false, ErrInvalidDocument
	}
	data, err := s.store.Read(ctx, p)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, false, ErrInvalidDocument
		}
		return nil, false, err
	}
	if !storage.IsPDF(data) {
		return nil, false, ErrInvalidDocument
	}
	return data, kind == RenditionOriginal, nil
}

// prepare runs the checks in order: signer identity, certificate gate,
// placement, credential. Only the certificate gate talks to the provider.
func (s *SignatureService) prepare(ctx context.Context, user *model.User, opts SignOptions) (*signPlan, error) {
	signer, err := signerIdentity(user, opts)
	if err != nil {
		metrics.RecordSignature("rejected")
		return nil, err
	}
	if _, err := normalizeTampilan(opts.Tampilan); err != nil {
		metrics.RecordSignature("rejected")
		return nil, err
	}
	if err := s.checkCertificate(ctx, signer); err != nil {
		return nil, err
	}
	plan, err := s.plan(ctx, user, opts, signer)
	if err != nil {
		metrics.RecordSignature("rejected")
		return nil, err
	}
	return plan, nil
}

// signerIdentity 请求中的 NIK 或邮箱, 都为空时取用户资料; NIK 优先
func signerIdentity(user *model.User, opts SignOptions) (esign.Identity, error) {
	nik := strings.TrimSpace(opts.NIK)
	email := strings.TrimSpace(opts.Email)
	if nik == "" && email == "" {
		nik = user.NIKValue()
		if nik == "" {
			email = user.Email
		}
	}
	if err := utils.ValidateSignerIdentity(nik, email); err != nil {
		return esign.Identity{}, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	}
	if nik != "" && utils.ValidateNIK(nik) != nil {
		nik = ""
	}
	if nik != "" {
		email = ""
	}
	return esign.Identity{NIK: nik, Email: email}, nil
}

// plan builds the sign request for a resolved signer after the certificate
// gate: placement first, then credential.
func (s *SignatureService) plan(ctx context.Context, user *model.User, opts SignOptions, signer esign.Identity) (*signPlan, error) {
	props, meta, err := s.placement(ctx, user, opts)
	if err != nil {
		return nil, err
	}

	method, err := credentialMethod(opts)
	if err != nil {
		return nil, err
	}

	req := esign.SignRequest{
		NIK:                 signer.NIK,
		Email:               signer.Email,
		SignatureProperties: []esign.SignatureProperties{props},
	}
	if method == MethodPassphrase {
		req.Passphrase = opts.Passphrase
	} else {
		req.TOTP = opts.TOTP
	}
	return &signPlan{request: req, method: method, meta: meta}, nil
}

// placement builds the signature appearance. VISIBLE needs a tag or the
// full coordinate tuple plus an image.
func (s *SignatureService) placement(ctx context.Context, user *model.User, opts SignOptions) (esign.SignatureProperties, map[string]any, error) {
	tampilan, err := normalizeTampilan(opts.Tampilan)
	if err != nil {
		return esign.SignatureProperties{}, nil, err
	}

	props := esign.SignatureProperties{
		Tampilan:    tampilan,
		Page:        1,
		Location:    optionalString(opts.Location),
		Reason:      optionalString(opts.Reason),
		PdfPassword: optionalString(opts.PdfPassword),
	}
	if opts.Page != nil {
		props.Page = *opts.Page
	}
	meta := map[string]any{"tampilan": tampilan, "page": props.Page}

	if tampilan == esign.TampilanInvisible {
		return props, meta, nil
	}

	tag := strings.TrimSpace(opts.Tag)
	complete := opts.Page != nil && opts.OriginX != nil && opts.OriginY != nil && opts.Width != nil && opts.Height != nil
	if tag == "" && !complete {
		return esign.SignatureProperties{}, nil, ErrMissingPlacement
	}
	if complete {
		props.OriginX, props.OriginY = *opts.OriginX, *opts.OriginY
		props.Width, props.Height = *opts.Width, *opts.Height
		meta["originX"], meta["originY"] = props.OriginX, props.OriginY
		meta["width"], meta["height"] = props.Width, props.Height
	}
	if tag != "" {
		props.TagKoordinat = tag
		meta["tag_koordinat"] = tag
	}

	image, err := s.signatureImage(ctx, user, opts)
	if err != nil {
		return esign.SignatureProperties{}, nil, err
	}
	props.ImageBase64 = &image
	return props, meta, nil
}

// signatureImage returns the supplied image, or the one stored at the
// requested path, or the user's profile image.
func (s *SignatureService) signatureImage(ctx context.Context, user *model.User, opts SignOptions) (string, error) {
	if img := strings.TrimSpace(opts.ImageBase64); img != "" {
		return storage.NormalizeBase64(img), nil
	}
	for _, p := range []string{opts.SignaturePath, user.SignaturePath} {
		if p == "" {
			continue
		}
		data, err := s.store.Disk().Get(ctx, p)
		if errors.Is(err, storage.ErrObjectNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		if len(data) > 0 {
			return base64.StdEncoding.EncodeToString(data), nil
		}
	}
	return "", ErrMissingPlacement
}

// checkCertificate aborts when the provider answers OK with a status other
// than ISSUE. Other provider answers let signing proceed.
func (s *SignatureService) checkCertificate(ctx context.Context, signer esign.Identity) error {
	resp := s.client.CheckUserStatus(ctx, signer)
	if !resp.OK() {
		return nil
	}
	var status esign.StatusResponse
	if err := resp.Decode(&status); err != nil || status.Status != esign.CertificateIssued {
		metrics.RecordSignature("certificate_rejected")
		s.logger.WithFields(logrus.Fields{
			"event":          "esign.certificate.rejected",
			"status":         status.Status,
			"correlation_id": resp.CorrelationID,
		}).Warn("signer certificate is not eligible")
		return ErrCertificateNotEligible
	}
	return nil
}

// callSign sends the sign request and returns the signed files.
func (s *SignatureService) callSign(ctx context.Context, user *model.User, plan *signPlan, files []string) ([]string, error) {
	req := plan.request
	req.File = files
	resp := s.client.SignPDF(ctx, req)
	if err := resp.AsError(esign.EndpointSign); err != nil {
		metrics.RecordSignature("provider_failed")
		s.logger.WithFields(logrus.Fields{
			"event":          "esign.sign.failed",
			"user_id":        user.ID,
			"status":         resp.StatusCode,
			"correlation_id": resp.CorrelationID,
		}).Error("provider rejected sign request")
		return nil, err
	}

	var out esign.SignResponse
	if err := resp.Decode(&out); err != nil || len(out.File) == 0 {
		metrics.RecordSignature("provider_failed")
		s.logger.WithFields(logrus.Fields{
			"event":          "esign.sign.failed",
			"user_id":        user.ID,
			"correlation_id": resp.CorrelationID,
		}).Error("provider returned no signed file")
		return nil, fmt.Errorf("%w: response carries no signed file", esign.ErrProviderSignFailed)
	}
	return out.File, nil
}

func (s *SignatureService) callerContext(ctx context.Context, user *model.User) context.Context {
	return esign.WithCaller(ctx, user.ID, RequestInfoFrom(ctx).IP)
}

// storedErr maps a non-PDF provider file to a provider failure.
func storedErr(err error) error {
	if errors.Is(err, storage.ErrNotPDF) {
		return fmt.Errorf("%w: signed file is not a PDF", esign.ErrProviderSignFailed)
	}
	return err
}

// credentialMethod returns the signing method and checks its secret.
func credentialMethod(opts SignOptions) (string, error) {
	method := strings.ToLower(strings.TrimSpace(opts.Method))
	if method == "" {
		switch {
		case opts.Passphrase != "":
			method = MethodPassphrase
		case opts.TOTP != "":
			method = MethodTOTP
		default:
			return "", ErrMissingCredential
		}
	}
	switch method {
	case MethodPassphrase:
		if opts.Passphrase == "" {
			return "", ErrMissingCredential
		}
	case MethodTOTP:
		if opts.TOTP == "" {
			return "", ErrMissingCredential
		}
	default:
		return "", ErrMissingCredential
	}
	return method, nil
}

// normalizeTampilan 默认 INVISIBLE，接受 VIS/INV 简写
func normalizeTampilan(v string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "", "INV", esign.TampilanInvisible:
		return esign.TampilanInvisible, nil
	case "VIS", esign.TampilanVisible:
		return esign.TampilanVisible, nil
	default:
		return "", utils.NewValidationError("INVALID_TAMPILAN", "Tampilan harus VISIBLE atau INVISIBLE")
	}
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
