package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mautops/nota-esign/internal/auth"
	"github.com/mautops/nota-esign/internal/metrics"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/repository"
	"github.com/mautops/nota-esign/internal/routing"
	"github.com/mautops/nota-esign/internal/storage"
	"github.com/mautops/nota-esign/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	maxCatatanLength = 500
	// MaxUploadSize 单个附件上限 4 MiB
	MaxUploadSize = 4 << 20
)

// Upload 上传的文件
type Upload struct {
	Name     string
	MimeType string
	Data     []byte
}

// SendInput 发送公文的输入
type SendInput struct {
	Target  model.Stage
	Catatan string
	Uploads []Upload
}

// RoutingService 公文流转服务
type RoutingService struct {
	db     *gorm.DB
	store  *storage.DocumentStore
	audit  AuditLogService
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewRoutingService 创建流转服务
func NewRoutingService(db *gorm.DB, store *storage.DocumentStore, audit AuditLogService, logger logrus.FieldLogger) *RoutingService {
	return &RoutingService{db: db, store: store, audit: audit, logger: logger, now: time.Now}
}

// Send moves the nota one stage forward. New uploads become the carried
// attachment set; without uploads the previous set is carried forward.
func (s *RoutingService) Send(ctx context.Context, user *model.User, notaID uint, in SendInput) (*model.NotaPengiriman, error) {
	catatan, err := optionalText(in.Catatan, maxCatatanLength)
	if err != nil {
		return nil, err
	}
	for _, u := range in.Uploads {
		if len(u.Data) > MaxUploadSize {
			return nil, utils.NewValidationError("FILE_TOO_LARGE", "Ukuran lampiran maksimal 4 MB")
		}
		if !storage.LooksLikePDF(u.Name, u.MimeType, u.Data) || !storage.IsPDF(u.Data) {
			return nil, ErrInvalidDocument
		}
	}

	var (
		pengiriman *model.NotaPengiriman
		written    []string
		from       model.Stage
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		nota, err := s.loadForActor(ctx, tx, user, notaID)
		if err != nil {
			return err
		}
		if nota.TahapSaatIni == model.StageSelesai {
			return routing.ErrTerminal
		}
		if !routing.CanSend(user.Role, nota.TahapSaatIni) {
			return routing.ErrRoleNotAllowed
		}
		if nota.TahapSaatIni == model.StageSkpd {
			if err := routing.CheckEditable(nota.Status); err != nil {
				return err
			}
		}

		skpd, err := repository.NewSkpdRepository(tx).FindByID(ctx, nota.SkpdID)
		if err != nil {
			return notFound(err)
		}
		next, err := routing.NextStage(nota.TahapSaatIni, in.Target, skpd.AsistenID != nil)
		if err != nil {
			return err
		}

		var lampirans []model.NotaLampiran
		if len(in.Uploads) > 0 {
			lampirans, err = s.storeUploads(ctx, tx, nota.ID, in.Uploads, &written)
		} else {
			lampirans, err = carriedForward(ctx, tx, nota.ID)
		}
		if err != nil {
			return err
		}

		from = nota.TahapSaatIni
		now := s.now()
		pengiriman = &model.NotaPengiriman{
			NotaDinasID:  nota.ID,
			DikirimDari:  from,
			DikirimKe:    next,
			PengirimID:   user.ID,
			Catatan:      catatan,
			TanggalKirim: now,
			Lampirans:    lampirans,
		}
		if err := repository.NewPengirimanRepository(tx).Create(ctx, pengiriman); err != nil {
			return err
		}

		if routing.RecordsApprovalOnSend(user.Role) {
			if err := recordApproval(ctx, tx, user, nota, model.StatusDisetujui, catatan, now); err != nil {
				return err
			}
		}

		return repository.NewNotaRepository(tx).Transition(ctx, nota.ID,
			repository.Position{Stage: nota.TahapSaatIni, Status: nota.Status},
			repository.Position{Stage: next, Status: model.StatusProses})
	})
	if err != nil {
		s.removeObjects(ctx, written)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"event":    "nota.sent",
		"nota_id":  notaID,
		"from":     from,
		"to":       pengiriman.DikirimKe,
		"user_id":  user.ID,
		"lampiran": len(pengiriman.Lampirans),
	}).Info("nota sent")
	metrics.RecordTransition("send")
	recordAudit(ctx, s.audit, s.logger, user.ID, "send", model.AuditResourceNota, idString(notaID), map[string]any{
		"from": from, "to": pengiriman.DikirimKe, "catatan": catatan,
	})
	return pengiriman, nil
}

// Return 将公文退回 SKPD，必须填写说明
func (s *RoutingService) Return(ctx context.Context, user *model.User, notaID uint, catatan string) (*model.NotaPengiriman, error) {
	catatan, err := optionalText(catatan, maxCatatanLength)
	if err != nil {
		return nil, err
	}

	var pengiriman *model.NotaPengiriman
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		nota, err := s.loadForActor(ctx, tx, user, notaID)
		if err != nil {
			return err
		}
		if err := routing.CheckReturn(user.Role, nota.TahapSaatIni, catatan); err != nil {
			return err
		}
		if !routing.CanSend(user.Role, nota.TahapSaatIni) {
			return routing.ErrRoleNotAllowed
		}

		pengiriman, err = s.transmit(ctx, tx, user, nota, model.StageSkpd, model.StatusDikembalikan, catatan)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"event":   "nota.returned",
		"nota_id": notaID,
		"from":    pengiriman.DikirimDari,
		"user_id": user.ID,
	}).Info("nota returned")
	metrics.RecordTransition("return")
	recordAudit(ctx, s.audit, s.logger, user.ID, "return", model.AuditResourceNota, idString(notaID), map[string]any{
		"from": pengiriman.DikirimDari, "catatan": catatan,
	})
	return pengiriman, nil
}

// Decide Bupati 最终审批，公文进入 selesai
func (s *RoutingService) Decide(ctx context.Context, user *model.User, notaID uint, decision model.Status, catatan string) (*model.NotaPengiriman, error) {
	catatan, err := optionalText(catatan, maxCatatanLength)
	if err != nil {
		return nil, err
	}

	var pengiriman *model.NotaPengiriman
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		nota, err := s.loadForActor(ctx, tx, user, notaID)
		if err != nil {
			return err
		}
		status, err := routing.CheckDecision(user.Role, nota.TahapSaatIni, decision)
		if err != nil {
			return err
		}
		pengiriman, err = s.transmit(ctx, tx, user, nota, model.StageSelesai, status, routing.DecisionNote(status, catatan))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"event":    "nota.decided",
		"nota_id":  notaID,
		"decision": decision,
		"user_id":  user.ID,
	}).Info("nota decided")
	metrics.RecordTransition("decide")
	recordAudit(ctx, s.audit, s.logger, user.ID, "decide", model.AuditResourceNota, idString(notaID), map[string]any{
		"decision": decision, "catatan": pengiriman.Catatan,
	})
	return pengiriman, nil
}

// transmit records a transmittal carrying the previous attachment set, the
// approval record of the acting role, and moves the nota to (stage, status).
func (s *RoutingService) transmit(ctx context.Context, tx *gorm.DB, user *model.User, nota *model.NotaDinas, stage model.Stage, status model.Status, catatan string) (*model.NotaPengiriman, error) {
	lampirans, err := carriedForward(ctx, tx, nota.ID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	pengiriman := &model.NotaPengiriman{
		NotaDinasID:  nota.ID,
		DikirimDari:  nota.TahapSaatIni,
		DikirimKe:    stage,
		PengirimID:   user.ID,
		Catatan:      catatan,
		TanggalKirim: now,
		Lampirans:    lampirans,
	}
	if err := repository.NewPengirimanRepository(tx).Create(ctx, pengiriman); err != nil {
		return nil, err
	}
	if err := recordApproval(ctx, tx, user, nota, status, catatan, now); err != nil {
		return nil, err
	}
	err = repository.NewNotaRepository(tx).Transition(ctx, nota.ID,
		repository.Position{Stage: nota.TahapSaatIni, Status: nota.Status},
		repository.Position{Stage: stage, Status: status})
	if err != nil {
		return nil, err
	}
	return pengiriman, nil
}

// loadForActor loads the nota and checks the acting user belongs to it:
// skpd users to the owning SKPD, asisten to a supervised SKPD.
func (s *RoutingService) loadForActor(ctx context.Context, tx *gorm.DB, user *model.User, notaID uint) (*model.NotaDinas, error) {
	if user == nil {
		return nil, auth.ErrAccessDenied
	}
	nota, err := repository.NewNotaRepository(tx).FindByID(ctx, notaID)
	if err != nil {
		return nil, notFound(err)
	}
	switch user.Role {
	case model.RoleSkpd:
		if user.SkpdID == nil || *user.SkpdID != nota.SkpdID {
			return nil, auth.ErrAccessDenied
		}
	case model.RoleAsisten:
		ok, err := supervises(ctx, tx, user, nota.SkpdID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, auth.ErrAccessDenied
		}
	case model.RoleSekda, model.RoleBupati:
	default:
		return nil, auth.ErrAccessDenied
	}
	return nota, nil
}

// storeUploads creates one lampiran per upload and stores its original.
// Paths written so far are appended to written for cleanup.
func (s *RoutingService) storeUploads(ctx context.Context, tx *gorm.DB, notaID uint, uploads []Upload, written *[]string) ([]model.NotaLampiran, error) {
	repo := repository.NewLampiranRepository(tx)
	lampirans := make([]model.NotaLampiran, 0, len(uploads))
	for _, u := range uploads {
		name := u.Name
		if name == "" {
			name = "lampiran.pdf"
		}
		lampiran := &model.NotaLampiran{NotaDinasID: notaID, NamaFile: name}
		if err := repo.Create(ctx, lampiran); err != nil {
			return nil, err
		}
		stored, err := s.store.StoreOriginal(ctx, lampiran.ID, u.Name, u.MimeType, u.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to store %s: %w", name, err)
		}
		*written = append(*written, stored.Path)
		if err := tx.WithContext(ctx).Model(lampiran).Update("path", stored.Path).Error; err != nil {
			return nil, err
		}
		lampiran.Path = stored.Path
		lampirans = append(lampirans, *lampiran)
	}
	return lampirans, nil
}

func (s *RoutingService) removeObjects(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := s.store.Delete(context.WithoutCancel(ctx), p); err != nil {
			s.logger.WithError(err).WithField("path", p).Warn("failed to remove object of aborted send")
		}
	}
}

// carriedForward 上一次流转携带的附件
func carriedForward(ctx context.Context, tx *gorm.DB, notaID uint) ([]model.NotaLampiran, error) {
	previous, err := repository.NewPengirimanRepository(tx).Latest(ctx, notaID)
	if err != nil || previous == nil {
		return nil, err
	}
	return previous.Lampirans, nil
}

func recordApproval(ctx context.Context, tx *gorm.DB, user *model.User, nota *model.NotaDinas, status model.Status, catatan string, at time.Time) error {
	urutan, ok := routing.ApprovalSequence(user.Role)
	if !ok {
		return routing.ErrRoleNotAllowed
	}
	return repository.NewPersetujuanRepository(tx).Create(ctx, &model.NotaPersetujuan{
		NotaDinasID:     nota.ID,
		ApproverID:      user.ID,
		SkpdID:          nota.SkpdID,
		RoleApprover:    user.Role,
		Urutan:          urutan,
		Status:          status,
		CatatanTerakhir: catatan,
		TanggalUpdate:   at,
	})
}

// optionalText 可为空的文本，非空时清理并限制长度
func optionalText(s string, maxLen int) (string, error) {
	out, err := utils.TrimAndValidate(s, maxLen)
	if errors.Is(err, utils.ErrEmptyString) {
		return "", nil
	}
	if err != nil {
		return "", utils.NewValidationError("TEXT_TOO_LONG", fmt.Sprintf("Catatan maksimal %d karakter", maxLen))
	}
	return out, nil
}
