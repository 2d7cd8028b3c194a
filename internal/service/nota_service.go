package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/mautops/nota-esign/internal/auth"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/repository"
	"github.com/mautops/nota-esign/internal/routing"
	"github.com/mautops/nota-esign/internal/storage"
	"github.com/mautops/nota-esign/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxTextLength = 255

// NotaInput 创建或修改公文的输入
type NotaInput struct {
	Nomor            string    `json:"nomor_nota"`
	Perihal          string    `json:"perihal"`
	Anggaran         *float64  `json:"anggaran"`
	TanggalPengajuan time.Time `json:"tanggal_pengajuan"`
}

// validate 清理并验证输入
func (in *NotaInput) validate() error {
	nomor, err := utils.TrimAndValidate(in.Nomor, maxTextLength)
	if err != nil {
		return utils.NewValidationError("INVALID_NOMOR", "Nomor nota wajib diisi dan maksimal 255 karakter")
	}
	perihal, err := utils.TrimAndValidate(in.Perihal, maxTextLength)
	if err != nil {
		return utils.NewValidationError("INVALID_PERIHAL", "Perihal wajib diisi dan maksimal 255 karakter")
	}
	if in.TanggalPengajuan.IsZero() {
		return utils.NewValidationError("INVALID_TANGGAL", "Tanggal pengajuan wajib diisi")
	}
	if in.Anggaran != nil && *in.Anggaran < 0 {
		return utils.NewValidationError("INVALID_ANGGARAN", "Anggaran tidak boleh negatif")
	}
	in.Nomor = nomor
	in.Perihal = perihal
	return nil
}

// NotaPage 公文分页结果
type NotaPage struct {
	Items    []*model.NotaDinas `json:"items"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// NotaService 公文服务
type NotaService struct {
	db     *gorm.DB
	store  *storage.DocumentStore
	audit  AuditLogService
	logger logrus.FieldLogger
}

// NewNotaService 创建公文服务
func NewNotaService(db *gorm.DB, store *storage.DocumentStore, audit AuditLogService, logger logrus.FieldLogger) *NotaService {
	return &NotaService{db: db, store: store, audit: audit, logger: logger}
}

// Create 创建草稿公文，仅 SKPD 用户可用
func (s *NotaService) Create(ctx context.Context, user *model.User, in NotaInput) (*model.NotaDinas, error) {
	if user == nil || user.Role != model.RoleSkpd || user.SkpdID == nil {
		return nil, auth.ErrAccessDenied
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	skpd, err := repository.NewSkpdRepository(s.db).FindByID(ctx, *user.SkpdID)
	if err != nil {
		return nil, notFound(err)
	}

	stage, status, err := routing.Submit("")
	if err != nil {
		return nil, err
	}
	nota := &model.NotaDinas{
		SkpdID:           skpd.ID,
		AsistenID:        skpd.AsistenID,
		Nomor:            in.Nomor,
		Perihal:          in.Perihal,
		Anggaran:         in.Anggaran,
		TanggalPengajuan: in.TanggalPengajuan,
		Status:           status,
		TahapSaatIni:     stage,
	}
	if err := nota.Validate(); err != nil {
		return nil, utils.NewValidationError("INVALID_NOTA", err.Error())
	}
	if err := repository.NewNotaRepository(s.db).Create(ctx, nota); err != nil {
		return nil, err
	}

	recordAudit(ctx, s.audit, s.logger, user.ID, "create", model.AuditResourceNota, idString(nota.ID), in)
	return nota, nil
}

// Update 修改草稿或被退回的公文
func (s *NotaService) Update(ctx context.Context, user *model.User, id uint, in NotaInput) (*model.NotaDinas, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	notas := repository.NewNotaRepository(s.db)
	nota, err := notas.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if !canManage(user, nota) {
		return nil, auth.ErrAccessDenied
	}
	stage, status, err := routing.Submit(nota.Status)
	if err != nil {
		return nil, err
	}

	nota.Nomor = in.Nomor
	nota.Perihal = in.Perihal
	nota.Anggaran = in.Anggaran
	nota.TanggalPengajuan = in.TanggalPengajuan
	nota.TahapSaatIni = stage
	nota.Status = status
	if err := notas.Save(ctx, nota); err != nil {
		return nil, err
	}

	recordAudit(ctx, s.audit, s.logger, user.ID, "update", model.AuditResourceNota, idString(nota.ID), in)
	return nota, nil
}

// Delete 删除公文及其附件文件
func (s *NotaService) Delete(ctx context.Context, user *model.User, id uint) error {
	var lampirans []*model.NotaLampiran
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		notas := repository.NewNotaRepository(tx)
		nota, err := notas.FindByID(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if !canManage(user, nota) {
			return auth.ErrAccessDenied
		}
		if err := routing.CheckEditable(nota.Status); err != nil {
			return err
		}
		lampirans, err = repository.NewLampiranRepository(tx).FindByNota(ctx, id)
		if err != nil {
			return err
		}
		return notas.DeleteCascade(ctx, id)
	})
	if err != nil {
		return err
	}

	for _, l := range lampirans {
		if err := s.store.DeleteDocument(ctx, l.ID); err != nil {
			s.logger.WithError(err).WithField("lampiran_id", l.ID).Warn("failed to delete attachment files")
		}
	}

	recordAudit(ctx, s.audit, s.logger, user.ID, "delete", model.AuditResourceNota, idString(id), map[string]int{"lampiran": len(lampirans)})
	return nil
}

// List 按角色可见范围分页查询公文
func (s *NotaService) List(ctx context.Context, user *model.User, search string, page, pageSize int) (*NotaPage, error) {
	scope, err := routing.VisibilityFor(user)
	if err != nil {
		return nil, auth.ErrAccessDenied
	}
	page, pageSize = utils.NormalizePage(page, pageSize, 10, 100)
	filter := &repository.NotaFilter{
		All:          scope.All,
		SkpdID:       scope.SkpdID,
		Statuses:     scope.Statuses,
		Stage:        scope.Stage,
		SupervisedBy: scope.SupervisedByUser,
		Search:       search,
		Page:         page,
		PageSize:     pageSize,
	}
	items, total, err := repository.NewNotaRepository(s.db).FindByFilter(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &NotaPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// Get 获取公文详情
func (s *NotaService) Get(ctx context.Context, user *model.User, id uint) (*model.NotaDinas, error) {
	nota, err := repository.NewNotaRepository(s.db).FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	ok, err := canView(ctx, s.db, user, nota)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, auth.ErrAccessDenied
	}
	return nota, nil
}

// Attachments 公文的全部附件，最新在前
func (s *NotaService) Attachments(ctx context.Context, user *model.User, id uint) ([]*model.NotaLampiran, error) {
	if _, err := s.Get(ctx, user, id); err != nil {
		return nil, err
	}
	return repository.NewLampiranRepository(s.db).FindByNota(ctx, id)
}

// History 公文流转记录，最新在前
func (s *NotaService) History(ctx context.Context, user *model.User, id uint) ([]*model.NotaPengiriman, error) {
	if _, err := s.Get(ctx, user, id); err != nil {
		return nil, err
	}
	return repository.NewPengirimanRepository(s.db).History(ctx, id)
}

// Approvals 公文审批记录
func (s *NotaService) Approvals(ctx context.Context, user *model.User, id uint) ([]*model.NotaPersetujuan, error) {
	if _, err := s.Get(ctx, user, id); err != nil {
		return nil, err
	}
	return repository.NewPersetujuanRepository(s.db).FindByNota(ctx, id)
}

// TransmittalAttachments 某次流转携带的附件
func (s *NotaService) TransmittalAttachments(ctx context.Context, user *model.User, pengirimanID uint) ([]*model.NotaLampiran, error) {
	pengiriman, err := repository.NewPengirimanRepository(s.db).FindByID(ctx, pengirimanID)
	if err != nil {
		return nil, notFound(err)
	}
	if _, err := s.Get(ctx, user, pengiriman.NotaDinasID); err != nil {
		return nil, err
	}
	return repository.NewLampiranRepository(s.db).FindByPengiriman(ctx, pengirimanID)
}

// canManage 管理员或所属 SKPD 用户
func canManage(user *model.User, nota *model.NotaDinas) bool {
	if user == nil {
		return false
	}
	switch user.Role {
	case model.RoleAdmin:
		return true
	case model.RoleSkpd:
		return user.SkpdID != nil && *user.SkpdID == nota.SkpdID
	default:
		return false
	}
}

// canView reports whether user may read nota. Approvers see a nota while it
// sits at their stage and afterwards when they took part in its routing.
func canView(ctx context.Context, db *gorm.DB, user *model.User, nota *model.NotaDinas) (bool, error) {
	if user == nil {
		return false, nil
	}
	switch user.Role {
	case model.RoleAdmin, model.RoleSkpd:
		return canManage(user, nota), nil
	case model.RoleAsisten:
		supervises, err := supervises(ctx, db, user, nota.SkpdID)
		if err != nil || !supervises {
			return false, err
		}
	case model.RoleSekda, model.RoleBupati:
	default:
		return false, nil
	}

	if string(nota.TahapSaatIni) == string(user.Role) {
		return true, nil
	}
	var count int64
	err := db.WithContext(ctx).Model(&model.NotaPengiriman{}).
		Where("nota_dinas_id = ? AND (pengirim_id = ? OR dikirim_ke = ?)", nota.ID, user.ID, string(user.Role)).
		Count(&count).Error
	return count > 0, err
}

// supervises 判断 asisten 是否负责该 SKPD
func supervises(ctx context.Context, db *gorm.DB, user *model.User, skpdID uint) (bool, error) {
	skpd, err := repository.NewSkpdRepository(db).FindByID(ctx, skpdID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return skpd.AsistenID != nil && *skpd.AsistenID == user.ID, nil
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
