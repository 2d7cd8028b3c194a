package repository

import (
	"context"
	"errors"

	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/utils"
	"gorm.io/gorm"
)

// ErrStaleTransition 公文状态已被其他请求修改
var ErrStaleTransition = errors.New("nota was changed by another request")

// NotaRepository 公文仓储接口
type NotaRepository interface {
	Create(ctx context.Context, nota *model.NotaDinas) error
	Save(ctx context.Context, nota *model.NotaDinas) error
	FindByID(ctx context.Context, id uint) (*model.NotaDinas, error)
	FindByFilter(ctx context.Context, filter *NotaFilter) ([]*model.NotaDinas, int64, error)
	Transition(ctx context.Context, id uint, from Position, to Position) error
	DeleteCascade(ctx context.Context, id uint) error
}

// Position 公文所处阶段与状态
type Position struct {
	Stage  model.Stage
	Status model.Status
}

// NotaFilter 公文查询过滤器
type NotaFilter struct {
	All          bool
	SkpdID       *uint
	Statuses     []model.Status
	Stage        model.Stage
	SupervisedBy *uint
	Search       string
	Page         int
	PageSize     int
}

// notaRepository 公文仓储实现
type notaRepository struct {
	db *gorm.DB
}

// NewNotaRepository 创建公文仓储
func NewNotaRepository(db *gorm.DB) NotaRepository {
	return &notaRepository{db: db}
}

// Create 创建公文
func (r *notaRepository) Create(ctx context.Context, nota *model.NotaDinas) error {
	return r.db.WithContext(ctx).Create(nota).Error
}

// Save 保存公文
func (r *notaRepository) Save(ctx context.Context, nota *model.NotaDinas) error {
	return r.db.WithContext(ctx).Save(nota).Error
}

// FindByID 根据 ID 查找公文
func (r *notaRepository) FindByID(ctx context.Context, id uint) (*model.NotaDinas, error) {
	var nota model.NotaDinas
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&nota).Error; err != nil {
		return nil, err
	}
	return &nota, nil
}

// FindByFilter 根据过滤器分页查找公文
func (r *notaRepository) FindByFilter(ctx context.Context, filter *NotaFilter) ([]*model.NotaDinas, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.NotaDinas{})

	if filter != nil {
		if !filter.All {
			if filter.SkpdID != nil {
				query = query.Where("skpd_id = ?", *filter.SkpdID)
			}
			if len(filter.Statuses) > 0 {
				query = query.Where("status IN ?", filter.Statuses)
			}
			if filter.Stage != "" {
				query = query.Where("tahap_saat_ini = ?", filter.Stage)
			}
			if filter.SupervisedBy != nil {
				query = query.Where("skpd_id IN (?)",
					r.db.Model(&model.Skpd{}).Select("id").Where("asisten_id = ?", *filter.SupervisedBy))
			}
		}
		if filter.Search != "" {
			like := utils.LikePattern(filter.Search)
			query = query.Where(
				"(nomor_nota LIKE ? ESCAPE '\\' OR perihal LIKE ? ESCAPE '\\' OR tahap_saat_ini LIKE ? ESCAPE '\\')",
				like, like, like,
			)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, size := 1, 10
	if filter != nil {
		page, size = utils.NormalizePage(filter.Page, filter.PageSize, 10, 100)
	}

	var notas []*model.NotaDinas
	err := query.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&notas).Error
	return notas, total, err
}

// Transition moves a nota from one position to another. It fails with
// ErrStaleTransition when the row is no longer at from.
func (r *notaRepository) Transition(ctx context.Context, id uint, from Position, to Position) error {
	result := r.db.WithContext(ctx).Model(&model.NotaDinas{}).
		Where("id = ? AND tahap_saat_ini = ? AND status = ?", id, from.Stage, from.Status).
		Updates(map[string]any{
			"tahap_saat_ini": to.Stage,
			"status":         to.Status,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// DeleteCascade 删除公文及其附件、签名、流转与审批记录
func (r *notaRepository) DeleteCascade(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)
	lampiranIDs := db.Model(&model.NotaLampiran{}).Select("id").Where("nota_dinas_id = ?", id)
	pengirimanIDs := db.Model(&model.NotaPengiriman{}).Select("id").Where("nota_dinas_id = ?", id)

	steps := []func() error{
		func() error {
			return db.Where("nota_lampiran_id IN (?)", lampiranIDs).Delete(&model.NotaLampiranSignature{}).Error
		},
		func() error {
			return db.Exec("DELETE FROM nota_pengiriman_lampiran WHERE nota_pengiriman_id IN (?)", pengirimanIDs).Error
		},
		func() error { return db.Where("nota_dinas_id = ?", id).Delete(&model.NotaPengiriman{}).Error },
		func() error { return db.Where("nota_dinas_id = ?", id).Delete(&model.NotaPersetujuan{}).Error },
		func() error { return db.Where("nota_dinas_id = ?", id).Delete(&model.NotaLampiran{}).Error },
		func() error { return db.Where("id = ?", id).Delete(&model.NotaDinas{}).Error },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
