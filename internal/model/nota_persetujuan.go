package model

import (
	"errors"
	"time"
)

// 审批顺序
const (
	UrutanAsisten = 1
	UrutanSekda   = 2
	UrutanBupati  = 3
)

// NotaPersetujuan 审批记录 (append-only)
type NotaPersetujuan struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	NotaDinasID     uint      `json:"nota_dinas_id" gorm:"not null;index"`
	ApproverID      uint      `json:"approver_id" gorm:"not null;index"`
	SkpdID          uint      `json:"skpd_id" gorm:"not null"`
	RoleApprover    Role      `json:"role_approver" gorm:"type:varchar(16);not null"`
	Urutan          int       `json:"urutan" gorm:"not null"`
	Status          Status    `json:"status" gorm:"type:varchar(16);not null"`
	CatatanTerakhir string    `json:"catatan_terakhir" gorm:"type:text"`
	TanggalUpdate   time.Time `json:"tanggal_update" gorm:"not null;index"`
	CreatedAt       time.Time `json:"created_at" gorm:"not null"`
}

// TableName 指定表名
func (NotaPersetujuan) TableName() string {
	return "nota_persetujuans"
}

// Validate 验证审批记录
func (p *NotaPersetujuan) Validate() error {
	if p.NotaDinasID == 0 {
		return errors.New("nota dinas ID is required")
	}
	if p.ApproverID == 0 {
		return errors.New("approver ID is required")
	}
	if p.Urutan < UrutanAsisten || p.Urutan > UrutanBupati {
		return errors.New("urutan is out of range")
	}
	return nil
}
