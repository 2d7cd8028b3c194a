package model

import (
	"errors"
	"time"
)

// NotaDinas 公文 (routed document)
type NotaDinas struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	SkpdID           uint      `json:"skpd_id" gorm:"not null;index"`
	AsistenID        *uint     `json:"asisten_id" gorm:"index"`
	Nomor            string    `json:"nomor_nota" gorm:"column:nomor_nota;type:varchar(255);not null"`
	Perihal          string    `json:"perihal" gorm:"type:varchar(255);not null"`
	Anggaran         *float64  `json:"anggaran" gorm:"type:numeric(18,2)"`
	TanggalPengajuan time.Time `json:"tanggal_pengajuan" gorm:"not null"`
	Status           Status    `json:"status" gorm:"type:varchar(16);not null;index"`
	TahapSaatIni     Stage     `json:"tahap_saat_ini" gorm:"type:varchar(16);not null;index"`
	CreatedAt        time.Time `json:"created_at" gorm:"not null;index"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"not null"`
}

// TableName 指定表名
func (NotaDinas) TableName() string {
	return "nota_dinas"
}

// Validate 验证公文模型
func (n *NotaDinas) Validate() error {
	if n.SkpdID == 0 {
		return errors.New("skpd ID is required")
	}
	if n.Nomor == "" {
		return errors.New("nomor nota is required")
	}
	if n.Perihal == "" {
		return errors.New("perihal is required")
	}
	if n.TanggalPengajuan.IsZero() {
		return errors.New("tanggal pengajuan is required")
	}
	return nil
}
