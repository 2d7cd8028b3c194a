package model

import (
	"errors"
	"time"
)

// NotaPengiriman 流转记录 (append-only transmittal log)
type NotaPengiriman struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	NotaDinasID  uint           `json:"nota_dinas_id" gorm:"not null;index"`
	DikirimDari  Stage          `json:"dikirim_dari" gorm:"type:varchar(16);not null"`
	DikirimKe    Stage          `json:"dikirim_ke" gorm:"type:varchar(16);not null;index"`
	PengirimID   uint           `json:"pengirim_id" gorm:"not null;index"`
	Catatan      string         `json:"catatan" gorm:"type:text"`
	TanggalKirim time.Time      `json:"tanggal_kirim" gorm:"not null;index"`
	Lampirans    []NotaLampiran `json:"lampirans" gorm:"many2many:nota_pengiriman_lampiran;"`
	CreatedAt    time.Time      `json:"created_at" gorm:"not null"`
}

// TableName 指定表名
func (NotaPengiriman) TableName() string {
	return "nota_pengirimans"
}

// Validate 验证流转记录
func (p *NotaPengiriman) Validate() error {
	if p.NotaDinasID == 0 {
		return errors.New("nota dinas ID is required")
	}
	if !p.DikirimKe.Valid() {
		return errors.New("destination stage is invalid")
	}
	if p.PengirimID == 0 {
		return errors.New("sender ID is required")
	}
	return nil
}
