package model

import "time"

// NotaLampiran 附件
type NotaLampiran struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	NotaDinasID uint      `json:"nota_dinas_id" gorm:"not null;index"`
	NamaFile    string    `json:"nama_file" gorm:"type:varchar(255);not null"`
	Path        string    `json:"path" gorm:"type:text"` // pointer to the canonical original object
	CreatedAt   time.Time `json:"created_at" gorm:"not null;index"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}

// TableName 指定表名
func (NotaLampiran) TableName() string {
	return "nota_lampirans"
}

// NotaLampiranSignature 附件签名记录, at most one per (lampiran, user)
type NotaLampiranSignature struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	NotaLampiranID uint      `json:"nota_lampiran_id" gorm:"not null;uniqueIndex:idx_lampiran_signatures_lampiran_user"`
	UserID         uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_lampiran_signatures_lampiran_user"`
	Path           string    `json:"path" gorm:"type:text;not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"not null;index"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"not null"`
}

// TableName 指定表名
func (NotaLampiranSignature) TableName() string {
	return "nota_lampiran_signatures"
}
