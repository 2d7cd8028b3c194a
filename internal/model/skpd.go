package model

import "time"

// Skpd 组织单位 (owning organisation of a nota)
type Skpd struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"nama_skpd" gorm:"column:nama_skpd;type:varchar(255);not null"`
	AsistenID *uint     `json:"asisten_id" gorm:"index"`
	Active    bool      `json:"status" gorm:"column:status;not null;default:true"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

// TableName 指定表名
func (Skpd) TableName() string {
	return "skpds"
}
