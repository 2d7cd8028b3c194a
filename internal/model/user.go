package model

import (
	"errors"
	"time"
)

// User 用户
type User struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	KeycloakID    string    `json:"-" gorm:"type:varchar(64);uniqueIndex"`
	Name          string    `json:"name" gorm:"type:varchar(255);not null"`
	Email         string    `json:"email" gorm:"type:varchar(255);index"`
	NIK           *string   `json:"nik" gorm:"column:nik;type:varchar(16);uniqueIndex"`
	Role          Role      `json:"role" gorm:"type:varchar(16);not null;index"`
	Jabatan       string    `json:"jabatan" gorm:"type:varchar(255)"`
	SkpdID        *uint     `json:"skpd_id" gorm:"index"`
	SignaturePath string    `json:"signature_path" gorm:"type:text"`
	Active        bool      `json:"status" gorm:"column:status;not null;default:true"`
	CreatedAt     time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"not null"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// NIKValue returns the national id or an empty string.
func (u *User) NIKValue() string {
	if u == nil || u.NIK == nil {
		return ""
	}
	return *u.NIK
}

// Validate 验证用户模型
func (u *User) Validate() error {
	if u.Name == "" {
		return errors.New("user name is required")
	}
	if !u.Role.Valid() {
		return errors.New("user role is invalid")
	}
	return nil
}
