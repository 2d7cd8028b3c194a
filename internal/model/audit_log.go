package model

import (
	"encoding/json"
	"errors"
	"time"
)

// 审计资源类型
const (
	AuditResourceNota     = "nota"
	AuditResourceLampiran = "lampiran"
	AuditResourceDocument = "document"
	AuditResourceProfile  = "profile"
)

// AuditLogModel 审计日志数据模型
type AuditLogModel struct {
	ID           string          `json:"id" gorm:"primaryKey;type:varchar(64)"`
	UserID       uint            `json:"user_id" gorm:"not null;index"`
	Action       string          `json:"action" gorm:"type:varchar(64);not null;index"`  // create/update/delete/send/return/decide/sign
	ResourceType string          `json:"resource_type" gorm:"type:varchar(32);not null"` // nota/lampiran/document/profile
	ResourceID   string          `json:"resource_id" gorm:"type:varchar(64);not null;index"`
	RequestID    string          `json:"request_id" gorm:"type:varchar(64);index"`
	IP           string          `json:"ip" gorm:"type:varchar(45)"` // IPv4 或 IPv6
	UserAgent    string          `json:"user_agent" gorm:"type:text"`
	Details      json.RawMessage `json:"details" gorm:"type:text"`
	CreatedAt    time.Time       `json:"created_at" gorm:"not null;index"`
}

// TableName 指定表名
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// Validate 验证审计日志模型
func (alm *AuditLogModel) Validate() error {
	if alm.ID == "" {
		return errors.New("audit log ID is required")
	}
	if alm.UserID == 0 {
		return errors.New("user ID is required")
	}
	if alm.Action == "" {
		return errors.New("action is required")
	}
	if alm.ResourceType == "" {
		return errors.New("resource type is required")
	}
	if alm.ResourceID == "" {
		return errors.New("resource ID is required")
	}
	return nil
}
