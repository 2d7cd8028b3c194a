package model

import (
	"errors"
	"time"
)

// ApiLog 电子签名服务调用日志
type ApiLog struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	CorrelationID  string    `json:"correlation_id" gorm:"type:varchar(64);not null;index"`
	UserID         *uint     `json:"user_id" gorm:"index"`
	Endpoint       string    `json:"endpoint" gorm:"type:varchar(255);not null;index"`
	Method         string    `json:"method" gorm:"type:varchar(16);not null"`
	StatusCode     int       `json:"status_code" gorm:"type:int"`
	RequestPayload []byte    `json:"request_payload" gorm:"type:text"` // masked JSON
	ResponseBody   string    `json:"response_body" gorm:"type:text"`   // masked, truncated
	DurationMs     int64     `json:"duration_ms" gorm:"type:bigint"`
	ErrorMessage   string    `json:"error_message" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at" gorm:"not null;index"`
}

// TableName 指定表名
func (ApiLog) TableName() string {
	return "api_logs"
}

// Validate 验证调用日志
func (l *ApiLog) Validate() error {
	if l.CorrelationID == "" {
		return errors.New("correlation ID is required")
	}
	if l.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if l.Method == "" {
		return errors.New("method is required")
	}
	return nil
}
