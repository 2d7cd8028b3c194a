package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/repository"
	"github.com/mautops/nota-esign/internal/utils"
	"github.com/sirupsen/logrus"
)

// AuditLogService 审计日志服务
type AuditLogService interface {
	RecordAction(ctx context.Context, userID uint, action string, resourceType string, resourceID string, details interface{}) error
	List(ctx context.Context, filter AuditFilter) ([]*model.AuditLogModel, error)
}

// AuditFilter 审计日志查询条件, 资源或用户至少指定一个
type AuditFilter struct {
	UserID       uint
	ResourceType string
	ResourceID   string
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository) AuditLogService {
	return &auditLogService{
		auditRepo: auditRepo,
	}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(
	ctx context.Context,
	userID uint,
	action string,
	resourceType string,
	resourceID string,
	details interface{},
) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	info := RequestInfoFrom(ctx)
	auditLog := &model.AuditLogModel{
		ID:           uuid.New().String(),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    info.RequestID,
		IP:           info.IP,
		UserAgent:    info.UserAgent,
		Details:      detailsJSON,
		CreatedAt:    time.Now(),
	}

	return s.auditRepo.Save(ctx, auditLog)
}

// List 按资源或用户查询审计日志, 资源优先
func (s *auditLogService) List(ctx context.Context, filter AuditFilter) ([]*model.AuditLogModel, error) {
	switch {
	case filter.ResourceType != "" && filter.ResourceID != "":
		return s.auditRepo.FindByResource(ctx, filter.ResourceType, filter.ResourceID)
	case filter.UserID != 0:
		return s.auditRepo.FindByUserID(ctx, filter.UserID)
	default:
		return nil, utils.NewValidationError("AUDIT_FILTER_REQUIRED", "Filter resource_type dan resource_id atau user_id wajib diisi")
	}
}

// requestInfoKey context 中请求信息的键
type requestInfoKey struct{}

// RequestInfo 请求来源信息
type RequestInfo struct {
	RequestID string
	IP        string
	UserAgent string
}

// WithRequestInfo 将请求信息写入 context
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom 从 context 获取请求信息
func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// recordAudit writes an audit row and only logs failures; the audited
// action has already committed.
func recordAudit(ctx context.Context, svc AuditLogService, logger logrus.FieldLogger, userID uint, action, resourceType, resourceID string, details any) {
	if svc == nil {
		return
	}
	if err := svc.RecordAction(ctx, userID, action, resourceType, resourceID, details); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"action":      action,
			"resource_id": resourceID,
		}).Warn("failed to record audit log")
	}
}
