package container

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/nota-esign/internal/auth"
	"github.com/mautops/nota-esign/internal/config"
	"github.com/mautops/nota-esign/internal/database"
	"github.com/mautops/nota-esign/internal/esign"
	"github.com/mautops/nota-esign/internal/integration"
	"github.com/mautops/nota-esign/internal/pdfstamp"
	"github.com/mautops/nota-esign/internal/repository"
	"github.com/mautops/nota-esign/internal/service"
	"github.com/mautops/nota-esign/internal/sharelink"
	"github.com/mautops/nota-esign/internal/storage"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// userCacheTTL 已解析用户的缓存时间
const userCacheTTL = 5 * time.Minute

// Container 依赖注入容器
// 管理数据库、存储、电子签名客户端与各领域服务
type Container struct {
	cfg    *config.Config
	logger logrus.FieldLogger

	db         *gorm.DB
	disk       storage.Disk
	store      *storage.DocumentStore
	dispatcher *integration.APILogDispatcher
	esign      *esign.Client
	stamper    pdfstamp.Stamper
	links      *sharelink.Issuer
	validator  auth.TokenValidator
	users      *auth.CachedUserResolver

	audit      service.AuditLogService
	statistics service.StatisticsService
	notas      *service.NotaService
	routing    *service.RoutingService
	signatures *service.SignatureService
	esignSvc   *service.EsignService
	lampirans  *service.LampiranService
	public     *service.PublicDocumentService
	profiles   *service.UserService
	apiLogs    *service.ApiLogService
}

// Option 容器选项
type Option func(*Container)

// WithTokenValidator 替换 Keycloak 令牌验证器
func WithTokenValidator(v auth.TokenValidator) Option {
	return func(c *Container) { c.validator = v }
}

// WithStamper 替换 PDF 页脚盖章器
func WithStamper(s pdfstamp.Stamper) Option {
	return func(c *Container) { c.stamper = s }
}

// WithDisk 替换文件存储
func WithDisk(d storage.Disk) Option {
	return func(c *Container) { c.disk = d }
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger, opts ...Option) (*Container, error) {
	c := &Container{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(c)
	}

	// 1. 数据库 (重试 3 次, 初始间隔 1 秒, 指数退避)
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	c.db = db

	// 2. 文件存储
	if c.disk == nil {
		disk, err := NewDisk(ctx, cfg.Storage)
		if err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		c.disk = disk
	}
	c.store = storage.NewDocumentStore(c.disk, storage.WithLogger(logger))

	// 3. 公开链接签发器
	c.links, err = sharelink.NewIssuer(cfg.Share.Key, cfg.Share.TTLDuration(), cfg.Server.PublicBaseURL)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to initialize share links: %w", err)
	}

	// 4. 电子签名客户端,调用日志异步写入
	c.dispatcher = integration.NewAPILogDispatcher(db, cfg.ApiLog.Workers, cfg.ApiLog.QueueSize, logger)
	c.esign = esign.NewClient(cfg.Esign, c.dispatcher, esign.WithClientLogger(logger))
	if c.stamper == nil {
		c.stamper = pdfstamp.NewFooterStamper("")
	}

	// 5. 认证
	if c.validator == nil {
		c.validator = auth.NewKeycloakTokenValidator(cfg.Keycloak)
	}
	c.users = auth.NewCachedUserResolver(repository.NewUserRepository(db), auth.NewUserCache(userCacheTTL))

	// 6. 领域服务
	c.audit = service.NewAuditLogService(repository.NewAuditLogRepository(db))
	c.statistics = service.NewStatisticsService(db)
	c.notas = service.NewNotaService(db, c.store, c.audit, logger)
	c.routing = service.NewRoutingService(db, c.store, c.audit, logger)
	c.signatures = service.NewSignatureService(db, c.store, c.esign, c.stamper, c.links, c.audit, logger)
	c.esignSvc = service.NewEsignService(c.esign)
	c.lampirans = service.NewLampiranService(db, c.store, c.links, c.audit, logger)
	c.public = service.NewPublicDocumentService(db, c.store, c.links, logger)
	c.profiles = service.NewUserService(db, c.disk, c.audit, logger, c.users.Invalidate)
	c.apiLogs = service.NewApiLogService(db)

	return c, nil
}

// NewDisk 根据配置创建本地或 S3 存储
func NewDisk(ctx context.Context, cfg config.StorageConfig) (storage.Disk, error) {
	switch cfg.Driver {
	case "", "local":
		return storage.NewLocalDisk(cfg.Root)
	case "s3":
		return storage.NewS3Disk(ctx, storage.S3Options{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// Logger 获取日志记录器
func (c *Container) Logger() logrus.FieldLogger {
	return c.logger
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Disk 获取文件存储
func (c *Container) Disk() storage.Disk {
	return c.disk
}

// TokenValidator 获取令牌验证器
func (c *Container) TokenValidator() auth.TokenValidator {
	return c.validator
}

// UserResolver 获取用户解析器
func (c *Container) UserResolver() *auth.CachedUserResolver {
	return c.users
}

// StatisticsService 获取统计服务
func (c *Container) StatisticsService() service.StatisticsService {
	return c.statistics
}

// NotaService 获取公文服务
func (c *Container) NotaService() *service.NotaService {
	return c.notas
}

// RoutingService 获取流转服务
func (c *Container) RoutingService() *service.RoutingService {
	return c.routing
}

// SignatureService 获取签名服务
func (c *Container) SignatureService() *service.SignatureService {
	return c.signatures
}

// EsignService 获取电子签名辅助服务
func (c *Container) EsignService() *service.EsignService {
	return c.esignSvc
}

// LampiranService 获取附件服务
func (c *Container) LampiranService() *service.LampiranService {
	return c.lampirans
}

// PublicDocumentService 获取公开文档服务
func (c *Container) PublicDocumentService() *service.PublicDocumentService {
	return c.public
}

// UserService 获取用户资料服务
func (c *Container) UserService() *service.UserService {
	return c.profiles
}

// ApiLogService 获取调用日志服务
func (c *Container) ApiLogService() *service.ApiLogService {
	return c.apiLogs
}

// AuditLogService 获取审计日志服务
func (c *Container) AuditLogService() service.AuditLogService {
	return c.audit
}

// Close 关闭容器,先排空调用日志队列再关闭数据库
func (c *Container) Close() error {
	if c.dispatcher != nil {
		c.dispatcher.Close()
	}
	return database.Close(c.db)
}
