package esign

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/nota-esign/internal/config"
	"github.com/mautops/nota-esign/internal/metrics"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ForwardedForHeader 转发客户端 IP 的请求头
const ForwardedForHeader = "X-Forwarded-For"

// Recorder 接收调用日志
type Recorder interface {
	Record(ctx context.Context, entry *model.ApiLog)
}

// RecorderFunc 函数形式的 Recorder
type RecorderFunc func(ctx context.Context, entry *model.ApiLog)

// Record 调用函数
func (f RecorderFunc) Record(ctx context.Context, entry *model.ApiLog) {
	f(ctx, entry)
}

type callerKey struct{}

type caller struct {
	userID *uint
	ip     string
}

// WithCaller 在 context 中记录调用者
func WithCaller(ctx context.Context, userID uint, clientIP string) context.Context {
	id := userID
	return context.WithValue(ctx, callerKey{}, caller{userID: &id, ip: clientIP})
}

func callerFrom(ctx context.Context) caller {
	c, _ := ctx.Value(callerKey{}).(caller)
	return c
}

// Client 电子签名服务客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
	user       string
	password   string
	forwardIP  bool
	masker     *Masker
	recorder   Recorder
	logger     logrus.FieldLogger
	tracer     trace.Tracer
}

// ClientOption 客户端选项
type ClientOption func(*Client)

// WithHTTPClient 指定 HTTP 客户端
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithClientLogger 指定日志
func WithClientLogger(logger logrus.FieldLogger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient 创建电子签名服务客户端
func NewClient(cfg config.EsignConfig, recorder Recorder, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.TimeoutDuration()},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		user:       cfg.User,
		password:   cfg.Password,
		forwardIP:  cfg.ForwardClientIP,
		masker:     NewDefaultMasker(),
		recorder:   recorder,
		logger:     logrus.StandardLogger(),
		tracer:     otel.Tracer("github.com/mautops/nota-esign/internal/esign"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.recorder == nil {
		c.recorder = RecorderFunc(func(context.Context, *model.ApiLog) {})
	}
	return c
}

// SignPDF 签名 PDF
func (c *Client) SignPDF(ctx context.Context, req SignRequest) *Response {
	return c.post(ctx, EndpointSign, req)
}

// RequestTOTP 请求签名 OTP
func (c *Client) RequestTOTP(ctx context.Context, id Identity) *Response {
	return c.post(ctx, EndpointSignTOTP, id)
}

// VerifyPDF 验证 PDF 签名
func (c *Client) VerifyPDF(ctx context.Context, req VerifyRequest) *Response {
	return c.post(ctx, EndpointVerify, req)
}

// CheckUserStatus 查询证书状态
func (c *Client) CheckUserStatus(ctx context.Context, id Identity) *Response {
	return c.post(ctx, EndpointUserStatus, id)
}

// SealPDF 机构印章
func (c *Client) SealPDF(ctx context.Context, payload map[string]any) *Response {
	return c.post(ctx, EndpointSeal, payload)
}

// SealActivation 获取印章激活
func (c *Client) SealActivation(ctx context.Context, payload map[string]any) *Response {
	return c.post(ctx, EndpointSealActivation, payload)
}

// SealTOTP 获取印章 OTP
func (c *Client) SealTOTP(ctx context.Context, payload map[string]any) *Response {
	return c.post(ctx, EndpointSealTOTP, payload)
}

func (c *Client) post(ctx context.Context, endpoint Endpoint, payload any) *Response {
	return c.requestWithLog(ctx, endpoint, http.MethodPost, payload)
}

// requestWithLog performs one call and always hands a masked entry to the
// recorder, whatever the outcome.
func (c *Client) requestWithLog(ctx context.Context, endpoint Endpoint, method string, payload any) *Response {
	correlationID := uuid.NewString()
	who := callerFrom(ctx)

	ctx, span := c.tracer.Start(ctx, "esign "+string(endpoint),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("esign.endpoint", string(endpoint)),
			attribute.String("esign.correlation_id", correlationID),
		))
	defer span.End()

	start := time.Now()
	resp := c.do(ctx, endpoint, method, payload)
	resp.CorrelationID = correlationID
	elapsed := time.Since(start)

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.Err != nil {
		span.RecordError(resp.Err)
	}
	if resp.Failed() {
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", resp.StatusCode))
	}
	metrics.RecordProviderCall(string(endpoint), resp.StatusCode, elapsed.Seconds())

	maskedPayload, err := c.masker.MaskRequest(payload)
	if err != nil {
		maskedPayload = []byte(`{}`)
	}
	entry := &model.ApiLog{
		CorrelationID:  correlationID,
		UserID:         who.userID,
		Endpoint:       string(endpoint),
		Method:         method,
		StatusCode:     resp.StatusCode,
		RequestPayload: maskedPayload,
		ResponseBody:   MaskResponse(resp.Body, ResponseBodyLimit),
		DurationMs:     elapsed.Milliseconds(),
		CreatedAt:      time.Now(),
	}
	if resp.Err != nil {
		entry.ErrorMessage = resp.Err.Error()
	}
	c.recorder.Record(ctx, entry)

	fields := logrus.Fields{
		"correlation_id": correlationID,
		"endpoint":       string(endpoint),
		"status":         resp.StatusCode,
		"duration_ms":    entry.DurationMs,
	}
	if who.userID != nil {
		fields["user_id"] = *who.userID
	}
	if resp.Failed() {
		c.logger.WithFields(fields).Warn("esign call failed")
	} else {
		c.logger.WithFields(fields).Debug("esign call completed")
	}
	return resp
}

func (c *Client) do(ctx context.Context, endpoint Endpoint, method string, payload any) *Response {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Response{StatusCode: http.StatusInternalServerError, Err: fmt.Errorf("encode payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+string(endpoint), bytes.NewReader(body))
	if err != nil {
		return &Response{StatusCode: http.StatusInternalServerError, Err: err}
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if who := callerFrom(ctx); c.forwardIP && who.ip != "" {
		req.Header.Set(ForwardedForHeader, who.ip)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return &Response{StatusCode: http.StatusInternalServerError, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil && !errors.Is(err, io.EOF) {
		return &Response{StatusCode: http.StatusInternalServerError, Err: fmt.Errorf("read response: %w", err)}
	}
	return &Response{StatusCode: httpResp.StatusCode, Body: respBody}
}
