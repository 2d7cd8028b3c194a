package esign

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Endpoint 电子签名服务接口路径
type Endpoint string

const (
	EndpointSign           Endpoint = "/api/v2/sign/pdf"
	EndpointSignTOTP       Endpoint = "/api/v2/sign/get/totp"
	EndpointVerify         Endpoint = "/api/v2/verify/pdf"
	EndpointUserStatus     Endpoint = "/api/v2/user/check/status"
	EndpointSeal           Endpoint = "/api/v2/seal/pdf"
	EndpointSealActivation Endpoint = "/api/v2/seal/get/activation"
	EndpointSealTOTP       Endpoint = "/api/v2/seal/get/totp"
)

// CertificateIssued 可签名的证书状态
const CertificateIssued = "ISSUE"

// 签名外观
const (
	TampilanVisible   = "VISIBLE"
	TampilanInvisible = "INVISIBLE"
)

// ErrProviderSignFailed 电子签名服务返回失败或不可达
var ErrProviderSignFailed = errors.New("e-signature provider call failed")

// ProviderError carries the provider outcome of a failed call. The body is
// for the audit trail only and is not shown to end users.
type ProviderError struct {
	Endpoint      Endpoint
	StatusCode    int
	Body          string
	CorrelationID string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("esign %s failed with status %d (correlation %s)", e.Endpoint, e.StatusCode, e.CorrelationID)
}

// Unwrap 返回 ErrProviderSignFailed
func (e *ProviderError) Unwrap() error {
	return ErrProviderSignFailed
}

// Identity 签名人标识
type Identity struct {
	NIK   string `json:"nik,omitempty"`
	Email string `json:"email,omitempty"`
}

// SignatureProperties 签名外观与位置
type SignatureProperties struct {
	Tampilan     string  `json:"tampilan"`
	ImageBase64  *string `json:"imageBase64"`
	Page         int     `json:"page"`
	OriginX      float64 `json:"originX"`
	OriginY      float64 `json:"originY"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	TagKoordinat string  `json:"tag_koordinat,omitempty"`
	Location     *string `json:"location"`
	Reason       *string `json:"reason"`
	PdfPassword  *string `json:"pdfPassword,omitempty"`
}

// SignRequest 签名请求
type SignRequest struct {
	NIK                 string                `json:"nik,omitempty"`
	Email               string                `json:"email,omitempty"`
	Passphrase          string                `json:"passphrase,omitempty"`
	TOTP                string                `json:"totp,omitempty"`
	SignatureProperties []SignatureProperties `json:"signatureProperties"`
	File                []string              `json:"file"`
}

// SignResponse 签名响应
type SignResponse struct {
	File []string `json:"file"`
}

// StatusResponse 证书状态响应
type StatusResponse struct {
	Status string `json:"status"`
}

// VerifyRequest 验证请求
type VerifyRequest struct {
	File     []string `json:"file"`
	Password *string  `json:"password"`
}

// Response is the outcome of one provider call. Transport failures are
// reported as status 500 with Err set.
type Response struct {
	StatusCode    int
	Body          []byte
	CorrelationID string
	Err           error
}

// OK 状态码为 200
func (r *Response) OK() bool {
	return r != nil && r.StatusCode == 200
}

// Successful 状态码为 2xx
func (r *Response) Successful() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Failed 状态码 >= 400
func (r *Response) Failed() bool {
	return r == nil || r.StatusCode >= 400
}

// Decode 解析 JSON 响应体
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return errors.New("empty provider response")
	}
	return json.Unmarshal(r.Body, v)
}

// AsError converts a failed response into a *ProviderError, or nil when the
// response is successful.
func (r *Response) AsError(endpoint Endpoint) error {
	if r.Successful() {
		return nil
	}
	pe := &ProviderError{Endpoint: endpoint}
	if r != nil {
		pe.StatusCode = r.StatusCode
		pe.Body = MaskResponse(r.Body, ResponseBodyLimit)
		pe.CorrelationID = r.CorrelationID
		if r.Err != nil {
			pe.Body = r.Err.Error()
		}
	}
	return pe
}
