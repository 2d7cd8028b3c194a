package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mautops/nota-esign/internal/auth"
	"github.com/mautops/nota-esign/internal/esign"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/storage"
	"github.com/mautops/nota-esign/internal/utils"
)

// EsignService 电子签名辅助接口：TOTP、验证与机构印章
type EsignService struct {
	client *esign.Client
}

// NewEsignService 创建电子签名辅助服务
func NewEsignService(client *esign.Client) *EsignService {
	return &EsignService{client: client}
}

// RequestTOTP 请求签名 OTP，未提供标识时使用用户 NIK
func (s *EsignService) RequestTOTP(ctx context.Context, user *model.User, nik, email string) (map[string]any, error) {
	if user == nil {
		return nil, auth.ErrAccessDenied
	}
	nik, email = strings.TrimSpace(nik), strings.TrimSpace(email)
	if nik == "" && email == "" {
		nik = user.NIKValue()
	}
	if err := utils.ValidateSignerIdentity(nik, email); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	}
	id := esign.Identity{NIK: nik}
	if utils.ValidateNIK(nik) != nil {
		id = esign.Identity{Email: email}
	}
	return s.decode(s.client.RequestTOTP(s.caller(ctx, user), id), esign.EndpointSignTOTP)
}

// Verify 验证已签名 PDF
func (s *EsignService) Verify(ctx context.Context, user *model.User, fileBase64, password string) (map[string]any, error) {
	if user == nil {
		return nil, auth.ErrAccessDenied
	}
	if _, err := storage.DecodePDFBase64(fileBase64); err != nil {
		return nil, ErrInvalidDocument
	}
	req := esign.VerifyRequest{
		File:     []string{strings.TrimSpace(storage.NormalizeBase64(fileBase64))},
		Password: optionalString(password),
	}
	return s.decode(s.client.VerifyPDF(s.caller(ctx, user), req), esign.EndpointVerify)
}

// Seal 机构印章签署
func (s *EsignService) Seal(ctx context.Context, user *model.User, payload map[string]any) (map[string]any, error) {
	if user == nil {
		return nil, auth.ErrAccessDenied
	}
	return s.decode(s.client.SealPDF(s.caller(ctx, user), payload), esign.EndpointSeal)
}

// SealActivation 印章激活
func (s *EsignService) SealActivation(ctx context.Context, user *model.User, payload map[string]any) (map[string]any, error) {
	if user == nil {
		return nil, auth.ErrAccessDenied
	}
	return s.decode(s.client.SealActivation(s.caller(ctx, user), payload), esign.EndpointSealActivation)
}

// SealTOTP 印章 OTP
func (s *EsignService) SealTOTP(ctx context.Context, user *model.User, payload map[string]any) (map[string]any, error) {
	if user == nil {
		return nil, auth.ErrAccessDenied
	}
	return s.decode(s.client.SealTOTP(s.caller(ctx, user), payload), esign.EndpointSealTOTP)
}

func (s *EsignService) caller(ctx context.Context, user *model.User) context.Context {
	return esign.WithCaller(ctx, user.ID, RequestInfoFrom(ctx).IP)
}

func (s *EsignService) decode(resp *esign.Response, endpoint esign.Endpoint) (map[string]any, error) {
	if err := resp.AsError(endpoint); err != nil {
		return nil, err
	}
	out := map[string]any{}
	if len(resp.Body) == 0 {
		return out, nil
	}
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: undecodable response", esign.ErrProviderSignFailed)
	}
	return out, nil
}
