package esign_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mautops/nota-esign/internal/config"
	"github.com/mautops/nota-esign/internal/esign"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRecorder struct {
	mu      sync.Mutex
	entries []*model.ApiLog
}

func (r *memoryRecorder) Record(_ context.Context, entry *model.ApiLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *memoryRecorder) all() []*model.ApiLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.ApiLog(nil), r.entries...)
}

// TestClient_SignPDF 测试签名调用
func TestClient_SignPDF(t *testing.T) {
	var gotUser, gotPass, gotIP, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		gotIP = r.Header.Get(esign.ForwardedForHeader)
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"file":["JVBERi0xLjcK"]}`))
	}))
	defer srv.Close()

	rec := &memoryRecorder{}
	client := esign.NewClient(config.EsignConfig{
		BaseURL:         srv.URL + "/",
		User:            "bsre",
		Password:        "pw",
		ForwardClientIP: true,
	}, rec)

	ctx := esign.WithCaller(context.Background(), 42, "10.1.2.3")
	resp := client.SignPDF(ctx, esign.SignRequest{
		NIK:        "1234567890123456",
		Passphrase: "super-secret",
		File:       []string{"JVBERi0xLjQK"},
	})

	require.True(t, resp.OK())
	assert.NoError(t, resp.AsError(esign.EndpointSign))
	assert.Equal(t, "/api/v2/sign/pdf", gotPath)
	assert.Equal(t, "bsre", gotUser)
	assert.Equal(t, "pw", gotPass)
	assert.Equal(t, "10.1.2.3", gotIP)
	assert.Equal(t, "super-secret", gotBody["passphrase"], "the provider receives the real secret")

	var signed esign.SignResponse
	require.NoError(t, resp.Decode(&signed))
	assert.Equal(t, []string{"JVBERi0xLjcK"}, signed.File)

	entries := rec.all()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, resp.CorrelationID, entry.CorrelationID)
	assert.NotEmpty(t, entry.CorrelationID)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, uint(42), *entry.UserID)
	assert.Equal(t, "/api/v2/sign/pdf", entry.Endpoint)
	assert.Equal(t, http.MethodPost, entry.Method)
	assert.Equal(t, 200, entry.StatusCode)
	assert.NotContains(t, string(entry.RequestPayload), "super-secret")
	assert.NotContains(t, string(entry.RequestPayload), "JVBERi0xLjQK")
	assert.NotContains(t, entry.ResponseBody, "JVBERi0xLjcK")
}

// TestClient_NoForwardedIPByDefault 测试默认不转发 IP
func TestClient_NoForwardedIPByDefault(t *testing.T) {
	var gotIP string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP = r.Header.Get(esign.ForwardedForHeader)
		_, _ = w.Write([]byte(`{"status":"ISSUE"}`))
	}))
	defer srv.Close()

	client := esign.NewClient(config.EsignConfig{BaseURL: srv.URL}, nil)
	resp := client.CheckUserStatus(esign.WithCaller(context.Background(), 1, "10.0.0.1"), esign.Identity{NIK: "1234567890123456"})
	require.True(t, resp.OK())
	assert.Empty(t, gotIP)

	var status esign.StatusResponse
	require.NoError(t, resp.Decode(&status))
	assert.Equal(t, esign.CertificateIssued, status.Status)
}

// TestClient_ProviderFailure 测试服务返回失败
func TestClient_ProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"passphrase salah"}`))
	}))
	defer srv.Close()

	rec := &memoryRecorder{}
	client := esign.NewClient(config.EsignConfig{BaseURL: srv.URL}, rec)
	resp := client.SignPDF(context.Background(), esign.SignRequest{TOTP: "654321"})
	assert.True(t, resp.Failed())

	err := resp.AsError(esign.EndpointSign)
	require.Error(t, err)
	assert.ErrorIs(t, err, esign.ErrProviderSignFailed)
	var pe *esign.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	assert.Contains(t, pe.Body, "passphrase salah")
	assert.Equal(t, resp.CorrelationID, pe.CorrelationID)

	entries := rec.all()
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].UserID)
	assert.NotContains(t, string(entries[0].RequestPayload), "654321")
}

// TestClient_TransportFailure 测试网络错误映射为 500
func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	rec := &memoryRecorder{}
	client := esign.NewClient(config.EsignConfig{BaseURL: url}, rec)
	resp := client.RequestTOTP(context.Background(), esign.Identity{Email: "a@b.go.id"})

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Error(t, resp.Err)
	assert.ErrorIs(t, resp.AsError(esign.EndpointSignTOTP), esign.ErrProviderSignFailed)

	entries := rec.all()
	require.Len(t, entries, 1)
	assert.Equal(t, http.StatusInternalServerError, entries[0].StatusCode)
	assert.NotEmpty(t, entries[0].ErrorMessage)
}

// TestClient_AllEndpoints 测试全部接口路径
func TestClient_AllEndpoints(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := esign.NewClient(config.EsignConfig{BaseURL: srv.URL}, nil)
	ctx := context.Background()
	client.SignPDF(ctx, esign.SignRequest{})
	client.RequestTOTP(ctx, esign.Identity{})
	client.VerifyPDF(ctx, esign.VerifyRequest{})
	client.CheckUserStatus(ctx, esign.Identity{})
	client.SealPDF(ctx, map[string]any{})
	client.SealActivation(ctx, map[string]any{})
	client.SealTOTP(ctx, map[string]any{})

	assert.Equal(t, []string{
		"/api/v2/sign/pdf",
		"/api/v2/sign/get/totp",
		"/api/v2/verify/pdf",
		"/api/v2/user/check/status",
		"/api/v2/seal/pdf",
		"/api/v2/seal/get/activation",
		"/api/v2/seal/get/totp",
	}, paths)
}
