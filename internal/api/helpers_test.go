package api_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mautops/nota-esign/internal/api"
	"github.com/mautops/nota-esign/internal/auth"
	"github.com/mautops/nota-esign/internal/config"
	"github.com/mautops/nota-esign/internal/container"
	"github.com/mautops/nota-esign/internal/esign"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const shareKey = "0123456789abcdef0123456789abcdef"

var samplePDF = []byte("%PDF-1.4\n1 0 obj<<>>endobj\ntrailer<<>>\n%%EOF\n")

var seq atomic.Int64

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// subjectValidator 将 token 原样作为 Keycloak subject
type subjectValidator struct{}

func (subjectValidator) ValidateToken(token string) (*auth.KeycloakClaims, error) {
	if !strings.HasPrefix(token, "kc-") {
		return nil, errors.New("malformed token")
	}
	claims := &auth.KeycloakClaims{}
	claims.Subject = token
	return claims, nil
}

// stubStamper 追加标记代替真实页脚
type stubStamper struct{}

func (stubStamper) Stamp(pdf []byte, _ string) ([]byte, error) {
	return append(bytes.Clone(pdf), []byte("\n%stamped\n")...), nil
}

// provider 模拟电子签名服务
type provider struct {
	mu         sync.Mutex
	signStatus int
	calls      map[string]int
}

func (p *provider) handle(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	p.mu.Lock()
	p.calls[r.URL.Path]++
	signStatus := p.signStatus
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch esign.Endpoint(r.URL.Path) {
	case esign.EndpointUserStatus:
		_ = json.NewEncoder(w).Encode(map[string]string{"status": esign.CertificateIssued})
	case esign.EndpointSign:
		if signStatus != http.StatusOK {
			w.WriteHeader(signStatus)
			_, _ = w.Write([]byte(`{"error":"Passphrase anda salah"}`))
			return
		}
		var req esign.SignRequest
		_ = json.Unmarshal(raw, &req)
		out := esign.SignResponse{}
		for _, f := range req.File {
			data, _ := base64.StdEncoding.DecodeString(f)
			out.File = append(out.File, base64.StdEncoding.EncodeToString(append(data, []byte("\n%signed\n")...)))
		}
		_ = json.NewEncoder(w).Encode(out)
	default:
		_, _ = w.Write([]byte(`{"ok":true}`))
	}
}

func (p *provider) count(endpoint esign.Endpoint) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[string(endpoint)]
}

// testServer 完整路由的测试环境
type testServer struct {
	router   *gin.Engine
	ctr      *container.Container
	db       *gorm.DB
	provider *provider
	logs     *test.Hook
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	p := &provider{signStatus: http.StatusOK, calls: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Env = "test"
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(dir, "nota.db")
	cfg.Storage.Driver = "local"
	cfg.Storage.Root = filepath.Join(dir, "storage")
	cfg.Share.Key = shareKey
	cfg.Share.TTL = 3600
	cfg.Server.PublicBaseURL = "https://nota.example.go.id"
	cfg.Esign = config.EsignConfig{BaseURL: srv.URL, User: "bsre", Password: "secret", Timeout: 5}
	cfg.RateLimit.PublicRPS = 1000
	cfg.RateLimit.PublicBurst = 1000
	cfg.CORS.AllowedOrigins = []string{"https://nota.example.go.id"}

	logger, hook := test.NewNullLogger()
	ctr, err := container.NewContainer(context.Background(), cfg, logger,
		container.WithTokenValidator(subjectValidator{}),
		container.WithStamper(stubStamper{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Close() })

	return &testServer{
		router:   api.SetupRoutes(ctr),
		ctr:      ctr,
		db:       ctr.DB(),
		provider: p,
		logs:     hook,
	}
}

func uintPtr(v uint) *uint { return &v }

func (s *testServer) seedUser(t *testing.T, role model.Role, skpdID *uint) *model.User {
	n := seq.Add(1)
	nik := fmt.Sprintf("%016d", 3500000000000000+n)
	u := &model.User{
		KeycloakID: fmt.Sprintf("kc-%s-%d", role, n),
		Name:       fmt.Sprintf("%s %d", role, n),
		Email:      fmt.Sprintf("%s-%d@example.go.id", role, n),
		NIK:        &nik,
		Role:       role,
		SkpdID:     skpdID,
		Active:     true,
	}
	require.NoError(t, s.db.Create(u).Error)
	return u
}

// chain 一条完整流转链
type chain struct {
	staff   *model.User
	asisten *model.User
	sekda   *model.User
	bupati  *model.User
}

func (s *testServer) seedChain(t *testing.T) chain {
	c := chain{}
	c.asisten = s.seedUser(t, model.RoleAsisten, nil)
	skpd := &model.Skpd{Name: fmt.Sprintf("Dinas %d", seq.Add(1)), AsistenID: uintPtr(c.asisten.ID), Active: true}
	require.NoError(t, s.db.Create(skpd).Error)
	c.staff = s.seedUser(t, model.RoleSkpd, uintPtr(skpd.ID))
	c.sekda = s.seedUser(t, model.RoleSekda, nil)
	c.bupati = s.seedUser(t, model.RoleBupati, nil)
	return c
}

// do 发起请求,user 为空时不带令牌
func (s *testServer) do(t *testing.T, user *model.User, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+user.KeycloakID)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(t *testing.T, user *model.User, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	return s.do(t, user, method, path, body, "application/json")
}

// multipartBody 构造 multipart 表单
func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, data []byte) (io.Reader, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

// envelope 统一响应
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Detail  string          `json:"detail"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(decode(t, w).Data, v))
}

// createNota 通过接口创建公文
func (s *testServer) createNota(t *testing.T, user *model.User) uint {
	t.Helper()
	w := s.doJSON(t, user, http.MethodPost, "/api/v1/nota", map[string]any{
		"nomor_nota":        fmt.Sprintf("005/%d/ND/2025", seq.Add(1)),
		"perihal":           "Permohonan pengadaan perangkat",
		"anggaran":          1500000,
		"tanggal_pengajuan": "2025-03-01",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var nota model.NotaDinas
	decodeData(t, w, &nota)
	return nota.ID
}

// sendWithPDF 发送公文并上传一个 PDF,返回附件 ID
func (s *testServer) sendWithPDF(t *testing.T, user *model.User, notaID uint) uint {
	t.Helper()
	body, ct := multipartBody(t, map[string]string{"catatan": "Mohon diperiksa"}, "lampiran[]", "usulan.pdf", samplePDF)
	w := s.do(t, user, http.MethodPost, fmt.Sprintf("/api/v1/nota/%d/send", notaID), body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var p model.NotaPengiriman
	decodeData(t, w, &p)
	require.Len(t, p.Lampirans, 1)
	return p.Lampirans[0].ID
}

func httpRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func serve(s *testServer, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}
