package service_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mautops/nota-esign/internal/config"
	"github.com/mautops/nota-esign/internal/database"
	"github.com/mautops/nota-esign/internal/esign"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/repository"
	"github.com/mautops/nota-esign/internal/service"
	"github.com/mautops/nota-esign/internal/sharelink"
	"github.com/mautops/nota-esign/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const shareKey = "0123456789abcdef0123456789abcdef"

var samplePDF = []byte("%PDF-1.4\n1 0 obj<<>>endobj\ntrailer<<>>\n%%EOF\n")

var seq atomic.Int64

// fakeProvider 模拟电子签名服务
type fakeProvider struct {
	mu         sync.Mutex
	calls      map[string]int
	signBodies []esign.SignRequest
	certStatus string
	signStatus int
	server     *httptest.Server
}

func newFakeProvider(t *testing.T) *fakeProvider {
	p := &fakeProvider{calls: map[string]int{}, certStatus: esign.CertificateIssued, signStatus: http.StatusOK}
	p.server = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) handle(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	p.mu.Lock()
	p.calls[r.URL.Path]++
	certStatus, signStatus := p.certStatus, p.signStatus
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch esign.Endpoint(r.URL.Path) {
	case esign.EndpointUserStatus:
		_ = json.NewEncoder(w).Encode(map[string]string{"status": certStatus})
	case esign.EndpointSign:
		var req esign.SignRequest
		_ = json.Unmarshal(raw, &req)
		p.mu.Lock()
		p.signBodies = append(p.signBodies, req)
		p.mu.Unlock()
		if signStatus != http.StatusOK {
			w.WriteHeader(signStatus)
			_, _ = w.Write([]byte(`{"error":"Passphrase anda salah"}`))
			return
		}
		out := esign.SignResponse{}
		for _, f := range req.File {
			data, _ := base64.StdEncoding.DecodeString(f)
			data = append(data, []byte("\n%signed\n")...)
			out.File = append(out.File, base64.StdEncoding.EncodeToString(data))
		}
		_ = json.NewEncoder(w).Encode(out)
	default:
		_, _ = w.Write([]byte(`{"ok":true}`))
	}
}

func (p *fakeProvider) count(endpoint esign.Endpoint) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[string(endpoint)]
}

func (p *fakeProvider) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

func (p *fakeProvider) lastSign() esign.SignRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signBodies[len(p.signBodies)-1]
}

// stubStamper 记录盖章调用
type stubStamper struct {
	mu   sync.Mutex
	urls []string
}

func (s *stubStamper) Stamp(pdf []byte, verifyURL string) ([]byte, error) {
	s.mu.Lock()
	s.urls = append(s.urls, verifyURL)
	s.mu.Unlock()
	return append(bytes.Clone(pdf), []byte("\n%stamped\n")...), nil
}

func (s *stubStamper) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.urls...)
}

// memoryRecorder 收集调用日志
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

// testEnv 服务测试环境
type testEnv struct {
	db       *gorm.DB
	disk     *storage.LocalDisk
	store    *storage.DocumentStore
	provider *fakeProvider
	recorder *memoryRecorder
	stamper  *stubStamper
	links    *sharelink.Issuer
	now      time.Time
	logger   *logrus.Logger
	logs     *test.Hook

	audit      service.AuditLogService
	notas      *service.NotaService
	routing    *service.RoutingService
	signatures *service.SignatureService
	esign      *service.EsignService
	lampirans  *service.LampiranService
	public     *service.PublicDocumentService
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		db:       setupTestDB(t),
		provider: newFakeProvider(t),
		recorder: &memoryRecorder{},
		stamper:  &stubStamper{},
		now:      time.Now(),
	}
	env.logger, env.logs = test.NewNullLogger()

	disk, err := storage.NewLocalDisk(t.TempDir())
	require.NoError(t, err)
	env.disk = disk
	env.store = storage.NewDocumentStore(disk, storage.WithLogger(env.logger))

	env.links, err = sharelink.NewIssuer(shareKey, time.Hour, "https://nota.example.go.id",
		sharelink.WithClock(func() time.Time { return env.now }))
	require.NoError(t, err)

	client := esign.NewClient(config.EsignConfig{BaseURL: env.provider.server.URL, User: "bsre", Password: "secret"},
		env.recorder, esign.WithClientLogger(env.logger))

	env.audit = service.NewAuditLogService(repository.NewAuditLogRepository(env.db))
	env.notas = service.NewNotaService(env.db, env.store, env.audit, env.logger)
	env.routing = service.NewRoutingService(env.db, env.store, env.audit, env.logger)
	env.signatures = service.NewSignatureService(env.db, env.store, client, env.stamper, env.links, env.audit, env.logger)
	env.esign = service.NewEsignService(client)
	env.lampirans = service.NewLampiranService(env.db, env.store, env.links, env.audit, env.logger)
	env.public = service.NewPublicDocumentService(env.db, env.store, env.links, env.logger)
	return env
}

func uintPtr(v uint) *uint { return &v }

func (env *testEnv) seedUser(t *testing.T, role model.Role, skpdID *uint) *model.User {
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
	require.NoError(t, env.db.Create(u).Error)
	return u
}

func (env *testEnv) seedSkpd(t *testing.T, asistenID *uint) *model.Skpd {
	s := &model.Skpd{Name: fmt.Sprintf("Dinas %d", seq.Add(1)), AsistenID: asistenID, Active: true}
	require.NoError(t, env.db.Create(s).Error)
	return s
}

// actors 一条完整流转链上的用户
type actors struct {
	skpd    *model.Skpd
	staff   *model.User
	asisten *model.User
	sekda   *model.User
	bupati  *model.User
}

func (env *testEnv) seedChain(t *testing.T) actors {
	a := actors{}
	a.asisten = env.seedUser(t, model.RoleAsisten, nil)
	a.skpd = env.seedSkpd(t, uintPtr(a.asisten.ID))
	a.staff = env.seedUser(t, model.RoleSkpd, uintPtr(a.skpd.ID))
	a.sekda = env.seedUser(t, model.RoleSekda, nil)
	a.bupati = env.seedUser(t, model.RoleBupati, nil)
	return a
}

func (env *testEnv) createNota(t *testing.T, user *model.User) *model.NotaDinas {
	nota, err := env.notas.Create(context.Background(), user, service.NotaInput{
		Nomor:            fmt.Sprintf("005/%d/ND/2025", seq.Add(1)),
		Perihal:          "Permohonan pengadaan perangkat",
		TanggalPengajuan: time.Now(),
	})
	require.NoError(t, err)
	return nota
}

// sendWithUpload 创建公文并携带一个附件发送给 asisten
func (env *testEnv) sendWithUpload(t *testing.T, a actors) (*model.NotaDinas, *model.NotaLampiran) {
	nota := env.createNota(t, a.staff)
	p, err := env.routing.Send(context.Background(), a.staff, nota.ID, service.SendInput{
		Uploads: []service.Upload{{Name: "doc.pdf", MimeType: "application/pdf", Data: samplePDF}},
	})
	require.NoError(t, err)
	require.Len(t, p.Lampirans, 1)
	return nota, &p.Lampirans[0]
}

func (env *testEnv) reloadNota(t *testing.T, id uint) *model.NotaDinas {
	var n model.NotaDinas
	require.NoError(t, env.db.First(&n, id).Error)
	return &n
}

func passphraseOptions() service.SignOptions {
	return service.SignOptions{Method: service.MethodPassphrase, Passphrase: "rahasia-passphrase-123"}
}

func encodePDF(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
