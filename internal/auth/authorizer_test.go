package auth_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mautops/nota-esign/internal/auth"
	"github.com/mautops/nota-esign/internal/database"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

var userSeq atomic.Int64

func newUser(t *testing.T, db *gorm.DB, role model.Role, skpdID *uint) *model.User {
	u := &model.User{
		KeycloakID: fmt.Sprintf("kc-%d", userSeq.Add(1)),
		Name:       string(role),
		Role:       role,
		SkpdID:     skpdID,
		Active:     true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

type fixture struct {
	db       *gorm.DB
	skpd     *model.Skpd
	other    *model.Skpd
	owner    *model.User
	asisten  *model.User
	lampiran *model.NotaLampiran
}

func newFixture(t *testing.T) *fixture {
	db := setupTestDB(t)
	f := &fixture{db: db}
	f.skpd = &model.Skpd{Name: "Dinas A", Active: true}
	f.other = &model.Skpd{Name: "Dinas B", Active: true}
	require.NoError(t, db.Create(f.skpd).Error)
	require.NoError(t, db.Create(f.other).Error)
	f.owner = newUser(t, db, model.RoleSkpd, &f.skpd.ID)
	f.asisten = newUser(t, db, model.RoleAsisten, nil)

	nota := &model.NotaDinas{SkpdID: f.skpd.ID, Nomor: "ND/1", Perihal: "Uji", TanggalPengajuan: time.Now(),
		Status: model.StatusProses, TahapSaatIni: model.StageSekda}
	require.NoError(t, db.Create(nota).Error)
	f.lampiran = &model.NotaLampiran{NotaDinasID: nota.ID, NamaFile: "doc.pdf"}
	require.NoError(t, db.Create(f.lampiran).Error)

	ts := time.Now()
	require.NoError(t, db.Omit("Lampirans.*").Create(&model.NotaPengiriman{NotaDinasID: nota.ID, DikirimDari: model.StageSkpd,
		DikirimKe: model.StageAsisten, PengirimID: f.owner.ID, TanggalKirim: ts, Lampirans: []model.NotaLampiran{*f.lampiran}}).Error)
	require.NoError(t, db.Omit("Lampirans.*").Create(&model.NotaPengiriman{NotaDinasID: nota.ID, DikirimDari: model.StageAsisten,
		DikirimKe: model.StageSekda, PengirimID: f.asisten.ID, TanggalKirim: ts.Add(time.Minute), Lampirans: []model.NotaLampiran{*f.lampiran}}).Error)
	return f
}

// TestAttachmentAuthorizer_Grants 测试各授权条件
func TestAttachmentAuthorizer_Grants(t *testing.T) {
	f := newFixture(t)
	authz := auth.NewAttachmentAuthorizer(f.db)
	ctx := context.Background()

	cases := map[string]*model.User{
		"admin":           newUser(t, f.db, model.RoleAdmin, nil),
		"owning skpd":     f.owner,
		"latest sender":   f.asisten,
		"latest receiver": newUser(t, f.db, model.RoleSekda, nil),
	}
	for name, user := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, authz.Authorize(ctx, user, f.lampiran))
		})
	}
}

// TestAttachmentAuthorizer_Denies 测试拒绝访问
func TestAttachmentAuthorizer_Denies(t *testing.T) {
	f := newFixture(t)
	authz := auth.NewAttachmentAuthorizer(f.db)
	ctx := context.Background()

	cases := map[string]*model.User{
		"other skpd":       newUser(t, f.db, model.RoleSkpd, &f.other.ID),
		"earlier receiver": newUser(t, f.db, model.RoleAsisten, nil),
		"bupati not yet":   newUser(t, f.db, model.RoleBupati, nil),
		"unknown role":     {ID: f.asisten.ID, Role: "kepala_dinas"},
		"nil user":         nil,
	}
	for name, user := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, authz.Authorize(ctx, user, f.lampiran), auth.ErrAccessDenied)
		})
	}
}

// TestAttachmentAuthorizer_PriorSigner 测试已签名用户可以访问
func TestAttachmentAuthorizer_PriorSigner(t *testing.T) {
	f := newFixture(t)
	authz := auth.NewAttachmentAuthorizer(f.db)
	ctx := context.Background()

	bupati := newUser(t, f.db, model.RoleBupati, nil)
	require.ErrorIs(t, authz.Authorize(ctx, bupati, f.lampiran), auth.ErrAccessDenied)

	require.NoError(t, f.db.Create(&model.NotaLampiranSignature{NotaLampiranID: f.lampiran.ID, UserID: bupati.ID, Path: "x.pdf"}).Error)
	assert.NoError(t, authz.Authorize(ctx, bupati, f.lampiran))
}

func repositoryUsers(db *gorm.DB) repository.UserRepository {
	return repository.NewUserRepository(db)
}
