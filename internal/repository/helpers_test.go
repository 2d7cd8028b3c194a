package repository_test

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mautops/nota-esign/internal/database"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB 创建内存测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

var seq atomic.Int64

func uintPtr(v uint) *uint { return &v }

func seedUser(t *testing.T, db *gorm.DB, role model.Role, skpdID *uint) *model.User {
	u := &model.User{
		KeycloakID: fmt.Sprintf("kc-%s-%d", role, seq.Add(1)),
		Name:       string(role) + " user",
		Email:      fmt.Sprintf("%s-%d@example.go.id", role, seq.Add(1)),
		Role:       role,
		SkpdID:     skpdID,
		Active:     true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedSkpd(t *testing.T, db *gorm.DB, asistenID *uint) *model.Skpd {
	s := &model.Skpd{Name: "Dinas Kominfo", AsistenID: asistenID, Active: true}
	require.NoError(t, db.Create(s).Error)
	return s
}

func seedNota(t *testing.T, db *gorm.DB, skpdID uint, stage model.Stage, status model.Status) *model.NotaDinas {
	n := &model.NotaDinas{
		SkpdID:           skpdID,
		Nomor:            fmt.Sprintf("ND/%d", seq.Add(1)),
		Perihal:          "Pengadaan server",
		TanggalPengajuan: time.Now(),
		Status:           status,
		TahapSaatIni:     stage,
	}
	require.NoError(t, db.Create(n).Error)
	return n
}
