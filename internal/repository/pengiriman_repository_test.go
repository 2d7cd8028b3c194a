package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPengirimanRepository_LatestCarrying 测试携带附件的最近流转，时间相同按 ID
func TestPengirimanRepository_LatestCarrying(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewPengirimanRepository(db)
	ctx := context.Background()
	skpd := seedSkpd(t, db, nil)
	sender := seedUser(t, db, model.RoleSkpd, uintPtr(skpd.ID))
	nota := seedNota(t, db, skpd.ID, model.StageSkpd, model.StatusDraft)

	lampA := model.NotaLampiran{NotaDinasID: nota.ID, NamaFile: "a.pdf"}
	lampB := model.NotaLampiran{NotaDinasID: nota.ID, NamaFile: "b.pdf"}
	require.NoError(t, db.Create(&lampA).Error)
	require.NoError(t, db.Create(&lampB).Error)

	none, err := repo.LatestCarrying(ctx, lampA.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	ts := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	first := &model.NotaPengiriman{NotaDinasID: nota.ID, DikirimDari: model.StageSkpd, DikirimKe: model.StageAsisten,
		PengirimID: sender.ID, TanggalKirim: ts, Lampirans: []model.NotaLampiran{lampA, lampB}}
	second := &model.NotaPengiriman{NotaDinasID: nota.ID, DikirimDari: model.StageAsisten, DikirimKe: model.StageSekda,
		PengirimID: sender.ID, TanggalKirim: ts, Lampirans: []model.NotaLampiran{lampA}}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	latestA, err := repo.LatestCarrying(ctx, lampA.ID)
	require.NoError(t, err)
	require.NotNil(t, latestA)
	assert.Equal(t, second.ID, latestA.ID)
	assert.Equal(t, model.StageSekda, latestA.DikirimKe)

	latestB, err := repo.LatestCarrying(ctx, lampB.ID)
	require.NoError(t, err)
	require.NotNil(t, latestB)
	assert.Equal(t, first.ID, latestB.ID)

	carried, err := repository.NewLampiranRepository(db).FindByPengiriman(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, carried, 2)

	// Create 不会重复插入已存在的附件
	var count int64
	db.Model(&model.NotaLampiran{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

// TestPengirimanRepository_History 测试流转历史排序
func TestPengirimanRepository_History(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewPengirimanRepository(db)
	ctx := context.Background()
	skpd := seedSkpd(t, db, nil)
	sender := seedUser(t, db, model.RoleSkpd, uintPtr(skpd.ID))
	nota := seedNota(t, db, skpd.ID, model.StageSkpd, model.StatusDraft)

	base := time.Now()
	for i, stage := range []model.Stage{model.StageAsisten, model.StageSekda, model.StageBupati} {
		require.NoError(t, repo.Create(ctx, &model.NotaPengiriman{
			NotaDinasID: nota.ID, DikirimDari: model.StageSkpd, DikirimKe: stage,
			PengirimID: sender.ID, TanggalKirim: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	history, err := repo.History(ctx, nota.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, model.StageBupati, history[0].DikirimKe)
	assert.Equal(t, model.StageAsisten, history[2].DikirimKe)

	latest, err := repo.Latest(ctx, nota.ID)
	require.NoError(t, err)
	assert.Equal(t, history[0].ID, latest.ID)
}
