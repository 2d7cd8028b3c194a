package service_test

import (
	"context"
	"testing"

	"github.com/mautops/nota-esign/internal/auth"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/routing"
	"github.com/mautops/nota-esign/internal/service"
	"github.com/mautops/nota-esign/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSend_AsistenNotAssigned 测试 SKPD 未配置 asisten 时拒绝发送且状态不变
func TestSend_AsistenNotAssigned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	skpd := env.seedSkpd(t, nil)
	staff := env.seedUser(t, model.RoleSkpd, uintPtr(skpd.ID))
	nota := env.createNota(t, staff)

	_, err := env.routing.Send(ctx, staff, nota.ID, service.SendInput{
		Uploads: []service.Upload{{Name: "doc.pdf", MimeType: "application/pdf", Data: samplePDF}},
	})
	require.ErrorIs(t, err, routing.ErrAsistenNotAssigned)

	after := env.reloadNota(t, nota.ID)
	assert.Equal(t, model.StageSkpd, after.TahapSaatIni)
	assert.Equal(t, model.StatusDraft, after.Status)

	var lampirans, pengirimans int64
	env.db.Model(&model.NotaLampiran{}).Count(&lampirans)
	env.db.Model(&model.NotaPengiriman{}).Count(&pengirimans)
	assert.Zero(t, lampirans)
	assert.Zero(t, pengirimans)
}

// TestSend_FullChain 测试完整流转链与附件沿用
func TestSend_FullChain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedChain(t)
	nota, lampiran := env.sendWithUpload(t, a)

	after := env.reloadNota(t, nota.ID)
	assert.Equal(t, model.StageAsisten, after.TahapSaatIni)
	assert.Equal(t, model.StatusProses, after.Status)
	assert.NotEmpty(t, lampiran.Path)

	p, err := env.routing.Send(ctx, a.asisten, nota.ID, service.SendInput{Catatan: "Lanjutkan"})
	require.NoError(t, err)
	assert.Equal(t, model.StageSekda, p.DikirimKe)
	require.Len(t, p.Lampirans, 1)
	assert.Equal(t, lampiran.ID, p.Lampirans[0].ID)

	p, err = env.routing.Send(ctx, a.sekda, nota.ID, service.SendInput{})
	require.NoError(t, err)
	assert.Equal(t, model.StageBupati, p.DikirimKe)

	p, err = env.routing.Decide(ctx, a.bupati, nota.ID, model.StatusDisetujui, "")
	require.NoError(t, err)
	assert.Equal(t, model.StageSelesai, p.DikirimKe)
	assert.Equal(t, "Nota telah disetujui oleh Bupati.", p.Catatan)

	after = env.reloadNota(t, nota.ID)
	assert.Equal(t, model.StageSelesai, after.TahapSaatIni)
	assert.Equal(t, model.StatusDisetujui, after.Status)

	history, err := env.notas.History(ctx, a.staff, nota.ID)
	require.NoError(t, err)
	assert.Len(t, history, 4)
	for _, h := range history {
		assert.Len(t, h.Lampirans, 1)
	}

	approvals, err := env.notas.Approvals(ctx, a.staff, nota.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 3)
	assert.Equal(t, []int{model.UrutanAsisten, model.UrutanSekda, model.UrutanBupati},
		[]int{approvals[0].Urutan, approvals[1].Urutan, approvals[2].Urutan})

	_, err = env.routing.Decide(ctx, a.bupati, nota.ID, model.StatusDitolak, "")
	assert.ErrorIs(t, err, routing.ErrTerminal)
	_, err = env.routing.Send(ctx, a.bupati, nota.ID, service.SendInput{Target: model.StageSkpd})
	assert.ErrorIs(t, err, routing.ErrTerminal)
}

// TestSend_FailsClosed 测试非法发送不改变状态
func TestSend_FailsClosed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedChain(t)
	nota := env.createNota(t, a.staff)

	_, err := env.routing.Send(ctx, a.sekda, nota.ID, service.SendInput{})
	assert.ErrorIs(t, err, routing.ErrRoleNotAllowed)

	other := env.seedUser(t, model.RoleAsisten, nil)
	_, err = env.routing.Send(ctx, a.staff, nota.ID, service.SendInput{})
	require.NoError(t, err)
	_, err = env.routing.Send(ctx, other, nota.ID, service.SendInput{})
	assert.ErrorIs(t, err, auth.ErrAccessDenied)

	_, err = env.routing.Decide(ctx, a.bupati, nota.ID, model.StatusDisetujui, "")
	assert.ErrorIs(t, err, routing.ErrRoleNotAllowed)

	after := env.reloadNota(t, nota.ID)
	assert.Equal(t, model.StageAsisten, after.TahapSaatIni)
	assert.Equal(t, model.StatusProses, after.Status)
}

// TestSend_FromBupatiOnlyToApprovers 测试 Bupati 阶段只能发给审批人
func TestSend_FromBupatiOnlyToApprovers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedChain(t)
	nota, _ := env.sendWithUpload(t, a)
	_, err := env.routing.Send(ctx, a.asisten, nota.ID, service.SendInput{})
	require.NoError(t, err)
	_, err = env.routing.Send(ctx, a.sekda, nota.ID, service.SendInput{})
	require.NoError(t, err)

	_, err = env.routing.Send(ctx, a.bupati, nota.ID, service.SendInput{Target: model.StageSkpd})
	assert.ErrorIs(t, err, routing.ErrInvalidTarget)
	after := env.reloadNota(t, nota.ID)
	assert.Equal(t, model.StageBupati, after.TahapSaatIni)

	p, err := env.routing.Send(ctx, a.bupati, nota.ID, service.SendInput{Target: model.StageSekda})
	require.NoError(t, err)
	assert.Equal(t, model.StageSekda, p.DikirimKe)
}

// TestSend_RejectsInvalidUploads 测试非 PDF 与超大附件
func TestSend_RejectsInvalidUploads(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedChain(t)
	nota := env.createNota(t, a.staff)

	_, err := env.routing.Send(ctx, a.staff, nota.ID, service.SendInput{
		Uploads: []service.Upload{{Name: "foto.png", MimeType: "image/png", Data: []byte("\x89PNG")}},
	})
	assert.ErrorIs(t, err, service.ErrInvalidDocument)

	big := append([]byte("%PDF-1.4\n"), make([]byte, service.MaxUploadSize)...)
	_, err = env.routing.Send(ctx, a.staff, nota.ID, service.SendInput{
		Uploads: []service.Upload{{Name: "besar.pdf", Data: big}},
	})
	var ve *utils.ValidationError
	assert.ErrorAs(t, err, &ve)

	assert.Equal(t, model.StageSkpd, env.reloadNota(t, nota.ID).TahapSaatIni)
}

// TestReturn 测试退回需要说明并回到 SKPD
func TestReturn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedChain(t)
	nota, _ := env.sendWithUpload(t, a)

	_, err := env.routing.Return(ctx, a.asisten, nota.ID, "  ")
	assert.ErrorIs(t, err, routing.ErrNoteRequired)

	_, err = env.routing.Return(ctx, a.staff, nota.ID, "kembali")
	assert.ErrorIs(t, err, routing.ErrRoleNotAllowed)

	p, err := env.routing.Return(ctx, a.asisten, nota.ID, "Lengkapi anggaran")
	require.NoError(t, err)
	assert.Equal(t, model.StageSkpd, p.DikirimKe)
	assert.Len(t, p.Lampirans, 1)

	after := env.reloadNota(t, nota.ID)
	assert.Equal(t, model.StageSkpd, after.TahapSaatIni)
	assert.Equal(t, model.StatusDikembalikan, after.Status)

	approvals, err := env.notas.Approvals(ctx, a.staff, nota.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, model.StatusDikembalikan, approvals[0].Status)

	updated, err := env.notas.Update(ctx, a.staff, nota.ID, service.NotaInput{
		Nomor: after.Nomor, Perihal: "Perihal revisi", TanggalPengajuan: after.TanggalPengajuan,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDikembalikan, updated.Status)

	_, err = env.routing.Send(ctx, a.staff, nota.ID, service.SendInput{})
	require.NoError(t, err)
	assert.Equal(t, model.StageAsisten, env.reloadNota(t, nota.ID).TahapSaatIni)
}

// TestDecide_Rejected 测试 Bupati 拒绝
func TestDecide_Rejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedChain(t)
	nota, _ := env.sendWithUpload(t, a)
	_, err := env.routing.Send(ctx, a.asisten, nota.ID, service.SendInput{})
	require.NoError(t, err)
	_, err = env.routing.Send(ctx, a.sekda, nota.ID, service.SendInput{})
	require.NoError(t, err)

	_, err = env.routing.Decide(ctx, a.sekda, nota.ID, model.StatusDitolak, "")
	assert.ErrorIs(t, err, routing.ErrRoleNotAllowed)
	_, err = env.routing.Decide(ctx, a.bupati, nota.ID, model.StatusProses, "")
	assert.ErrorIs(t, err, routing.ErrInvalidDecision)

	_, err = env.routing.Decide(ctx, a.bupati, nota.ID, model.StatusDitolak, "Anggaran tidak tersedia")
	require.NoError(t, err)
	after := env.reloadNota(t, nota.ID)
	assert.Equal(t, model.StatusDitolak, after.Status)
	assert.Equal(t, model.StageSelesai, after.TahapSaatIni)
}
