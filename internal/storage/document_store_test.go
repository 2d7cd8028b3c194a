package storage_test

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mautops/nota-esign/internal/storage"
	"github.com/mautops/nota-esign/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj<<>>endobj\ntrailer<<>>\n%%EOF\n")

// corruptingDisk 回读时篡改内容
type corruptingDisk struct {
	storage.Disk
	mu      sync.Mutex
	deleted []string
}

func (d *corruptingDisk) Get(ctx context.Context, p string) ([]byte, error) {
	data, err := d.Disk.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(p, ".pdf") {
		return append(data, '!'), nil
	}
	return data, nil
}

func (d *corruptingDisk) Delete(ctx context.Context, p string) error {
	d.mu.Lock()
	d.deleted = append(d.deleted, p)
	d.mu.Unlock()
	return d.Disk.Delete(ctx, p)
}

func newStore(t *testing.T, opts ...storage.Option) (*storage.DocumentStore, *storage.LocalDisk) {
	t.Helper()
	disk, err := storage.NewLocalDisk(t.TempDir())
	require.NoError(t, err)
	return storage.NewDocumentStore(disk, opts...), disk
}

// TestStoreOriginal_RoundTrip 测试原始文件写入与读取一致
func TestStoreOriginal_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	stored, err := store.StoreOriginal(ctx, 7, "doc.pdf", "application/pdf", samplePDF)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.Path, "documents/7/original/"))
	assert.True(t, strings.HasSuffix(stored.Path, "-"+stored.UUID+".pdf"))
	assert.Equal(t, utils.SHA256Hex(samplePDF), stored.Hash)

	latest, err := store.LatestOriginal(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, stored.Path, latest)

	data, err := store.Read(ctx, latest)
	require.NoError(t, err)
	assert.Equal(t, utils.SHA256Hex(samplePDF), utils.SHA256Hex(data))
}

// TestStoreOriginal_IntegrityFailureCleansUp 测试哈希不一致时删除对象
func TestStoreOriginal_IntegrityFailureCleansUp(t *testing.T) {
	ctx := context.Background()
	base, err := storage.NewLocalDisk(t.TempDir())
	require.NoError(t, err)
	disk := &corruptingDisk{Disk: base}
	store := storage.NewDocumentStore(disk)

	_, err = store.StoreOriginal(ctx, 9, "doc.pdf", "", samplePDF)
	assert.ErrorIs(t, err, storage.ErrIntegrityFailure)
	require.Len(t, disk.deleted, 1)

	files, err := base.Files(ctx, "documents/9/original")
	require.NoError(t, err)
	assert.Empty(t, files, "corrupted object must not remain in the store")

	_, err = store.StoreSignedBase64(ctx, 9, base64.StdEncoding.EncodeToString(samplePDF), storage.SignerMeta{})
	assert.ErrorIs(t, err, storage.ErrIntegrityFailure)
	latest, err := store.LatestSigned(ctx, 9, "")
	require.NoError(t, err)
	assert.Empty(t, latest)
}

// TestStoreOriginal_RejectsNonPDF 测试非 PDF 内容
func TestStoreOriginal_RejectsNonPDF(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.StoreOriginal(context.Background(), 1, "notes.txt", "text/plain", []byte("hello"))
	assert.ErrorIs(t, err, storage.ErrNotPDF)

	// magic bytes are enough even without a .pdf name
	_, err = store.StoreOriginal(context.Background(), 1, "scan", "application/octet-stream", samplePDF)
	assert.NoError(t, err)
}

// TestStoreSigned_WritesManifest 测试签名文件与清单
func TestStoreSigned_WritesManifest(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 11, 27, 7, 10, 11, 0, time.UTC)
	store, _ := newStore(t, storage.WithClock(func() time.Time { return fixed }))

	meta := storage.SignerMeta{
		UserID:        12,
		Name:          "Sekda",
		Method:        "passphrase",
		SignatureMeta: map[string]any{"page": 1},
	}
	stored, err := store.StoreSignedBase64(ctx, 3, "data:application/pdf;base64,"+base64.StdEncoding.EncodeToString(samplePDF), meta)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.Path, "documents/3/signed/v1/20251127071011-"))
	assert.Equal(t, "signatures/3/v1.json", stored.Manifest)

	manifest, err := store.GetManifest(ctx, 3, "v1")
	require.NoError(t, err)
	require.NotNil(t, manifest)
	assert.Equal(t, "3", manifest.DocumentID)
	assert.Equal(t, "v1", manifest.Version)
	assert.Equal(t, "12", manifest.Signer.UserID)
	assert.Empty(t, manifest.Signer.NIK)
	assert.Equal(t, stored.Hash, manifest.DocHash)
	assert.Equal(t, stored.Path, manifest.File.Path)
	assert.Equal(t, stored.UUID, manifest.File.UUID)

	versions, err := store.SignedVersions(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, versions)
}

// TestStoreSigned_ManifestLastWriterWins 测试清单覆盖
func TestStoreSigned_ManifestLastWriterWins(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	first, err := store.StoreSigned(ctx, 4, "a.pdf", "application/pdf", samplePDF, storage.SignerMeta{UserID: 1})
	require.NoError(t, err)
	second, err := store.StoreSigned(ctx, 4, "a.pdf", "application/pdf", samplePDF, storage.SignerMeta{UserID: 2})
	require.NoError(t, err)
	assert.NotEqual(t, first.Path, second.Path, "signed blobs are never overwritten")

	manifest, err := store.GetManifest(ctx, 4, "")
	require.NoError(t, err)
	assert.Equal(t, "2", manifest.Signer.UserID)
}

// TestStoreSignedBase64_Invalid 测试无效 base64
func TestStoreSignedBase64_Invalid(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.StoreSignedBase64(context.Background(), 1, "not_base64!!", storage.SignerMeta{})
	assert.ErrorIs(t, err, storage.ErrNotPDF)

	_, err = store.StoreSignedBase64(context.Background(), 1, base64.StdEncoding.EncodeToString([]byte("GIF89a")), storage.SignerMeta{})
	assert.ErrorIs(t, err, storage.ErrNotPDF)
}

// TestLatest_PicksGreatestTimestamp 测试最新对象选择
func TestLatest_PicksGreatestTimestamp(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store, _ := newStore(t, storage.WithClock(func() time.Time { return clock }))

	_, err := store.StoreOriginal(ctx, 5, "a.pdf", "", samplePDF)
	require.NoError(t, err)
	clock = clock.Add(time.Second)
	newer, err := store.StoreOriginal(ctx, 5, "a.pdf", "", samplePDF)
	require.NoError(t, err)

	latest, err := store.LatestOriginal(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, newer.Path, latest)
}

// TestLatest_SameSecondKeepsWriteOrder 测试同一秒内连续写入的最新对象
func TestLatest_SameSecondKeepsWriteOrder(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store, _ := newStore(t, storage.WithClock(func() time.Time { return clock }))
	b64 := base64.StdEncoding.EncodeToString(samplePDF)

	for i := 0; i < 50; i++ {
		_, err := store.StoreSignedBase64(ctx, 1, b64, storage.SignerMeta{})
		require.NoError(t, err)
		second, err := store.StoreSignedBase64(ctx, 1, b64, storage.SignerMeta{})
		require.NoError(t, err)

		latest, err := store.LatestSigned(ctx, 1, storage.DefaultVersion)
		require.NoError(t, err)
		require.Equal(t, second.Path, latest, "iteration %d", i)

		manifest, err := store.GetManifest(ctx, 1, storage.DefaultVersion)
		require.NoError(t, err)
		require.NotNil(t, manifest)
		require.Equal(t, latest, manifest.File.Path)
	}
}

// TestSignedVersion_RejectsPathSegments 测试版本名校验
func TestSignedVersion_RejectsPathSegments(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	for _, version := range []string{"../../etc", "v1/../v2", "latest", "v"} {
		_, err := store.LatestSigned(ctx, 1, version)
		assert.ErrorIs(t, err, storage.ErrInvalidVersion, version)
		_, err = store.GetManifest(ctx, 1, version)
		assert.ErrorIs(t, err, storage.ErrInvalidVersion, version)
	}

	assert.True(t, storage.ValidVersion(""))
	assert.True(t, storage.ValidVersion("v12"))
}

// TestAbsentDocument 测试不存在的文档
func TestAbsentDocument(t *testing.T) {
	ctx := context.Background()
	store, disk := newStore(t)

	latest, err := store.LatestSigned(ctx, 99, "v1")
	require.NoError(t, err)
	assert.Empty(t, latest)

	manifest, err := store.GetManifest(ctx, 99, "v1")
	require.NoError(t, err)
	assert.Nil(t, manifest)

	require.NoError(t, disk.Put(ctx, storage.ManifestPath(99, "v1"), []byte("{not json")))
	manifest, err = store.GetManifest(ctx, 99, "v1")
	require.NoError(t, err)
	assert.Nil(t, manifest, "corrupt manifest reads as absent")

	versions, err := store.SignedVersions(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

// TestDeleteDocument 测试删除文档全部文件
func TestDeleteDocument(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	orig, err := store.StoreOriginal(ctx, 6, "a.pdf", "", samplePDF)
	require.NoError(t, err)
	signed, err := store.StoreSigned(ctx, 6, "a.pdf", "", samplePDF, storage.SignerMeta{})
	require.NoError(t, err)

	require.NoError(t, store.DeleteDocument(ctx, 6))

	for _, p := range []string{orig.Path, signed.Path, signed.Manifest} {
		ok, err := store.Exists(ctx, p)
		require.NoError(t, err)
		assert.False(t, ok, p)
	}
}

// TestLooksLikePDF 测试 PDF 判断
func TestLooksLikePDF(t *testing.T) {
	assert.True(t, storage.LooksLikePDF("A.PDF", "", nil))
	assert.True(t, storage.LooksLikePDF("a", "application/pdf", nil))
	assert.True(t, storage.LooksLikePDF("a", "", samplePDF))
	assert.False(t, storage.LooksLikePDF("a.doc", "application/msword", []byte("PK")))
	assert.Equal(t, "QUJD", storage.NormalizeBase64("data:application/pdf;base64,QUJD"))
}

// TestStoreStandalone 测试独立签名文件使用调用者命名空间
func TestStoreStandalone(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	a, err := store.StoreStandalone(ctx, 4, base64.StdEncoding.EncodeToString(samplePDF))
	require.NoError(t, err)
	b, err := store.StoreStandalone(ctx, 4, base64.StdEncoding.EncodeToString(samplePDF))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a.Path, "standalone/4/"))
	assert.NotEqual(t, a.Path, b.Path)

	_, err = store.StoreStandalone(ctx, 4, "not_base64!!")
	assert.Error(t, err)
}
