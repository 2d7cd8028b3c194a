package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/nota-esign/internal/metrics"
	"github.com/mautops/nota-esign/internal/utils"
	"github.com/sirupsen/logrus"
)

// DefaultVersion 默认签名版本命名空间
const DefaultVersion = "v1"

const timestampLayout = "20060102150405"

var pdfMagic = []byte("%PDF-")

var versionPattern = regexp.MustCompile(`^v[0-9]{1,6}$`)

var (
	// ErrInvalidVersion 版本名不是 v<数字>
	ErrInvalidVersion = errors.New("invalid signed version")
	// ErrIntegrityFailure 写入后回读哈希不一致
	ErrIntegrityFailure = errors.New("stored object failed integrity verification")
	// ErrNotPDF 内容不是 PDF
	ErrNotPDF = errors.New("content is not a PDF document")
)

// Stored 存储结果
type Stored struct {
	Path      string `json:"path"`
	Hash      string `json:"hash"`
	UUID      string `json:"uuid"`
	Timestamp string `json:"timestamp"`
	Manifest  string `json:"manifest,omitempty"`
}

// SignerMeta 签名人信息，写入签名清单
type SignerMeta struct {
	UserID        uint
	Name          string
	NIK           string
	Method        string
	SignatureMeta map[string]any
}

// ManifestSigner 清单中的签名人，空字段省略
type ManifestSigner struct {
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
	NIK    string `json:"nik,omitempty"`
	Method string `json:"method,omitempty"`
}

// ManifestFile 清单指向的签名文件
type ManifestFile struct {
	Path string `json:"path"`
	UUID string `json:"uuid"`
}

// Manifest 签名清单 signatures/{id}/{version}.json
type Manifest struct {
	DocumentID    string         `json:"document_id"`
	Version       string         `json:"version"`
	Timestamp     string         `json:"timestamp"`
	Signer        ManifestSigner `json:"signer"`
	DocHash       string         `json:"doc_hash"`
	SignatureMeta map[string]any `json:"signature_meta"`
	File          ManifestFile   `json:"file"`
}

// DocumentStore 文档存储，写入后回读校验
type DocumentStore struct {
	disk   Disk
	logger logrus.FieldLogger
	now    func() time.Time
	newID  func() string
}

// Option DocumentStore 选项
type Option func(*DocumentStore)

// WithClock 指定时钟
func WithClock(now func() time.Time) Option {
	return func(s *DocumentStore) { s.now = now }
}

// WithLogger 指定日志
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *DocumentStore) { s.logger = logger }
}

// newObjectID 时间有序的 UUIDv7, 同一秒内的对象名按写入顺序排序
func newObjectID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewDocumentStore 创建文档存储
func NewDocumentStore(disk Disk, opts ...Option) *DocumentStore {
	s := &DocumentStore{
		disk:   disk,
		logger: logrus.StandardLogger(),
		now:    time.Now,
		newID:  newObjectID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Disk 返回底层存储
func (s *DocumentStore) Disk() Disk {
	return s.disk
}

// IsPDF 判断内容是否以 PDF 头开始
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// LooksLikePDF 根据文件名、MIME 类型或内容头判断是否为 PDF
func LooksLikePDF(name, mimeType string, data []byte) bool {
	if strings.HasSuffix(strings.ToLower(name), ".pdf") || mimeType == "application/pdf" {
		return true
	}
	return IsPDF(data)
}

// NormalizeBase64 去掉 data URI 前缀
func NormalizeBase64(b64 string) string {
	if _, after, found := strings.Cut(b64, "base64,"); found {
		return after
	}
	return b64
}

// DecodePDFBase64 解码 base64 并校验 PDF 头
func DecodePDFBase64(b64 string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(NormalizeBase64(b64)))
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode failed", ErrNotPDF)
	}
	if !IsPDF(raw) {
		return nil, ErrNotPDF
	}
	return raw, nil
}

func docDir(documentID uint) string {
	return "documents/" + strconv.FormatUint(uint64(documentID), 10)
}

func originalDir(documentID uint) string {
	return docDir(documentID) + "/original"
}

func signedDir(documentID uint, version string) string {
	return docDir(documentID) + "/signed/" + versionOrDefault(version)
}

// ValidVersion 空字符串表示默认版本
func ValidVersion(version string) bool {
	return version == "" || versionPattern.MatchString(version)
}

func versionOrDefault(version string) string {
	if version == "" {
		return DefaultVersion
	}
	return version
}

// ManifestPath 返回清单路径
func ManifestPath(documentID uint, version string) string {
	return fmt.Sprintf("signatures/%d/%s.json", documentID, versionOrDefault(version))
}

// StoreOriginal 存储原始文件 documents/{id}/original/{ts}-{uuid}.pdf
func (s *DocumentStore) StoreOriginal(ctx context.Context, documentID uint, name, mimeType string, data []byte) (*Stored, error) {
	if !LooksLikePDF(name, mimeType, data) {
		return nil, ErrNotPDF
	}
	stored, err := s.writeVerified(ctx, originalDir(documentID), data)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"event":  "doc.original.uploaded",
		"doc_id": documentID,
		"path":   stored.Path,
	}).Info("original document stored")
	return stored, nil
}

// StoreSigned 存储已签名文件并写入清单
func (s *DocumentStore) StoreSigned(ctx context.Context, documentID uint, name, mimeType string, data []byte, meta SignerMeta) (*Stored, error) {
	if !LooksLikePDF(name, mimeType, data) {
		return nil, ErrNotPDF
	}
	return s.storeSigned(ctx, documentID, DefaultVersion, data, meta)
}

// StoreSignedBase64 存储 base64 编码的已签名文件
func (s *DocumentStore) StoreSignedBase64(ctx context.Context, documentID uint, b64 string, meta SignerMeta) (*Stored, error) {
	data, err := DecodePDFBase64(b64)
	if err != nil {
		return nil, err
	}
	return s.storeSigned(ctx, documentID, DefaultVersion, data, meta)
}

func (s *DocumentStore) storeSigned(ctx context.Context, documentID uint, version string, data []byte, meta SignerMeta) (*Stored, error) {
	stored, err := s.writeVerified(ctx, signedDir(documentID, version), data)
	if err != nil {
		return nil, err
	}

	manifestPath := ManifestPath(documentID, version)
	manifest := Manifest{
		DocumentID:    strconv.FormatUint(uint64(documentID), 10),
		Version:       versionOrDefault(version),
		Timestamp:     stored.Timestamp,
		Signer:        meta.signer(),
		DocHash:       stored.Hash,
		SignatureMeta: meta.SignatureMeta,
		File:          ManifestFile{Path: stored.Path, UUID: stored.UUID},
	}
	if manifest.SignatureMeta == nil {
		manifest.SignatureMeta = map[string]any{}
	}
	raw, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := s.disk.Put(ctx, manifestPath, raw); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	stored.Manifest = manifestPath

	s.logger.WithFields(logrus.Fields{
		"event":    "doc.signed.uploaded",
		"doc_id":   documentID,
		"path":     stored.Path,
		"manifest": manifestPath,
	}).Info("signed document stored")
	return stored, nil
}

// StoreStandalone stores a signed file that belongs to no attachment under
// standalone/{userID}/{ts}-{uuid}.pdf.
func (s *DocumentStore) StoreStandalone(ctx context.Context, userID uint, b64 string) (*Stored, error) {
	data, err := DecodePDFBase64(b64)
	if err != nil {
		return nil, err
	}
	stored, err := s.writeVerified(ctx, fmt.Sprintf("standalone/%d", userID), data)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"event":   "doc.signed.uploaded",
		"user_id": userID,
		"path":    stored.Path,
	}).Info("standalone signed document stored")
	return stored, nil
}

func (m SignerMeta) signer() ManifestSigner {
	out := ManifestSigner{Name: m.Name, NIK: m.NIK, Method: m.Method}
	if m.UserID != 0 {
		out.UserID = strconv.FormatUint(uint64(m.UserID), 10)
	}
	return out
}

// writeVerified 写入后回读并比较 SHA-256，不一致时删除对象
func (s *DocumentStore) writeVerified(ctx context.Context, dir string, data []byte) (*Stored, error) {
	id := s.newID()
	ts := s.now().Format(timestampLayout)
	rel := fmt.Sprintf("%s/%s-%s.pdf", dir, ts, id)

	hashBefore := utils.SHA256Hex(data)
	if err := s.disk.Put(ctx, rel, data); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", rel, err)
	}

	readBack, err := s.disk.Get(ctx, rel)
	if err != nil {
		_ = s.disk.Delete(ctx, rel)
		return nil, fmt.Errorf("%w: read back %s: %v", ErrIntegrityFailure, rel, err)
	}
	hashAfter := utils.SHA256Hex(readBack)
	if hashAfter != hashBefore {
		metrics.RecordIntegrityFailure()
		if delErr := s.disk.Delete(ctx, rel); delErr != nil {
			s.logger.WithError(delErr).WithField("path", rel).Error("failed to remove corrupted object")
		}
		s.logger.WithFields(logrus.Fields{
			"path":        rel,
			"hash_before": hashBefore,
			"hash_after":  hashAfter,
		}).Error("integrity verification failed")
		return nil, ErrIntegrityFailure
	}

	return &Stored{Path: rel, Hash: hashAfter, UUID: id, Timestamp: ts}, nil
}

// LatestOriginal 最新的原始文件路径，不存在时返回空字符串
func (s *DocumentStore) LatestOriginal(ctx context.Context, documentID uint) (string, error) {
	return s.latest(ctx, originalDir(documentID))
}

// LatestSigned 指定版本最新的已签名文件路径
func (s *DocumentStore) LatestSigned(ctx context.Context, documentID uint, version string) (string, error) {
	if !ValidVersion(version) {
		return "", ErrInvalidVersion
	}
	return s.latest(ctx, signedDir(documentID, version))
}

func (s *DocumentStore) latest(ctx context.Context, dir string) (string, error) {
	files, err := s.disk.Files(ctx, dir)
	if err != nil {
		return "", err
	}
	latest := ""
	for _, f := range files {
		if path.Ext(f) == ".pdf" && f > latest {
			latest = f
		}
	}
	return latest, nil
}

// SignedVersions 列出包含已签名文件的版本
func (s *DocumentStore) SignedVersions(ctx context.Context, documentID uint) ([]string, error) {
	dirs, err := s.disk.Directories(ctx, docDir(documentID)+"/signed")
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(dirs))
	for _, v := range dirs {
		latest, err := s.LatestSigned(ctx, documentID, v)
		if err != nil {
			return nil, err
		}
		if latest != "" {
			versions = append(versions, v)
		}
	}
	return versions, nil
}

// GetManifest 读取清单，不存在或损坏时返回 nil
func (s *DocumentStore) GetManifest(ctx context.Context, documentID uint, version string) (*Manifest, error) {
	if !ValidVersion(version) {
		return nil, ErrInvalidVersion
	}
	raw, err := s.disk.Get(ctx, ManifestPath(documentID, version))
	if errors.Is(err, ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		s.logger.WithError(err).WithField("doc_id", documentID).Warn("manifest is corrupt")
		return nil, nil
	}
	return &m, nil
}

// Read 读取对象内容
func (s *DocumentStore) Read(ctx context.Context, p string) ([]byte, error) {
	return s.disk.Get(ctx, p)
}

// Exists 判断对象是否存在
func (s *DocumentStore) Exists(ctx context.Context, p string) (bool, error) {
	if p == "" {
		return false, nil
	}
	return s.disk.Exists(ctx, p)
}

// Delete 删除对象
func (s *DocumentStore) Delete(ctx context.Context, p string) error {
	return s.disk.Delete(ctx, p)
}

// DeleteDocument 删除附件的全部原始与签名文件及清单
func (s *DocumentStore) DeleteDocument(ctx context.Context, documentID uint) error {
	var paths []string
	originals, err := s.disk.Files(ctx, originalDir(documentID))
	if err != nil {
		return err
	}
	paths = append(paths, originals...)

	versions, err := s.disk.Directories(ctx, docDir(documentID)+"/signed")
	if err != nil {
		return err
	}
	for _, v := range versions {
		signed, err := s.disk.Files(ctx, signedDir(documentID, v))
		if err != nil {
			return err
		}
		paths = append(paths, signed...)
		paths = append(paths, ManifestPath(documentID, v))
	}

	var errs []error
	for _, p := range paths {
		if err := s.disk.Delete(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
