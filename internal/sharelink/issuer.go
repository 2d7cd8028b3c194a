// Package sharelink issues and validates the time-limited tokens that grant
// anonymous read access to the latest rendition of one attachment.
package sharelink

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mautops/nota-esign/internal/utils"
)

// DefaultTTL 默认有效期
const DefaultTTL = time.Hour

// ErrLinkGone covers every rejected token: undecryptable, malformed or
// expired. Callers must not distinguish between them.
var ErrLinkGone = errors.New("link is no longer available")

type payload struct {
	ID  uint64 `json:"id"`
	Exp int64  `json:"exp"`
}

// Issuer 分享链接签发器
type Issuer struct {
	key     string
	ttl     time.Duration
	baseURL string
	now     func() time.Time
}

// Option 签发器选项
type Option func(*Issuer)

// WithClock 指定时钟
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer 创建签发器，key 至少 32 字节
func NewIssuer(key string, ttl time.Duration, baseURL string, opts ...Option) (*Issuer, error) {
	if len(key) < 32 {
		return nil, utils.ErrKeyTooShort
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	i := &Issuer{
		key:     key,
		ttl:     ttl,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue 为附件签发令牌
func (i *Issuer) Issue(attachmentID uint) (string, time.Time, error) {
	exp := i.now().Add(i.ttl)
	raw, err := json.Marshal(payload{ID: uint64(attachmentID), Exp: exp.Unix()})
	if err != nil {
		return "", time.Time{}, err
	}
	token, err := utils.Encrypt(raw, i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to encrypt share token: %w", err)
	}
	return token, exp, nil
}

// Validate 校验令牌并返回附件 ID
func (i *Issuer) Validate(token string) (uint, error) {
	if token == "" {
		return 0, ErrLinkGone
	}
	raw, err := utils.Decrypt(token, i.key)
	if err != nil {
		return 0, ErrLinkGone
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return 0, ErrLinkGone
	}
	if p.ID == 0 || p.ID > math.MaxUint32 {
		return 0, ErrLinkGone
	}
	if p.Exp < i.now().Unix() {
		return 0, ErrLinkGone
	}
	return uint(p.ID), nil
}

// ResolveCode 将二维码短码解析为附件 ID
func ResolveCode(code string) (uint, error) {
	n, err := DecodeBase62(code)
	if err != nil || n < 1 || n > math.MaxUint32 {
		return 0, ErrLinkGone
	}
	return uint(n), nil
}

// QRURL 附件二维码指向的地址
func (i *Issuer) QRURL(attachmentID uint) string {
	return i.baseURL + "/qr/" + EncodeBase62(uint64(attachmentID))
}

// ViewURL 公开查看地址
func (i *Issuer) ViewURL(token string) string {
	return i.baseURL + "/public/document/" + token
}

// PDFURL 公开 PDF 地址
func (i *Issuer) PDFURL(token string) string {
	return i.baseURL + "/public/document/pdf/" + token
}
