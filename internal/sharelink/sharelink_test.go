package sharelink_test

import (
	"math"
	"testing"
	"time"

	"github.com/mautops/nota-esign/internal/sharelink"
	"github.com/mautops/nota-esign/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const key = "0123456789abcdef0123456789abcdef"

// TestBase62_RoundTrip 测试短码编解码
func TestBase62_RoundTrip(t *testing.T) {
	for _, n := range []uint64{0, 1, 61, 62, 3843, 1 << 32, math.MaxUint64} {
		code := sharelink.EncodeBase62(n)
		got, err := sharelink.DecodeBase62(code)
		require.NoError(t, err)
		assert.Equal(t, n, got, code)
	}
	assert.Equal(t, "z", sharelink.EncodeBase62(61))
	assert.Equal(t, "10", sharelink.EncodeBase62(62))
}

// TestDecodeBase62_Invalid 测试非法短码
func TestDecodeBase62_Invalid(t *testing.T) {
	for _, code := range []string{"", "abc-", "ü", "zzzzzzzzzzzzzzzz"} {
		_, err := sharelink.DecodeBase62(code)
		assert.ErrorIs(t, err, sharelink.ErrInvalidCode, code)
	}
}

// TestResolveCode 测试二维码短码解析
func TestResolveCode(t *testing.T) {
	id, err := sharelink.ResolveCode("1A")
	require.NoError(t, err)
	assert.Equal(t, uint(72), id)

	_, err = sharelink.ResolveCode("0")
	assert.ErrorIs(t, err, sharelink.ErrLinkGone)
	_, err = sharelink.ResolveCode("!!")
	assert.ErrorIs(t, err, sharelink.ErrLinkGone)
}

// TestIssuer_IssueValidate 测试签发与校验
func TestIssuer_IssueValidate(t *testing.T) {
	now := time.Date(2025, 12, 1, 8, 0, 0, 0, time.UTC)
	issuer, err := sharelink.NewIssuer(key, 0, "https://nota.example.go.id/", sharelink.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	token, exp, err := issuer.Issue(15)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	id, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, uint(15), id)

	assert.Equal(t, "https://nota.example.go.id/public/document/"+token, issuer.ViewURL(token))
	assert.Equal(t, "https://nota.example.go.id/public/document/pdf/"+token, issuer.PDFURL(token))
	assert.Equal(t, "https://nota.example.go.id/qr/F", issuer.QRURL(15))
}

// TestIssuer_Expired 测试过期令牌
func TestIssuer_Expired(t *testing.T) {
	now := time.Now()
	issuer, err := sharelink.NewIssuer(key, time.Hour, "", sharelink.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	token, _, err := issuer.Issue(3)
	require.NoError(t, err)

	now = now.Add(time.Hour + time.Second)
	_, err = issuer.Validate(token)
	assert.ErrorIs(t, err, sharelink.ErrLinkGone)
}

// TestIssuer_RejectsForeignTokens 测试无效令牌
func TestIssuer_RejectsForeignTokens(t *testing.T) {
	issuer, err := sharelink.NewIssuer(key, time.Hour, "")
	require.NoError(t, err)
	other, err := sharelink.NewIssuer("ffffffffffffffffffffffffffffffff", time.Hour, "")
	require.NoError(t, err)

	foreign, _, err := other.Issue(3)
	require.NoError(t, err)

	malformed, err := utils.Encrypt([]byte("not json"), key)
	require.NoError(t, err)
	zeroID, err := utils.Encrypt([]byte(`{"id":0,"exp":99999999999}`), key)
	require.NoError(t, err)

	for _, token := range []string{"", "garbage", foreign, malformed, zeroID} {
		_, err := issuer.Validate(token)
		assert.ErrorIs(t, err, sharelink.ErrLinkGone)
	}
}

// TestNewIssuer_ShortKey 测试短密钥
func TestNewIssuer_ShortKey(t *testing.T) {
	_, err := sharelink.NewIssuer("short", time.Hour, "")
	assert.ErrorIs(t, err, utils.ErrKeyTooShort)
}
