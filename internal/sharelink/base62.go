package sharelink

import (
	"errors"
	"math"
	"strings"
)

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// ErrInvalidCode 非法的短码
var ErrInvalidCode = errors.New("invalid base62 code")

// EncodeBase62 编码正整数
func EncodeBase62(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [11]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = alphabet[n%62]
		n /= 62
	}
	return string(buf[i:])
}

// DecodeBase62 解码短码，空串、非法字符与溢出均返回错误
func DecodeBase62(code string) (uint64, error) {
	if code == "" {
		return 0, ErrInvalidCode
	}
	var n uint64
	for _, c := range code {
		d := strings.IndexRune(alphabet, c)
		if d < 0 {
			return 0, ErrInvalidCode
		}
		if n > (math.MaxUint64-uint64(d))/62 {
			return 0, ErrInvalidCode
		}
		n = n*62 + uint64(d)
	}
	return n, nil
}
