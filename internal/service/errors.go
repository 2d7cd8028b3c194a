package service

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound 资源不存在
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidDocument 内容不是有效的 PDF
	ErrInvalidDocument = errors.New("document is not a valid PDF")
	// ErrCertificateNotEligible 签名人证书状态不可签名
	ErrCertificateNotEligible = errors.New("signer certificate is not eligible for signing")
	// ErrMissingPlacement 可见签名缺少位置或签名图片
	ErrMissingPlacement = errors.New("visible signature requires placement and image")
	// ErrMissingCredential 缺少签名口令或 TOTP
	ErrMissingCredential = errors.New("signing credential is missing")
	// ErrInvalidIdentifier 签名人标识无效
	ErrInvalidIdentifier = errors.New("signer identifier is invalid")
)

// notFound maps gorm's missing-row error to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
