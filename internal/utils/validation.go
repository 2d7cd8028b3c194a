package utils

import (
	"html"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

var nikPattern = regexp.MustCompile(`^\d{16}$`)

// SanitizeString 清理字符串，移除或转义危险字符
func SanitizeString(input string) string {
	sanitized := html.EscapeString(input)

	// 移除控制字符（除了换行符和制表符）
	var result strings.Builder
	for _, r := range sanitized {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		result.WriteRune(r)
	}

	return result.String()
}

// ValidateNIK 验证 16 位身份证号
func ValidateNIK(nik string) error {
	if nik == "" {
		return ErrEmptyNIK
	}
	if !nikPattern.MatchString(nik) {
		return ErrInvalidNIK
	}
	return nil
}

// ValidateEmail 验证邮箱格式
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateSignerIdentity 签名人标识：有效的 NIK，或在 NIK 为空时有效的邮箱
func ValidateSignerIdentity(nik, email string) error {
	if nik != "" {
		if err := ValidateNIK(nik); err != nil {
			if email != "" && ValidateEmail(email) == nil {
				return nil
			}
			return err
		}
		return nil
	}
	if email == "" {
		return ErrMissingIdentity
	}
	return ValidateEmail(email)
}

// TrimAndValidate 清理并验证字符串
func TrimAndValidate(s string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", ErrEmptyString
	}
	if maxLen > 0 && len([]rune(trimmed)) > maxLen {
		return "", ErrStringTooLong
	}
	return SanitizeString(trimmed), nil
}

// 错误定义
var (
	ErrEmptyNIK        = &ValidationError{Code: "EMPTY_NIK", Message: "NIK wajib diisi"}
	ErrInvalidNIK      = &ValidationError{Code: "INVALID_NIK", Message: "NIK harus 16 digit angka"}
	ErrInvalidEmail    = &ValidationError{Code: "INVALID_EMAIL", Message: "email tidak valid"}
	ErrMissingIdentity = &ValidationError{Code: "MISSING_IDENTITY", Message: "NIK atau email penandatangan wajib diisi"}
	ErrEmptyString     = &ValidationError{Code: "EMPTY_STRING", Message: "string cannot be empty"}
	ErrStringTooLong   = &ValidationError{Code: "STRING_TOO_LONG", Message: "string exceeds maximum length"}
)

// ValidationError 验证错误
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError 创建验证错误
func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}
