package domain

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

// 验证相关的错误定义
var (
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrEmailTooLong     = errors.New("email address too long")
	ErrLocalPartTooLong = errors.New("local part too long (max 64 chars)")
	ErrDomainTooLong    = errors.New("domain too long (max 253 chars)")
	ErrInvalidLocalPart = errors.New("invalid local part format")
	ErrInvalidDomain    = errors.New("invalid domain format")
)

// RFC 5322 邮箱地址长度限制
const (
	MaxEmailLength     = 254 // 整个邮箱地址最大长度
	MaxLocalPartLength = 64  // 本地部分最大长度(@前面)
	MaxDomainLength    = 253 // 域名最大长度
)

// 域名验证（支持子域名）
var domainRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// ValidateAddress 验证单个邮箱地址，允许带显示名（如 "経理部 <keiri@example.co.jp>"）
func ValidateAddress(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return ErrInvalidEmail
	}

	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return ErrInvalidEmail
	}
	email := strings.ToLower(parsed.Address)

	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return ErrInvalidEmail
	}

	if err := validateLocalPart(email[:at]); err != nil {
		return err
	}
	return validateDomain(email[at+1:])
}

func validateLocalPart(localPart string) error {
	if len(localPart) > MaxLocalPartLength {
		return ErrLocalPartTooLong
	}
	if strings.HasPrefix(localPart, ".") || strings.HasSuffix(localPart, ".") || strings.Contains(localPart, "..") {
		return ErrInvalidLocalPart
	}
	return nil
}

func validateDomain(domain string) error {
	if domain == "" {
		return ErrInvalidDomain
	}
	if len(domain) > MaxDomainLength {
		return ErrDomainTooLong
	}
	if !domainRegex.MatchString(domain) {
		return ErrInvalidDomain
	}
	return nil
}
