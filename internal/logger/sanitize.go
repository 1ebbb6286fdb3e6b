package logger

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Length limits for request-derived values written to logs
const (
	MaxPathLength          = 500
	MaxIDLength            = 128
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
)

// SanitizeString drops invalid UTF-8 and control characters (tab, newline and
// carriage return survive) and truncates s to maxLength bytes. A non-positive
// maxLength means MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, strings.ToValidUTF8(s, ""))
	if len(s) > maxLength {
		s = strings.ToValidUTF8(s[:maxLength], "") + "..."
	}
	return s
}

// SanitizeError renders err for logging
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// Path is the sanitized "path" field of a request log line
func Path(path string) zap.Field {
	return zap.String("path", SanitizeString(path, MaxPathLength))
}

// RequestID is the sanitized "request_id" field
func RequestID(id string) zap.Field {
	return zap.String("request_id", SanitizeString(id, MaxIDLength))
}

// Subject is the sanitized "subject" field for token subjects, which come
// from the identity provider and are not trusted
func Subject(subject string) zap.Field {
	return zap.String("subject", SanitizeString(subject, MaxIDLength))
}

// ClientIP is the sanitized "ip" field
func ClientIP(ip string) zap.Field {
	return zap.String("ip", SanitizeString(ip, MaxIDLength))
}

// Error is the sanitized "error" field. A nil error yields no field.
func Error(err error) zap.Field {
	if err == nil {
		return zap.Skip()
	}
	return zap.String("error", SanitizeError(err))
}
