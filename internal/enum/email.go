package enum

import "strings"

type EmailSecurity string

const (
	EmailSecuritySSL      EmailSecurity = "SSL"
	EmailSecurityStartTLS EmailSecurity = "STARTTLS"
	EmailSecurityNone     EmailSecurity = "NONE"
)

func (t EmailSecurity) String() string {
	return string(t)
}

// ParseEmailSecurity normalizes a security mode string. The second return
// value is false when the input names no known mode.
func ParseEmailSecurity(s string) (EmailSecurity, bool) {
	switch EmailSecurity(strings.ToUpper(strings.TrimSpace(s))) {
	case EmailSecuritySSL:
		return EmailSecuritySSL, true
	case EmailSecurityStartTLS:
		return EmailSecurityStartTLS, true
	case EmailSecurityNone:
		return EmailSecurityNone, true
	default:
		return "", false
	}
}

type MessageFilter string

const (
	MessageFilterAll    MessageFilter = "all"
	MessageFilterUnseen MessageFilter = "unseen"
)

func (t MessageFilter) String() string {
	return string(t)
}

type HealthStatus string

const (
	HealthStarting  HealthStatus = "starting"
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

func (t HealthStatus) String() string {
	return string(t)
}
