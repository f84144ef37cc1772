package utils

import (
	"regexp"
	"strings"
)

var emailSyntaxRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmailSyntax reports whether addr looks like local@domain.tld.
func ValidEmailSyntax(addr string) bool {
	return emailSyntaxRe.MatchString(addr)
}

// MaskEmail redacts an email address for audit logging. Only the first two
// characters of the local part and of the first domain label survive.
func MaskEmail(email string) string {
	if email == "" || !strings.Contains(email, "@") {
		return email
	}

	parts := strings.SplitN(email, "@", 2)
	local, domain := parts[0], parts[1]

	maskedLocal := local
	if len(local) > 2 {
		maskedLocal = local[:2] + strings.Repeat("*", len(local)-2)
	}

	maskedDomain := domain
	domainLabels := strings.Split(domain, ".")
	if len(domainLabels) > 1 {
		first := domainLabels[0]
		if len(first) > 2 {
			first = first[:2] + strings.Repeat("*", len(first)-2)
		}
		maskedDomain = first + "." + strings.Join(domainLabels[1:], ".")
	}

	return maskedLocal + "@" + maskedDomain
}

// ExtractDomainFromEmail returns the lowercased domain of an address,
// tolerating "Name <email@domain.com>" forms.
func ExtractDomainFromEmail(email string) string {
	if email == "" {
		return ""
	}

	email = strings.TrimSpace(email)

	if strings.Contains(email, "<") && strings.Contains(email, ">") {
		startIdx := strings.LastIndex(email, "<") + 1
		endIdx := strings.LastIndex(email, ">")
		if startIdx > 0 && endIdx > startIdx {
			email = email[startIdx:endIdx]
		}
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}

	return strings.ToLower(strings.TrimSpace(parts[1]))
}
