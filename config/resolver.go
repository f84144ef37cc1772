package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/voicestack/voicestack/internal/enum"
	"github.com/voicestack/voicestack/internal/retry"
	"github.com/voicestack/voicestack/internal/utils"
)

// ValidationResult carries every problem found during resolution. Global
// problems mean the process cannot start; account problems exclude only the
// offending account from the resolved list.
type ValidationResult struct {
	Global   []string
	Accounts []string
	Warnings []string
}

func (v *ValidationResult) Ok() bool {
	return len(v.Global) == 0 && len(v.Accounts) == 0
}

func (v *ValidationResult) All() []string {
	out := make([]string, 0, len(v.Global)+len(v.Accounts))
	out = append(out, v.Global...)
	out = append(out, v.Accounts...)
	return out
}

func validPort(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, n >= 1 && n <= 65535
}

func validPositiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, n > 0
}

// Resolve turns the loosely-typed raw configuration into a fully populated
// Config. Errors are collected, not short-circuited: every malformed entry
// and missing field is reported together. A nil Config is returned only
// when the global section itself is unusable.
func Resolve(raw *RawConfig) (*Config, *ValidationResult) {
	res := &ValidationResult{}

	imapPort, ok := validPort(raw.ImapPort)
	if !ok {
		res.Global = append(res.Global, fmt.Sprintf("IMAP_PORT '%s' is not a valid port number (1-65535)", raw.ImapPort))
	}
	imapSecurity, ok := enum.ParseEmailSecurity(raw.ImapSecurity)
	if !ok || imapSecurity == enum.EmailSecurityNone {
		res.Global = append(res.Global, fmt.Sprintf("IMAP_SECURITY must be 'SSL' or 'STARTTLS' (got '%s')", raw.ImapSecurity))
	}

	smtpPort, ok := validPort(raw.SmtpPort)
	if !ok {
		res.Global = append(res.Global, fmt.Sprintf("SMTP_PORT '%s' is not a valid port number (1-65535)", raw.SmtpPort))
	}
	smtpSecurity, ok := enum.ParseEmailSecurity(raw.SmtpSecurity)
	if !ok {
		res.Global = append(res.Global, fmt.Sprintf("SMTP_SECURITY must be 'SSL', 'STARTTLS', or 'NONE' (got '%s')", raw.SmtpSecurity))
	}

	if raw.SmtpUsername != "" && raw.SmtpPassword == "" {
		res.Global = append(res.Global, "SMTP_PASSWORD is required when SMTP_USERNAME is provided")
	}
	if raw.SmtpUsername == "" && raw.SmtpPassword != "" {
		res.Global = append(res.Global, "SMTP_USERNAME is required when SMTP_PASSWORD is provided")
	}
	if raw.SmtpUsername != "" && !utils.ValidEmailSyntax(raw.SmtpUsername) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("SMTP_USERNAME '%s' may not be a valid email format", utils.MaskEmail(raw.SmtpUsername)))
	}

	pollInterval, ok := validPositiveInt(raw.PollInterval)
	if !ok {
		res.Global = append(res.Global, fmt.Sprintf("POLL_INTERVAL '%s' must be a positive integer", raw.PollInterval))
	}
	maxSizeMB, ok := validPositiveInt(raw.MaxAttachmentSizeMB)
	if !ok {
		res.Global = append(res.Global, fmt.Sprintf("MAX_ATTACHMENT_SIZE_MB '%s' must be a positive integer", raw.MaxAttachmentSizeMB))
	}
	maxAttachments, ok := validPositiveInt(raw.MaxAttachmentsPerEmail)
	if !ok {
		res.Global = append(res.Global, fmt.Sprintf("MAX_ATTACHMENTS_PER_EMAIL '%s' must be a positive integer", raw.MaxAttachmentsPerEmail))
	}
	retentionDays, ok := validPositiveInt(raw.RetentionDays)
	if !ok {
		res.Global = append(res.Global, fmt.Sprintf("RETENTION_DAYS '%s' must be a positive integer", raw.RetentionDays))
	}
	maxRetries, ok := validPositiveInt(raw.MaxRetries)
	if !ok {
		res.Global = append(res.Global, fmt.Sprintf("MAX_RETRIES '%s' must be a positive integer", raw.MaxRetries))
	}
	retryDelay, ok := validPositiveInt(raw.RetryDelaySeconds)
	if !ok {
		res.Global = append(res.Global, fmt.Sprintf("RETRY_DELAY_SECONDS '%s' must be a positive integer", raw.RetryDelaySeconds))
	}

	var accounts []AccountConfig
	if raw.Accounts != "" {
		accounts = resolveAccountList(raw, imapPort, imapSecurity, smtpPort, smtpSecurity, res)
	} else {
		accounts = resolveLegacyAccount(raw, imapPort, imapSecurity, smtpPort, smtpSecurity, res)
	}

	if len(res.Global) == 0 && len(accounts) == 0 {
		res.Global = append(res.Global, "no usable accounts configured")
	}

	if len(res.Global) > 0 {
		return nil, res
	}

	return &Config{
		Accounts:                 accounts,
		ArchiveFolder:            raw.ArchiveFolder,
		PollInterval:             time.Duration(pollInterval) * time.Second,
		MaxAttachmentBytes:       int64(maxSizeMB) * 1024 * 1024,
		MaxAttachmentsPerMessage: maxAttachments,
		RetentionDays:            retentionDays,
		Retry: retry.Policy{
			MaxAttempts:   maxRetries,
			InitialDelay:  time.Duration(retryDelay) * time.Second,
			BackoffFactor: 2.0,
		},
		Whisper: WhisperConfig{
			URL:      raw.WhisperURL,
			Model:    raw.WhisperModel,
			Language: raw.WhisperLanguage,
		},
		HealthFile:             raw.HealthFile,
		MetricsSummarySchedule: raw.MetricsSummarySchedule,
		Logger:                 raw.Logger,
	}, res
}

// resolveAccountList validates the ACCOUNTS JSON array. An entry with any
// error of its own is excluded but does not abort resolution of the others.
func resolveAccountList(
	raw *RawConfig,
	imapPort int, imapSecurity enum.EmailSecurity,
	smtpPort int, smtpSecurity enum.EmailSecurity,
	res *ValidationResult,
) []AccountConfig {
	var entries []rawAccount
	if err := json.Unmarshal([]byte(raw.Accounts), &entries); err != nil {
		res.Global = append(res.Global, fmt.Sprintf("ACCOUNTS is not valid JSON: %v", err))
		return nil
	}
	if len(entries) == 0 {
		res.Global = append(res.Global, "ACCOUNTS must be a non-empty JSON array")
		return nil
	}

	accounts := make([]AccountConfig, 0, len(entries))
	for idx, entry := range entries {
		var entryErrs []string
		fail := func(format string, args ...interface{}) {
			entryErrs = append(entryErrs, fmt.Sprintf("ACCOUNTS[%d] ", idx)+fmt.Sprintf(format, args...))
		}

		if entry.ImapUsername == "" {
			fail("missing required 'imap_username' field")
		} else if !utils.ValidEmailSyntax(entry.ImapUsername) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("ACCOUNTS[%d] 'imap_username' may not be a valid email format", idx))
		}
		if entry.ImapPassword == "" {
			fail("missing required 'imap_password' field")
		}
		if entry.ForwardTo == "" {
			fail("missing required 'forward_to' field")
		} else if !utils.ValidEmailSyntax(entry.ForwardTo) {
			fail("'forward_to' '%s' is not a valid email", entry.ForwardTo)
		}

		host := entry.ImapHost
		if host == "" {
			host = raw.ImapHost
		}
		if host == "" {
			fail("missing 'imap_host' (and no default IMAP_HOST set)")
		}

		acctImapPort := imapPort
		if entry.ImapPort != nil {
			if *entry.ImapPort < 1 || *entry.ImapPort > 65535 {
				fail("'imap_port' must be valid (1-65535)")
			} else {
				acctImapPort = *entry.ImapPort
			}
		}
		acctImapSecurity := imapSecurity
		if entry.ImapSecurity != "" {
			sec, ok := enum.ParseEmailSecurity(entry.ImapSecurity)
			if !ok || sec == enum.EmailSecurityNone {
				fail("'imap_security' must be 'SSL' or 'STARTTLS' (got '%s')", entry.ImapSecurity)
			} else {
				acctImapSecurity = sec
			}
		}

		smtpHost := entry.SmtpHost
		if smtpHost == "" {
			smtpHost = raw.SmtpHost
		}
		if smtpHost == "" {
			fail("missing 'smtp_host' (and no default SMTP_HOST set)")
		}
		acctSmtpPort := smtpPort
		if entry.SmtpPort != nil {
			if *entry.SmtpPort < 1 || *entry.SmtpPort > 65535 {
				fail("'smtp_port' must be valid (1-65535)")
			} else {
				acctSmtpPort = *entry.SmtpPort
			}
		}
		acctSmtpSecurity := smtpSecurity
		if entry.SmtpSecurity != "" {
			sec, ok := enum.ParseEmailSecurity(entry.SmtpSecurity)
			if !ok {
				fail("'smtp_security' must be 'SSL', 'STARTTLS', or 'NONE' (got '%s')", entry.SmtpSecurity)
			} else {
				acctSmtpSecurity = sec
			}
		}

		smtpUsername := raw.SmtpUsername
		if entry.SmtpUsername != nil {
			smtpUsername = *entry.SmtpUsername
		}
		smtpPassword := raw.SmtpPassword
		if entry.SmtpPassword != nil {
			smtpPassword = *entry.SmtpPassword
		}
		if (smtpUsername == "") != (smtpPassword == "") {
			fail("'smtp_username' and 'smtp_password' must be provided together")
		}

		phone := entry.Phone
		if phone != "" {
			if !utils.ValidPhone(phone) {
				fail("'phone' '%s' must be 10 digits", phone)
			} else {
				phone = utils.FormatPhone(phone)
			}
		}

		name := entry.Name
		if name == "" {
			name = fmt.Sprintf("Account %d", idx+1)
		}

		if len(entryErrs) > 0 {
			res.Accounts = append(res.Accounts, entryErrs...)
			continue
		}

		accounts = append(accounts, AccountConfig{
			Name: name,
			Mailbox: MailboxEndpoint{
				Host:     host,
				Port:     acctImapPort,
				Security: acctImapSecurity,
				Username: entry.ImapUsername,
				Password: entry.ImapPassword,
			},
			Submission: SubmissionEndpoint{
				Host:     smtpHost,
				Port:     acctSmtpPort,
				Security: acctSmtpSecurity,
				Username: smtpUsername,
				Password: smtpPassword,
			},
			ForwardTo: entry.ForwardTo,
			Phone:     phone,
		})
	}

	return accounts
}

// resolveLegacyAccount synthesizes a single account from the flat
// environment variables when no ACCOUNTS list is supplied.
func resolveLegacyAccount(
	raw *RawConfig,
	imapPort int, imapSecurity enum.EmailSecurity,
	smtpPort int, smtpSecurity enum.EmailSecurity,
	res *ValidationResult,
) []AccountConfig {
	missing := false
	if raw.ImapHost == "" {
		res.Global = append(res.Global, "IMAP_HOST is required when not using ACCOUNTS")
		missing = true
	}
	if raw.ImapUsername == "" {
		res.Global = append(res.Global, "IMAP_USERNAME is required when not using ACCOUNTS")
		missing = true
	} else if !utils.ValidEmailSyntax(raw.ImapUsername) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("IMAP_USERNAME '%s' may not be a valid email format", utils.MaskEmail(raw.ImapUsername)))
	}
	if raw.ImapPassword == "" {
		res.Global = append(res.Global, "IMAP_PASSWORD is required when not using ACCOUNTS")
		missing = true
	}
	if raw.SmtpHost == "" {
		res.Global = append(res.Global, "SMTP_HOST is required")
		missing = true
	}
	if raw.ForwardTo == "" {
		res.Global = append(res.Global, "Either ACCOUNTS or FORWARD_TO is required")
		missing = true
	} else if !utils.ValidEmailSyntax(raw.ForwardTo) {
		res.Global = append(res.Global, fmt.Sprintf("FORWARD_TO '%s' is not a valid email address", raw.ForwardTo))
		missing = true
	}

	if missing {
		return nil
	}

	return []AccountConfig{{
		Name: "Primary Account",
		Mailbox: MailboxEndpoint{
			Host:     raw.ImapHost,
			Port:     imapPort,
			Security: imapSecurity,
			Username: raw.ImapUsername,
			Password: raw.ImapPassword,
		},
		Submission: SubmissionEndpoint{
			Host:     raw.SmtpHost,
			Port:     smtpPort,
			Security: smtpSecurity,
			Username: raw.SmtpUsername,
			Password: raw.SmtpPassword,
		},
		ForwardTo: raw.ForwardTo,
	}}
}
