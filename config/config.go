package config

import (
	"time"

	"github.com/voicestack/voicestack/internal/enum"
	"github.com/voicestack/voicestack/internal/logger"
	"github.com/voicestack/voicestack/internal/retry"
)

// RawConfig is the loosely-typed first stage of configuration: every value
// comes straight off the environment as a string so that validation can
// collect every problem in one pass instead of failing on the first bad
// field.
type RawConfig struct {
	ImapHost     string `env:"IMAP_HOST"`
	ImapUsername string `env:"IMAP_USERNAME"`
	ImapPassword string `env:"IMAP_PASSWORD"`
	ImapPort     string `env:"IMAP_PORT" envDefault:"993"`
	ImapSecurity string `env:"IMAP_SECURITY" envDefault:"SSL"`

	SmtpHost     string `env:"SMTP_HOST"`
	SmtpUsername string `env:"SMTP_USERNAME"`
	SmtpPassword string `env:"SMTP_PASSWORD"`
	SmtpPort     string `env:"SMTP_PORT" envDefault:"587"`
	SmtpSecurity string `env:"SMTP_SECURITY" envDefault:"STARTTLS"`

	// Accounts is a JSON array of per-account objects. When empty, the
	// legacy single-account variables above plus ForwardTo are used.
	Accounts  string `env:"ACCOUNTS"`
	ForwardTo string `env:"FORWARD_TO"`

	ArchiveFolder          string `env:"ARCHIVE_FOLDER" envDefault:"Processed"`
	PollInterval           string `env:"POLL_INTERVAL" envDefault:"60"`
	MaxAttachmentSizeMB    string `env:"MAX_ATTACHMENT_SIZE_MB" envDefault:"40"`
	MaxAttachmentsPerEmail string `env:"MAX_ATTACHMENTS_PER_EMAIL" envDefault:"10"`
	RetentionDays          string `env:"RETENTION_DAYS" envDefault:"365"`

	MaxRetries        string `env:"MAX_RETRIES" envDefault:"3"`
	RetryDelaySeconds string `env:"RETRY_DELAY_SECONDS" envDefault:"5"`

	WhisperURL      string `env:"WHISPER_URL" envDefault:"http://localhost:9000"`
	WhisperModel    string `env:"WHISPER_MODEL" envDefault:"medium"`
	WhisperLanguage string `env:"WHISPER_LANGUAGE" envDefault:"auto"`

	HealthFile             string `env:"HEALTH_FILE" envDefault:"/tmp/voicestack.healthy"`
	MetricsSummarySchedule string `env:"CRON_SCHEDULE_METRICS_SUMMARY" envDefault:"0 * * * *"`

	Logger *logger.Config
}

// rawAccount mirrors one entry of the ACCOUNTS JSON array. Pointer fields
// distinguish "absent, fill from global" from an explicit value.
type rawAccount struct {
	Name         string  `json:"name"`
	ImapHost     string  `json:"imap_host"`
	ImapUsername string  `json:"imap_username"`
	ImapPassword string  `json:"imap_password"`
	ImapPort     *int    `json:"imap_port"`
	ImapSecurity string  `json:"imap_security"`
	SmtpHost     string  `json:"smtp_host"`
	SmtpPort     *int    `json:"smtp_port"`
	SmtpUsername *string `json:"smtp_username"`
	SmtpPassword *string `json:"smtp_password"`
	SmtpSecurity string  `json:"smtp_security"`
	ForwardTo    string  `json:"forward_to"`
	Phone        string  `json:"phone"`
}

// MailboxEndpoint is a fully resolved IMAP endpoint.
type MailboxEndpoint struct {
	Host     string
	Port     int
	Security enum.EmailSecurity
	Username string
	Password string
}

// SubmissionEndpoint is a fully resolved SMTP endpoint. Username and
// Password may both be empty for unauthenticated relays.
type SubmissionEndpoint struct {
	Host     string
	Port     int
	Security enum.EmailSecurity
	Username string
	Password string
}

// AccountConfig is immutable once resolved: every endpoint field is
// populated, either from the per-account entry or from the global defaults.
type AccountConfig struct {
	Name       string
	Mailbox    MailboxEndpoint
	Submission SubmissionEndpoint
	ForwardTo  string
	Phone      string
}

type WhisperConfig struct {
	URL      string
	Model    string
	Language string
}

// Config is the strongly-typed second stage, built once at startup and
// never mutated afterwards.
type Config struct {
	Accounts []AccountConfig

	ArchiveFolder            string
	PollInterval             time.Duration
	MaxAttachmentBytes       int64
	MaxAttachmentsPerMessage int
	RetentionDays            int

	Retry retry.Policy

	Whisper WhisperConfig

	HealthFile             string
	MetricsSummarySchedule string

	Logger *logger.Config
}
