package config

import (
	"github.com/voicestack/voicestack/internal/logger"
	"github.com/voicestack/voicestack/internal/utils"
)

// LogResolved emits a redacted view of the final configuration for audit
// logging. Passwords are fully masked and email addresses keep only their
// first two characters per label.
func LogResolved(cfg *Config, log logger.Logger) {
	log.Info("Configuration loaded:")
	log.Infof("  archive_folder: %s", cfg.ArchiveFolder)
	log.Infof("  poll_interval: %s", cfg.PollInterval)
	log.Infof("  max_attachment_bytes: %d", cfg.MaxAttachmentBytes)
	log.Infof("  max_attachments_per_message: %d", cfg.MaxAttachmentsPerMessage)
	log.Infof("  retention_days: %d", cfg.RetentionDays)
	log.Infof("  retry: max_attempts=%d initial_delay=%s backoff_factor=%.1f",
		cfg.Retry.MaxAttempts, cfg.Retry.InitialDelay, cfg.Retry.BackoffFactor)
	log.Infof("  whisper: model=%s language=%s", cfg.Whisper.Model, cfg.Whisper.Language)
	log.Infof("  health_file: %s", cfg.HealthFile)

	for _, acct := range cfg.Accounts {
		log.Infof("  account %q: imap=%s@%s:%d (%s) smtp=%s:%d (%s) forward_to=%s phone=%s password=***",
			acct.Name,
			utils.MaskEmail(acct.Mailbox.Username),
			acct.Mailbox.Host, acct.Mailbox.Port, acct.Mailbox.Security,
			acct.Submission.Host, acct.Submission.Port, acct.Submission.Security,
			utils.MaskEmail(acct.ForwardTo),
			acct.Phone)
	}
}
