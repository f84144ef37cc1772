package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/voicestack/voicestack/config"
	"github.com/voicestack/voicestack/interfaces"
	"github.com/voicestack/voicestack/internal/enum"
	"github.com/voicestack/voicestack/internal/health"
	"github.com/voicestack/voicestack/internal/logger"
	"github.com/voicestack/voicestack/internal/metrics"
	"github.com/voicestack/voicestack/services/imap"
	"github.com/voicestack/voicestack/services/smtp"
	"github.com/voicestack/voicestack/services/transform"
)

const purgeInterval = 24 * time.Hour

// Orchestrator drives the poll cycle: connect to each account, process its
// inbox, forward transformed messages, archive originals, and purge expired
// archives once a day. Accounts are handled sequentially; one message is in
// flight at a time.
type Orchestrator struct {
	cfg         *config.Config
	log         logger.Logger
	health      *health.Tracker
	metrics     *metrics.Aggregator
	transcriber interfaces.Transcriber

	newSession func(config.MailboxEndpoint) interfaces.MailboxSession
	forwarders map[string]interfaces.Forwarder

	lastPurge map[string]time.Time
	now       func() time.Time
}

func NewOrchestrator(
	cfg *config.Config,
	transcriber interfaces.Transcriber,
	healthTracker *health.Tracker,
	aggregator *metrics.Aggregator,
	log logger.Logger,
) *Orchestrator {
	o := &Orchestrator{
		cfg:         cfg,
		log:         log,
		health:      healthTracker,
		metrics:     aggregator,
		transcriber: transcriber,
		newSession: func(endpoint config.MailboxEndpoint) interfaces.MailboxSession {
			return imap.NewSession(endpoint, cfg.Retry, log)
		},
		forwarders: make(map[string]interfaces.Forwarder, len(cfg.Accounts)),
		lastPurge:  make(map[string]time.Time, len(cfg.Accounts)),
		now:        time.Now,
	}
	for _, account := range cfg.Accounts {
		o.forwarders[account.Name] = smtp.NewClient(account.Submission, cfg.Retry, log)
	}
	return o
}

// VerifyForwarders checks every account's submission endpoint. Any failure
// is returned immediately; the caller treats it as fatal.
func (o *Orchestrator) VerifyForwarders(ctx context.Context) error {
	for _, account := range o.cfg.Accounts {
		if err := o.forwarders[account.Name].TestConnection(ctx); err != nil {
			return fmt.Errorf("SMTP connection test failed for %s: %w", account.Name, err)
		}
		o.log.Infof("SMTP connection verified for %s", account.Name)
	}
	return nil
}

// Run polls until the context is cancelled. Per-account failures abort only
// that account's cycle; the loop itself never returns an error.
func (o *Orchestrator) Run(ctx context.Context) {
	o.log.Infof("Starting processing loop with %d account(s), polling every %s", len(o.cfg.Accounts), o.cfg.PollInterval)

	for {
		for _, account := range o.cfg.Accounts {
			if ctx.Err() != nil {
				return
			}
			if err := o.processAccount(ctx, account); err != nil {
				o.log.Errorf("Account %s cycle failed: %v", account.Name, err)
				o.health.MarkFailure()
			}
		}

		o.runPurges(ctx)
		o.health.Check()

		select {
		case <-ctx.Done():
			return
		case <-time.After(o.cfg.PollInterval):
		}
	}
}

func (o *Orchestrator) processAccount(ctx context.Context, account config.AccountConfig) error {
	session := o.newSession(account.Mailbox)
	if err := session.Connect(ctx); err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	defer session.Disconnect()

	if err := session.CreateFolderIfAbsent(ctx, o.cfg.ArchiveFolder); err != nil {
		return err
	}
	if err := session.SelectFolder(ctx, "INBOX"); err != nil {
		return err
	}

	ids, err := session.ListMessageIDs(ctx, enum.MessageFilterAll)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	o.log.Infof("Account %s: %d message(s) to process", account.Name, len(ids))

	for _, id := range ids {
		if ctx.Err() != nil {
			return nil
		}
		start := o.now()
		if err := o.processMessage(ctx, session, account, id); err != nil {
			o.log.Errorf("Account %s: message %d failed: %v", account.Name, id, err)
			o.health.MarkFailure()
			o.metrics.RecordEmail(o.now().Sub(start), false)
			continue
		}
		o.health.MarkHealthy()
		o.metrics.RecordEmail(o.now().Sub(start), true)
	}

	return nil
}

// processMessage runs one message end to end: fetch, transcribe, rebuild,
// forward, archive. Transcription failures degrade to a placeholder and
// never block the forward.
func (o *Orchestrator) processMessage(ctx context.Context, session interfaces.MailboxSession, account config.AccountConfig, id uint32) error {
	raw, err := session.FetchMessage(ctx, id)
	if err != nil {
		return err
	}

	env, err := transform.ParseMessage(raw)
	if err != nil {
		return err
	}

	audio := transform.ExtractAudioParts(env)
	audio = o.applyLimits(account.Name, audio)
	transcription := o.transcribeAll(ctx, audio)

	from := account.Submission.Username
	if from == "" {
		from = account.Mailbox.Username
	}

	message, err := transform.Build(transform.BuildInput{
		Original:      env,
		Transcription: transcription,
		AudioParts:    audio,
		Phone:         account.Phone,
		From:          from,
		To:            account.ForwardTo,
	})
	if err != nil {
		return err
	}

	if err := o.forwarders[account.Name].Send(ctx, from, account.ForwardTo, message); err != nil {
		return fmt.Errorf("forward failed: %w", err)
	}

	if err := session.MoveMessage(ctx, id, o.cfg.ArchiveFolder); err != nil {
		return fmt.Errorf("archive failed: %w", err)
	}

	o.log.Infof("Account %s: forwarded message %d with %d audio file(s)", account.Name, id, len(audio))
	return nil
}

// applyLimits enforces the total size and per-message count caps. Oversized
// messages keep flowing with transcription skipped entirely; excess files
// beyond the count cap are dropped in arrival order.
func (o *Orchestrator) applyLimits(accountName string, audio []transform.AudioPart) []transform.AudioPart {
	var total int64
	for _, part := range audio {
		total += int64(len(part.Content))
	}
	if total > o.cfg.MaxAttachmentBytes {
		o.log.Warnf("Account %s: audio attachments total %d bytes, over the %d byte limit; skipping transcription",
			accountName, total, o.cfg.MaxAttachmentBytes)
		return nil
	}

	if len(audio) > o.cfg.MaxAttachmentsPerMessage {
		o.log.Warnf("Account %s: %d audio attachments, keeping first %d",
			accountName, len(audio), o.cfg.MaxAttachmentsPerMessage)
		audio = audio[:o.cfg.MaxAttachmentsPerMessage]
	}
	return audio
}

func (o *Orchestrator) transcribeAll(ctx context.Context, audio []transform.AudioPart) string {
	var blocks []string
	for _, part := range audio {
		start := o.now()
		text, err := o.transcriber.Transcribe(ctx, part.Content, part.Filename)
		elapsed := o.now().Sub(start)
		if err != nil {
			o.log.Errorf("Transcription failed for %s: %v", part.Filename, err)
			o.metrics.RecordTranscription(elapsed, 0, false)
			blocks = append(blocks, fmt.Sprintf("--- Failed to transcribe %s ---", part.Filename))
			continue
		}
		o.metrics.RecordTranscription(elapsed, int64(len(part.Content)), true)
		blocks = append(blocks, fmt.Sprintf("--- Transcription of %s ---\n%s", part.Filename, text))
	}
	return strings.Join(blocks, "\n\n")
}

// runPurges deletes expired archive messages for accounts whose last purge
// is at least a day old. Each purge uses a fresh session so a failure here
// never poisons the processing connections.
func (o *Orchestrator) runPurges(ctx context.Context) {
	for _, account := range o.cfg.Accounts {
		if ctx.Err() != nil {
			return
		}
		if last, ok := o.lastPurge[account.Name]; ok && o.now().Sub(last) < purgeInterval {
			continue
		}

		session := o.newSession(account.Mailbox)
		if err := session.Connect(ctx); err != nil {
			o.log.Errorf("Account %s: purge connect failed: %v", account.Name, err)
			continue
		}
		purged, err := session.PurgeOlderThan(ctx, o.cfg.ArchiveFolder, o.cfg.RetentionDays)
		session.Disconnect()
		if err != nil {
			o.log.Errorf("Account %s: purge failed: %v", account.Name, err)
			continue
		}
		if purged > 0 {
			o.log.Infof("Account %s: purged %d expired message(s)", account.Name, purged)
		}
		o.lastPurge[account.Name] = o.now()
	}
}
