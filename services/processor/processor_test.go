package processor

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicestack/voicestack/config"
	"github.com/voicestack/voicestack/interfaces"
	"github.com/voicestack/voicestack/internal/enum"
	"github.com/voicestack/voicestack/internal/health"
	"github.com/voicestack/voicestack/internal/logger"
	"github.com/voicestack/voicestack/internal/metrics"
	"github.com/voicestack/voicestack/internal/retry"
	"github.com/voicestack/voicestack/services/transform"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

type fakeSession struct {
	messages map[uint32][]byte
	ids      []uint32

	connectErr error

	selected   []string
	created    []string
	moved      map[uint32]string
	purgeCalls int
	purged     int
}

func (f *fakeSession) Connect(ctx context.Context) error { return f.connectErr }
func (f *fakeSession) SelectFolder(ctx context.Context, name string) error {
	f.selected = append(f.selected, name)
	return nil
}

func (f *fakeSession) CreateFolderIfAbsent(ctx context.Context, name string) error {
	f.created = append(f.created, name)
	return nil
}

func (f *fakeSession) ListMessageIDs(ctx context.Context, filter enum.MessageFilter) ([]uint32, error) {
	return f.ids, nil
}

func (f *fakeSession) FetchMessage(ctx context.Context, id uint32) ([]byte, error) {
	return f.messages[id], nil
}

func (f *fakeSession) MoveMessage(ctx context.Context, id uint32, destination string) error {
	if f.moved == nil {
		f.moved = make(map[uint32]string)
	}
	f.moved[id] = destination
	return nil
}

func (f *fakeSession) PurgeOlderThan(ctx context.Context, folder string, retentionDays int) (int, error) {
	f.purgeCalls++
	return f.purged, nil
}

func (f *fakeSession) Disconnect() {}

type sentMessage struct {
	from, to string
	body     []byte
}

type fakeForwarder struct {
	sent    []sentMessage
	sendErr error
}

func (f *fakeForwarder) TestConnection(ctx context.Context) error { return nil }
func (f *fakeForwarder) Send(ctx context.Context, from, recipient string, message []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{from: from, to: recipient, body: message})
	return nil
}

type fakeTranscriber struct {
	calls        []string
	transcribeFn func(filename string) (string, error)
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	f.calls = append(f.calls, filename)
	if f.transcribeFn != nil {
		return f.transcribeFn(filename)
	}
	return "transcribed text", nil
}

func testConfig() *config.Config {
	return &config.Config{
		Accounts: []config.AccountConfig{{
			Name: "Primary Account",
			Mailbox: config.MailboxEndpoint{
				Host: "imap.example.com", Port: 993,
				Security: enum.EmailSecuritySSL,
				Username: "vm@office.example", Password: "pw",
			},
			Submission: config.SubmissionEndpoint{
				Host: "smtp.example.com", Port: 587,
				Security: enum.EmailSecurityStartTLS,
				Username: "relay@office.example", Password: "pw",
			},
			ForwardTo: "team@office.example",
		}},
		ArchiveFolder:            "Processed",
		PollInterval:             time.Second,
		MaxAttachmentBytes:       40 * 1024 * 1024,
		MaxAttachmentsPerMessage: 10,
		RetentionDays:            365,
		Retry:                    retry.Policy{MaxAttempts: 1, InitialDelay: time.Millisecond, BackoffFactor: 2.0},
	}
}

func newTestOrchestrator(cfg *config.Config, session *fakeSession, forwarder *fakeForwarder, tr *fakeTranscriber) *Orchestrator {
	log := getLogger()
	o := NewOrchestrator(cfg, tr, health.NewTracker(afero.NewMemMapFs(), "/tmp/test.healthy", log), metrics.NewAggregator(), log)
	o.newSession = func(config.MailboxEndpoint) interfaces.MailboxSession { return session }
	o.forwarders["Primary Account"] = forwarder
	return o
}

func rawVoicemail(t *testing.T, audioFiles map[string][]byte) []byte {
	t.Helper()

	buf := bytes.NewBuffer(nil)
	fmt.Fprintf(buf, "From: caller@pbx.example\r\n")
	fmt.Fprintf(buf, "To: vm@office.example\r\n")
	fmt.Fprintf(buf, "Subject: Voicemail\r\n")
	fmt.Fprintf(buf, "MIME-Version: 1.0\r\n")

	writer := multipart.NewWriter(buf)
	fmt.Fprintf(buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", writer.Boundary())

	textPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=UTF-8"},
	})
	require.NoError(t, err)
	_, err = textPart.Write([]byte("New voicemail received."))
	require.NoError(t, err)

	// Sorted insertion keeps attachment order stable across runs.
	names := make([]string, 0, len(audioFiles))
	for name := range audioFiles {
		names = append(names, name)
	}
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if names[j] < names[i] {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	for _, name := range names {
		part, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Type":        {fmt.Sprintf("application/octet-stream; name=%q", name)},
			"Content-Disposition": {fmt.Sprintf("attachment; filename=%q", name)},
		})
		require.NoError(t, err)
		_, err = part.Write(audioFiles[name])
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func TestProcessAccount_EndToEnd(t *testing.T) {
	cfg := testConfig()
	session := &fakeSession{
		ids:      []uint32{1},
		messages: map[uint32][]byte{1: rawVoicemail(t, map[string][]byte{"voicemail.wav": []byte("RIFFWAVEDATA")})},
	}
	forwarder := &fakeForwarder{}
	tr := &fakeTranscriber{transcribeFn: func(string) (string, error) { return "Please call me back.", nil }}
	o := newTestOrchestrator(cfg, session, forwarder, tr)

	require.NoError(t, o.processAccount(context.Background(), cfg.Accounts[0]))

	assert.Contains(t, session.created, "Processed")
	assert.Contains(t, session.selected, "INBOX")
	assert.Equal(t, "Processed", session.moved[1])

	require.Len(t, forwarder.sent, 1)
	assert.Equal(t, "relay@office.example", forwarder.sent[0].from)
	assert.Equal(t, "team@office.example", forwarder.sent[0].to)

	forwarded, err := transform.ParseMessage(forwarder.sent[0].body)
	require.NoError(t, err)
	assert.Equal(t, "Fwd: Voicemail", forwarded.GetHeader("Subject"))
	assert.Contains(t, forwarded.Text, "--- Transcription of voicemail.wav ---")
	assert.Contains(t, forwarded.Text, "Please call me back.")
	require.Len(t, forwarded.Attachments, 1)
	assert.Equal(t, "voicemail.wav", forwarded.Attachments[0].FileName)

	lifetime := o.metrics.Lifetime()
	assert.Equal(t, int64(1), lifetime.EmailsProcessed)
	assert.Equal(t, int64(1), lifetime.FilesTranscribed)
	assert.Equal(t, enum.HealthHealthy, o.health.Status())
}

func TestProcessAccount_OversizedSkipsTranscription(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttachmentBytes = 4
	session := &fakeSession{
		ids:      []uint32{1},
		messages: map[uint32][]byte{1: rawVoicemail(t, map[string][]byte{"voicemail.wav": []byte("RIFFWAVEDATA")})},
	}
	forwarder := &fakeForwarder{}
	tr := &fakeTranscriber{}
	o := newTestOrchestrator(cfg, session, forwarder, tr)

	require.NoError(t, o.processAccount(context.Background(), cfg.Accounts[0]))

	assert.Empty(t, tr.calls)
	require.Len(t, forwarder.sent, 1)

	forwarded, err := transform.ParseMessage(forwarder.sent[0].body)
	require.NoError(t, err)
	assert.NotContains(t, forwarded.Text, "Audio Transcription")
	assert.Empty(t, forwarded.Attachments)
	assert.Equal(t, "Processed", session.moved[1])
}

func TestProcessAccount_CountCapKeepsFirst(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttachmentsPerMessage = 2
	session := &fakeSession{
		ids: []uint32{1},
		messages: map[uint32][]byte{1: rawVoicemail(t, map[string][]byte{
			"a.wav": []byte("AAAA"),
			"b.wav": []byte("BBBB"),
			"c.wav": []byte("CCCC"),
		})},
	}
	forwarder := &fakeForwarder{}
	tr := &fakeTranscriber{}
	o := newTestOrchestrator(cfg, session, forwarder, tr)

	require.NoError(t, o.processAccount(context.Background(), cfg.Accounts[0]))

	assert.Equal(t, []string{"a.wav", "b.wav"}, tr.calls)

	forwarded, err := transform.ParseMessage(forwarder.sent[0].body)
	require.NoError(t, err)
	assert.Len(t, forwarded.Attachments, 2)
}

func TestProcessAccount_TranscriptionFailurePlaceholder(t *testing.T) {
	cfg := testConfig()
	session := &fakeSession{
		ids:      []uint32{1},
		messages: map[uint32][]byte{1: rawVoicemail(t, map[string][]byte{"voicemail.wav": []byte("RIFFWAVEDATA")})},
	}
	forwarder := &fakeForwarder{}
	tr := &fakeTranscriber{transcribeFn: func(string) (string, error) { return "", assert.AnError }}
	o := newTestOrchestrator(cfg, session, forwarder, tr)

	require.NoError(t, o.processAccount(context.Background(), cfg.Accounts[0]))

	require.Len(t, forwarder.sent, 1)
	forwarded, err := transform.ParseMessage(forwarder.sent[0].body)
	require.NoError(t, err)
	assert.Contains(t, forwarded.Text, "--- Failed to transcribe voicemail.wav ---")
	assert.Equal(t, "Processed", session.moved[1])

	lifetime := o.metrics.Lifetime()
	assert.Equal(t, int64(1), lifetime.EmailsProcessed)
	assert.Equal(t, int64(1), lifetime.TranscriptionFailures)
	assert.Equal(t, int64(0), lifetime.FilesTranscribed)
}

func TestProcessAccount_ForwardFailureSkipsArchive(t *testing.T) {
	cfg := testConfig()
	session := &fakeSession{
		ids:      []uint32{1},
		messages: map[uint32][]byte{1: rawVoicemail(t, nil)},
	}
	forwarder := &fakeForwarder{sendErr: assert.AnError}
	o := newTestOrchestrator(cfg, session, forwarder, &fakeTranscriber{})

	require.NoError(t, o.processAccount(context.Background(), cfg.Accounts[0]))

	assert.Empty(t, session.moved)
	lifetime := o.metrics.Lifetime()
	assert.Equal(t, int64(1), lifetime.EmailsFailed)
	assert.Equal(t, int64(0), lifetime.EmailsProcessed)
}

func TestRunPurges_OncePerDay(t *testing.T) {
	cfg := testConfig()
	session := &fakeSession{purged: 2}
	o := newTestOrchestrator(cfg, session, &fakeForwarder{}, &fakeTranscriber{})

	base := time.Now()
	o.now = func() time.Time { return base }

	o.runPurges(context.Background())
	assert.Equal(t, 1, session.purgeCalls)

	o.now = func() time.Time { return base.Add(time.Hour) }
	o.runPurges(context.Background())
	assert.Equal(t, 1, session.purgeCalls)

	o.now = func() time.Time { return base.Add(25 * time.Hour) }
	o.runPurges(context.Background())
	assert.Equal(t, 2, session.purgeCalls)
}
