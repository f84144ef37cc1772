package transform

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"

	"github.com/voicestack/voicestack/internal/utils"
)

const mailerName = "Voicemail Transcriber 1.0"

// audioExtensions are the recognized voicemail audio file extensions,
// matched case-insensitively.
var audioExtensions = map[string]struct{}{
	".mp3": {}, ".mp4": {}, ".m4a": {}, ".wav": {}, ".ogg": {},
	".flac": {}, ".aac": {}, ".wma": {}, ".opus": {},
}

// AudioPart is one audio attachment extracted from a mailbox message.
type AudioPart struct {
	Filename    string
	Content     []byte
	ContentType string
}

// IsAudioFilename reports whether the filename carries a recognized audio
// extension.
func IsAudioFilename(filename string) bool {
	if filename == "" || !strings.Contains(filename, ".") {
		return false
	}
	_, ok := audioExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// ParseMessage decodes raw RFC-822 bytes into a MIME envelope.
func ParseMessage(raw []byte) (*enmime.Envelope, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "error parsing message")
	}
	return env, nil
}

// ExtractAudioParts returns the audio attachments of a message in their
// original order. An attachment qualifies by filename extension or by an
// audio/* content type.
func ExtractAudioParts(env *enmime.Envelope) []AudioPart {
	var parts []AudioPart
	for _, att := range env.Attachments {
		if att.FileName == "" {
			continue
		}
		if IsAudioFilename(att.FileName) || strings.HasPrefix(att.ContentType, "audio/") {
			parts = append(parts, AudioPart{
				Filename:    att.FileName,
				Content:     att.Content,
				ContentType: att.ContentType,
			})
		}
	}
	return parts
}

// BuildInput describes one forward operation.
type BuildInput struct {
	Original      *enmime.Envelope
	Transcription string
	AudioParts    []AudioPart
	Phone         string
	From          string
	To            string
}

// Build produces the outgoing message bytes. The envelope is a mixed
// container with a nested alternative body when any attachments exist
// (original non-audio ones or injected audio); otherwise a bare
// alternative body. Threading headers of the original are preserved.
func Build(in BuildInput) ([]byte, error) {
	original := in.Original

	hasOriginalAttachments := len(original.Attachments) > 0
	mixed := hasOriginalAttachments || len(in.AudioParts) > 0

	subject := originalHeader(original, "Subject", "No Subject")
	originalFrom := originalHeader(original, "From", "Unknown")
	originalDate := originalHeader(original, "Date", "Unknown")
	originalTo := originalHeader(original, "To", "Unknown")

	headers := buildHeaders(in, subject, original)

	buffer := bytes.NewBuffer(nil)
	outer := multipart.NewWriter(buffer)

	plainText := buildPlainText(in.Transcription, subject, originalFrom, originalDate, originalTo, original.Text)
	htmlText := buildHTML(in.Transcription, subject, originalFrom, originalDate, originalTo, original.HTML)

	if mixed {
		headers = append(headers, [2]string{"Content-Type", "multipart/mixed; boundary=" + outer.Boundary()})
		writeHeaders(headers, buffer)

		altBuffer := bytes.NewBuffer(nil)
		alt := multipart.NewWriter(altBuffer)
		if err := writeBodyParts(alt, plainText, htmlText); err != nil {
			return nil, err
		}
		if err := alt.Close(); err != nil {
			return nil, errors.Wrap(err, "error closing alternative body")
		}

		altPart, err := outer.CreatePart(textproto.MIMEHeader{
			"Content-Type": {"multipart/alternative; boundary=" + alt.Boundary()},
		})
		if err != nil {
			return nil, errors.Wrap(err, "error creating alternative part")
		}
		if _, err := altPart.Write(altBuffer.Bytes()); err != nil {
			return nil, errors.Wrap(err, "error writing alternative body")
		}

		for _, att := range original.Attachments {
			if att.FileName == "" || IsAudioFilename(att.FileName) {
				continue
			}
			if err := addAttachment(outer, att.FileName, att.ContentType, att.Content); err != nil {
				return nil, err
			}
		}
		// Audio parts are attached as supplied, without deduplication
		// against the original attachments.
		for _, audio := range in.AudioParts {
			if err := addAttachment(outer, audio.Filename, audio.ContentType, audio.Content); err != nil {
				return nil, err
			}
		}

		if err := outer.Close(); err != nil {
			return nil, errors.Wrap(err, "error closing message")
		}
		return buffer.Bytes(), nil
	}

	headers = append(headers, [2]string{"Content-Type", "multipart/alternative; boundary=" + outer.Boundary()})
	writeHeaders(headers, buffer)

	if err := writeBodyParts(outer, plainText, htmlText); err != nil {
		return nil, err
	}
	if err := outer.Close(); err != nil {
		return nil, errors.Wrap(err, "error closing message")
	}
	return buffer.Bytes(), nil
}

func originalHeader(env *enmime.Envelope, name, fallback string) string {
	if v := env.GetHeader(name); v != "" {
		return v
	}
	return fallback
}

func buildHeaders(in BuildInput, subject string, original *enmime.Envelope) [][2]string {
	forwardSubject := "Fwd: " + subject
	if in.Phone != "" {
		forwardSubject = fmt.Sprintf("[%s] Fwd: %s", in.Phone, subject)
	}

	domain := utils.ExtractDomainFromEmail(in.From)
	if domain == "" {
		domain = "localhost"
	}

	headers := [][2]string{
		{"From", in.From},
		{"To", in.To},
		{"Subject", forwardSubject},
		{"X-Mailer", mailerName},
		{"MIME-Version", "1.0"},
		{"Message-ID", utils.GenerateMessageID(domain)},
		{"Date", time.Now().Format(time.RFC1123Z)},
	}

	// Threading headers carry over so replies land in the right thread.
	if refs := original.GetHeader("References"); refs != "" {
		headers = append(headers, [2]string{"References", refs})
	}
	if inReplyTo := original.GetHeader("In-Reply-To"); inReplyTo != "" {
		headers = append(headers, [2]string{"In-Reply-To", inReplyTo})
	}

	return headers
}

func writeHeaders(headers [][2]string, buffer *bytes.Buffer) {
	for _, h := range headers {
		buffer.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	buffer.WriteString("\r\n")
}

func buildPlainText(transcription, subject, from, date, to, originalBody string) string {
	var parts []string

	if transcription != "" {
		parts = append(parts,
			"---------- Audio Transcription ----------",
			"",
			transcription,
			"",
			"---------- End Transcription ----------",
			"",
		)
	}

	parts = append(parts,
		"---------- Forwarded message ----------",
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("Date: %s", date),
		fmt.Sprintf("Subject: %s", subject),
		fmt.Sprintf("To: %s", to),
		"",
		originalBody,
	)

	return strings.Join(parts, "\n")
}

// buildHTML returns an empty string when the original had no HTML part.
// Every interpolated value is escaped; only the original HTML body itself
// is embedded unmodified.
func buildHTML(transcription, subject, from, date, to, originalHTML string) string {
	if originalHTML == "" {
		return ""
	}

	var b strings.Builder

	if transcription != "" {
		b.WriteString(fmt.Sprintf(`<div style="border: 1px solid #007acc; background-color: #e6f2ff; padding: 15px; margin: 10px 0; border-radius: 5px;">
<h3 style="margin-top: 0; color: #007acc;">Audio Transcription</h3>
<div style="background-color: #fff; padding: 10px; border-radius: 3px; border: 1px solid #ddd;">
<p style="white-space: pre-wrap; margin: 0;">%s</p>
</div>
</div>
`, html.EscapeString(transcription)))
	}

	b.WriteString(fmt.Sprintf(`<div style="margin: 20px 0;">
<hr style="border: none; border-top: 2px solid #ccc;">
<p style="color: #666; margin: 10px 0;"><strong>---------- Forwarded message ----------</strong></p>
<div style="background-color: #f8f8f8; padding: 10px; border-left: 3px solid #ccc;">
<p style="margin: 5px 0;"><strong>From:</strong> %s<br>
<strong>Date:</strong> %s<br>
<strong>Subject:</strong> %s<br>
<strong>To:</strong> %s</p>
</div>
</div>
`, html.EscapeString(from), html.EscapeString(date), html.EscapeString(subject), html.EscapeString(to)))

	b.WriteString(fmt.Sprintf(`<div style="margin: 10px 0;">
%s
</div>
`, originalHTML))

	return b.String()
}

func writeBodyParts(writer *multipart.Writer, plainText, htmlText string) error {
	if err := addTextPart(writer, "text/plain", plainText); err != nil {
		return err
	}
	if htmlText != "" {
		if err := addTextPart(writer, "text/html", htmlText); err != nil {
			return err
		}
	}
	return nil
}

func addTextPart(writer *multipart.Writer, contentType, content string) error {
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType + "; charset=UTF-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create %s part", contentType)
	}

	qp := quotedprintable.NewWriter(part)
	if _, err := io.WriteString(qp, content); err != nil {
		return errors.Wrapf(err, "failed to write %s content", contentType)
	}
	return qp.Close()
}

func addAttachment(writer *multipart.Writer, filename, contentType string, content []byte) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {fmt.Sprintf("%s; name=%q", contentType, filename)},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", filename)},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create attachment part for %s", filename)
	}

	return writeBase64(part, content)
}

func writeBase64(w io.Writer, content []byte) error {
	encoded := base64.StdEncoding.EncodeToString(content)
	for len(encoded) > 0 {
		n := 76
		if n > len(encoded) {
			n = len(encoded)
		}
		if _, err := io.WriteString(w, encoded[:n]+"\r\n"); err != nil {
			return errors.Wrap(err, "failed to write attachment content")
		}
		encoded = encoded[n:]
	}
	return nil
}
