package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/voicestack/voicestack/config"
	errs "github.com/voicestack/voicestack/internal/errors"
	"github.com/voicestack/voicestack/internal/logger"
)

// Transcription can take minutes for long voicemails on CPU-bound
// deployments.
const requestTimeout = 5 * time.Minute

// WhisperClient talks to an OpenAI-compatible transcription endpoint.
type WhisperClient struct {
	cfg        config.WhisperConfig
	log        logger.Logger
	httpClient *http.Client
}

func NewWhisperClient(cfg config.WhisperConfig, log logger.Logger) *WhisperClient {
	return &WhisperClient{
		cfg: cfg,
		log: log,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe posts one audio file and returns the transcribed text. The
// language parameter is omitted when configured as auto so the service
// detects it.
func (w *WhisperClient) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	body := bytes.NewBuffer(nil)
	writer := multipart.NewWriter(body)

	filePart, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", errors.Wrap(err, "error building transcription request")
	}
	if _, err := filePart.Write(audio); err != nil {
		return "", errors.Wrap(err, "error building transcription request")
	}
	if err := writer.WriteField("model", w.cfg.Model); err != nil {
		return "", errors.Wrap(err, "error building transcription request")
	}
	if w.cfg.Language != "" && w.cfg.Language != "auto" {
		if err := writer.WriteField("language", w.cfg.Language); err != nil {
			return "", errors.Wrap(err, "error building transcription request")
		}
	}
	if err := writer.Close(); err != nil {
		return "", errors.Wrap(err, "error building transcription request")
	}

	url := strings.TrimRight(w.cfg.URL, "/") + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", errors.Wrap(err, "error building transcription request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrapf(errs.ErrTranscriptionFailed, "request error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The response body is not surfaced; it may echo request content.
		return "", errors.Wrapf(errs.ErrTranscriptionFailed, "service returned status %d", resp.StatusCode)
	}

	var result transcriptionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&result); err != nil {
		return "", errors.Wrap(errs.ErrTranscriptionFailed, "error decoding response")
	}

	text := strings.TrimSpace(result.Text)
	w.log.Debugf("Transcribed %s (%d bytes) in %.1fs", filename, len(audio), time.Since(start).Seconds())
	return text, nil
}

// Ping verifies the transcription service is reachable.
func (w *WhisperClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(w.cfg.URL, "/")+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transcription service unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}
