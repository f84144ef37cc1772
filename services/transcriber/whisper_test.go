package transcriber

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicestack/voicestack/config"
	errs "github.com/voicestack/voicestack/internal/errors"
	"github.com/voicestack/voicestack/internal/logger"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func TestTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "medium", r.FormValue("model"))
		assert.Empty(t, r.FormValue("language"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "voicemail.wav", header.Filename)
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte("RIFFWAVEDATA"), content)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "  Please call me back.  "}`))
	}))
	defer server.Close()

	client := NewWhisperClient(config.WhisperConfig{
		URL:      server.URL,
		Model:    "medium",
		Language: "auto",
	}, getLogger())

	text, err := client.Transcribe(context.Background(), []byte("RIFFWAVEDATA"), "voicemail.wav")
	require.NoError(t, err)
	assert.Equal(t, "Please call me back.", text)
}

func TestTranscribe_ExplicitLanguage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "en", r.FormValue("language"))
		w.Write([]byte(`{"text": "hello"}`))
	}))
	defer server.Close()

	client := NewWhisperClient(config.WhisperConfig{
		URL:      server.URL,
		Model:    "medium",
		Language: "en",
	}, getLogger())

	text, err := client.Transcribe(context.Background(), []byte("x"), "a.wav")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestTranscribe_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewWhisperClient(config.WhisperConfig{
		URL:   server.URL,
		Model: "medium",
	}, getLogger())

	_, err := client.Transcribe(context.Background(), []byte("x"), "a.wav")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrTranscriptionFailed))
	// The upstream error body must not leak into the message.
	assert.NotContains(t, err.Error(), "boom")
}

func TestTranscribe_Unreachable(t *testing.T) {
	client := NewWhisperClient(config.WhisperConfig{
		URL:   "http://127.0.0.1:1",
		Model: "medium",
	}, getLogger())

	_, err := client.Transcribe(context.Background(), []byte("x"), "a.wav")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrTranscriptionFailed))
}
