package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/voicestack/voicestack/internal/logger"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func TestRecordEmail(t *testing.T) {
	a := NewAggregator()

	a.RecordEmail(2*time.Second, true)
	a.RecordEmail(time.Second, false)

	lifetime := a.Lifetime()
	assert.Equal(t, int64(1), lifetime.EmailsProcessed)
	assert.Equal(t, int64(1), lifetime.EmailsFailed)
	assert.Equal(t, 3*time.Second, lifetime.ProcessingTime)
}

func TestRecordTranscription(t *testing.T) {
	a := NewAggregator()

	a.RecordTranscription(4*time.Second, 2048, true)
	a.RecordTranscription(time.Second, 0, false)

	lifetime := a.Lifetime()
	assert.Equal(t, int64(1), lifetime.FilesTranscribed)
	assert.Equal(t, int64(1), lifetime.TranscriptionFailures)
	assert.Equal(t, int64(2048), lifetime.BytesProcessed)
}

func TestLogWindowSummary_DrainsWindowKeepsLifetime(t *testing.T) {
	a := NewAggregator()

	a.RecordEmail(time.Second, true)
	a.RecordTranscription(time.Second, 1024, true)

	a.LogWindowSummary(getLogger())

	window := a.DrainWindow()
	assert.Equal(t, int64(0), window.EmailsProcessed)
	assert.Equal(t, int64(0), window.FilesTranscribed)

	lifetime := a.Lifetime()
	assert.Equal(t, int64(1), lifetime.EmailsProcessed)
	assert.Equal(t, int64(1), lifetime.FilesTranscribed)
}

func TestDrainWindow_ResetsWindowOnly(t *testing.T) {
	a := NewAggregator()

	a.RecordEmail(time.Second, true)

	window := a.DrainWindow()
	assert.Equal(t, int64(1), window.EmailsProcessed)

	window = a.DrainWindow()
	assert.Equal(t, int64(0), window.EmailsProcessed)

	lifetime := a.Lifetime()
	assert.Equal(t, int64(1), lifetime.EmailsProcessed)
}
