package metrics

import (
	"sync"
	"time"

	"github.com/voicestack/voicestack/internal/logger"
)

// Counters accumulate processing totals. The aggregator keeps two sets:
// lifetime counters, reset only on process start, and a windowed set that
// the periodic summary reads and resets.
type Counters struct {
	EmailsProcessed       int64
	EmailsFailed          int64
	FilesTranscribed      int64
	TranscriptionFailures int64
	BytesProcessed        int64
	ProcessingTime        time.Duration
	TranscriptionTime     time.Duration
}

func (c *Counters) add(other Counters) {
	c.EmailsProcessed += other.EmailsProcessed
	c.EmailsFailed += other.EmailsFailed
	c.FilesTranscribed += other.FilesTranscribed
	c.TranscriptionFailures += other.TranscriptionFailures
	c.BytesProcessed += other.BytesProcessed
	c.ProcessingTime += other.ProcessingTime
	c.TranscriptionTime += other.TranscriptionTime
}

// Aggregator collects throughput metrics. The orchestrator writes, the
// summary cron job reads; a mutex keeps the two goroutines safe.
type Aggregator struct {
	mu        sync.Mutex
	startTime time.Time
	lifetime  Counters
	window    Counters
}

func NewAggregator() *Aggregator {
	return &Aggregator{startTime: time.Now()}
}

// RecordEmail accounts one processed message.
func (a *Aggregator) RecordEmail(duration time.Duration, success bool) {
	delta := Counters{ProcessingTime: duration}
	if success {
		delta.EmailsProcessed = 1
	} else {
		delta.EmailsFailed = 1
	}
	a.record(delta)
}

// RecordTranscription accounts one transcription attempt.
func (a *Aggregator) RecordTranscription(duration time.Duration, bytes int64, success bool) {
	delta := Counters{TranscriptionTime: duration}
	if success {
		delta.FilesTranscribed = 1
		delta.BytesProcessed = bytes
	} else {
		delta.TranscriptionFailures = 1
	}
	a.record(delta)
}

func (a *Aggregator) record(delta Counters) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lifetime.add(delta)
	a.window.add(delta)
}

// Lifetime returns a copy of the process-lifetime counters.
func (a *Aggregator) Lifetime() Counters {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lifetime
}

// DrainWindow returns the windowed counters and resets them. Lifetime
// counters are untouched.
func (a *Aggregator) DrainWindow() Counters {
	a.mu.Lock()
	defer a.mu.Unlock()
	window := a.window
	a.window = Counters{}
	return window
}

// LogWindowSummary drains the windowed counters and logs them alongside
// the lifetime totals. The hourly summary job calls this; lifetime
// counters survive the drain.
func (a *Aggregator) LogWindowSummary(log logger.Logger) {
	window := a.DrainWindow()

	a.mu.Lock()
	lifetime := a.lifetime
	a.mu.Unlock()

	attempts := window.EmailsProcessed + window.EmailsFailed
	successRate := 1.0
	if attempts > 0 {
		successRate = float64(window.EmailsProcessed) / float64(attempts)
	}

	log.Info("=== Hourly Metrics ===")
	log.Infof("Emails processed this window: %d (success rate: %.1f%%)", window.EmailsProcessed, successRate*100)
	log.Infof("Emails failed this window: %d", window.EmailsFailed)
	log.Infof("Audio files transcribed this window: %d", window.FilesTranscribed)
	log.Infof("Transcription failures this window: %d", window.TranscriptionFailures)
	log.Infof("Data processed this window: %.1f MB", float64(window.BytesProcessed)/1024/1024)
	log.Infof("Lifetime totals: %d processed, %d failed, %d transcribed",
		lifetime.EmailsProcessed, lifetime.EmailsFailed, lifetime.FilesTranscribed)
}

// LogSummary logs lifetime throughput figures.
func (a *Aggregator) LogSummary(log logger.Logger) {
	a.mu.Lock()
	lifetime := a.lifetime
	runtime := time.Since(a.startTime)
	a.mu.Unlock()

	attempts := lifetime.EmailsProcessed + lifetime.EmailsFailed
	successRate := 1.0
	if attempts > 0 {
		successRate = float64(lifetime.EmailsProcessed) / float64(attempts)
	}
	avgProcessing := time.Duration(0)
	if lifetime.EmailsProcessed > 0 {
		avgProcessing = lifetime.ProcessingTime / time.Duration(lifetime.EmailsProcessed)
	}
	avgTranscription := time.Duration(0)
	if lifetime.FilesTranscribed > 0 {
		avgTranscription = lifetime.TranscriptionTime / time.Duration(lifetime.FilesTranscribed)
	}
	perMinute := 0.0
	if runtime > 0 {
		perMinute = float64(lifetime.EmailsProcessed) / runtime.Minutes()
	}

	log.Info("=== Processing Metrics ===")
	log.Infof("Runtime: %.1f seconds", runtime.Seconds())
	log.Infof("Emails processed: %d (success rate: %.1f%%)", lifetime.EmailsProcessed, successRate*100)
	log.Infof("Emails failed: %d", lifetime.EmailsFailed)
	log.Infof("Audio files transcribed: %d", lifetime.FilesTranscribed)
	log.Infof("Transcription failures: %d", lifetime.TranscriptionFailures)
	log.Infof("Average processing time: %.2fs per email", avgProcessing.Seconds())
	log.Infof("Average transcription time: %.2fs per file", avgTranscription.Seconds())
	log.Infof("Total data processed: %.1f MB", float64(lifetime.BytesProcessed)/1024/1024)
	log.Infof("Processing rate: %.1f emails/minute", perMinute)
}
