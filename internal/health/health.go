package health

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/voicestack/voicestack/internal/enum"
	"github.com/voicestack/voicestack/internal/logger"
)

const (
	defaultThresholdFailures = 5
	defaultMaxSilence        = 10 * time.Minute
)

// Tracker maintains the file-based liveness signal. The file being present
// means healthy; an external probe only checks for its existence. The
// tracker is mutated exclusively by the orchestrator's single thread of
// control.
type Tracker struct {
	fs   afero.Fs
	path string
	log  logger.Logger

	status              enum.HealthStatus
	lastSuccess         time.Time
	consecutiveFailures int
	thresholdFailures   int
	maxSilence          time.Duration

	now func() time.Time
}

func NewTracker(fs afero.Fs, path string, log logger.Logger) *Tracker {
	return &Tracker{
		fs:                fs,
		path:              path,
		log:               log,
		status:            enum.HealthStarting,
		thresholdFailures: defaultThresholdFailures,
		maxSilence:        defaultMaxSilence,
		now:               time.Now,
	}
}

// Startup writes the initial liveness marker.
func (t *Tracker) Startup() {
	t.status = enum.HealthStarting
	content := fmt.Sprintf("starting up at %s\n", t.now().Format(time.RFC3339))
	if err := afero.WriteFile(t.fs, t.path, []byte(content), 0o644); err != nil {
		t.log.Errorf("Failed to initialize health file: %v", err)
		return
	}
	t.log.Info("Health check initialized")
}

// MarkHealthy records a successful processing step and refreshes the
// liveness marker.
func (t *Tracker) MarkHealthy() {
	t.lastSuccess = t.now()
	t.consecutiveFailures = 0
	t.status = enum.HealthHealthy

	content := fmt.Sprintf("healthy at %s\nconsecutive_failures: %d\n",
		t.lastSuccess.Format(time.RFC3339), t.consecutiveFailures)
	if err := afero.WriteFile(t.fs, t.path, []byte(content), 0o644); err != nil {
		t.log.Errorf("Failed to write health file: %v", err)
	}
}

// MarkFailure records a processing failure. Crossing the consecutive
// failure threshold withdraws the liveness signal.
func (t *Tracker) MarkFailure() {
	t.consecutiveFailures++
	t.log.Warnf("Processing failure recorded. Consecutive failures: %d", t.consecutiveFailures)

	if t.consecutiveFailures >= t.thresholdFailures {
		t.markUnhealthy("too many consecutive failures")
	}
}

func (t *Tracker) markUnhealthy(reason string) {
	t.status = enum.HealthUnhealthy
	t.log.Errorf("Service marked as unhealthy: %s", reason)
	if err := t.fs.Remove(t.path); err != nil && !isNotExist(err) {
		t.log.Errorf("Failed to remove health file: %v", err)
	}
}

// Check re-evaluates health: the signal is withdrawn when no success has
// been seen within the silence window. Returns true while healthy.
func (t *Tracker) Check() bool {
	if exists, _ := afero.Exists(t.fs, t.path); !exists {
		return false
	}

	if t.consecutiveFailures >= t.thresholdFailures {
		return false
	}

	if !t.lastSuccess.IsZero() {
		silence := t.now().Sub(t.lastSuccess)
		if silence > t.maxSilence {
			t.markUnhealthy(fmt.Sprintf("no successful processing in %s", silence))
			return false
		}
	}

	return true
}

func (t *Tracker) Status() enum.HealthStatus {
	return t.status
}

// Shutdown removes the liveness marker.
func (t *Tracker) Shutdown() {
	if err := t.fs.Remove(t.path); err != nil && !isNotExist(err) {
		t.log.Errorf("Failed to clean up health file: %v", err)
		return
	}
	t.log.Info("Health check cleaned up")
}

func isNotExist(err error) bool {
	return err != nil && os.IsNotExist(err)
}
