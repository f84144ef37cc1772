package cron

import (
	cronv3 "github.com/robfig/cron/v3"

	"github.com/voicestack/voicestack/config"
	"github.com/voicestack/voicestack/internal/logger"
	"github.com/voicestack/voicestack/internal/metrics"
)

// CronManager owns the background schedules: currently just the periodic
// metrics summary.
type CronManager struct {
	cfg     *config.Config
	log     logger.Logger
	metrics *metrics.Aggregator
	cron    *cronv3.Cron
	stopCh  chan struct{}
	jobIDs  map[string]cronv3.EntryID
}

func NewCronManager(cfg *config.Config, metricsAggregator *metrics.Aggregator, log logger.Logger) *CronManager {
	return &CronManager{
		cfg:     cfg,
		log:     log,
		metrics: metricsAggregator,
		stopCh:  make(chan struct{}),
		jobIDs:  make(map[string]cronv3.EntryID),
	}
}

// StartCron initializes and starts the cron scheduler.
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	if cm.cfg.MetricsSummarySchedule != "" {
		id, err := c.AddFunc(cm.cfg.MetricsSummarySchedule, cm.runMetricsSummary)
		if err != nil {
			cm.log.Fatalf("Could not add metrics summary cron job: %v", err)
		}
		cm.jobIDs["metrics_summary"] = id
		cm.log.Infof("Registered metrics summary job with schedule: %s", cm.cfg.MetricsSummarySchedule)
	}
}

// runMetricsSummary reports and resets the windowed counters.
func (cm *CronManager) runMetricsSummary() {
	cm.metrics.LogWindowSummary(cm.log)
}

// Stop gracefully stops the cron manager and waits for running jobs.
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		<-ctx.Done()
	}
	close(cm.stopCh)
}
