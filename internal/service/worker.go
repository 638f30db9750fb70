package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/scoutier-backend/internal/logger"
)

// Ticker is the part of the engine the worker drives.
type Ticker interface {
	Tick(ctx context.Context) (TickReport, error)
	TickCampaign(ctx context.Context, id string) (BatchResult, error)
}

// Worker runs the engine on a fixed cadence and also services dispatch jobs
// (campaign ids) pushed by the API when a campaign is started.
type Worker struct {
	Engine   Ticker
	Interval time.Duration
	JobChan  <-chan string

	log *logrus.Entry
}

// Constructor
func NewWorker(engine Ticker, interval time.Duration, jobChan <-chan string) *Worker {
	return &Worker{
		Engine:   engine,
		Interval: interval,
		JobChan:  jobChan,
		log:      logger.WithComponent("worker"),
	}
}

// Start blocks until ctx is cancelled. Ticks and jobs are handled one at a
// time; a tick that outlasts Interval delays the next one instead of overlapping it.
func (w *Worker) Start(ctx context.Context) {
	w.log.WithField("interval", w.Interval.String()).Info("dispatch worker started")

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	jobs := w.JobChan
	for {
		select {
		case <-ctx.Done():
			w.log.Info("dispatch worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		case id, ok := <-jobs:
			if !ok {
				jobs = nil
				continue
			}
			w.runJob(ctx, id)
		}
	}
}

// RunOnce performs a single tick and logs its outcome.
func (w *Worker) RunOnce(ctx context.Context) TickReport {
	report, err := w.Engine.Tick(ctx)
	if err != nil {
		w.log.WithError(err).Error("tick failed")
	}
	return report
}

func (w *Worker) runJob(ctx context.Context, id string) {
	res, err := w.Engine.TickCampaign(ctx, id)
	entry := w.log.WithField("campaign_id", id)
	if err != nil {
		entry.WithError(err).Warn("dispatch job failed")
		return
	}
	entry.WithFields(logrus.Fields{
		"attempted": res.Attempted,
		"skipped":   res.Skipped,
		"completed": res.Completed,
	}).Debug("dispatch job processed")
}
