package service

import (
	"context"
	"time"

	"github.com/Memesold/vk-tg-repost-bot/internal/constants"
	apperrors "github.com/Memesold/vk-tg-repost-bot/internal/errors"
	"github.com/Memesold/vk-tg-repost-bot/internal/models"

	"github.com/sirupsen/logrus"
)

// Scheduler drives full sync passes on a fixed interval after a short
// startup delay.
type Scheduler struct {
	syncer       SyncRunner
	initialDelay time.Duration
	interval     time.Duration
	passTimeout  time.Duration
	logger       *logrus.Logger
	errLog       *apperrors.Logger
	stopCh       chan struct{}
}

func NewScheduler(syncer SyncRunner, cfg models.SyncConfig, logger *logrus.Logger) *Scheduler {
	intervalSec := cfg.IntervalSec
	if intervalSec <= 0 {
		intervalSec = constants.DefaultSyncIntervalSec
	}
	passTimeoutSec := cfg.PassTimeoutSec
	if passTimeoutSec <= 0 {
		passTimeoutSec = constants.DefaultSyncPassTimeoutSec
	}
	return &Scheduler{
		syncer:       syncer,
		initialDelay: time.Duration(cfg.InitialDelaySec) * time.Second,
		interval:     time.Duration(intervalSec) * time.Second,
		passTimeout:  time.Duration(passTimeoutSec) * time.Second,
		logger:       logger,
		errLog:       &apperrors.Logger{Logger: logger},
		stopCh:       make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.logger.WithFields(logrus.Fields{
		"initialDelay": s.initialDelay,
		"interval":     s.interval,
	}).Info("Starting sync scheduler")

	select {
	case <-ctx.Done():
		return
	case <-s.stopCh:
		return
	case <-time.After(s.initialDelay):
	}

	s.runPass(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runPass(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, s.passTimeout)
	defer cancel()

	start := time.Now()
	outcomes := s.syncer.SyncAllUsers(passCtx)

	var sent, failed int
	for _, o := range outcomes {
		sent += o.Sent
		failed += o.Failed
		if o.Err != nil {
			s.errLog.LogRetryableError(o.Err, "Slot sync failed", logrus.Fields{
				"botIndex": o.BotIndex,
			})
		}
	}
	if sent > 0 || failed > 0 {
		s.logger.WithFields(logrus.Fields{
			"sent":     sent,
			"failed":   failed,
			"duration": time.Since(start),
		}).Info("Sync pass completed")
	} else {
		s.logger.Debug("Sync pass completed, nothing new")
	}
}
