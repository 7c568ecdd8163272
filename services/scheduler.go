package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StartScheduler runs the reminder cycle on the cron spec, interpreted in the
// reminder timezone. The returned cron must be stopped by the caller.
func (s *ReminderService) StartScheduler(ctx context.Context, spec string) (*cron.Cron, error) {
	logger := NewCronLogger(s.logger)
	c := cron.New(
		cron.WithLocation(s.settings.Location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(spec, func() { s.runScheduled(ctx) }); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}

	c.Start()
	s.logger.Info("reminder scheduler started", zap.String("schedule", spec))
	return c, nil
}

func (s *ReminderService) runScheduled(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.Run(ctx); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			s.logger.Warn("scheduled reminder run skipped", zap.Error(err))
			return
		}
		s.logger.Error("error checking appointments", zap.Error(err))
	}
}

// CronLogger adapts zap to cron.Logger.
type CronLogger struct {
	sugar *zap.SugaredLogger
}

func NewCronLogger(logger *zap.Logger) CronLogger {
	return CronLogger{sugar: logger.Named("cron").Sugar()}
}

func (l CronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
