package hardhat

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// unhealthyThreshold is the number of consecutive failed health checks
// before the watchdog flags the node.
const unhealthyThreshold = 3

// watchdog periodically polls the node and emits an unhealthy event after
// repeated failures. It never restarts the node itself; what to do with a
// dead node is the caller's decision.
type watchdog struct {
	provider  *Provider
	log       logrus.FieldLogger
	scheduler gocron.Scheduler
	failures  int
}

func newWatchdog(log logrus.FieldLogger, provider *Provider) *watchdog {
	return &watchdog{
		provider: provider,
		log:      log.WithField("component", "watchdog"),
	}
}

func (w *watchdog) Start(ctx context.Context) error {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.Local))
	if err != nil {
		return err
	}

	if _, err := s.NewJob(
		gocron.DurationJob(w.provider.config.HealthCheckInterval),
		gocron.NewTask(
			func(ctx context.Context) {
				w.check(ctx)
			},
			ctx,
		),
	); err != nil {
		return err
	}

	w.scheduler = s

	s.Start()

	return nil
}

func (w *watchdog) Stop() error {
	if w.scheduler == nil {
		return nil
	}

	return w.scheduler.Shutdown()
}

func (w *watchdog) check(ctx context.Context) {
	if _, err := w.provider.BlockNumber(ctx); err != nil {
		w.failures++

		w.log.WithError(err).WithField("failures", w.failures).Debug("Health check failed")

		if w.failures >= unhealthyThreshold {
			w.log.WithField("failures", w.failures).Warn("Node is unhealthy")

			w.provider.emitUnhealthy(w.failures, err)
		}

		return
	}

	w.failures = 0
}
