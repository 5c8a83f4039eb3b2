package system

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/loyalty_layer/pkg/logger"
)

// CronService runs periodic maintenance jobs on cron schedules.
type CronService struct {
	name string
	cron *cron.Cron
	log  *logger.Logger
	jobs int
}

var _ Service = (*CronService)(nil)

// NewCronService creates an idle scheduler.
func NewCronService(name string, log *logger.Logger) *CronService {
	if log == nil {
		log = logger.NewDefault(name)
	}
	return &CronService{
		name: name,
		cron: cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger))),
		log:  log,
	}
}

// AddJob schedules fn under a standard cron spec or a descriptor such as
// "@every 5m".
func (c *CronService) AddJob(spec, job string, fn func()) error {
	_, err := c.cron.AddFunc(spec, func() {
		start := time.Now()
		fn()
		c.log.WithField("job", job).
			WithField("duration", time.Since(start).String()).
			Debug("cron job finished")
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job, spec, err)
	}
	c.jobs++
	return nil
}

// Jobs reports how many jobs are scheduled.
func (c *CronService) Jobs() int { return c.jobs }

func (c *CronService) Name() string { return c.name }

func (c *CronService) Start(context.Context) error {
	c.cron.Start()
	c.log.WithField("jobs", c.jobs).Info("cron scheduler started")
	return nil
}

// Stop waits for running jobs to finish or ctx to expire.
func (c *CronService) Stop(ctx context.Context) error {
	done := c.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
