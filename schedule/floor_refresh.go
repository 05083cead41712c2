package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"oneoftools/internal/services"
)

// SlugLister returns the collections the sweep covers
type SlugLister interface {
	ApprovedSlugs(ctx context.Context) ([]string, error)
}

// FloorSweep queues a floor refresh for every approved collection. It backs up the
// listing-driven refreshes when listing webhooks are missed.
type FloorSweep struct {
	slugs     SlugLister
	scheduler services.FloorScheduler
	timeout   time.Duration
}

func NewFloorSweep(slugs SlugLister, scheduler services.FloorScheduler) *FloorSweep {
	return &FloorSweep{slugs: slugs, scheduler: scheduler, timeout: time.Minute}
}

// Run enqueues one refresh per approved collection and returns how many were queued.
// A failing collection does not stop the sweep.
func (s *FloorSweep) Run(ctx context.Context) (int, error) {
	slugs, err := s.slugs.ApprovedSlugs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list approved collections: %w", err)
	}

	queued := 0
	for _, slug := range slugs {
		if err := s.scheduler.ScheduleFloorRefresh(ctx, slug); err != nil {
			logrus.WithField("slug", slug).Errorf("> Failed to queue floor refresh: %v", err)
			continue
		}
		queued++
	}

	logrus.WithFields(logrus.Fields{"collections": len(slugs), "queued": queued}).Info("> Floor sweep finished")
	return queued, nil
}

// Job adapts Run to a cron job with its own timeout
func (s *FloorSweep) Job() func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.Run(ctx); err != nil {
			logrus.Errorf("> Floor sweep failed: %v", err)
		}
	}
}

// NewCron builds a cron with second precision and registers jobs under their specs
func NewCron(jobs map[string]func()) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds())
	for spec, job := range jobs {
		if _, err := c.AddFunc(spec, job); err != nil {
			return nil, fmt.Errorf("add job %q: %w", spec, err)
		}
	}
	return c, nil
}
