package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oarkflow/log"
	"github.com/robfig/cron/v3"
)

// Scheduler drives poll cycles at a fixed interval. Cycles never overlap: a
// tick arriving while the previous cycle still runs is dropped. Cancelling
// the context stops the schedule and returns once the in-flight cycle, if
// any, has been given its tick back.
type Scheduler struct {
	interval time.Duration
	running  int32
}

func NewScheduler(interval time.Duration) *Scheduler {
	return &Scheduler{interval: interval}
}

// Run executes one immediate cycle, then repeats on the interval until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context, cycle func(context.Context)) error {
	guarded := func() {
		if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
			log.DefaultLogger.Warn().Msg("previous cycle still running, skipping tick")
			return
		}
		defer atomic.StoreInt32(&s.running, 0)
		cycle(ctx)
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), guarded); err != nil {
		return err
	}
	guarded()
	c.Start()
	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	return ctx.Err()
}
