package countdown

import (
	"time"

	"github.com/robfig/cron/v3"
)

// CronScheduler schedules ticks on a dedicated cron runner per countdown.
type CronScheduler struct{}

func NewCronScheduler() CronScheduler {
	return CronScheduler{}
}

// Every starts a cron runner that fires fn once per interval, the first time
// one full interval after the call. Overlapping runs are skipped so ticks stay
// strictly sequential.
func (CronScheduler) Every(interval time.Duration, fn func()) func() {
	c := cron.New()
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(fn))
	c.Schedule(fixedDelay(interval), job)
	c.Start()
	return func() {
		c.Stop()
	}
}

// fixedDelay is a cron.Schedule measured from the previous activation.
// cron.Every rounds to the wall-clock second, which would shorten the first tick.
type fixedDelay time.Duration

func (d fixedDelay) Next(t time.Time) time.Time {
	return t.Add(time.Duration(d))
}
