package persistence

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rsms/go-log"

	"github.com/rsms/redox"
)

// Scheduler registers the two periodic background jobs Redox needs: the
// dirty-flag-gated snapshot save and the expiry sweep. Both run on a
// single gocron scheduler rather than hand-rolled time.Ticker loops, the
// same scheduling library ClusterCockpit's taskManager uses for its own
// periodic jobs.
type Scheduler struct {
	sched gocron.Scheduler
}

// NewScheduler builds and starts a scheduler that saves snap every
// saveInterval (if dirty) and sweeps ks for expired keys every
// sweepInterval.
func NewScheduler(ks *redox.Keyspace, snap *Snapshot, saveInterval, sweepInterval time.Duration) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(saveInterval),
		gocron.NewTask(func() {
			data, expiry := ks.Snapshot()
			if err := snap.Save(data, expiry, time.Now().Unix()); err != nil {
				log.Warn("persistence: save failed: %s", err)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(func() {
			if n := ks.Sweep(); n > 0 {
				log.Debug("persistence: swept %d expired key(s)", n)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return &Scheduler{sched: sched}, nil
}

// Shutdown stops both background jobs, blocking until they have finished
// any in-progress run.
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
