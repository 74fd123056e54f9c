package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler is the periodic-trigger facility behind the background workers.
// It wraps gocron so callers only deal with "run every d" and "run once at t".
type Scheduler struct {
	inner gocron.Scheduler
}

func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{inner: s}, nil
}

// Every registers task to run on a fixed interval
func (s *Scheduler) Every(interval time.Duration, name string, task func()) error {
	_, err := s.inner.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
	)
	if err != nil {
		return err
	}
	log.Printf("[SCHED] Registered periodic job %q (every %v)", name, interval)
	return nil
}

// At registers task to run once at the given instant. Instants already in the
// past fire immediately; tasks are assumed idempotent so a duplicate or early
// trigger is harmless.
func (s *Scheduler) At(at time.Time, name string, task func()) error {
	if !at.After(time.Now()) {
		log.Printf("[SCHED] One-time job %q is due, running now", name)
		go task()
		return nil
	}
	_, err := s.inner.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(at)),
		gocron.NewTask(task),
		gocron.WithName(name),
	)
	if err != nil {
		return err
	}
	log.Printf("[SCHED] Registered one-time job %q at %s", name, at.Format(time.RFC3339))
	return nil
}

// Start begins executing registered jobs
func (s *Scheduler) Start() {
	s.inner.Start()
}

// Shutdown stops the scheduler and waits for running jobs
func (s *Scheduler) Shutdown() error {
	return s.inner.Shutdown()
}
