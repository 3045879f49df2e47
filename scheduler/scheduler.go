// Package scheduler runs periodic jobs on cron expressions.
package scheduler

import (
	"context"
	"sort"
	"sync"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
)

type (
	// Job is a named unit of work with its cron schedule.
	Job struct {
		Name     string
		Schedule string
		Run      func(ctx context.Context)
	}
	// Scheduler handles all the schedules.
	Scheduler struct {
		cron                *cron.Cron
		registeredSchedules map[string]scheduleRef
		mutex               sync.Mutex
		log                 logr.Logger
		ctx                 context.Context
		cancel              context.CancelFunc
		scheduleGauge       prometheus.Gauge
		runCounter          *prometheus.CounterVec
	}
	scheduleRef struct {
		EntryID  cron.EntryID
		Schedule string
	}
)

// New returns a stopped scheduler. Overlapping runs of the same job are skipped.
// Metrics are registered with reg when it is not nil.
func New(log logr.Logger, reg prometheus.Registerer) *Scheduler {
	log = log.WithName("scheduler")
	factory := promauto.With(reg)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(log),
			cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
		),
		registeredSchedules: make(map[string]scheduleRef),
		log:                 log,
		ctx:                 ctx,
		cancel:              cancel,
		scheduleGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "guildsnap_schedules_gauge",
			Help: "How many schedules are registered",
		}),
		runCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guildsnap_scheduled_runs_total",
			Help: "How many scheduled runs were started",
		}, []string{"job"}),
	}
}

// Validate reports whether the expression is accepted by the scheduler.
func Validate(schedule string) error {
	_, err := cron.ParseStandard(schedule)
	return err
}

// SyncSchedules replaces the registered jobs with the given ones. Jobs whose
// schedule did not change keep their entry.
func (s *Scheduler) SyncSchedules(jobs []Job) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	wanted := make(map[string]Job, len(jobs))
	for _, jb := range jobs {
		wanted[jb.Name] = jb
	}
	for name, ref := range s.registeredSchedules {
		if jb, ok := wanted[name]; ok && jb.Schedule == ref.Schedule {
			delete(wanted, name)
			continue
		}
		s.removeSchedule(name)
	}

	names := make([]string, 0, len(wanted))
	for name := range wanted {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.addSchedule(wanted[name]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) addSchedule(jb Job) error {
	s.log.Info("registering schedule", "job", jb.Name, "schedule", jb.Schedule)
	id, err := s.cron.AddFunc(jb.Schedule, s.getScheduleCallback(jb))
	if err != nil {
		return err
	}
	s.registeredSchedules[jb.Name] = scheduleRef{EntryID: id, Schedule: jb.Schedule}
	s.scheduleGauge.Inc()
	return nil
}

func (s *Scheduler) getScheduleCallback(jb Job) func() {
	return func() {
		s.log.Info("running schedule", "job", jb.Name)
		s.runCounter.WithLabelValues(jb.Name).Inc()
		jb.Run(s.ctx)
	}
}

// RemoveSchedule removes the named job if it is registered.
func (s *Scheduler) RemoveSchedule(name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.removeSchedule(name)
}

func (s *Scheduler) removeSchedule(name string) {
	ref, ok := s.registeredSchedules[name]
	if !ok {
		return
	}
	s.cron.Remove(ref.EntryID)
	delete(s.registeredSchedules, name)
	s.scheduleGauge.Dec()
}

// Run starts the cron loop and blocks until ctx is done. Running jobs get their
// context cancelled and are waited for.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	s.log.Info("stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
}
