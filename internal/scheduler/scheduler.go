// internal/scheduler/scheduler.go
package scheduler

import (
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/user/jirabot/internal/state"
)

// Handler is the callback invoked when a reminder fires.
type Handler func(r *state.Reminder)

// Scheduler evaluates cron expressions from the reminder store and fires
// reminders through a handler callback.
type Scheduler struct {
	store   *state.ReminderStore
	handler Handler

	mu   sync.Mutex
	cron *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate reports whether schedule is a parseable cron expression.
func Validate(schedule string) error {
	_, err := cronParser.Parse(schedule)
	return err
}

// New creates a Scheduler backed by the given reminder store. The handler is
// called each time a reminder fires.
func New(store *state.ReminderStore, handler Handler) *Scheduler {
	return &Scheduler{
		store:   store,
		handler: handler,
		cron:    cron.New(cron.WithParser(cronParser)),
	}
}

// Start loads reminders from the store, registers the enabled ones as cron
// entries, and starts the cron ticker.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.store.List()
	if err != nil {
		return err
	}
	for _, r := range reminders {
		if r.Schedule == "" || !r.Enabled {
			continue
		}
		if err := s.register(r); err != nil {
			slog.Error("invalid cron schedule", "reminder", r.ID, "schedule", r.Schedule, "error", err)
			continue
		}
		slog.Info("scheduled reminder", "reminder", r.ID, "issue", r.IssueKey, "schedule", r.Schedule)
	}

	s.cron.Start()
	return nil
}

// Add registers a single reminder with the running cron without a full
// reload. Used when a chat creates a reminder while the daemon is up.
func (s *Scheduler) Add(r *state.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.register(r)
}

func (s *Scheduler) register(r *state.Reminder) error {
	rem := *r
	_, err := s.cron.AddFunc(r.Schedule, func() {
		slog.Info("reminder firing", "reminder", rem.ID, "issue", rem.IssueKey)
		s.handler(&rem)
	})
	return err
}

// Reload stops the existing cron, creates a new one, and calls Start again.
// Used after a reminder is removed, since cron entries cannot be unregistered
// individually here.
func (s *Scheduler) Reload() error {
	s.mu.Lock()
	s.cron.Stop()
	s.cron = cron.New(cron.WithParser(cronParser))
	s.mu.Unlock()
	return s.Start()
}

// Stop stops the cron ticker.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Stop()
}
