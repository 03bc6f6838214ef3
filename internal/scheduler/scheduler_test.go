// internal/scheduler/scheduler_test.go
package scheduler

import (
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/jirabot/internal/state"
	"github.com/user/jirabot/internal/types"
)

func TestSchedulerFiresReminder(t *testing.T) {
	dir := t.TempDir()
	store := state.NewReminderStore(filepath.Join(dir, "reminders.json"))

	rem := &state.Reminder{
		ID:       types.NewReminderID(),
		IssueKey: "TEST-1",
		ChatKey:  "telegram:123",
		Schedule: "* * * * * *",
		Enabled:  true,
	}
	if err := store.Add(rem); err != nil {
		t.Fatal(err)
	}

	var fires atomic.Int32
	handler := func(r *state.Reminder) {
		fires.Add(1)
	}

	sched := New(store, handler)
	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	// Wait up to 2.5 seconds for at least one fire
	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatalf("handler did not fire within 2.5s, fires=%d", fires.Load())
		case <-ticker.C:
			if fires.Load() > 0 {
				return
			}
		}
	}
}

func TestSchedulerSkipsDisabled(t *testing.T) {
	dir := t.TempDir()
	store := state.NewReminderStore(filepath.Join(dir, "reminders.json"))

	rem := &state.Reminder{
		ID:       types.NewReminderID(),
		IssueKey: "TEST-2",
		ChatKey:  "telegram:123",
		Schedule: "* * * * * *",
		Enabled:  false,
	}
	if err := store.Add(rem); err != nil {
		t.Fatal(err)
	}

	var fires atomic.Int32
	handler := func(r *state.Reminder) {
		fires.Add(1)
	}

	sched := New(store, handler)
	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	time.Sleep(2 * time.Second)

	if n := fires.Load(); n != 0 {
		t.Errorf("expected 0 fires for disabled reminder, got %d", n)
	}
}

func TestSchedulerAddWhileRunning(t *testing.T) {
	dir := t.TempDir()
	store := state.NewReminderStore(filepath.Join(dir, "reminders.json"))

	var fires atomic.Int32
	sched := New(store, func(r *state.Reminder) {
		fires.Add(1)
	})
	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	rem := &state.Reminder{
		ID:       types.NewReminderID(),
		IssueKey: "TEST-3",
		ChatKey:  "telegram:123",
		Schedule: "* * * * * *",
		Enabled:  true,
	}
	if err := sched.Add(rem); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatalf("added reminder did not fire within 2.5s, fires=%d", fires.Load())
		case <-ticker.C:
			if fires.Load() > 0 {
				return
			}
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("0 9 * * 1-5"); err != nil {
		t.Errorf("expected valid schedule, got %v", err)
	}
	if err := Validate("@daily"); err != nil {
		t.Errorf("expected valid descriptor, got %v", err)
	}
	if err := Validate("not a schedule"); err == nil {
		t.Error("expected error for invalid schedule")
	}
}
