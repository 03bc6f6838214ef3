// internal/state/reminder.go
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/jirabot/internal/types"
)

// Reminder is a scheduled nudge about an issue, delivered back to the chat
// that created it.
type Reminder struct {
	ID       types.ReminderID `json:"id"`
	IssueKey string           `json:"issue_key"`
	ChatKey  types.ChatKey    `json:"chat_key"`
	Schedule string           `json:"schedule"`
	Note     string           `json:"note,omitempty"`
	Enabled  bool             `json:"enabled"`
}

// ReminderStore is a JSON-file-backed store for reminders.
type ReminderStore struct {
	path string
	mu   sync.RWMutex
}

// NewReminderStore creates a file-backed ReminderStore at the given path.
func NewReminderStore(path string) *ReminderStore {
	return &ReminderStore{path: path}
}

// List returns all reminders. Returns an empty slice if the file doesn't exist.
func (s *ReminderStore) List() ([]*Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reminders, err := s.load()
	if err != nil {
		return nil, err
	}
	if reminders == nil {
		return []*Reminder{}, nil
	}
	return reminders, nil
}

// Add appends a reminder.
func (s *ReminderStore) Add(r *Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.load()
	if err != nil {
		return err
	}
	reminders = append(reminders, r)
	return s.save(reminders)
}

// Remove deletes a reminder by id. Returns an error if not found.
func (s *ReminderStore) Remove(id types.ReminderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.load()
	if err != nil {
		return err
	}
	for i, r := range reminders {
		if r.ID == id {
			reminders = append(reminders[:i], reminders[i+1:]...)
			return s.save(reminders)
		}
	}
	return fmt.Errorf("reminder not found: %s", id)
}

// SetEnabled toggles a reminder. Returns an error if not found.
func (s *ReminderStore) SetEnabled(id types.ReminderID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.load()
	if err != nil {
		return err
	}
	for _, r := range reminders {
		if r.ID == id {
			r.Enabled = enabled
			return s.save(reminders)
		}
	}
	return fmt.Errorf("reminder not found: %s", id)
}

func (s *ReminderStore) load() ([]*Reminder, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reminders file: %w", err)
	}

	var reminders []*Reminder
	if err := json.Unmarshal(data, &reminders); err != nil {
		return nil, fmt.Errorf("unmarshal reminders: %w", err)
	}
	return reminders, nil
}

// save writes the reminder list to disk using atomic write (temp file + rename).
func (s *ReminderStore) save(reminders []*Reminder) error {
	data, err := json.MarshalIndent(reminders, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reminders: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create reminders dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp reminders file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp reminders file: %w", err)
	}
	return nil
}
