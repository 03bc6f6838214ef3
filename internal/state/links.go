// internal/state/links.go
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/jirabot/internal/types"
)

// Link ties a group chat to an issue so tracker-side updates can be pushed
// back into the chat.
type Link struct {
	ChatKey  types.ChatKey `json:"chat_key"`
	IssueKey string        `json:"issue_key"`
}

// LinkStore is a JSON-file-backed store for chat-issue links.
type LinkStore struct {
	path string
	mu   sync.RWMutex
}

func NewLinkStore(path string) *LinkStore {
	return &LinkStore{path: path}
}

// ChatsFor returns the chat keys linked to an issue.
func (s *LinkStore) ChatsFor(issueKey string) ([]types.ChatKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	links, err := s.load()
	if err != nil {
		return nil, err
	}
	var chats []types.ChatKey
	for _, l := range links {
		if l.IssueKey == issueKey {
			chats = append(chats, l.ChatKey)
		}
	}
	return chats, nil
}

// Add stores a link. Linking the same chat and issue twice is a no-op.
func (s *LinkStore) Add(chat types.ChatKey, issueKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	links, err := s.load()
	if err != nil {
		return err
	}
	for _, l := range links {
		if l.ChatKey == chat && l.IssueKey == issueKey {
			return nil
		}
	}
	links = append(links, &Link{ChatKey: chat, IssueKey: issueKey})
	return s.save(links)
}

// Remove drops the link between a chat and an issue.
func (s *LinkStore) Remove(chat types.ChatKey, issueKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	links, err := s.load()
	if err != nil {
		return err
	}
	for i, l := range links {
		if l.ChatKey == chat && l.IssueKey == issueKey {
			links = append(links[:i], links[i+1:]...)
			return s.save(links)
		}
	}
	return fmt.Errorf("link not found: %s %s", chat, issueKey)
}

func (s *LinkStore) load() ([]*Link, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read links file: %w", err)
	}

	var links []*Link
	if err := json.Unmarshal(data, &links); err != nil {
		return nil, fmt.Errorf("unmarshal links: %w", err)
	}
	return links, nil
}

func (s *LinkStore) save(links []*Link) error {
	data, err := json.MarshalIndent(links, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal links: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create links dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp links file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp links file: %w", err)
	}
	return nil
}
