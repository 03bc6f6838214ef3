// internal/state/store_test.go
package state

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestStorePutGetRemove(t *testing.T) {
	s := NewStore()

	if got := s.Get("chat1"); got != nil {
		t.Fatalf("expected nil for idle chat, got %T", got)
	}
	if got := s.Remove("chat1"); got != nil {
		t.Fatalf("expected nil remove for idle chat, got %T", got)
	}

	s.Put("chat1", WaitingForComment{IssueKey: "TEST-1"})

	got := s.Get("chat1")
	wc, ok := got.(WaitingForComment)
	if !ok {
		t.Fatalf("expected WaitingForComment, got %T", got)
	}
	if wc.IssueKey != "TEST-1" {
		t.Errorf("expected TEST-1, got %s", wc.IssueKey)
	}

	// Get does not consume
	if s.Get("chat1") == nil {
		t.Fatal("Get should not remove the state")
	}

	if s.Remove("chat1") == nil {
		t.Fatal("expected state from Remove")
	}
	if s.Remove("chat1") != nil {
		t.Fatal("second Remove should return nil")
	}
}

func TestStorePutReplaces(t *testing.T) {
	s := NewStore()
	s.Put("chat1", WaitingForComment{IssueKey: "TEST-1"})
	s.Put("chat1", WaitingForIssueKey{})

	if _, ok := s.Remove("chat1").(WaitingForIssueKey); !ok {
		t.Fatal("expected the later state to win")
	}
}

func TestStoreRemoveIsExclusive(t *testing.T) {
	s := NewStore()
	s.Put("chat1", WaitingForIssueKey{})

	const workers = 32
	var winners atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if s.Remove("chat1") != nil {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if n := winners.Load(); n != 1 {
		t.Errorf("expected exactly 1 worker to take the state, got %d", n)
	}
}

func TestStoreChatsAreIndependent(t *testing.T) {
	s := NewStore()
	s.Put("chat1", WaitingForComment{IssueKey: "A-1"})
	s.Put("chat2", WaitingForComment{IssueKey: "B-2"})

	if s.Remove("chat1") == nil {
		t.Fatal("chat1 state missing")
	}
	if s.Get("chat2") == nil {
		t.Fatal("chat2 state should be untouched")
	}
}
