// internal/dispatch/engine_test.go
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/user/jirabot/internal/types"
)

func testFacts(command, args string) *FactSet {
	return CommandFacts(command, args, &types.MessageEvent{
		ChatID: "chat1",
		UserID: "user1",
		Text:   command + " " + args,
	})
}

func matchAll(f *FactSet) (bool, error)  { return true, nil }
func matchNone(f *FactSet) (bool, error) { return false, nil }

func TestEngineFiresFirstMatchOnly(t *testing.T) {
	e := NewEngine()

	var fired []string
	action := func(name string) func(context.Context, *FactSet) error {
		return func(ctx context.Context, f *FactSet) error {
			fired = append(fired, name)
			return nil
		}
	}

	e.Register(Rule{Name: "never", When: matchNone, Then: action("never")})
	e.Register(Rule{Name: "first", When: matchAll, Then: action("first")})
	e.Register(Rule{Name: "shadowed", When: matchAll, Then: action("shadowed")})

	e.Fire(context.Background(), testFacts("help", ""))

	if len(fired) != 1 || fired[0] != "first" {
		t.Errorf("expected only the first matching rule to fire, got %v", fired)
	}
}

func TestEngineDeterministicAcrossFires(t *testing.T) {
	e := NewEngine()

	var fired []string
	e.Register(Rule{Name: "a", When: matchAll, Then: func(ctx context.Context, f *FactSet) error {
		fired = append(fired, "a")
		return nil
	}})
	e.Register(Rule{Name: "b", When: matchAll, Then: func(ctx context.Context, f *FactSet) error {
		fired = append(fired, "b")
		return nil
	}})

	for i := 0; i < 10; i++ {
		e.Fire(context.Background(), testFacts("menu", ""))
	}
	for _, name := range fired {
		if name != "a" {
			t.Fatalf("rule order not deterministic: %v", fired)
		}
	}
}

func TestEnginePermissionSignalShortCircuits(t *testing.T) {
	e := NewEngine()

	var actionRan, laterChecked bool
	var denied *PermissionError

	e.Register(Rule{
		Name: "guarded",
		When: func(f *FactSet) (bool, error) {
			return false, &PermissionError{Reason: "chat admins only"}
		},
		Then: func(ctx context.Context, f *FactSet) error {
			actionRan = true
			return nil
		},
	})
	e.Register(Rule{
		Name: "later",
		When: func(f *FactSet) (bool, error) {
			laterChecked = true
			return true, nil
		},
		Then: func(ctx context.Context, f *FactSet) error { return nil },
	})
	e.OnPermissionDenied(func(ctx context.Context, f *FactSet, perr *PermissionError) {
		denied = perr
	})

	e.Fire(context.Background(), testFacts("link", "TEST-1"))

	if actionRan {
		t.Error("guarded action must not run on permission denial")
	}
	if laterChecked {
		t.Error("evaluation must stop at the permission signal")
	}
	if denied == nil || denied.Reason != "chat admins only" {
		t.Errorf("permission responder got %v", denied)
	}
}

func TestEngineWrappedPermissionSignal(t *testing.T) {
	e := NewEngine()

	var denied bool
	e.Register(Rule{
		Name: "guarded",
		When: func(f *FactSet) (bool, error) {
			return false, fmt.Errorf("checking admin: %w", &PermissionError{})
		},
		Then: func(ctx context.Context, f *FactSet) error { return nil },
	})
	e.OnPermissionDenied(func(ctx context.Context, f *FactSet, perr *PermissionError) {
		denied = true
	})

	e.Fire(context.Background(), testFacts("link", ""))
	if !denied {
		t.Error("wrapped permission error should still route to the responder")
	}
}

func TestEnginePredicateErrorSkipsRule(t *testing.T) {
	e := NewEngine()

	var fired string
	e.Register(Rule{
		Name: "broken",
		When: func(f *FactSet) (bool, error) {
			return false, errors.New("transient lookup failure")
		},
		Then: func(ctx context.Context, f *FactSet) error {
			fired = "broken"
			return nil
		},
	})
	e.Register(Rule{Name: "fallback", When: matchAll, Then: func(ctx context.Context, f *FactSet) error {
		fired = "fallback"
		return nil
	}})

	e.Fire(context.Background(), testFacts("help", ""))
	if fired != "fallback" {
		t.Errorf("expected evaluation to continue past the broken predicate, fired=%q", fired)
	}
}

func TestEngineActionFailureRouted(t *testing.T) {
	e := NewEngine()

	wantErr := errors.New("upstream down")
	var gotErr error
	e.Register(Rule{Name: "failing", When: matchAll, Then: func(ctx context.Context, f *FactSet) error {
		return wantErr
	}})
	e.OnFailure(func(ctx context.Context, f *FactSet, err error) {
		gotErr = err
	})

	e.Fire(context.Background(), testFacts("issue", "TEST-1"))
	if !errors.Is(gotErr, wantErr) {
		t.Errorf("failure responder got %v, want %v", gotErr, wantErr)
	}
}

func TestEngineNoMatchIsAbsorbed(t *testing.T) {
	e := NewEngine()
	e.Register(Rule{Name: "never", When: matchNone, Then: func(ctx context.Context, f *FactSet) error {
		t.Fatal("must not fire")
		return nil
	}})

	// Must not panic or call any responder.
	e.OnFailure(func(ctx context.Context, f *FactSet, err error) {
		t.Fatal("failure responder must not run for unmatched events")
	})
	e.Fire(context.Background(), testFacts("unknowncommand", ""))
}

func TestEngineContainsPanic(t *testing.T) {
	e := NewEngine()
	e.Register(Rule{Name: "panics", When: matchAll, Then: func(ctx context.Context, f *FactSet) error {
		panic("boom")
	}})

	// Must not propagate.
	e.Fire(context.Background(), testFacts("help", ""))
}
