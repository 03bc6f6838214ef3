package jira

import (
	"strings"
	"testing"
)

func TestValidationMessages(t *testing.T) {
	body := `{
		"errorMessages": ["Field 'priority' is required."],
		"errors": {"summary": "Summary must be less than 255 characters."}
	}`
	msgs := validationMessages(body)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages: %v", len(msgs), msgs)
	}
	if msgs[0] != "Field 'priority' is required." {
		t.Errorf("msgs[0] = %q", msgs[0])
	}
	if !strings.HasPrefix(msgs[1], "summary: ") {
		t.Errorf("msgs[1] = %q", msgs[1])
	}
}

func TestValidationMessagesEmptyBody(t *testing.T) {
	if msgs := validationMessages(`{}`); len(msgs) != 0 {
		t.Errorf("expected no messages, got %v", msgs)
	}
	if msgs := validationMessages("not json"); len(msgs) != 0 {
		t.Errorf("expected no messages for junk, got %v", msgs)
	}
}
