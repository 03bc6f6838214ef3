// internal/webhook/server.go
package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/user/jirabot/internal/delivery"
	"github.com/user/jirabot/internal/state"
)

// Server receives issue-tracker webhooks and fans notifications out to the
// chats linked to the affected issue.
type Server struct {
	links    *state.LinkStore
	registry *delivery.Registry
	mux      *http.ServeMux
}

// NewServer creates a webhook Server over the given link store and delivery
// registry.
func NewServer(links *state.LinkStore, registry *delivery.Registry) *Server {
	s := &Server{
		links:    links,
		registry: registry,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /webhook/jira", s.handleJira)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleJira accepts the Jira webhook payload. Unknown event types and
// issues without linked chats are acknowledged and ignored.
func (s *Server) handleJira(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, `{"error":"read body"}`, http.StatusBadRequest)
		return
	}
	if !gjson.ValidBytes(body) {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	payload := gjson.ParseBytes(body)
	key := payload.Get("issue.key").String()
	if key == "" {
		http.Error(w, `{"error":"issue key required"}`, http.StatusBadRequest)
		return
	}

	message := describeEvent(payload, key)
	if message == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	chats, err := s.links.ChatsFor(key)
	if err != nil {
		slog.Error("lookup linked chats failed", "issue", key, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	delivered := 0
	for _, chat := range chats {
		if err := s.registry.Deliver(chat, message); err != nil {
			slog.Error("webhook delivery failed", "issue", key, "chat_key", chat, "error", err)
			continue
		}
		delivered++
	}
	slog.Info("webhook processed", "issue", key, "event", payload.Get("webhookEvent").String(), "delivered", delivered)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"delivered": delivered})
}

// describeEvent renders a chat notification for a webhook payload. Returns
// "" for event types the bot does not announce.
func describeEvent(payload gjson.Result, key string) string {
	summary := payload.Get("issue.fields.summary").String()
	actor := payload.Get("user.displayName").String()
	if actor == "" {
		actor = "Someone"
	}

	switch payload.Get("webhookEvent").String() {
	case "jira:issue_updated":
		if c := payload.Get("comment.body").String(); c != "" {
			return fmt.Sprintf("%s commented on %s (%s):\n%s", actor, key, summary, c)
		}
		if change := describeChange(payload); change != "" {
			return fmt.Sprintf("%s updated %s (%s): %s", actor, key, summary, change)
		}
		return fmt.Sprintf("%s updated %s (%s)", actor, key, summary)
	case "jira:issue_created":
		return fmt.Sprintf("%s created %s: %s", actor, key, summary)
	case "jira:issue_deleted":
		return fmt.Sprintf("%s deleted %s (%s)", actor, key, summary)
	case "comment_created":
		return fmt.Sprintf("%s commented on %s:\n%s", actor, key, payload.Get("comment.body").String())
	default:
		return ""
	}
}

// describeChange renders the changelog items as "field: old -> new" pairs.
func describeChange(payload gjson.Result) string {
	var parts []string
	for _, item := range payload.Get("changelog.items").Array() {
		field := item.Get("field").String()
		from := item.Get("fromString").String()
		to := item.Get("toString").String()
		if field == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s -> %s", field, from, to))
	}
	return strings.Join(parts, ", ")
}
