// internal/telegram/adapter.go
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/jirabot/internal/format"
	"github.com/user/jirabot/internal/gateway"
	"github.com/user/jirabot/internal/types"
)

// ChatKeyPrefix qualifies Telegram chat ids in the delivery registry.
const ChatKeyPrefix = "telegram"

// Adapter bridges Telegram to the event router and implements
// types.Messenger for outbound traffic.
type Adapter struct {
	bot    *tgbotapi.BotAPI
	router *gateway.Router
	retry  *gateway.RetryPolicy
}

// New creates a Telegram adapter.
func New(token string, router *gateway.Router) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:    bot,
		router: router,
		retry:  gateway.DefaultRetryPolicy(),
	}, nil
}

// Start begins long-polling for Telegram updates. Blocks until ctx is done.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)
	slog.Info("telegram polling started", "bot", a.bot.Self.UserName)

	for {
		select {
		case update := <-updates:
			if ev := a.classify(update); ev != nil {
				a.router.Ingest(ev)
			}
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

// classify converts a Telegram update into a router event. Returns nil for
// updates the bot ignores (edits, group chatter that does not address it).
func (a *Adapter) classify(update tgbotapi.Update) types.Event {
	if cq := update.CallbackQuery; cq != nil && cq.Message != nil {
		return &types.ButtonEvent{
			ChatID:       chatID(cq.Message.Chat.ID),
			UserID:       userID(cq.From.ID),
			QueryID:      cq.ID,
			CallbackData: cq.Data,
			MessageID:    cq.Message.MessageID,
			IsGroup:      !cq.Message.Chat.IsPrivate(),
		}
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil
	}
	text := messageText(msg)
	isGroup := !msg.Chat.IsPrivate()

	if isGroup {
		switch {
		case msg.IsCommand():
			// "/issue@botname KEY" addresses this bot explicitly.
			text = stripBotSuffix(text, a.bot.Self.UserName)
		case mentionsBot(msg, a.bot.Self.UserName):
			return &types.MentionEvent{
				ChatID:    chatID(msg.Chat.ID),
				UserID:    userID(msg.From.ID),
				MessageID: msg.MessageID,
				Text:      stripMention(text, a.bot.Self.UserName),
				IsGroup:   true,
			}
		default:
			return nil
		}
	}
	if text == "" && len(messageParts(msg)) == 0 {
		return nil
	}

	return &types.MessageEvent{
		ChatID:    chatID(msg.Chat.ID),
		UserID:    userID(msg.From.ID),
		MessageID: msg.MessageID,
		Text:      text,
		Parts:     messageParts(msg),
		IsGroup:   isGroup,
	}
}

func messageText(msg *tgbotapi.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

// messageParts collects replies, forwards, and attachments into structured
// parts so reply-driven issue creation can recover the quoted text and the
// attach flow can reach files on replied messages.
func messageParts(msg *tgbotapi.Message) []types.Part {
	var parts []types.Part
	if r := msg.ReplyToMessage; r != nil {
		part := types.Part{Kind: types.PartReply, Text: messageText(r)}
		if r.From != nil {
			part.AuthorID = userID(r.From.ID)
		}
		parts = append(parts, part)
		parts = append(parts, fileParts(r)...)
	}
	if msg.ForwardDate != 0 {
		part := types.Part{Kind: types.PartForward, Text: messageText(msg)}
		if msg.ForwardFrom != nil {
			part.AuthorID = userID(msg.ForwardFrom.ID)
		}
		parts = append(parts, part)
	}
	parts = append(parts, fileParts(msg)...)
	return parts
}

func fileParts(msg *tgbotapi.Message) []types.Part {
	var parts []types.Part
	if msg.Document != nil {
		parts = append(parts, types.Part{
			Kind:   types.PartFile,
			Text:   msg.Document.FileName,
			FileID: msg.Document.FileID,
		})
	}
	if len(msg.Photo) > 0 {
		parts = append(parts, types.Part{
			Kind:   types.PartFile,
			FileID: msg.Photo[len(msg.Photo)-1].FileID,
		})
	}
	return parts
}

func mentionsBot(msg *tgbotapi.Message, botName string) bool {
	return strings.Contains(msg.Text, "@"+botName)
}

func stripMention(text, botName string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "@"+botName, ""))
}

// stripBotSuffix rewrites "/issue@botname rest" as "/issue rest".
func stripBotSuffix(text, botName string) string {
	return strings.Replace(text, "@"+botName, "", 1)
}

// SendText sends a message, splitting it under the platform limit. Buttons
// attach to the final chunk. Returns the id of the last sent message.
func (a *Adapter) SendText(ctx context.Context, chat types.ChatID, text string, buttons [][]types.Button) (int, error) {
	id, err := strconv.ParseInt(string(chat), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("chat id %q: %w", chat, err)
	}
	parts := format.SplitMessage(text)
	var lastID int
	for i, part := range parts {
		msg := tgbotapi.NewMessage(id, part)
		if i == len(parts)-1 && len(buttons) > 0 {
			msg.ReplyMarkup = keyboard(buttons)
		}
		sent, err := a.send(msg)
		if err != nil {
			return 0, fmt.Errorf("send to chat %s: %w", chat, err)
		}
		lastID = sent.MessageID
	}
	return lastID, nil
}

// EditText replaces the text and keyboard of an existing message. Used by
// page-turn handlers so a pager updates in place instead of reposting.
func (a *Adapter) EditText(ctx context.Context, chat types.ChatID, messageID int, text string, buttons [][]types.Button) error {
	id, err := strconv.ParseInt(string(chat), 10, 64)
	if err != nil {
		return fmt.Errorf("chat id %q: %w", chat, err)
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(id, messageID, text, keyboard(buttons))
	edit.ParseMode = "Markdown"
	return a.retry.Execute(func() error {
		if _, err := a.bot.Send(edit); err != nil {
			// Retry without markdown if the text fails to parse.
			edit.ParseMode = ""
			_, err = a.bot.Send(edit)
			return err
		}
		return nil
	})
}

// AnswerCallback acknowledges a button press so the client stops showing a
// spinner on it.
func (a *Adapter) AnswerCallback(ctx context.Context, queryID string, text string, showAlert bool) error {
	cb := tgbotapi.CallbackConfig{
		CallbackQueryID: queryID,
		Text:            text,
		ShowAlert:       showAlert,
	}
	_, err := a.bot.Request(cb)
	return err
}

// IsChatAdmin reports whether the user administers the chat.
func (a *Adapter) IsChatAdmin(ctx context.Context, chat types.ChatID, user types.UserID) (bool, error) {
	id, err := strconv.ParseInt(string(chat), 10, 64)
	if err != nil {
		return false, fmt.Errorf("chat id %q: %w", chat, err)
	}
	admins, err := a.bot.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: id},
	})
	if err != nil {
		return false, fmt.Errorf("get chat admins: %w", err)
	}
	uid := string(user)
	for _, member := range admins {
		if member.User != nil && strconv.FormatInt(member.User.ID, 10) == uid {
			return true, nil
		}
	}
	return false, nil
}

// FetchFile downloads a Telegram file by id, implementing types.FileFetcher.
// The caller closes the returned body.
func (a *Adapter) FetchFile(ctx context.Context, fileID string) (string, io.ReadCloser, error) {
	file, err := a.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", nil, fmt.Errorf("resolve file %s: %w", fileID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(a.bot.Token), nil)
	if err != nil {
		return "", nil, fmt.Errorf("request file %s: %w", fileID, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return "", nil, fmt.Errorf("download file %s: status %d", fileID, resp.StatusCode)
	}
	return path.Base(file.FilePath), resp.Body, nil
}

// DeliveryHandler adapts SendText for the delivery registry. Chat keys look
// like "telegram:<chat id>".
func (a *Adapter) DeliveryHandler() func(chatKey types.ChatKey, message string) error {
	return func(chatKey types.ChatKey, message string) error {
		_, raw, ok := strings.Cut(string(chatKey), ":")
		if !ok {
			return fmt.Errorf("malformed chat key: %s", chatKey)
		}
		_, err := a.SendText(context.Background(), types.ChatID(raw), message, nil)
		return err
	}
}

func (a *Adapter) send(msg tgbotapi.MessageConfig) (tgbotapi.Message, error) {
	msg.ParseMode = "Markdown"
	var sent tgbotapi.Message
	err := a.retry.Execute(func() error {
		var err error
		sent, err = a.bot.Send(msg)
		if err != nil {
			// Retry without markdown if the text fails to parse.
			msg.ParseMode = ""
			sent, err = a.bot.Send(msg)
		}
		return err
	})
	return sent, err
}

func keyboard(buttons [][]types.Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.CallbackData))
		}
		rows = append(rows, btns)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func chatID(id int64) types.ChatID { return types.ChatID(strconv.FormatInt(id, 10)) }
func userID(id int64) types.UserID { return types.UserID(strconv.FormatInt(id, 10)) }
