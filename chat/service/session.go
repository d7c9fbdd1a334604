package service

import (
	"context"
	"strings"
	"sync"

	"qna-chatbot/backend/ai"
	"qna-chatbot/backend/chat/models"
	apperrors "qna-chatbot/backend/pkg/errors"
	"qna-chatbot/backend/pkg/logger"
)

// User-facing text for synthetic bot messages appended when the completion
// call fails. The pool-exhausted case is retryable and says so.
const (
	botBusyText  = "I'm experiencing unusually high demand right now. Please try again in a few minutes."
	botErrorText = "Sorry, something went wrong while generating a response. Please try sending your message again."
)

// Event is pushed to connected clients when the session controller changes
// state they render: a message landed or a chat title changed.
type Event struct {
	Type    string                 `json:"type"`
	ChatID  string                 `json:"chatId"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Event types
const (
	EventMessageAppended = "message.appended"
	EventTitleUpdated    = "chat.titleUpdated"
)

// Notifier delivers events to a user's connected clients. Implemented by
// chat/ws; a nil notifier disables push.
type Notifier interface {
	Notify(userID string, event Event)
}

// SendResult is what one send turn produced: the (possibly new) chat, both
// message turns, and the refreshed chat list so the caller can surface a
// title update without a second round trip.
type SendResult struct {
	ChatID       string         `json:"chatId"`
	ChatCreated  bool           `json:"chatCreated"`
	TitleUpdated bool           `json:"titleUpdated"`
	UserMessage  models.Message `json:"userMessage"`
	BotMessage   models.Message `json:"botMessage"`
	BotFailed    bool           `json:"botFailed,omitempty"`
	Chats        []models.Chat  `json:"chats"`
}

// SessionController orchestrates one conversation turn: create the chat if
// absent, persist the user message, invoke the completion service, persist
// the bot message, refresh the chat list. Sends for the same chat are
// serialized by an in-flight guard so store writes never interleave and
// server-assigned timestamps keep send-then-receive order.
type SessionController struct {
	chats     *ChatService
	completer ai.Completer
	notifier  Notifier
	log       *logger.Logger

	defaultBackend string
	defaultEngine  string

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewSessionController(chats *ChatService, completer ai.Completer, notifier Notifier, defaultBackend, defaultEngine string, log *logger.Logger) *SessionController {
	return &SessionController{
		chats:          chats,
		completer:      completer,
		notifier:       notifier,
		log:            log,
		defaultBackend: defaultBackend,
		defaultEngine:  defaultEngine,
		inflight:       make(map[string]struct{}),
	}
}

// Send runs one conversation turn for an authenticated user. An empty
// chatID means "start a new chat". A completion failure does not fail the
// turn: a synthetic bot message describing the failure is persisted instead,
// and the user can simply retry.
func (c *SessionController) Send(ctx context.Context, userID, chatID, text, backend, engine string) (*SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("message text is required")
	}
	if backend == "" {
		backend = c.defaultBackend
	}
	if engine == "" {
		engine = c.defaultEngine
	}

	result := &SendResult{ChatID: chatID}
	if chatID == "" {
		chat, err := c.chats.CreateChat(ctx, userID)
		if err != nil {
			return nil, err
		}
		chatID = chat.ID
		result.ChatID = chat.ID
		result.ChatCreated = true
	}

	if !c.acquire(chatID) {
		return nil, apperrors.NewSendInProgressError(chatID)
	}
	defer c.release(chatID)

	// Prior history, fetched before this turn's messages land
	history, err := c.chats.ListMessages(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	titleUpdated, err := c.chats.AppendMessage(ctx, userID, chatID, text, models.SenderUser)
	if err != nil {
		// The user message is not durable; surface the failure rather than
		// pretending it was sent.
		return nil, err
	}
	result.TitleUpdated = titleUpdated
	result.UserMessage = models.Message{ChatID: chatID, Sender: models.SenderUser, Text: text}
	c.notify(userID, Event{Type: EventMessageAppended, ChatID: chatID, Payload: map[string]interface{}{"sender": models.SenderUser}})

	botText, botFailed := c.generate(ctx, chatID, text, backend, engine, history)

	if _, err := c.chats.AppendMessage(ctx, userID, chatID, botText, models.SenderBot); err != nil {
		return nil, err
	}
	result.BotMessage = models.Message{ChatID: chatID, Sender: models.SenderBot, Text: botText}
	result.BotFailed = botFailed
	c.notify(userID, Event{Type: EventMessageAppended, ChatID: chatID, Payload: map[string]interface{}{"sender": models.SenderBot}})

	if titleUpdated {
		c.notify(userID, Event{Type: EventTitleUpdated, ChatID: chatID})
	}

	// Refresh so the caller sees the title update and ordering in one shot
	chats, err := c.chats.ListChats(ctx, userID)
	if err != nil {
		c.log.LogError(err, "chat list refresh failed", "user_id", userID)
	} else {
		result.Chats = chats
	}

	return result, nil
}

// GuestSend runs a conversation turn without persistence: guests get an
// ephemeral session id and only the completion call is made.
func (c *SessionController) GuestSend(ctx context.Context, sessionID, text, backend, engine string) (string, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", apperrors.NewValidationError("message text is required")
	}
	if backend == "" {
		backend = c.defaultBackend
	}
	if engine == "" {
		engine = c.defaultEngine
	}
	if sessionID == "" {
		sessionID = "guest-" + newChatID()[:6]
	}

	answer, err := c.completer.Complete(ctx, ai.CompletionRequest{
		SessionID: sessionID,
		Question:  text,
		Backend:   backend,
		Engine:    engine,
	})
	if err != nil {
		return sessionID, "", err
	}
	return sessionID, answer, nil
}

// generate calls the completion service and converts a failure into the
// user-facing synthetic bot text. The bool reports whether this is an error
// turn rather than a real answer.
func (c *SessionController) generate(ctx context.Context, chatID, question, backend, engine string, history []DecodedMessage) (string, bool) {
	turns := make([]ai.Turn, 0, len(history))
	for _, msg := range history {
		if msg.DecryptFailed {
			continue
		}
		turns = append(turns, ai.Turn{Sender: msg.Sender, Text: msg.Text})
	}

	answer, err := c.completer.Complete(ctx, ai.CompletionRequest{
		SessionID: chatID,
		Question:  question,
		Backend:   backend,
		Engine:    engine,
		History:   turns,
	})
	if err == nil {
		return answer, false
	}

	c.log.LogError(err, "completion failed", "chat_id", chatID, "backend", backend, "engine", engine)
	if appErr, ok := err.(*apperrors.AppError); ok && appErr.Code == apperrors.CodeCredentialPoolExhausted {
		return botBusyText, true
	}
	return botErrorText, true
}

func (c *SessionController) acquire(chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[chatID]; busy {
		return false
	}
	c.inflight[chatID] = struct{}{}
	return true
}

func (c *SessionController) release(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, chatID)
}

func (c *SessionController) notify(userID string, event Event) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(userID, event)
}
