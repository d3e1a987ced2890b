package transport

import (
	"context"
	"strings"
	"time"
)

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

type Update struct {
	Message *Message
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	ReplyTo        int
}

// Field is one titled block of a Summary.
type Field struct {
	Name  string
	Value string
}

// Summary is a structured, platform-neutral rich message (title, colored
// accent, fields and footer). Adapters render it natively.
type Summary struct {
	Title     string
	Color     int
	Timestamp time.Time
	Fields    []Field
	Footer    string
}

// Payload is one outgoing message: plain text or a summary.
type Payload struct {
	Text    string
	Summary *Summary
}

func (p Payload) Empty() bool {
	return strings.TrimSpace(p.Text) == "" && p.Summary == nil
}

// Notification is a unit of delivery. Its messages are sent in order.
type Notification struct {
	Channel  string // "telegram" now
	Priority int    // 0 low.. 10 high
	Target   ChatTarget
	Messages []Payload
	Options  *SendOptions
}

// Text builds a single-message notification.
func Text(to ChatTarget, priority int, text string) Notification {
	return Notification{Channel: "telegram", Priority: priority, Target: to, Messages: []Payload{{Text: text}}}
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendSummary(ctx context.Context, to ChatTarget, s Summary) (MessageRef, error)
}

// ChatResolver is implemented by adapters that can check whether a chat is
// reachable before anything is sent to it.
type ChatResolver interface {
	ResolveChat(ctx context.Context, chatID int64) error
}

// AdminChecker is implemented by adapters that can look up a user's role in a chat.
type AdminChecker interface {
	IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus (e.g. Telegram /menu list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}

// Mention is the platform-neutral token for a user mention. Adapters replace
// it with their own mention syntax when sending.
func Mention(userID string) string { return "<@" + userID + ">" }
