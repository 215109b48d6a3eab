package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	FromName     string
	Text         string
	IsGroup      bool
}

// Target is where replies to m go.
func (m *Message) Target() ChatTarget {
	return ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID}
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// String renders the target as "chatID" or "chatID:threadID", the format
// channel subscriptions are keyed by.
func (t ChatTarget) String() string {
	if t.ThreadID == 0 {
		return strconv.FormatInt(t.ChatID, 10)
	}
	return strconv.FormatInt(t.ChatID, 10) + ":" + strconv.Itoa(t.ThreadID)
}

// ParseChatTarget is the inverse of ChatTarget.String.
func ParseChatTarget(s string) (ChatTarget, error) {
	chat, thread, hasThread := strings.Cut(strings.TrimSpace(s), ":")
	id, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return ChatTarget{}, fmt.Errorf("chat target %q: %w", s, err)
	}
	t := ChatTarget{ChatID: id}
	if hasThread {
		if t.ThreadID, err = strconv.Atoi(thread); err != nil {
			return ChatTarget{}, fmt.Errorf("chat target %q: %w", s, err)
		}
	}
	return t, nil
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Photo is either a remote URL or raw image bytes.
type Photo struct {
	URL     string
	Data    []byte
	Caption string
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, to ChatTarget, p Photo, opt *SendOptions) (MessageRef, error)
	Delete(ctx context.Context, ref MessageRef) error
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
