package adapter

import (
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()

	if got := splitTelegramText("short", 10, ""); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short text = %q", got)
	}

	lines := strings.Repeat("0123456789\n", 10)
	got := splitTelegramText(lines, 25, "")
	for _, c := range got {
		if len([]rune(c)) > 25 {
			t.Fatalf("chunk too long: %q", c)
		}
		if strings.HasSuffix(c, "\n") || strings.HasPrefix(c, "\n") {
			t.Fatalf("chunk keeps newline: %q", c)
		}
	}
	if strings.Join(got, "\n") != strings.TrimRight(lines, "\n") {
		t.Fatalf("chunks lost content: %q", got)
	}

	html := strings.Repeat("a", 18) + "<b>bold</b>"
	parts := splitTelegramText(html, 20, "HTML")
	if len(parts) < 2 || strings.Contains(parts[0], "<") {
		t.Fatalf("split inside tag: %q", parts)
	}
	if strings.Join(parts, "") != html {
		t.Fatalf("html chunks lost content: %q", parts)
	}
}

func TestToMessage(t *testing.T) {
	t.Parallel()
	if toMessage(nil) != nil {
		t.Fatal("nil message converted")
	}
	m := toMessage(&tele.Message{
		ID:       7,
		Text:     "/ping",
		ThreadID: 3,
		Chat:     &tele.Chat{ID: -100, Type: tele.ChatSuperGroup},
		Sender:   &tele.User{ID: 42, Username: "alice", FirstName: "Alice", LastName: "B"},
	})
	if m.ID != 7 || m.ChatID != -100 || m.ThreadID != 3 || m.FromID != 42 || !m.IsGroup {
		t.Fatalf("message = %+v", m)
	}
	if m.FromUsername != "alice" || m.FromName != "Alice B" {
		t.Fatalf("sender = %q / %q", m.FromUsername, m.FromName)
	}
}
