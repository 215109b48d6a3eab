package router

import (
	"sort"
	"strings"

	kit "biteboard/internal/transport"
)

const (
	maxMenuCommands = 100
	maxCommandLen   = 32
	maxCommandDesc  = 256
)

// sanitizeTelegramCommand maps a route token or alias onto Telegram's
// command alphabet [a-z0-9_]{1,32}. Separators become a single underscore,
// anything else is dropped. "" means no usable name is left.
func sanitizeTelegramCommand(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '/' || r == ' ' || r == '\t':
			pendingSep = true
		}
	}
	out := b.String()
	if out == "" {
		return ""
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "cmd_" + out
	}
	if len(out) > maxCommandLen {
		out = strings.TrimRight(out[:maxCommandLen], "_")
	}
	return out
}

// telegramCommandNameFromRoute joins a route for the Telegram menu:
//
//	["settingsmenu","setprovider"] -> "settingsmenu_setprovider"
//	["menu"]                       -> "menu"
func telegramCommandNameFromRoute(route []string) (string, bool) {
	out := sanitizeTelegramCommand(strings.Join(route, "_"))
	return out, out != ""
}

// buildTelegramMenuCommands lists top-level commands first, then /a_b
// shortcuts for nested routes.
func buildTelegramMenuCommands(root *cmdNode, cmds []Command) []kit.BotCommand {
	type entry struct {
		kit.BotCommand
		prio int
	}
	seen := map[string]bool{}
	var entries []entry
	add := func(name, desc string, adminOnly bool, prio int) {
		name = sanitizeTelegramCommand(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		desc = strings.Join(strings.Fields(desc), " ")
		if desc == "" {
			desc = name
		}
		if adminOnly {
			desc = "🔒 " + desc
		}
		if len(desc) > maxCommandDesc {
			desc = desc[:maxCommandDesc]
		}
		entries = append(entries, entry{kit.BotCommand{Command: name, Description: desc}, prio})
	}

	for _, name := range root.childNames() {
		n, _ := root.child(name)
		add(name, summarizeNodeDesc(n), nodeIsAdminOnly(n), 0)
	}
	for _, c := range cmds {
		route := splitRoute(c.Route)
		if len(route) < 2 {
			continue
		}
		if name, ok := telegramCommandNameFromRoute(route); ok {
			add(name, c.Description, c.Access == AccessAdmin, 1)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].prio != entries[j].prio {
			return entries[i].prio < entries[j].prio
		}
		return entries[i].Command < entries[j].Command
	})
	out := make([]kit.BotCommand, 0, min(len(entries), maxMenuCommands))
	for _, e := range entries {
		if len(out) == maxMenuCommands {
			break
		}
		out = append(out, e.BotCommand)
	}
	return out
}
