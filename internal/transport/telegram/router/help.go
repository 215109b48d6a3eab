package router

import (
	"html"
	"sort"
	"strings"
)

// helpText renders help in Telegram HTML parse mode.
func (m *CommandManager) helpText(path []string) string {
	m.mu.RLock()
	root := m.root
	alias := m.alias
	m.mu.RUnlock()

	if len(path) == 0 {
		return m.helpTopHTML(root)
	}

	cur := root
	full := make([]string, 0, len(path))
	for _, p := range path {
		p = strings.ToLower(strings.TrimPrefix(p, "/"))
		n, ok := cur.child(p)
		if !ok {
			if leaf, ok := alias[p]; ok && leaf.cmd != nil {
				cur = leaf
				full = splitRoute(leaf.cmd.Route)
				break
			}
			return html.EscapeString(m.t("command.generic.unknownCommand"))
		}
		cur = n
		full = append(full, p)
	}
	return m.helpNodeHTML(cur, full)
}

func (m *CommandManager) helpTopHTML(root *cmdNode) string {
	type row struct {
		name string
		desc string
		lock bool
	}
	rows := make([]row, 0, len(root.children))
	for _, name := range root.childNames() {
		n, _ := root.child(name)
		rows = append(rows, row{name: name, desc: summarizeNodeDesc(n), lock: nodeIsAdminOnly(n)})
	}
	// admin-only at the bottom
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].lock != rows[j].lock {
			return !rows[i].lock
		}
		return rows[i].name < rows[j].name
	})

	lines := []string{
		"<b>" + html.EscapeString(m.t("command.help.title")) + "</b>",
		html.EscapeString(m.t("command.help.hint")),
		"",
	}
	for _, r := range rows {
		line := "• "
		if r.lock {
			line += "🔒 "
		}
		line += "<code>/" + html.EscapeString(r.name) + "</code>"
		if r.desc != "" {
			line += ": " + html.EscapeString(r.desc)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m *CommandManager) helpNodeHTML(cur *cmdNode, full []string) string {
	lines := []string{"<b>/" + html.EscapeString(strings.Join(full, " ")) + "</b>"}

	if c := cur.cmd; c != nil {
		if d := strings.TrimSpace(c.Description); d != "" {
			lines = append(lines, html.EscapeString(d))
		}
		if c.Access == AccessAdmin {
			lines = append(lines, "🔒 <i>"+html.EscapeString(m.t("command.help.adminOnly"))+"</i>")
		}
		if u := strings.TrimSpace(c.Usage); u != "" {
			lines = append(lines, "", "<b>"+html.EscapeString(m.t("command.help.usage"))+"</b>", "<code>"+html.EscapeString(u)+"</code>")
		}
	}

	if len(cur.children) > 0 {
		lines = append(lines, "", "<b>"+html.EscapeString(m.t("command.help.subcommands"))+"</b>")
		for _, name := range cur.childNames() {
			n, _ := cur.child(name)
			line := "• "
			if nodeIsAdminOnly(n) {
				line += "🔒 "
			}
			line += "<code>/" + html.EscapeString(strings.Join(append(append([]string(nil), full...), name), " ")) + "</code>"
			if d := summarizeNodeDesc(n); d != "" {
				line += ": " + html.EscapeString(d)
			}
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func summarizeNodeDesc(n *cmdNode) string {
	if n.cmd != nil {
		if d := strings.TrimSpace(n.cmd.Description); d != "" {
			return d
		}
	}
	kids := n.childNames()
	if len(kids) == 0 {
		return ""
	}
	s := strings.Join(kids[:min(3, len(kids))], ", ")
	if len(kids) > 3 {
		s += ", …"
	}
	return s
}

// nodeIsAdminOnly is true for admin commands and for groups whose commands are all admin-only.
func nodeIsAdminOnly(n *cmdNode) bool {
	if n.cmd != nil {
		return n.cmd.Access == AccessAdmin
	}
	for _, ch := range n.children {
		if !nodeIsAdminOnly(ch) {
			return false
		}
	}
	return len(n.children) > 0
}
