package commands

import (
	"context"
	"errors"
	"strings"
	"time"

	"biteboard/internal/delivery"
	"biteboard/internal/menu"
	"biteboard/internal/provider"
	"biteboard/internal/transport/telegram/router"
	"biteboard/pkg/logx"
)

// dayOption is one /menu argument. Weekday options resolve to the next such
// day, today included.
type dayOption struct {
	key     string
	offset  int
	weekday time.Weekday
	isDay   bool
}

var dayOptions = []dayOption{
	{key: "today", offset: 0},
	{key: "tomorrow", offset: 1},
	{key: "overmorrow", offset: 2},
	{key: "monday", weekday: time.Monday, isDay: true},
	{key: "tuesday", weekday: time.Tuesday, isDay: true},
	{key: "wednesday", weekday: time.Wednesday, isDay: true},
	{key: "thursday", weekday: time.Thursday, isDay: true},
	{key: "friday", weekday: time.Friday, isDay: true},
}

func (o dayOption) date(today menu.Date) menu.Date {
	if !o.isDay {
		return today.AddDays(o.offset)
	}
	return today.AddDays((int(o.weekday) + 7 - int(today.Weekday())) % 7)
}

// lookupDay matches arg against the translated option names and the English keys.
func (h *handlers) lookupDay(arg string) (dayOption, bool) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return dayOptions[0], true
	}
	for _, o := range dayOptions {
		if strings.EqualFold(arg, o.key) || strings.EqualFold(arg, h.Catalog.T("command.menu.options."+o.key+".name")) {
			return o, true
		}
	}
	return dayOption{}, false
}

func (h *handlers) dayNames() string {
	names := make([]string, len(dayOptions))
	for i, o := range dayOptions {
		names[i] = h.Catalog.T("command.menu.options." + o.key + ".name")
	}
	return strings.Join(names, ", ")
}

func (h *handlers) menu(ctx context.Context, req *router.Request) error {
	tr := h.Catalog
	arg := ""
	if len(req.Args) > 0 {
		arg = req.Args[0]
	}
	opt, ok := h.lookupDay(arg)
	if !ok {
		return req.Reply(ctx, tr.F("command.menu.response.unknownDay", arg, h.dayNames()))
	}

	p, ok := h.Resolver.Resolve(ctx, req.UserKey())
	if !ok {
		return req.Reply(ctx, tr.T("command.menu.response.noMenuProvider"))
	}

	today := menu.DateOf(h.Now().In(h.Location))
	date := opt.date(today)
	req.Logger.Info("menu requested", logx.String("provider", p.Name()), logx.String("option", opt.key), logx.String("date", date.String()))

	fctx, cancel := context.WithTimeout(ctx, h.FetchTimeout)
	items, err := p.Fetch(fctx, date)
	cancel()
	if err != nil {
		req.Logger.Warn("menu fetch failed", logx.String("provider", p.Name()), logx.Err(err))
		var fe *provider.FetchError
		if (errors.As(err, &fe) && fe.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
			return req.Reply(ctx, tr.F("command.menu.response.fetchTimeout", p.Name()))
		}
		return req.Reply(ctx, tr.F("command.menu.response.fetchFailed", p.Name()))
	}

	if len(items) == 0 {
		return h.Delivery.NoMenu(ctx, req.Chat, p, date)
	}
	return h.Delivery.Menu(ctx, req.Chat, delivery.Menu{
		Title:    tr.T("command.menu.options." + opt.key + ".description"),
		Provider: p,
		Date:     date,
		Items:    items,
	})
}
