package commands

import (
	"context"
	"strconv"
	"strings"

	"biteboard/internal/delivery"
	"biteboard/internal/storage"
	"biteboard/internal/subscription"
	"biteboard/internal/transport/telegram/router"
	"biteboard/pkg/logx"
	"biteboard/pkg/tgui"
)

func (h *handlers) settings(ctx context.Context, req *router.Request) error {
	if len(req.RawArgs) == 0 {
		return req.Reply(ctx, h.Catalog.T("command.settingsmenu.usage"))
	}
	return req.Reply(ctx, h.Catalog.T("command.settingsmenu.response.unknownSubcommand.description"))
}

func (h *handlers) setProvider(ctx context.Context, req *router.Request) error {
	tr := h.Catalog
	name := strings.TrimSpace(strings.Join(req.Args, " "))
	p, ok := h.Providers.Get(name)
	if !ok {
		return req.Reply(ctx, tr.F("command.settingsmenu.response.setprovider.providerNotAvailable", name))
	}
	if err := h.Subs.SetUserPreferredProvider(ctx, req.UserKey(), p.Name()); err != nil {
		return err
	}
	req.Logger.Info("preferred provider set", logx.String("provider", p.Name()))
	return req.Reply(ctx, tr.F("command.settingsmenu.response.setprovider.success", p.Name()))
}

func (h *handlers) listProviders(ctx context.Context, req *router.Request) error {
	tr := h.Catalog
	list := h.Providers.List()
	if len(list) == 0 {
		return req.Reply(ctx, tr.T("command.settingsmenu.response.listproviders.noProviders"))
	}
	var b strings.Builder
	b.WriteString(tgui.Esc(tr.T("command.settingsmenu.response.listproviders.success")).String())
	for _, p := range list {
		b.WriteString("\n- ")
		b.WriteString(delivery.ProviderLabel(p))
	}
	return req.ReplyHTML(ctx, b.String())
}

// periodicMenu takes <time> <provider...> <minutes>; the provider name may
// contain spaces.
func (h *handlers) periodicMenu(ctx context.Context, req *router.Request) error {
	tr := h.Catalog
	args := req.Args
	if len(args) < 3 {
		return req.Reply(ctx, tr.T("command.settingsmenu.usage"))
	}
	at := args[0]
	name := strings.Join(args[1:len(args)-1], " ")
	rawAdd := args[len(args)-1]

	if err := subscription.ValidateTime(at); err != nil {
		return req.Reply(ctx, tr.F("command.settingsmenu.response.periodicMenu.invalidTime", at))
	}
	p, ok := h.Providers.Get(name)
	if !ok {
		return req.Reply(ctx, tr.F("command.settingsmenu.response.periodicMenu.providerNotAvailable", name))
	}
	add, err := strconv.Atoi(rawAdd)
	if err != nil {
		return req.Reply(ctx, tr.F("command.settingsmenu.response.periodicMenu.invalidAddTime", rawAdd))
	}

	channel := req.Chat.String()
	sub := storage.ChannelSubscription{Time: at, Provider: p.Name(), AddTime: add}
	if err := h.Subs.SetChannel(ctx, channel, sub); err != nil {
		return err
	}
	req.Logger.Info("daily menu scheduled",
		logx.String("channel", channel),
		logx.String("time", at),
		logx.String("provider", p.Name()),
		logx.Int("add_minutes", add),
	)
	return req.ReplyHTML(ctx, tr.F("command.settingsmenu.response.periodicMenu.success",
		tgui.Esc(at), delivery.ProviderLabel(p), add))
}

func (h *handlers) stopPeriodicMenu(ctx context.Context, req *router.Request) error {
	removed, err := h.Subs.RemoveChannel(ctx, req.Chat.String())
	if err != nil {
		return err
	}
	if !removed {
		return req.Reply(ctx, h.Catalog.T("command.settingsmenu.response.periodicMenu.notScheduled"))
	}
	req.Logger.Info("daily menu stopped", logx.String("channel", req.Chat.String()))
	return req.Reply(ctx, h.Catalog.T("command.settingsmenu.response.periodicMenu.stopped"))
}
