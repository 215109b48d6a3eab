// Package commands holds the chat commands: /menu, /settingsmenu and /ping.
package commands

import (
	"context"
	"slices"
	"strconv"
	"time"

	"biteboard/internal/delivery"
	"biteboard/internal/i18n"
	"biteboard/internal/menu"
	"biteboard/internal/provider"
	"biteboard/internal/subscription"
	kit "biteboard/internal/transport"
	"biteboard/internal/transport/telegram/router"
	"biteboard/pkg/logx"
)

type Deliverer interface {
	Menu(ctx context.Context, to kit.ChatTarget, m delivery.Menu) error
	NoMenu(ctx context.Context, to kit.ChatTarget, p provider.Provider, date menu.Date) error
}

type Deps struct {
	Providers *provider.Registry
	Subs      *subscription.Service
	Resolver  *subscription.Resolver
	Delivery  Deliverer
	Catalog   *i18n.Catalog
	// Location decides what "today" is for /menu.
	Location     *time.Location
	FetchTimeout time.Duration
	Now          func() time.Time
	Log          logx.Logger
}

type handlers struct {
	Deps
}

// Build returns the command set wired to d.
func Build(d Deps) []router.Command {
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.FetchTimeout <= 0 {
		d.FetchTimeout = 30 * time.Second
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	h := &handlers{Deps: d}
	tr := d.Catalog
	sub := func(key string) string {
		return "settingsmenu " + tr.T("command.settingsmenu.options."+key+".name")
	}

	return []router.Command{
		{
			Route:       "ping",
			Description: tr.T("command.ping.description"),
			Usage:       "/ping",
			Handle:      h.ping,
		},
		{
			Route:       "menu",
			Description: tr.T("command.menu.description"),
			Usage:       tr.T("command.menu.usage"),
			Timeout:     d.FetchTimeout + time.Minute,
			Handle:      h.menu,
		},
		{
			Route:       "settingsmenu",
			Description: tr.T("command.settingsmenu.baseDescription"),
			Usage:       tr.T("command.settingsmenu.usage"),
			Handle:      h.settings,
		},
		{
			Route:       sub("setprovider"),
			Description: tr.T("command.settingsmenu.options.setprovider.description"),
			Usage:       "/" + sub("setprovider") + " <provider>",
			Handle:      h.setProvider,
		},
		{
			Route:       sub("listproviders"),
			Description: tr.T("command.settingsmenu.options.listproviders.description"),
			Usage:       "/" + sub("listproviders"),
			Handle:      h.listProviders,
		},
		{
			Route:       sub("periodicMenu"),
			Description: tr.T("command.settingsmenu.options.periodicMenu.description"),
			Usage:       "/" + sub("periodicMenu") + " <HH:MM:SS> <provider> <minutes>",
			Access:      router.AccessAdmin,
			Denied:      tr.T("command.settingsmenu.response.periodicMenu.noPermission"),
			Handle:      h.periodicMenu,
		},
		{
			Route:       sub("stopPeriodicMenu"),
			Description: tr.T("command.settingsmenu.options.stopPeriodicMenu.description"),
			Usage:       "/" + sub("stopPeriodicMenu"),
			Access:      router.AccessAdmin,
			Denied:      tr.T("command.settingsmenu.response.periodicMenu.noPermission"),
			Handle:      h.stopPeriodicMenu,
		},
	}
}

// Authorizer grants admin commands to configured owners and to users with
// the admin role.
func Authorizer(subs *subscription.Service, owners func() []int64) router.Authorizer {
	return func(_ context.Context, msg *kit.Message) bool {
		if owners != nil && slices.Contains(owners(), msg.FromID) {
			return true
		}
		return subs.HasRole(strconv.FormatInt(msg.FromID, 10), subscription.RoleAdmin)
	}
}

func (h *handlers) ping(ctx context.Context, req *router.Request) error {
	return req.Reply(ctx, h.Catalog.F("command.ping.response", req.UserLabel()))
}
