package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"biteboard/internal/config"
	"biteboard/internal/menu"
	"biteboard/internal/storage"
	"biteboard/internal/subscription"
	"biteboard/pkg/logx"
)

// FetchMenu fetches the menu of one provider and writes it to w as JSON.
// An empty name picks the first registered provider.
func FetchMenu(ctx context.Context, cfg *config.Config, name string, date menu.Date, w io.Writer, log logx.Logger) error {
	reg, err := BuildProviders(cfg, log)
	if err != nil {
		return err
	}
	p, ok := reg.First()
	if name = strings.TrimSpace(name); name != "" {
		p, err = reg.Lookup(name)
		ok = err == nil
	}
	if !ok {
		return fmt.Errorf("no provider %q (available: %s)", name, strings.Join(reg.Names(), ", "))
	}

	sc, err := mapScheduler(cfg)
	if err != nil {
		return err
	}
	fctx, cancel := context.WithTimeout(ctx, sc.FetchTimeout)
	defer cancel()
	items, err := p.Fetch(fctx, date)
	if err != nil {
		return err
	}
	if items == nil {
		items = []menu.Item{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Provider string      `json:"provider"`
		Date     menu.Date   `json:"date"`
		Items    []menu.Item `json:"items"`
	}{p.Name(), date, items})
}

// GrantAdmin gives userID the admin role in the configured store.
func GrantAdmin(ctx context.Context, cfg *config.Config, userID string, log logx.Logger) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is empty")
	}
	sc, err := mapStorage(cfg)
	if err != nil {
		return err
	}
	st, err := storage.Open(sc, log)
	if err != nil {
		return err
	}
	defer st.Close()
	subs, err := subscription.Open(ctx, st, log)
	if err != nil {
		return err
	}
	return subs.GrantRole(ctx, userID, subscription.RoleAdmin)
}
