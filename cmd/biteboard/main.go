package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jessevdk/go-flags"

	"biteboard/internal/app"
	"biteboard/internal/config"
	"biteboard/internal/menu"
	"biteboard/pkg/logx"
)

type options struct {
	Config     string `short:"c" long:"config" env:"BITEBOARD_CONFIG" default:"./config.yaml" description:"Path to the YAML or JSON config file"`
	Check      bool   `long:"check" description:"Validate the config and exit"`
	Fetch      string `long:"fetch" optional:"yes" optional-value:" " description:"Print one provider's menu as JSON and exit (empty: first provider)"`
	Date       string `long:"date" description:"Date for --fetch, YYYY-MM-DD (default: today)"`
	GrantAdmin string `long:"grant-admin" description:"Give a Telegram user id the admin role and exit"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfgm := config.NewManager(opts.Config, logx.NewConsole("info"))
	cfg, err := cfgm.Load()
	if err != nil {
		return err
	}

	switch {
	case opts.Check:
		fmt.Printf("config %s is valid\n", opts.Config)
		return nil
	case opts.Fetch != "":
		date := menu.DateOf(time.Now())
		if opts.Date != "" {
			if date, err = menu.ParseDate(opts.Date); err != nil {
				return err
			}
		}
		return app.FetchMenu(ctx, cfg, opts.Fetch, date, os.Stdout, logx.NewConsole(cfg.Logging.Level))
	case opts.GrantAdmin != "":
		if err := app.GrantAdmin(ctx, cfg, opts.GrantAdmin, logx.NewConsole(cfg.Logging.Level)); err != nil {
			return err
		}
		fmt.Printf("user %s is now an admin\n", opts.GrantAdmin)
		return nil
	}

	a, err := app.New(ctx, cfgm)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = a.Stop(stopCtx, app.StopFatalError)
		return err
	}

	select {
	case <-ctx.Done():
	case <-a.Done():
	}

	reason := app.StopSignal
	if ctx.Err() == nil {
		reason = app.StopFatalError
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, reason); err != nil {
		return err
	}
	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}
