package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/scott-cotton/cli"

	selva "github.com/saulx/selva/go-selva"
	"github.com/saulx/selva/go-selva/ir"
	"github.com/saulx/selva/go-selva/system/subd/api"
	"github.com/saulx/selva/go-selva/system/subd/client"
	"github.com/saulx/selva/go-selva/wire"
)

func watch(cfg *WatchConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Watch.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: watch requires a query", cli.ErrUsage)
	}
	query := strings.Join(args, " ")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(ctx, cfg.Addr, &client.Options{Log: theLog})
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.SubscribeRequest(ctx, &api.SubscribeRequest{Sub: cfg.Sub, Query: query, Prefix: cfg.Prefix}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	head := color.New(color.FgCyan)
	if cfg.colors(cc) {
		head.EnableColor()
	} else {
		head.DisableColor()
	}
	var last *ir.Value
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-c.Errors():
			return err
		case u, ok := <-c.Updates():
			if !ok {
				return fmt.Errorf("connection to %s closed", cfg.Addr)
			}
			head.Fprintf(cc.Out, "# seq %d commit %d\n", u.Seq, u.Commit)
			if err := printUpdate(cfg, cc, last, u.Value); err != nil {
				return err
			}
			last = u.Value
		}
	}
}

func printUpdate(cfg *WatchConfig, cc *cli.Context, last, next *ir.Value) error {
	if !cfg.Patch || last == nil {
		return writeValue(cfg.MainConfig, cc, next)
	}
	d, err := wire.Marshal(selva.Diff(last, next))
	if err != nil {
		return err
	}
	return writeLine(cc.Out, d)
}
