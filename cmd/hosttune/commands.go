package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/nnversace/hosttune"
)

type command struct {
	flags *GlobalFlags
}

// engine builds an Engine from the resolved config. Callers own Close.
func (c command) engine() (*hosttune.Engine, error) {
	path := c.flags.ConfigPath
	if path == "" {
		if _, err := os.Stat("/etc/hosttune/config.toml"); err == nil {
			path = "/etc/hosttune/config.toml"
		}
	}
	cfg, err := hosttune.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return hosttune.New(cfg)
}

// requireRoot enforces the privileged-user precondition for mutating
// runs. Status never needs it.
func requireRoot() error {
	if os.Geteuid() != 0 {
		return errors.New("apply and revert must run as root")
	}
	return nil
}

func (c command) Apply(ctx context.Context, f RunFlags) error {
	if err := requireRoot(); err != nil {
		return err
	}
	return c.runMode(ctx, hosttune.ModeApply, f.Modules)
}

func (c command) Revert(ctx context.Context, f RunFlags) error {
	if err := requireRoot(); err != nil {
		return err
	}
	return c.runMode(ctx, hosttune.ModeRevert, f.Modules)
}

func (c command) runMode(ctx context.Context, mode hosttune.Mode, modules []string) error {
	eng, err := c.engine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	rec, outcomes, err := eng.Run(ctx, mode, modules)
	if err != nil {
		return err
	}
	if c.flags.JSON {
		printJSON(rec)
	} else {
		printSummary(os.Stdout, string(mode), outcomes, rec)
	}
	if len(rec.Failed) > 0 {
		return fmt.Errorf("%d module(s) failed", len(rec.Failed))
	}
	return nil
}

func (c command) Status(ctx context.Context, f RunFlags) error {
	eng, err := c.engine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	statuses, err := eng.Statuses(ctx, f.Modules)
	if err != nil {
		return err
	}
	if c.flags.JSON {
		printJSON(statuses)
		return nil
	}
	printStatuses(os.Stdout, eng.ModuleNames(), statuses)
	return nil
}

func (c command) List(ctx context.Context) error {
	eng, err := c.engine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	mods := eng.Modules()
	if c.flags.JSON {
		printJSON(mods)
		return nil
	}
	for _, m := range mods {
		fmt.Printf("%-15s %s\n", m.Name, m.Description)
		for _, f := range m.Files {
			fmt.Printf("%-15s   file: %s\n", "", f)
		}
		for _, s := range m.Services {
			fmt.Printf("%-15s   service: %s\n", "", s)
		}
	}
	return nil
}

func (c command) History(ctx context.Context, f HistoryFlags) error {
	eng, err := c.engine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	entries, err := eng.History(ctx, f.Limit)
	if err != nil {
		return err
	}
	if entries == nil {
		fmt.Println("run history is disabled (no history.path configured)")
		return nil
	}
	if c.flags.JSON {
		printJSON(entries)
		return nil
	}
	for _, e := range entries {
		flag := ""
		if e.Interrupted {
			flag = " (interrupted)"
		}
		fmt.Printf("%s  %-6s ok=%d failed=%d%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Mode,
			len(e.Succeeded), len(e.Failed), flag)
	}
	return nil
}

func (c command) Serve(ctx context.Context) error {
	eng, err := c.engine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	srv := eng.Serve()
	eng.Logger().Info("http api listening", "addr", srv.Addr)
	<-ctx.Done()
	return srv.Close()
}
