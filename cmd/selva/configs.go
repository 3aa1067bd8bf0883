package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"
)

type MainConfig struct {
	Y     bool `cli:"name=y aliases=yaml desc='read documents as yaml'"`
	Color bool `cli:"name=color desc='output with color'"`

	Out      string
	CloseOut func() error

	Main *cli.Command
}

// colors reports whether output to cc.Out is colored: either -color was
// given or the output is a terminal.
func (cfg *MainConfig) colors(cc *cli.Context) bool {
	if cfg.Color {
		return true
	}
	for _, opt := range cfg.Main.Opts {
		if opt.Name == "color" && opt.Value != nil {
			return false
		}
	}
	f, ok := cc.Out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}

type DiffConfig struct {
	*MainConfig
	Text bool `cli:"name=text desc='print a line diff of the documents instead of a patch'"`

	Diff *cli.Command
}

type PatchConfig struct {
	*MainConfig
	Patch *cli.Command
}

type JSONPatchConfig struct {
	*MainConfig
	JSONPatch *cli.Command
}

type ServeConfig struct {
	*MainConfig
	Serve *cli.Command

	ConfigFile  string `cli:"name=config desc='configuration file (yaml)'"`
	Addr        string `cli:"name=addr desc='TCP listen address, overrides the config'"`
	MetricsAddr string `cli:"name=metrics desc='metrics listen address, overrides the config'"`
	Seed        string `cli:"name=seed desc='object file of node id to value stored before serving'"`
}

type WatchConfig struct {
	*MainConfig
	Watch *cli.Command

	Addr   string `cli:"name=addr desc='server address' default=127.0.0.1:7810"`
	Sub    string `cli:"name=id desc='subscription id' default=watch"`
	Prefix string `cli:"name=prefix desc='only re-evaluate on commits to node ids with this prefix'"`
	Patch  bool   `cli:"name=patch desc='print the change of each update rather than the state'"`
}
