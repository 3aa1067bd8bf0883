package main

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/scott-cotton/cli"

	selva "github.com/saulx/selva/go-selva"
	"github.com/saulx/selva/go-selva/ir"
	"github.com/saulx/selva/go-selva/jpatch"
	"github.com/saulx/selva/go-selva/wire"
)

func patch(cfg *PatchConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Patch.Parse(cc, args)
	if err != nil {
		return err
	}
	docPath := "-"
	switch len(args) {
	case 1:
	case 2:
		docPath = args[1]
	default:
		return fmt.Errorf("%w: patch requires a patch file and at most one document, got %v", cli.ErrUsage, args)
	}
	d, err := readFile(cc, args[0])
	if err != nil {
		return err
	}
	p, err := wire.Unmarshal(d)
	if err != nil {
		return fmt.Errorf("error decoding patch %s: %w", args[0], err)
	}
	doc, err := getObjFile(cfg.MainConfig, cc, docPath)
	if err != nil {
		return fmt.Errorf("error decoding %s: %w", docPath, err)
	}
	res, err := selva.Apply(doc, p)
	if err != nil {
		return err
	}
	return writeValue(cfg.MainConfig, cc, res)
}

func jsonPatch(cfg *JSONPatchConfig, cc *cli.Context, args []string) error {
	args, err := cfg.JSONPatch.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("%w: jsonpatch requires 2 args, got %v", cli.ErrUsage, args)
	}
	a, err := getObjFile(cfg.MainConfig, cc, args[0])
	if err != nil {
		return fmt.Errorf("error decoding %s: %w", args[0], err)
	}
	b, err := getObjFile(cfg.MainConfig, cc, args[1])
	if err != nil {
		return fmt.Errorf("error decoding %s: %w", args[1], err)
	}
	d, err := jpatch.Marshal(a, selva.Diff(a, b))
	if err != nil {
		return err
	}
	return writeLine(cc.Out, d)
}

// writeValue writes v in the input format.
func writeValue(cfg *MainConfig, cc *cli.Context, v *ir.Value) error {
	var (
		d   []byte
		err error
	)
	if cfg.Y {
		d, err = yaml.Marshal(v)
		if err == nil {
			_, err = cc.Out.Write(d)
		}
		return err
	}
	d, err = json.Marshal(v)
	if err != nil {
		return err
	}
	return writeLine(cc.Out, d)
}
