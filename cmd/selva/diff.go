package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/scott-cotton/cli"
	"github.com/sergi/go-diff/diffmatchpatch"

	selva "github.com/saulx/selva/go-selva"
	"github.com/saulx/selva/go-selva/ir"
	"github.com/saulx/selva/go-selva/libdiff"
	"github.com/saulx/selva/go-selva/wire"
)

func diff(cfg *DiffConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Diff.Parse(cc, args)
	if err != nil {
		cfg.Diff.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 2 {
		return fmt.Errorf("%w: diff requires 2 args, got %v", cli.ErrUsage, args)
	}
	a, err := getObjFile(cfg.MainConfig, cc, args[0])
	if err != nil {
		return fmt.Errorf("error decoding %s: %w", args[0], err)
	}
	b, err := getObjFile(cfg.MainConfig, cc, args[1])
	if err != nil {
		return fmt.Errorf("error decoding %s: %w", args[1], err)
	}
	if cfg.Text {
		differs, err := textDiff(cc.Out, a, b, cfg.colors(cc))
		if err != nil {
			return err
		}
		if differs {
			return cli.ExitCodeErr(1)
		}
		return nil
	}
	p := selva.Diff(a, b)
	if libdiff.Unchanged(a, p) {
		return nil
	}
	d, err := wire.Marshal(p)
	if err != nil {
		return err
	}
	if err := writeLine(cc.Out, d); err != nil {
		return err
	}
	return cli.ExitCodeErr(1)
}

// textDiff writes a line diff of the indented JSON forms of a and b.
func textDiff(w io.Writer, a, b *ir.Value, colors bool) (bool, error) {
	ta, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return false, err
	}
	tb, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return false, err
	}
	ins := color.New(color.FgGreen)
	del := color.New(color.FgRed)
	if colors {
		ins.EnableColor()
		del.EnableColor()
	} else {
		ins.DisableColor()
		del.DisableColor()
	}

	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(string(ta)+"\n", string(tb)+"\n")
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)
	differs := false
	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			line = strings.TrimSuffix(line, "\n")
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				differs = true
				_, err = ins.Fprintf(w, "+%s\n", line)
			case diffmatchpatch.DiffDelete:
				differs = true
				_, err = del.Fprintf(w, "-%s\n", line)
			default:
				_, err = fmt.Fprintf(w, " %s\n", line)
			}
			if err != nil {
				return differs, err
			}
		}
	}
	return differs, nil
}
