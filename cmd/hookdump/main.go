// Command hookdump compiles a patch template, binds it in a sandbox address
// space and prints its layout and disassembly.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"hotpatch/common"
	"hotpatch/internal/disasm"
	"hotpatch/memory/memtest"
	"hotpatch/patch"
)

type config struct {
	Source string
	Base   common.Address
	Values map[string]uint32
	Logger common.Logger
}

func main() {
	file := flag.String("template", "", "Path to a template file")
	expr := flag.String("e", "", "Template text (instead of -template)")
	base := flag.String("base", "0x10000000", "Load address of the patch")
	bind := flag.String("bind", "", "Comma separated name=value placeholder bindings")
	level := flag.String("log", "warning", "Log level: debug, info, warning, error")
	flag.Parse()

	severity, err := common.ParseSeverity(*level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hookdump: %v\n", err)
		os.Exit(2)
	}
	cfg := config{Logger: common.NewStdLogger(severity)}

	switch {
	case *expr != "":
		cfg.Source = *expr
	case *file != "":
		data, err := os.ReadFile(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hookdump: %v\n", err)
			os.Exit(1)
		}
		cfg.Source = string(data)
	default:
		fmt.Fprintln(os.Stderr, "hookdump: Error: need -template or -e")
		os.Exit(2)
	}

	b, err := parseUint32(*base)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hookdump: bad -base: %v\n", err)
		os.Exit(2)
	}
	cfg.Base = common.Address(b)
	if cfg.Values, err = parseBindings(*bind); err != nil {
		fmt.Fprintf(os.Stderr, "hookdump: bad -bind: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "hookdump: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config, w io.Writer) error {
	layout, err := patch.CompileTemplate(cfg.Source)
	if err != nil {
		return err
	}

	space := memtest.NewAt(cfg.Base)
	p, err := patch.NewFromSpace(layout, space, patch.Options{Logger: cfg.Logger})
	if err != nil {
		return err
	}
	defer p.Close()

	fmt.Fprintf(w, "length: %d bytes at %s\n", layout.Len(), p.Entry())
	fmt.Fprintln(w, "placeholders:")
	for _, d := range layout.Placeholders() {
		kind := "abs"
		if d.Relative {
			kind = "rel"
		}
		fmt.Fprintf(w, "  %-16s +%-4d %s\n", d.Name, d.Offset, kind)
	}

	if len(cfg.Values) > 0 {
		if _, err := p.BindNamed(cfg.Values); err != nil {
			return err
		}
	}
	fmt.Fprintln(w, "code:")
	fmt.Fprint(w, disasm.Format(disasm.Listing(p.Bytes(), p.Entry())))
	return nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	return uint32(v), err
}

func parseBindings(s string) (map[string]uint32, error) {
	values := map[string]uint32{}
	if s == "" {
		return values, nil
	}
	for _, kv := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("%q is not name=value", kv)
		}
		v, err := parseUint32(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		values[strings.TrimSpace(name)] = v
	}
	return values, nil
}
