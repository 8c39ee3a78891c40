// Command sigscan resolves a signature file against the current process and
// prints the address found for each signature.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"hotpatch/common"
	"hotpatch/internal/sigfile"
	"hotpatch/memory"
	"hotpatch/scan"
)

type config struct {
	SigFile   string
	ChunkSize uint32
	Logger    common.Logger
}

func main() {
	file := flag.String("file", "", "Path to the YAML signature file")
	chunk := flag.Uint("chunk", 0, "Scan chunk size in bytes (0 for default)")
	level := flag.String("log", "warning", "Log level: debug, info, warning, error")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "sigscan: Error: need -file")
		os.Exit(2)
	}
	severity, err := common.ParseSeverity(*level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sigscan: %v\n", err)
		os.Exit(2)
	}

	cfg := config{
		SigFile:   *file,
		ChunkSize: uint32(*chunk),
		Logger:    common.NewStdLoggerWithWriter(os.Stderr, os.Stderr, severity, "sigscan"),
	}
	proc, err := memory.Native()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sigscan: %v\n", err)
		os.Exit(1)
	}
	proc.SetLogger(cfg.Logger)
	if err := run(proc, cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "sigscan: %v\n", err)
		os.Exit(1)
	}
}

func run(space scan.Space, cfg config, w io.Writer) error {
	f, err := sigfile.Load(cfg.SigFile)
	if err != nil {
		return err
	}

	s := scan.New(space, scan.Config{Logger: cfg.Logger, ChunkSize: cfg.ChunkSize})
	if err := s.Discover(); err != nil {
		return err
	}
	mods := s.Modules()
	fmt.Fprintf(w, "modules: %d", len(mods))
	if s.Truncated() {
		fmt.Fprint(w, " (truncated)")
	}
	fmt.Fprintln(w)

	results, err := sigfile.Resolve(s, space, f.Signatures)
	if err != nil {
		return err
	}
	for _, r := range results {
		switch {
		case !r.Found:
			fmt.Fprintf(w, "%-24s not found\n", r.Name)
		case r.Branch != nil:
			fmt.Fprintf(w, "%-24s %s  (%s)\n", r.Name, r.Addr, r.Branch)
		default:
			fmt.Fprintf(w, "%-24s %s\n", r.Name, r.Addr)
		}
	}
	return nil
}
