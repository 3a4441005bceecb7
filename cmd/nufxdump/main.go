// Command nufxdump lists, and optionally extracts, the contents of a NuFX
// (ShrinkIt) archive.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/fadden/ciderpress-sub006/archive"
	"github.com/fadden/ciderpress-sub006/datax"
	"github.com/fadden/ciderpress-sub006/nufx"
	"github.com/fadden/ciderpress-sub006/record"
	"github.com/fadden/ciderpress-sub006/thread"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	flagSet := flag.NewFlagSet("nufxdump", flag.ContinueOnError)
	flagSet.SetOutput(errOut)

	extract := flagSet.BoolP("extract", "x", false, "extract each record's data fork")
	ignoreCRC := flagSet.Bool("ignore-crc", false, "don't verify record/thread CRCs")
	outDir := flagSet.StringP("output", "o", ".", "directory to extract into")

	if err := flagSet.Parse(args); err != nil {
		return 2
	}
	if flagSet.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: nufxdump [flags] <archive.shk>")
		flagSet.PrintDefaults()
		return 2
	}
	path := flagSet.Arg(0)

	cfg := nufx.DefaultConfig()
	cfg.IgnoreCRC = *ignoreCRC

	a, err := archive.Open(path, archive.ModeReadOnly, "", cfg, nufx.Callbacks{})
	if err != nil {
		fmt.Fprintf(errOut, "nufxdump: %v\n", err)
		return 1
	}
	defer a.Close()

	records, err := a.Records()
	if err != nil {
		fmt.Fprintf(errOut, "nufxdump: %v\n", err)
		return 1
	}

	exitCode := 0
	for _, rec := range records {
		fmt.Fprintf(out, "%-40s %3d threads\n", rec.Name(), len(rec.Threads))
		if !*extract {
			continue
		}
		if err := extractDataFork(a, rec, *outDir); err != nil {
			fmt.Fprintf(errOut, "nufxdump: %s: %v\n", rec.Name(), err)
			exitCode = 1
		}
	}
	return exitCode
}

// extractDataFork writes rec's data-fork thread, if it has a real
// (non-synthesized) one, to outDir/rec.Name().
func extractDataFork(a *archive.Archive, rec *record.Record, outDir string) error {
	for _, t := range rec.Threads {
		if t.ID() != thread.IDDataFork || t.Synthesized {
			continue
		}
		destPath := filepath.Join(outDir, rec.Name())
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return err
		}
		sink := datax.NewFilePathSink(destPath, 0o644)
		if err := a.ExtractThread(rec.Idx, t.Idx, sink); err != nil {
			sink.Close()
			return err
		}
		return sink.Close()
	}
	return nil
}
