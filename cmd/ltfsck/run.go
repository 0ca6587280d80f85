package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/benmcclelland/ltfscore/internal/backend"
	"github.com/benmcclelland/ltfscore/internal/config"
	"github.com/benmcclelland/ltfscore/internal/crc"
	"github.com/benmcclelland/ltfscore/internal/device"
	"github.com/benmcclelland/ltfscore/internal/diag"
	"github.com/benmcclelland/ltfscore/internal/label"
)

// Run parses flags, verifies a cartridge's coherency records, and
// optionally recovers a usable append position. Returns a process exit
// code: 0 consistent, 1 corruption found (or recovery failed), 2 usage
// error.
func Run(_ io.Reader, out, errOut io.Writer, args []string, env map[string]string, _ <-chan os.Signal) int {
	fs := flag.NewFlagSet("ltfsck", flag.ContinueOnError)
	fs.SetOutput(&strings.Builder{})

	devicePath := fs.String("device", "", "tape device node to check")
	recoverFlag := fs.Bool("recover", false, "attempt EOD recovery if coherency records disagree")
	deep := fs.Bool("deep", false, "also verify index content, not just coherency metadata")
	dryRun := fs.Bool("dry-run", false, "check an in-memory cartridge instead of a real device")
	statePath := fs.String("state", "", "dry-run cartridge snapshot file (requires --dry-run)")
	configPath := fs.String("config", "", "HuJSON config file")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return 2
	}

	if *devicePath == "" && !*dryRun {
		fmt.Fprintln(errOut, "error: --device is required")

		return 2
	}

	envList := make([]string, 0, len(env))
	for k, v := range env {
		envList = append(envList, k+"="+v)
	}

	cfg, err := config.Load(".", *configPath, config.Config{Device: *devicePath}, envList)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return 1
	}

	b := openBackend(*dryRun, cfg)
	if b == nil {
		fmt.Fprintln(errOut, "error: no real tape backend available on this platform; use --dry-run")

		return 1
	}

	var state *backend.DryRunState

	if *dryRun && *statePath != "" {
		var err error

		state, err = backend.OpenDryRunState(*statePath)
		if err != nil {
			fmt.Fprintln(errOut, "error:", err)

			return 1
		}
		defer state.Close()
	}

	ctx := context.Background()

	if err := b.Open(ctx, cfg.Device); err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return 1
	}
	defer b.Close()

	if state != nil {
		if err := state.Load(b.(*backend.FileBackend)); err != nil {
			fmt.Fprintln(errOut, "error:", err)

			return 1
		}
	}

	dev := device.New(b, crc.New(crc.AlgorithmCRC32C), zap.NewNop())

	if err := dev.LoadTape(ctx); err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return 1
	}

	dpBuf, errDP := b.ReadAttribute(ctx, 1, label.CoherencyAttributeID)
	ipBuf, errIP := b.ReadAttribute(ctx, 0, label.CoherencyAttributeID)

	if errDP != nil || errIP != nil {
		fmt.Fprintln(out, "coherency records missing or unreadable; cartridge is not a valid LTFS volume")

		return 1
	}

	dpCoh, err := label.Decode(dpBuf)
	if err != nil {
		fmt.Fprintln(out, "data partition coherency record:", err)

		if !*recoverFlag {
			return 1
		}
	}

	ipCoh, err := label.Decode(ipBuf)
	if err != nil {
		fmt.Fprintln(out, "index partition coherency record:", err)

		if !*recoverFlag {
			return 1
		}
	}

	if _, err := label.Authoritative(dpCoh, ipCoh); err != nil {
		fmt.Fprintln(out, "partitions disagree:", err)

		if !*recoverFlag {
			return 1
		}

		fmt.Fprintln(out, "attempting EOD recovery on both partitions...")

		if cfg.DumpDir != "" {
			reportDumpManifest(out, cfg.DumpDir)
		}

		for part := 0; part < 2; part++ {
			if err := dev.RecoverEODStatus(ctx, part); err != nil {
				fmt.Fprintln(errOut, "error: recovery failed on partition", part, ":", err)

				return 1
			}
		}

		if state != nil {
			if err := state.Save(b.(*backend.FileBackend)); err != nil {
				fmt.Fprintln(errOut, "error:", err)

				return 1
			}
		}

		fmt.Fprintln(out, "recovery complete")

		return 0
	}

	if *deep {
		fmt.Fprintln(out, "deep check: index content verification is delegated to the index-serializer collaborator")
	}

	fmt.Fprintln(out, "cartridge is consistent")

	return 0
}

// reportDumpManifest prints the prior diagnostic dumps recorded in dir's
// YAML manifest, if any, so an operator investigating a recovery has
// pointers to existing trace-ring evidence before it attempts EOD recovery.
func reportDumpManifest(out io.Writer, dir string) {
	manifest, err := diag.LoadManifest(dir)
	if err != nil {
		fmt.Fprintln(out, "reading dump manifest:", err)

		return
	}

	if len(manifest.Entries) == 0 {
		return
	}

	fmt.Fprintf(out, "found %d prior diagnostic dump(s) in %s:\n", len(manifest.Entries), dir)

	for _, e := range manifest.Entries {
		fmt.Fprintf(out, "  %s (%s, recorded %s)\n", e.File, e.Reason, e.Recorded)
	}
}

func openBackend(dryRun bool, cfg config.Config) backend.Backend {
	if dryRun || !backend.HaveRealBackend {
		return backend.NewFileBackend(100000, 1000)
	}

	_ = cfg

	return backend.OpenReal(backend.BlockMaxSize)
}
