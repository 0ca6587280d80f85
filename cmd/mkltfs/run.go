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
	"github.com/benmcclelland/ltfscore/internal/label"
)

// Run parses flags, formats the target cartridge, and returns a process
// exit code: 0 success, 1 general failure, 2 usage error.
func Run(_ io.Reader, out, errOut io.Writer, args []string, env map[string]string, _ <-chan os.Signal) int {
	fs := flag.NewFlagSet("mkltfs", flag.ContinueOnError)
	fs.SetOutput(&strings.Builder{})

	devicePath := fs.String("device", "", "tape device node to format")
	barcode := fs.String("barcode", "", "volume barcode (up to 6 characters)")
	indexPartition := fs.String("index-partition", "a", "index partition: a or b")
	compression := fs.Bool("compression", false, "enable hardware compression")
	dryRun := fs.Bool("dry-run", false, "format an in-memory cartridge instead of a real device")
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

	indexPart := 0

	switch strings.ToLower(*indexPartition) {
	case "a":
		indexPart = 0
	case "b":
		indexPart = 1
	default:
		fmt.Fprintln(errOut, "error: --index-partition must be a or b")

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

	log := zap.NewNop()

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

	if *compression {
		if err := b.SetCompression(ctx, true); err != nil {
			fmt.Fprintln(errOut, "error:", err)

			return 1
		}
	}

	dev := device.New(b, crc.New(crc.AlgorithmCRC32C), log)

	if err := dev.LoadTape(ctx); err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return 1
	}

	if err := dev.Format(ctx, indexPart, "LTFS", *barcode); err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return 1
	}

	vol := label.MakeAnsiLabel(*barcode)

	for part := 0; part < 2; part++ {
		if err := dev.SeekAppend(ctx, part, false); err != nil {
			fmt.Fprintln(errOut, "error:", err)

			return 1
		}

		if _, err := dev.Write(ctx, part, vol[:], false, false); err != nil {
			fmt.Fprintln(errOut, "error:", err)

			return 1
		}

		if err := dev.WriteFilemark(ctx, part, 1, false, false, false); err != nil {
			fmt.Fprintln(errOut, "error:", err)

			return 1
		}
	}

	if state != nil {
		if err := state.Save(b.(*backend.FileBackend)); err != nil {
			fmt.Fprintln(errOut, "error:", err)

			return 1
		}
	}

	fmt.Fprintf(out, "formatted %s: barcode=%s index-partition=%s\n", cfg.Device, *barcode, *indexPartition)

	return 0
}

func openBackend(dryRun bool, cfg config.Config) backend.Backend {
	if dryRun || !backend.HaveRealBackend {
		return backend.NewFileBackend(100000, 1000)
	}

	_ = cfg

	return backend.OpenReal(backend.BlockMaxSize)
}
