package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/benmcclelland/ltfscore/internal/backend"
	"github.com/benmcclelland/ltfscore/internal/config"
	"github.com/benmcclelland/ltfscore/internal/crc"
	"github.com/benmcclelland/ltfscore/internal/crypto"
	"github.com/benmcclelland/ltfscore/internal/device"
	"github.com/benmcclelland/ltfscore/internal/volume"
)

// mountOptions is the parsed form of the -o devname=D,scsi_lbprotect=
// on|off,strict_drive,noautodump,keyfile=path,keyalias=hex option
// string.
type mountOptions struct {
	devname     string
	lbpPolicy   config.LBPPolicy
	strictDrive bool
	noAutoDump  bool
	keyfile     string
	keyalias    string
}

func parseMountOptions(s string) mountOptions {
	opts := mountOptions{lbpPolicy: config.LBPNegotiate}

	for _, part := range strings.Split(s, ",") {
		key, val, hasVal := strings.Cut(part, "=")

		switch key {
		case "devname":
			if hasVal {
				opts.devname = val
			}
		case "scsi_lbprotect":
			switch val {
			case "on":
				opts.lbpPolicy = config.LBPForceOn
			case "off":
				opts.lbpPolicy = config.LBPForceOff
			}
		case "strict_drive":
			opts.strictDrive = true
		case "noautodump":
			opts.noAutoDump = true
		case "keyfile":
			if hasVal {
				opts.keyfile = val
			}
		case "keyalias":
			if hasVal {
				opts.keyalias = val
			}
		}
	}

	return opts
}

// setKeyFromFile parses opts.keyfile (the source's DK=/DKi= flat-file
// format, §4.7/§9) and issues SetKey for the resolved pair. Run calls it
// right after the volume is mounted (LoadTape clears any stale key), so
// the drive is already in block-encryption mode by the time the first
// write happens. A no-op when opts.keyfile is empty.
func setKeyFromFile(ctx context.Context, b backend.Backend, log *zap.Logger, opts mountOptions) error {
	if opts.keyfile == "" {
		return nil
	}

	f, err := os.Open(opts.keyfile)
	if err != nil {
		return fmt.Errorf("opening keyfile: %w", err)
	}
	defer f.Close()

	pairs, err := crypto.ParseKeyfile(f)
	if err != nil {
		return fmt.Errorf("parsing keyfile: %w", err)
	}

	var wantAlias *backend.KeyAlias

	if opts.keyalias != "" {
		raw, err := hex.DecodeString(opts.keyalias)
		if err != nil {
			return fmt.Errorf("decoding keyalias: %w", err)
		}

		if len(raw) != len(backend.KeyAlias{}) {
			return fmt.Errorf("keyalias: expected %d bytes, got %d", len(backend.KeyAlias{}), len(raw))
		}

		alias := backend.KeyAlias(raw)
		wantAlias = &alias
	}

	alias, key, err := crypto.ResolveKey(pairs, wantAlias)
	if err != nil {
		return fmt.Errorf("resolving key from keyfile: %w", err)
	}

	lifecycle := crypto.NewLifecycle(b, log, func() {
		log.Warn("forcing cartridge read-only: data key set on non-empty cartridge")
	})

	return lifecycle.SetKey(ctx, alias, key)
}

// Run parses flags, mounts the cartridge, waits for a shutdown signal,
// then unmounts. Returns a process exit code: 0 success, 1 general
// failure, 2 usage error.
func Run(_ io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	fs := flag.NewFlagSet("ltfs", flag.ContinueOnError)
	fs.SetOutput(&strings.Builder{})

	optString := fs.StringP("options", "o", "", "comma-separated mount options")
	dryRun := fs.Bool("dry-run", false, "mount an in-memory cartridge instead of a real device")
	statePath := fs.String("state", "", "dry-run cartridge snapshot file (requires --dry-run)")
	configPath := fs.String("config", "", "HuJSON config file")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return 2
	}

	positional := fs.Args()
	if len(positional) == 0 {
		fmt.Fprintln(errOut, "error: mountpoint argument is required")

		return 2
	}

	mountpoint := positional[0]
	opts := parseMountOptions(*optString)

	if opts.devname == "" && !*dryRun {
		fmt.Fprintln(errOut, "error: devname mount option is required")

		return 2
	}

	envList := make([]string, 0, len(env))
	for k, v := range env {
		envList = append(envList, k+"="+v)
	}

	cliOverrides := config.Config{
		Device:      opts.devname,
		LBP:         opts.lbpPolicy,
		StrictDrive: opts.strictDrive,
		NoAutoDump:  opts.noAutoDump,
	}

	cfg, err := config.Load(".", *configPath, cliOverrides, envList)
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

	log := zap.NewNop()

	dev := device.New(b, crc.New(crc.AlgorithmCRC32C), log)
	vol := volume.New(dev)

	if err := vol.Mount(ctx); err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return 1
	}

	if err := setKeyFromFile(ctx, b, log, opts); err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return 1
	}

	fmt.Fprintf(out, "mounted %s at %s (lbp=%v strict=%v noautodump=%v)\n",
		cfg.Device, mountpoint, opts.lbpPolicy, opts.strictDrive, opts.noAutoDump)

	if sigCh != nil {
		<-sigCh
	}

	if err := vol.Umount(ctx); err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return 1
	}

	if state != nil {
		if err := state.Save(b.(*backend.FileBackend)); err != nil {
			fmt.Fprintln(errOut, "error:", err)

			return 1
		}
	}

	fmt.Fprintln(out, "unmounted", mountpoint)

	return 0
}

func openBackend(dryRun bool, cfg config.Config) backend.Backend {
	if dryRun || !backend.HaveRealBackend {
		return backend.NewFileBackend(100000, 1000)
	}

	_ = cfg

	return backend.OpenReal(backend.BlockMaxSize)
}
