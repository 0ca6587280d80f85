// Command ltfs mounts an LTFS cartridge at a mountpoint. The actual
// FUSE dispatch loop is an external collaborator (see internal/volume's
// doc comment); this binary owns mount-option parsing, device setup,
// and the mount/unmount lifecycle around it.
package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
)

func main() {
	environ := os.Environ()
	env := make(map[string]string, len(environ))

	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	os.Exit(Run(os.Stdin, os.Stdout, os.Stderr, os.Args, env, sigCh))
}
