// Command kontainer-init is the minimal managed-runtime stub that links
// against the bootstrap package. It demonstrates the handoff contract
// (spec §6): by the time main() runs, bootstrap's init() has already
// either exited the process (Stage-0/Stage-1, or a protocol failure) or
// returned control here as a NORMAL process, as the container's Stage-2
// init, or as an INIT-role process resumed with _KONTAINER_IS_INIT already
// set (which reports IsInitProcess but carries no handoff config).
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ternbusty/kontainer-runtime/bootstrap"
)

func main() {
	logrus.SetOutput(os.Stderr)

	if !bootstrap.IsInitProcess() {
		fmt.Fprintln(os.Stderr, "kontainer-init: not running as a container init process; nothing to do")
		return
	}

	cfg := bootstrap.HandoffConfig()
	if cfg == nil {
		logrus.WithField("pid", os.Getpid()).Info("kontainer-init: resumed as container init; no handoff config in this process")
		return
	}
	logrus.WithFields(logrus.Fields{
		"pid":        os.Getpid(),
		"rootfs":     cfg.Rootfs,
		"namespaces": cfg.Namespaces,
	}).Info("kontainer-init: bootstrap complete, continuing as container init")

	// A real managed runtime would now perform the pivot_root, mount
	// setup, capability drop and final execve into the container's
	// entrypoint. This stub only demonstrates that handoff succeeded.
}
