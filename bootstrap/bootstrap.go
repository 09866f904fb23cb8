// Package bootstrap transforms a freshly launched process into the
// multi-stage namespace handshake described by the container init bootstrap
// protocol (spec §1-§5): an orchestrator-facing Stage-0 choreographer, a
// Stage-1 namespace sequencer, and a Stage-2 that becomes the container's
// init process and hands control back to whatever program is linked against
// this package.
//
// A process opts in by importing this package for side effects:
//
//	import _ "github.com/ternbusty/kontainer-runtime/bootstrap"
//
// Role is entirely determined by environment variables the orchestrator
// (or, internally, a prior stage) sets before the process starts — there is
// no API call to trigger bootstrap, mirroring the teacher runc pattern of a
// library constructor that must run before any other package's init() has
// a chance to spin up goroutines or additional OS threads.
package bootstrap

import (
	"os"
	"runtime"
	"strconv"
)

func init() {
	// Every stage of this handshake performs raw unshare(2)/setuid(2)/
	// setgid(2) calls that are only valid while the calling OS thread is
	// the sole thread in its process (spec §4.4). Pinning to one locked
	// OS thread before anything else runs is the Go-native substitute for
	// the teacher's cgo constructor running before the Go runtime starts
	// any scheduler threads at all.
	runtime.GOMAXPROCS(1)
	runtime.LockOSThread()

	r, fd := role()
	dispatch(r, fd)
}

// dispatch acts on a resolved role. Split out from init() so role
// resolution and dispatch can each be exercised directly by tests.
func dispatch(r bootstrapRole, fd int) {
	switch r {
	case roleStage0:
		runStage0(fd)
	case roleStage1:
		runStage1()
	case roleStage2:
		runStage2()
	case roleInit:
		// Spec §4.5's INIT (Stage-2 resume) role: a process that starts
		// fresh already carrying both _KONTAINER_INITPIPE and
		// _KONTAINER_IS_INIT (as opposed to reaching Stage-2 through this
		// package's own spawnSibling continuation chain, which sets
		// is_init_process directly in stage2.go and never takes this path)
		// reports itself as the container's init process without repeating
		// any of the namespace/sync choreography.
		state.setInit(true)
	case roleNormal:
		// Not part of this handshake at all; return control to the
		// importing program immediately.
	}
}

type bootstrapRole int

const (
	roleNormal bootstrapRole = iota
	roleStage0
	roleStage1
	roleStage2
	roleInit
)

// role determines which continuation, if any, the current process should
// resume (spec §6's role-detection rules, spec §4.5's role dispatch table).
// Order of precedence:
//  1. envStage selects this package's own internal Stage-1/Stage-2
//     continuation (set only by spawnSibling on a process it created
//     itself; never present on a freshly launched process).
//  2. _KONTAINER_INITPIPE unset or not a valid integer fd → NORMAL,
//     silently, regardless of _KONTAINER_IS_INIT (spec §8 property 1: no
//     side effects, no stderr noise, since other processes may load the
//     same binary for unrelated purposes).
//  3. _KONTAINER_INITPIPE valid and _KONTAINER_IS_INIT set → INIT
//     (Stage-2 resume): report as the container's init process without
//     repeating the choreography.
//  4. Otherwise → STAGE-0: run the full choreography.
func role() (bootstrapRole, int) {
	switch os.Getenv(envStage) {
	case "1":
		return roleStage1, 0
	case "2":
		return roleStage2, 0
	}

	v, ok := os.LookupEnv(envInitPipe)
	if !ok {
		return roleNormal, 0
	}
	fd, err := strconv.Atoi(v)
	if err != nil {
		return roleNormal, 0
	}

	if _, isInit := os.LookupEnv(envIsInit); isInit {
		return roleInit, 0
	}
	return roleStage0, fd
}
