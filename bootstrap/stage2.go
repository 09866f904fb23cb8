package bootstrap

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/opencontainers/runtime-spec/specs-go"

	"github.com/ternbusty/kontainer-runtime/libcontainer/configs"
)

// runStage2 is the container's init process itself (spec §4.5 "Stage-2
// procedure"). Unlike Stage-0 and Stage-1, it does not exit: once the
// handshake with Stage-0 completes it records the handoff configuration in
// package state and returns, so whatever embedded the bootstrap (via
// import _ ".../bootstrap") continues running as the container's pid 1.
func runStage2() {
	sync := os.NewFile(3, "s0-s2")

	if err := expectToken("stage2", sync, tokenGrandchild); err != nil {
		logStageError("stage2", err)
		os.Exit(1)
	}

	// setsid() detaches Stage-2 from whatever controlling terminal Stage-0
	// inherited. EPERM is tolerated, not fatal: a process that is already a
	// session leader (which Stage-2 sometimes is, depending on how deep the
	// CLONE_NEWPID nesting went) cannot setsid() again. original_source/'s C
	// bootstrap treats any setsid() error as fatal with no errno check at
	// all (bootstrap.c:274-278); tolerating EPERM here is this
	// implementation's own correctness fix, not behavior carried over from
	// it (see SPEC_FULL.md's "DELIBERATE DEPARTURES" section).
	if _, err := unix.Setsid(); err != nil && err != unix.EPERM {
		logStageError("stage2", newErr("stage2", ErrProtocolViolation, err))
		os.Exit(1)
	}

	if err := sendToken("stage2", sync, tokenChildFinish); err != nil {
		logStageError("stage2", err)
		os.Exit(1)
	}
	sync.Close()

	os.Setenv(envIsInit, "1")

	cfg := buildHandoffConfig()
	state.setHandoff(cfg)
	state.setInit(true)
}

// buildHandoffConfig reconstructs the libcontainer/configs.Config the
// managed runtime reads via HandoffConfig, from the same environment
// variables Stage-1 forwarded (spec §5: stages share no memory, only the
// re-exec environment and the sync sockets).
func buildHandoffConfig() *configs.Config {
	cloneFlags, _ := stage1CloneFlags()
	uidMap, _ := configs.ParseIDMapText(string(mustBase64Decode(os.Getenv(envUIDMap))))
	gidMap, _ := configs.ParseIDMapText(string(mustBase64Decode(os.Getenv(envGIDMap))))

	bundlePath := os.Getenv(envBundlePath)
	containerID := os.Getenv(envContainerID)

	return &configs.Config{
		Rootfs:      os.Getenv(envRootfsPath),
		Namespaces:  configs.NamespacesFromCloneFlags(cloneFlags),
		UIDMappings: uidMap,
		GIDMappings: gidMap,
		Labels:      []string{"bundle=" + bundlePath},
		SpecState: &specs.State{
			Version: specs.Version,
			ID:      containerID,
			Pid:     os.Getpid(),
		},
		Version: specs.Version,
	}
}
