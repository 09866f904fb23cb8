package bootstrap

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// runStage0 is the top-level choreographer (spec §4.5). It never returns:
// every path ends in os.Exit, because a process that reached Stage-0 must
// never fall through into the managed runtime's own entry point (only
// Stage-2 does that).
func runStage0(initpipeFD int) {
	os.Exit(stage0Main(initpipeFD))
}

func stage0Main(initpipeFD int) (exitCode int) {
	initpipe := os.NewFile(uintptr(initpipeFD), envInitPipe)
	cfg, err := ParseConfig(initpipe)
	initpipe.Close()
	if err != nil {
		logStageError("stage0", err)
		return 1
	}

	ext, err := fdFromEnv("stage0", envSyncPipe)
	if err != nil {
		logStageError("stage0", err)
		return 1
	}
	defer ext.Close()

	s1Parent, s1Child, err := socketpair("s0-s1")
	if err != nil {
		logStageError("stage0", err)
		return 1
	}
	s2Parent, s2Child, err := socketpair("s0-s2")
	if err != nil {
		logStageError("stage0", err)
		return 1
	}

	stage1Cmd, err := spawnSibling("stage0", spawnOpts{
		stage:      "1",
		extraFiles: []*os.File{s1Child, s2Child},
		extraEnv:   stage1Env(cfg),
	})
	s1Child.Close()
	s2Child.Close()
	if err != nil {
		logStageError("stage0", err)
		return 1
	}

	var stage2PID int
	cleanupFatal := func(err error) int {
		logStageError("stage0", err)
		if stage2PID != 0 {
			_ = unix.Kill(stage2PID, unix.SIGKILL)
		}
		return 1
	}

	if cfg.UserNSEnabled {
		if err := relayUsermap(s1Parent, ext); err != nil {
			return cleanupFatal(err)
		}
	}

	stage2PID, err = recvPID("stage0", s1Parent)
	if err != nil {
		return cleanupFatal(newErr("stage0", ErrProtocolViolation, fmt.Errorf("reading stage-2 pid from stage-1: %w", err)))
	}
	state.setInitPID(stage2PID)
	if err := sendPID("stage0", ext, stage2PID); err != nil {
		return cleanupFatal(err)
	}

	if err := sendToken("stage0", s2Parent, tokenGrandchild); err != nil {
		return cleanupFatal(err)
	}
	if err := expectToken("stage0", s2Parent, tokenChildFinish); err != nil {
		return cleanupFatal(err)
	}

	s1Parent.Close()
	s2Parent.Close()
	_, _ = stage1Cmd.Process.Wait()
	return 0
}

// relayUsermap implements spec §4.2's USERMAP_PLS/USERMAP_ACK relay between
// Stage-1 and the external orchestrator.
func relayUsermap(s1Parent, ext *os.File) error {
	stage1PID, err := recvTokenPID("stage0", s1Parent, tokenUsermapPls)
	if err != nil {
		return err
	}
	if err := sendTokenPID("stage0", ext, tokenUsermapPls, stage1PID); err != nil {
		return err
	}
	if err := expectToken("stage0", ext, tokenUsermapAck); err != nil {
		return newErr("stage0", ErrMapInstallFailure, err)
	}
	if err := sendToken("stage0", s1Parent, tokenUsermapAck); err != nil {
		return err
	}
	return nil
}

// stage1Env carries the subset of Config Stage-1 needs across the re-exec
// boundary (there is no shared memory between stages; each re-exec'd
// continuation reconstructs its own copy, per spec §5).
func stage1Env(cfg *Config) []string {
	return []string{
		envCloneFlags + "=" + strconv.FormatUint(uint64(cfg.CloneFlags), 10),
		envContainerID + "=" + cfg.ContainerID,
		envBundlePath + "=" + cfg.BundlePath,
		envRootfsPath + "=" + cfg.RootfsPath,
		envUIDMap + "=" + base64.StdEncoding.EncodeToString(cfg.UIDMap),
		envGIDMap + "=" + base64.StdEncoding.EncodeToString(cfg.GIDMap),
	}
}

func logStageError(stage string, err error) {
	logrus.Errorf("%s: %v", stage, err)
}
