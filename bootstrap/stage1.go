package bootstrap

import (
	"encoding/base64"
	"os"
	"strconv"
)

// runStage1 is the namespace-unsharer (spec §4.5 "Stage-1 procedure"). It
// never returns: both its success and failure paths end in os.Exit,
// because Stage-1 only exists to set up namespaces and spawn Stage-2 —
// it is never the process that continues into the managed runtime.
func runStage1() {
	os.Exit(stage1Main())
}

func stage1Main() int {
	toStage0 := os.NewFile(3, "s0-s1")
	toStage2Sock := os.NewFile(4, "s0-s2-forward")

	cloneFlags, err := stage1CloneFlags()
	if err != nil {
		logStageError("stage1", err)
		return 1
	}

	if err := applyNamespaces(realNSBackend{}, cloneFlags, toStage0, os.Getpid()); err != nil {
		logStageError("stage1", err)
		return 1
	}

	stage2Cmd, err := spawnSibling("stage1", spawnOpts{
		stage:       "2",
		extraFiles:  []*os.File{toStage2Sock},
		extraEnv:    stage1Env2(),
		cloneParent: true, // spec §4.3: Stage-2's parent must be Stage-0, not Stage-1
	})
	toStage2Sock.Close()
	if err != nil {
		logStageError("stage1", err)
		return 1
	}

	if err := sendPID("stage1", toStage0, stage2Cmd.Process.Pid); err != nil {
		logStageError("stage1", err)
		return 1
	}

	toStage0.Close()
	return 0
}

// stage1CloneFlags reconstructs the clone-flags value Stage-0 parsed, from
// the environment it was re-exec'd with.
func stage1CloneFlags() (uint32, error) {
	v := os.Getenv(envCloneFlags)
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, newErr("stage1", ErrMissingEnv, err)
	}
	return uint32(n), nil
}

// stage1Env2 forwards the same config subset Stage-1 received onward to
// Stage-2 — container/bundle/rootfs identifiers, untouched by anything
// Stage-1 did.
func stage1Env2() []string {
	return []string{
		envContainerID + "=" + os.Getenv(envContainerID),
		envBundlePath + "=" + os.Getenv(envBundlePath),
		envRootfsPath + "=" + os.Getenv(envRootfsPath),
		envCloneFlags + "=" + os.Getenv(envCloneFlags),
		envUIDMap + "=" + base64.StdEncoding.EncodeToString(mustBase64Decode(os.Getenv(envUIDMap))),
		envGIDMap + "=" + base64.StdEncoding.EncodeToString(mustBase64Decode(os.Getenv(envGIDMap))),
	}
}

func mustBase64Decode(s string) []byte {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
