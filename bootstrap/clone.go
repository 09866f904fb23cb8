package bootstrap

import (
	"os"
	"os/exec"
	"syscall"
)

// spawnOpts configures one sibling-clone re-exec (spec §4.3). This package
// re-executes the current binary image instead of calling clone(2)
// directly with a custom stack and a setjmp/longjmp trampoline (see
// SPEC_FULL.md, "Go-native re-architecture of the C constructor"): each
// continuation resumes via init(), fully re-running role dispatch with
// envStage set to the continuation tag, which is the Go-idiomatic
// equivalent of "resume at a specified continuation, with its own stack".
type spawnOpts struct {
	stage       string // envStage value the child should resume at
	extraFiles  []*os.File
	extraEnv    []string
	cloneParent bool // CLONE_PARENT: child's parent becomes this process's parent
}

// spawnSibling starts a re-exec'd continuation per opts and returns the
// exec.Cmd for the new process (already started; cmd.Process.Pid is the
// child's pid as this process's kernel observes it).
func spawnSibling(stage string, opts spawnOpts) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, newErr(stage, ErrCloneFailure, err)
	}

	env := filteredEnv()
	env = append(env, envStage+"="+opts.stage)
	env = append(env, opts.extraEnv...)

	cmd := &exec.Cmd{
		Path:       exe,
		Args:       []string{exe},
		Env:        env,
		ExtraFiles: opts.extraFiles,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
	if opts.cloneParent {
		cmd.SysProcAttr = &syscall.SysProcAttr{Cloneflags: syscall.CLONE_PARENT}
	}
	if err := cmd.Start(); err != nil {
		return nil, newErr(stage, ErrCloneFailure, err)
	}
	return cmd, nil
}

// filteredEnv returns the current environment with every bootstrap-private
// variable stripped, so a re-exec'd continuation starts from a clean slate
// and only sees the variables this package explicitly re-adds.
func filteredEnv() []string {
	keep := make([]string, 0, len(os.Environ()))
	for _, kv := range os.Environ() {
		if isBootstrapEnvKey(kv) {
			continue
		}
		keep = append(keep, kv)
	}
	return keep
}

func isBootstrapEnvKey(kv string) bool {
	for _, prefix := range []string{
		envInitPipe, envSyncPipe, envIsInit, envStage,
		envCloneFlags, envContainerID, envBundlePath, envRootfsPath,
		envUIDMap, envGIDMap,
	} {
		if len(kv) > len(prefix) && kv[:len(prefix)] == prefix && kv[len(prefix)] == '=' {
			return true
		}
	}
	return false
}
