package bootstrap

// Environment variables the orchestrator is contractually required to set
// (spec §6). These three, and only these three, are part of the external
// interface; everything else below is this package's own internal
// continuation-selection protocol for the re-exec based sibling cloner
// (spec §9's "Design Notes" translate the C setjmp/longjmp trampoline into
// `spawn_sibling(func)`; in Go that means re-executing the same binary and
// telling the new process image which continuation to resume via argv0's
// environment, since there is no address space to jump back into).
const (
	envInitPipe = "_KONTAINER_INITPIPE"
	envSyncPipe = "_KONTAINER_SYNCPIPE"
	envIsInit   = "_KONTAINER_IS_INIT"
)

// Internal-only: not part of the documented external interface, never
// inspected by the orchestrator.
const (
	envStage       = "_KONTAINER_STAGE"       // "1" or "2": which continuation to resume
	envCloneFlags  = "_KONTAINER_CLONEFLAGS"  // decimal uint32
	envContainerID = "_KONTAINER_CID"
	envBundlePath  = "_KONTAINER_BUNDLE"
	envRootfsPath  = "_KONTAINER_ROOTFS"
	envUIDMap      = "_KONTAINER_UIDMAP" // base64, may be empty
	envGIDMap      = "_KONTAINER_GIDMAP" // base64, may be empty
)
