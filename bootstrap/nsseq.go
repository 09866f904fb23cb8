package bootstrap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// nsBackend is the syscall surface the Namespace Sequencer needs. It exists
// so nsseq_test.go can replace it with a fake that records the call order
// without requiring CAP_SYS_ADMIN or a real kernel (spec §8's ordering
// invariants are exactly about call sequence, which a fake can assert on
// directly).
type nsBackend interface {
	Unshare(flags int) error
	GetDumpable() (int, error)
	SetDumpable(v int) error
	Setuid(uid int) error
	Setgid(gid int) error
	BringLoopbackUp() error
}

type realNSBackend struct{}

func (realNSBackend) Unshare(flags int) error { return unix.Unshare(flags) }

func (realNSBackend) BringLoopbackUp() error { return bringLoopbackUp() }

func (realNSBackend) GetDumpable() (int, error) {
	v, err := unix.PrctlRetInt(unix.PR_GET_DUMPABLE, 0, 0, 0, 0)
	return v, err
}

func (realNSBackend) SetDumpable(v int) error {
	return unix.Prctl(unix.PR_SET_DUMPABLE, uintptr(v), 0, 0, 0)
}

func (realNSBackend) Setuid(uid int) error { return unix.Setuid(uid) }
func (realNSBackend) Setgid(gid int) error { return unix.Setgid(gid) }

// nonUserOrder is the fixed order spec §4.4 requires for every namespace
// other than USER (first) and PID (last): MOUNT, NET, UTS, IPC, in any
// order among themselves — this is simply the order this implementation
// picks among them.
var nonUserOrder = []struct {
	flag int
	name string
}{
	{unix.CLONE_NEWNS, "mnt"},
	{unix.CLONE_NEWNET, "net"},
	{unix.CLONE_NEWUTS, "uts"},
	{unix.CLONE_NEWIPC, "ipc"},
}

// applyNamespaces runs the Namespace Sequencer: USER first (interleaved
// with the uid/gid map handshake over sync), then the unordered-among-
// themselves group, then PID last (spec §4.4). sync is the Stage-1↔Stage-0
// sync socket; reportPID is Stage-1's own pid, sent upward as part of the
// USERMAP_PLS request so the external orchestrator knows whose uid_map to
// write.
func applyNamespaces(backend nsBackend, cloneFlags uint32, sync *os.File, reportPID int) error {
	if cloneFlags&uint32(unix.CLONE_NEWUSER) != 0 {
		if err := backend.Unshare(unix.CLONE_NEWUSER); err != nil {
			return newErr("stage1", ErrCloneFailure, fmt.Errorf("unshare user: %w", err))
		}

		prevDumpable, err := backend.GetDumpable()
		if err != nil {
			return newErr("stage1", ErrPrivilegeFailure, fmt.Errorf("get dumpable: %w", err))
		}
		if err := backend.SetDumpable(1); err != nil {
			return newErr("stage1", ErrPrivilegeFailure, fmt.Errorf("set dumpable=1: %w", err))
		}

		if err := sendTokenPID("stage1", sync, tokenUsermapPls, reportPID); err != nil {
			return err
		}
		if err := expectToken("stage1", sync, tokenUsermapAck); err != nil {
			return newErr("stage1", ErrMapInstallFailure, err)
		}

		if err := backend.SetDumpable(prevDumpable); err != nil {
			return newErr("stage1", ErrPrivilegeFailure, fmt.Errorf("restore dumpable=%d: %w", prevDumpable, err))
		}
		if err := backend.Setuid(0); err != nil {
			return newErr("stage1", ErrPrivilegeFailure, fmt.Errorf("setuid(0): %w", err))
		}
		if err := backend.Setgid(0); err != nil {
			return newErr("stage1", ErrPrivilegeFailure, fmt.Errorf("setgid(0): %w", err))
		}
	}

	for _, ns := range nonUserOrder {
		if cloneFlags&uint32(ns.flag) == 0 {
			continue
		}
		if err := backend.Unshare(ns.flag); err != nil {
			return newErr("stage1", ErrCloneFailure, fmt.Errorf("unshare %s: %w", ns.name, err))
		}
		if ns.flag == unix.CLONE_NEWNET {
			if err := backend.BringLoopbackUp(); err != nil {
				return newErr("stage1", ErrCloneFailure, fmt.Errorf("loopback up: %w", err))
			}
		}
	}

	if cloneFlags&uint32(unix.CLONE_NEWPID) != 0 {
		if err := backend.Unshare(unix.CLONE_NEWPID); err != nil {
			return newErr("stage1", ErrCloneFailure, fmt.Errorf("unshare pid: %w", err))
		}
	}

	return nil
}
