package bootstrap

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeNSBackend records every call it receives, in order, so tests can
// assert on the Namespace Sequencer's call ordering without CAP_SYS_ADMIN
// or a real kernel.
type fakeNSBackend struct {
	calls        []string
	dumpable     int
	setuidCalled bool
	setgidCalled bool
}

func (f *fakeNSBackend) Unshare(flags int) error {
	f.calls = append(f.calls, nsFlagName(flags))
	return nil
}

func (f *fakeNSBackend) GetDumpable() (int, error) {
	f.calls = append(f.calls, "get-dumpable")
	return f.dumpable, nil
}

func (f *fakeNSBackend) SetDumpable(v int) error {
	f.calls = append(f.calls, "set-dumpable")
	f.dumpable = v
	return nil
}

func (f *fakeNSBackend) Setuid(uid int) error {
	f.calls = append(f.calls, "setuid")
	f.setuidCalled = true
	return nil
}

func (f *fakeNSBackend) Setgid(gid int) error {
	f.calls = append(f.calls, "setgid")
	f.setgidCalled = true
	return nil
}

func (f *fakeNSBackend) BringLoopbackUp() error {
	f.calls = append(f.calls, "loopback-up")
	return nil
}

func nsFlagName(flag int) string {
	switch flag {
	case unix.CLONE_NEWUSER:
		return "user"
	case unix.CLONE_NEWNS:
		return "mnt"
	case unix.CLONE_NEWNET:
		return "net"
	case unix.CLONE_NEWUTS:
		return "uts"
	case unix.CLONE_NEWIPC:
		return "ipc"
	case unix.CLONE_NEWPID:
		return "pid"
	default:
		return "unknown"
	}
}

// driveUsermapHandshake plays the external-orchestrator side of the
// USERMAP_PLS/USERMAP_ACK exchange applyNamespaces blocks on, so the test
// can run the sequencer against a real sync socket without a real
// orchestrator process.
func driveUsermapHandshake(t *testing.T, peer *os.File) {
	t.Helper()
	go func() {
		_, err := recvTokenPID("test", peer, tokenUsermapPls)
		if err != nil {
			return
		}
		_ = sendToken("test", peer, tokenUsermapAck)
	}()
}

func TestApplyNamespacesOrdersUserFirstPidLast(t *testing.T) {
	sync, peer := socketpairForTest(t)
	driveUsermapHandshake(t, peer)

	backend := &fakeNSBackend{dumpable: 0}
	flags := uint32(unix.CLONE_NEWUSER | unix.CLONE_NEWNET | unix.CLONE_NEWUTS | unix.CLONE_NEWPID)

	err := applyNamespaces(backend, flags, sync, 1234)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(backend.calls), 1)
	assert.Equal(t, "user", backend.calls[0], "USER namespace must be unshared first")
	assert.Equal(t, "pid", backend.calls[len(backend.calls)-1], "PID namespace must be unshared last")

	assert.True(t, backend.setuidCalled)
	assert.True(t, backend.setgidCalled)
}

func TestApplyNamespacesRestoresPriorDumpable(t *testing.T) {
	sync, peer := socketpairForTest(t)
	driveUsermapHandshake(t, peer)

	backend := &fakeNSBackend{dumpable: 0}
	err := applyNamespaces(backend, uint32(unix.CLONE_NEWUSER), sync, 1)
	require.NoError(t, err)

	assert.Equal(t, 0, backend.dumpable, "dumpable must be restored to its prior value, not left at 1")
}

func TestApplyNamespacesSkipsUnrequestedNamespaces(t *testing.T) {
	backend := &fakeNSBackend{}
	sync, _ := socketpairForTest(t)

	err := applyNamespaces(backend, uint32(unix.CLONE_NEWNET), sync, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"net", "loopback-up"}, backend.calls)
}

func TestApplyNamespacesFailsMapInstallWhenAckMismatched(t *testing.T) {
	sync, peer := socketpairForTest(t)
	go func() {
		_, _ = recvTokenPID("test", peer, tokenUsermapPls)
		_ = sendToken("test", peer, tokenChildFinish) // wrong token
	}()

	backend := &fakeNSBackend{}
	err := applyNamespaces(backend, uint32(unix.CLONE_NEWUSER), sync, 1)
	require.Error(t, err)
	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrMapInstallFailure, be.Kind)
}
