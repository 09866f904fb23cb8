package bootstrap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// A sync message is a bare token (1 byte) or a token followed by a pid_t
// payload (1 + 4 bytes), carried on an AF_UNIX SOCK_STREAM socket (spec
// §3/§4.2). Every read/write here is fixed-size: the helpers below loop
// until the whole buffer has been transferred, continuing after a partial
// transfer or an EINTR; a transfer that stops early (EOF, a zero-length
// write, or any other error) is fatal and is not retried.

// writeFull writes all of buf to f, looping on partial writes and EINTR.
func writeFull(stage string, f *os.File, buf []byte) error {
	written := 0
	for written < len(buf) {
		n, err := f.Write(buf[written:])
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return newErr(stage, ErrBadFD, err)
		}
		if n == 0 {
			return newErr(stage, ErrProtocolViolation, fmt.Errorf("short write: wrote 0 of %d bytes", len(buf)))
		}
		written += n
	}
	return nil
}

// readFull reads exactly len(buf) bytes from f, looping on partial reads and
// EINTR.
func readFull(stage string, f *os.File, buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := f.Read(buf[read:])
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return newErr(stage, ErrProtocolViolation, fmt.Errorf("short read: got %d of %d bytes: %w", read, len(buf), err))
		}
		if n == 0 {
			return newErr(stage, ErrProtocolViolation, fmt.Errorf("short read: got %d of %d bytes (EOF)", read, len(buf)))
		}
		read += n
	}
	return nil
}

// sendToken writes a bare token.
func sendToken(stage string, f *os.File, t token) error {
	return writeFull(stage, f, []byte{byte(t)})
}

// sendTokenPID writes a token immediately followed by a pid_t payload, as
// a single message.
func sendTokenPID(stage string, f *os.File, t token, pid int) error {
	buf := make([]byte, 5)
	buf[0] = byte(t)
	binary.LittleEndian.PutUint32(buf[1:], uint32(pid))
	return writeFull(stage, f, buf)
}

// recvToken reads a bare token.
func recvToken(stage string, f *os.File) (token, error) {
	var buf [1]byte
	if err := readFull(stage, f, buf[:]); err != nil {
		return 0, err
	}
	return token(buf[0]), nil
}

// expectToken reads a bare token and fails unless it matches want.
func expectToken(stage string, f *os.File, want token) error {
	got, err := recvToken(stage, f)
	if err != nil {
		return err
	}
	if got != want {
		return newErr(stage, ErrProtocolViolation, fmt.Errorf("expected token %s, got %s", want, got))
	}
	return nil
}

// sendPID writes a bare pid_t payload, with no token (used for the
// S1→S0→ext Stage-2-pid report, which carries no token per spec §4.2's
// normative sequence).
func sendPID(stage string, f *os.File, pid int) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(pid))
	return writeFull(stage, f, buf)
}

// recvPID reads a 4-byte pid_t payload not preceded by a token (used when
// the token itself was already consumed positionally).
func recvPID(stage string, f *os.File) (int, error) {
	var buf [4]byte
	if err := readFull(stage, f, buf[:]); err != nil {
		return 0, err
	}
	return int(int32(binary.LittleEndian.Uint32(buf[:]))), nil
}

// recvTokenPID reads a token immediately followed by a pid_t payload, as a
// single logical message, and fails unless the token matches want.
func recvTokenPID(stage string, f *os.File, want token) (int, error) {
	if err := expectToken(stage, f, want); err != nil {
		return 0, err
	}
	return recvPID(stage, f)
}
