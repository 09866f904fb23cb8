package bootstrap

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// fdFromEnv converts the decimal-integer value of the named environment
// variable into an *os.File wrapping that inherited descriptor.
func fdFromEnv(stage, name string) (*os.File, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil, newErr(stage, ErrMissingEnv, fmt.Errorf("%s not set", name))
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, newErr(stage, ErrMissingEnv, fmt.Errorf("%s=%q is not an integer fd", name, v))
	}
	return os.NewFile(uintptr(n), name), nil
}

// socketpair creates an AF_UNIX SOCK_STREAM socket pair and wraps both
// ends as *os.File, matching the "stream socketpair" sync channel spec
// §4.2 specifies.
func socketpair(name string) (a, b *os.File, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, newErr("stage0", ErrBadFD, fmt.Errorf("socketpair %s: %w", name, err))
	}
	return os.NewFile(uintptr(fds[0]), name+"-a"), os.NewFile(uintptr(fds[1]), name+"-b"), nil
}
