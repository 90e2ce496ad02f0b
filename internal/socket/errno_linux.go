//go:build linux

package socket

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"firestige.xyz/fabrictap/internal/core"
)

// mapOpenError translates a platform error from opening or binding a socket
// into the package sentinels, keeping the cause in the message.
func mapOpenError(op, iface string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES),
		strings.Contains(err.Error(), "operation not permitted"):
		return errors.Wrapf(core.ErrPermissionDenied, "%s %s: %v", op, iface, err)
	case errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO),
		strings.Contains(err.Error(), "no such network interface"):
		return errors.Wrapf(core.ErrInterfaceNotFound, "%s %s: %v", op, iface, err)
	default:
		return errors.Wrapf(err, "%s %s", op, iface)
	}
}

// mapReadError translates a read failure. Poll expiry becomes core.ErrTimeout,
// a closed descriptor becomes ErrClosed.
func mapReadError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, unix.EAGAIN),
		errors.Is(err, unix.EWOULDBLOCK), errors.Is(err, unix.EINTR):
		return core.ErrTimeout
	case errors.Is(err, os.ErrClosed), errors.Is(err, unix.EBADF):
		return ErrClosed
	default:
		return errors.WithStack(err)
	}
}

func interfaceIndex(iface string) (int, error) {
	ifi, err := netInterfaceByName(iface)
	if err != nil {
		return 0, errors.Wrapf(core.ErrInterfaceNotFound, "%s: %v", iface, err)
	}
	return ifi.Index, nil
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
