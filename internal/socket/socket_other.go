//go:build !linux

package socket

import (
	"github.com/pkg/errors"

	"firestige.xyz/fabrictap/internal/core"
)

// OpenRaw is only available on Linux.
func OpenRaw(iface string, _ Options) (Handle, error) {
	return nil, errors.Wrapf(core.ErrUnsupportedPlatform, "open %s", iface)
}

// OpenRing is only available on Linux.
func OpenRing(iface string, _ Options) (Handle, error) {
	return nil, errors.Wrapf(core.ErrUnsupportedPlatform, "open %s", iface)
}
