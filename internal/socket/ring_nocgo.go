//go:build linux && !cgo

package socket

import (
	"github.com/pkg/errors"

	"firestige.xyz/fabrictap/internal/core"
)

// OpenRing needs cgo for the TPACKET_V3 ring.
func OpenRing(iface string, _ Options) (Handle, error) {
	return nil, errors.Wrapf(core.ErrUnsupportedPlatform, "afpacket on %s requires cgo", iface)
}
