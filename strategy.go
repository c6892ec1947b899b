// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package framebuf

import "fmt"

// Strategy selects how pixel bytes move between compute-visible memory and
// the display buffer object.
type Strategy uint8

const (
	// DeviceLocal keeps the canonical pixels in device memory and stages
	// through a host buffer on export. Works everywhere; typically slower
	// than ZeroCopy on a single device.
	DeviceLocal Strategy = iota

	// GraphicsInterop maps the display buffer object directly into the
	// compute address space; kernel writes land in the display object with
	// no copies. Single-device only; preferred there.
	GraphicsInterop

	// ZeroCopy allocates host-mapped (pinned) memory visible to the
	// device. Export uploads straight from the mapped region. Preferred
	// for multi-GPU setups without full peer connectivity.
	ZeroCopy

	// PeerToPeer keeps pixels on the compute device and transfers them to
	// the display-owning device over a peer link on export. Requires peer
	// connectivity between the devices involved.
	PeerToPeer
)

// strategyNames maps strategies to their canonical names.
var strategyNames = map[Strategy]string{
	DeviceLocal:     "device-local",
	GraphicsInterop: "graphics-interop",
	ZeroCopy:        "zero-copy",
	PeerToPeer:      "peer-to-peer",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", uint8(s))
}

func (s Strategy) valid() bool {
	_, ok := strategyNames[s]
	return ok
}

// ParseStrategy resolves a strategy name as produced by Strategy.String.
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown strategy %q", ErrUnsupportedStrategy, name)
}

// transfer is the per-strategy residency contract. One concrete type exists
// per Strategy variant; the Buffer holds the instance matching its current
// strategy and delegates every storage decision to it.
//
// Implementations mutate only the storage fields of the Buffer they are
// given (computeBuf, hostBuf, mapped) and must leave them untouched on
// failure so a failed operation is retryable.
type transfer interface {
	// strategy returns the variant this transfer implements.
	strategy() Strategy

	// allocate materializes compute-visible storage for the Buffer's
	// current descriptor and refreshes the display object's storage size
	// if one exists.
	allocate(b *Buffer) error

	// release frees whatever allocate materialized. Failures are logged,
	// not returned; release runs on invalidation paths that must not fail.
	release(b *Buffer)

	// syncPoint is the Unmap barrier: after it returns, all prior kernel
	// writes through the mapped pointer are visible to the copy path.
	syncPoint(b *Buffer) error

	// hostBytes returns the host staging buffer with current pixel
	// contents, for strategies that stage through host memory.
	hostBytes(b *Buffer) ([]byte, error)

	// present makes the display object's contents current.
	present(b *Buffer) error
}

// newTransfer returns the concrete transfer for a strategy.
func newTransfer(s Strategy) (transfer, error) {
	switch s {
	case DeviceLocal:
		return deviceLocalTransfer{}, nil
	case GraphicsInterop:
		return interopTransfer{}, nil
	case ZeroCopy:
		return zeroCopyTransfer{}, nil
	case PeerToPeer:
		return peerTransfer{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %d", ErrUnsupportedStrategy, uint8(s))
	}
}
