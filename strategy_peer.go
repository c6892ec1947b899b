// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package framebuf

import (
	"fmt"

	"github.com/gogpu/framebuf/display"
	"github.com/gogpu/framebuf/driver"
)

// peerTransfer implements the PeerToPeer strategy: canonical pixels live on
// the compute device and reach the display object through a direct
// device-to-device copy over a peer link, with no host staging. The copy
// targets a mapping of the display object on the display-owning device
// (Buffer.DisplayDeviceIndex). A missing peer link is a device error, never
// a silent fallback to staging.
type peerTransfer struct{}

func (peerTransfer) strategy() Strategy { return PeerToPeer }

func (peerTransfer) allocate(b *Buffer) error {
	n := b.ByteSize()
	mem, err := b.device.Alloc(n)
	if err != nil {
		return deviceErr(fmt.Sprintf("alloc %d bytes on device %d", n, b.devIndex), err)
	}
	b.computeBuf = mem
	return b.refreshDisplay(nil)
}

func (peerTransfer) release(b *Buffer) {
	if b.computeBuf == nil {
		return
	}
	if err := b.device.Free(b.computeBuf); err != nil {
		Logger().Warn("framebuf: freeing device storage failed", "device", b.devIndex, "err", err)
	}
}

func (peerTransfer) syncPoint(b *Buffer) error {
	if err := b.streamHandle().Synchronize(); err != nil {
		return deviceErr("stream synchronize", err)
	}
	return nil
}

func (peerTransfer) hostBytes(b *Buffer) ([]byte, error) {
	return nil, &StrategyError{Strategy: PeerToPeer, Op: "HostBuffer"}
}

func (peerTransfer) present(b *Buffer) error {
	if err := b.ensureStorage(); err != nil {
		return err
	}
	mapper, ok := b.disp.(display.ComputeMapper)
	if !ok {
		return &StrategyError{Strategy: PeerToPeer, Op: "DisplayBuffer", Missing: "display.ComputeMapper"}
	}
	pc, ok := b.device.(driver.PeerCopier)
	if !ok {
		return &StrategyError{Strategy: PeerToPeer, Op: "DisplayBuffer", Missing: "driver.PeerCopier"}
	}
	dispDev, err := b.provider.AcquireDevice(b.dispDevIndex)
	if err != nil {
		return deviceErr("acquire display device", err)
	}
	if b.device.Index() != dispDev.Index() && !pc.CanAccessPeer(dispDev) {
		return fmt.Errorf("%w: no peer link between device %d and display device %d",
			ErrDevice, b.devIndex, b.dispDevIndex)
	}
	dst, err := mapper.MapForCompute(b.displayObj, dispDev)
	if err != nil {
		return deviceErr("map display buffer on display device", err)
	}
	if err := pc.CopyPeer(dst, dispDev, b.computeBuf); err != nil {
		if uerr := mapper.UnmapFromCompute(b.displayObj); uerr != nil {
			Logger().Warn("framebuf: unmap after failed peer copy", "err", uerr)
		}
		return deviceErr("peer copy to display device", err)
	}
	if err := mapper.UnmapFromCompute(b.displayObj); err != nil {
		return deviceErr("unmap display buffer", err)
	}
	return nil
}

var _ transfer = peerTransfer{}
