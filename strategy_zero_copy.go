// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package framebuf

import (
	"fmt"

	"github.com/gogpu/framebuf/driver"
)

// zeroCopyTransfer implements the ZeroCopy strategy: storage is pinned host
// memory mapped into the device address space, so kernel writes and the
// export path touch the same physical bytes. The stream synchronize in Unmap
// is the completion signal that drains device writes to the mapping.
type zeroCopyTransfer struct{}

func (zeroCopyTransfer) strategy() Strategy { return ZeroCopy }

func (zeroCopyTransfer) allocate(b *Buffer) error {
	ma, ok := b.device.(driver.MappedAllocator)
	if !ok {
		return &StrategyError{Strategy: ZeroCopy, Op: "Map", Missing: "driver.MappedAllocator"}
	}
	n := b.ByteSize()
	mem, view, err := ma.AllocMapped(n)
	if err != nil {
		return deviceErr(fmt.Sprintf("alloc %d mapped bytes on device %d", n, b.devIndex), err)
	}
	b.computeBuf = mem
	b.hostBuf = view
	return b.refreshDisplay(view)
}

func (zeroCopyTransfer) release(b *Buffer) {
	if b.computeBuf == nil {
		return
	}
	if err := b.device.Free(b.computeBuf); err != nil {
		Logger().Warn("framebuf: freeing mapped storage failed", "device", b.devIndex, "err", err)
	}
}

func (zeroCopyTransfer) syncPoint(b *Buffer) error {
	if err := b.streamHandle().Synchronize(); err != nil {
		return deviceErr("stream synchronize", err)
	}
	return nil
}

// hostBytes is unsupported: ZeroCopy does not stage through a separate host
// buffer. The mapped region is exported through the display object instead.
func (zeroCopyTransfer) hostBytes(b *Buffer) ([]byte, error) {
	return nil, &StrategyError{Strategy: ZeroCopy, Op: "HostBuffer"}
}

// present uploads straight from the mapped region; there is no device-to-host
// copy because the mapping is the host view.
func (zeroCopyTransfer) present(b *Buffer) error {
	if err := b.ensureStorage(); err != nil {
		return err
	}
	if err := b.disp.Upload(b.displayObj, b.hostBuf); err != nil {
		return deviceErr("upload to display buffer", err)
	}
	return nil
}

var _ transfer = zeroCopyTransfer{}
