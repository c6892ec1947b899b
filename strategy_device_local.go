// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package framebuf

import "fmt"

// deviceLocalTransfer implements the DeviceLocal strategy: canonical pixels
// live in device memory, a same-sized host buffer stages the export path,
// and Unmap synchronizes the compute stream.
type deviceLocalTransfer struct{}

func (deviceLocalTransfer) strategy() Strategy { return DeviceLocal }

func (deviceLocalTransfer) allocate(b *Buffer) error {
	n := b.ByteSize()
	host := make([]byte, n)
	mem, err := b.device.Alloc(n)
	if err != nil {
		return deviceErr(fmt.Sprintf("alloc %d bytes on device %d", n, b.devIndex), err)
	}
	b.computeBuf = mem
	b.hostBuf = host
	return b.refreshDisplay(host)
}

func (deviceLocalTransfer) release(b *Buffer) {
	if b.computeBuf == nil {
		return
	}
	if err := b.device.Free(b.computeBuf); err != nil {
		Logger().Warn("framebuf: freeing device storage failed", "device", b.devIndex, "err", err)
	}
}

func (deviceLocalTransfer) syncPoint(b *Buffer) error {
	if err := b.streamHandle().Synchronize(); err != nil {
		return deviceErr("stream synchronize", err)
	}
	return nil
}

func (deviceLocalTransfer) hostBytes(b *Buffer) ([]byte, error) {
	if err := b.ensureStorage(); err != nil {
		return nil, err
	}
	if err := b.device.CopyToHost(b.hostBuf, b.computeBuf); err != nil {
		return nil, deviceErr("copy device to host", err)
	}
	return b.hostBuf, nil
}

func (t deviceLocalTransfer) present(b *Buffer) error {
	if _, err := t.hostBytes(b); err != nil {
		return err
	}
	if err := b.disp.Upload(b.displayObj, b.hostBuf); err != nil {
		return deviceErr("upload to display buffer", err)
	}
	return nil
}

var _ transfer = deviceLocalTransfer{}
