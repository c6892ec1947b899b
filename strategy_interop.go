// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package framebuf

import "github.com/gogpu/framebuf/display"

// interopTransfer implements the GraphicsInterop strategy: the display
// buffer object's storage is mapped into the compute address space, kernel
// writes land in it directly, and Unmap releases the mapping. No copy path
// exists because compute-visible and display-visible storage are the same
// bytes.
type interopTransfer struct{}

func (interopTransfer) strategy() Strategy { return GraphicsInterop }

func (interopTransfer) allocate(b *Buffer) error {
	mapper, ok := b.disp.(display.ComputeMapper)
	if !ok {
		return &StrategyError{Strategy: GraphicsInterop, Op: "Map", Missing: "display.ComputeMapper"}
	}
	n := b.ByteSize()
	if b.displayObj == nil {
		obj, err := b.disp.CreateBuffer(n)
		if err != nil {
			return deviceErr("create display buffer", err)
		}
		b.displayObj = obj
	} else if b.displayObj.Size() != n {
		// Resize in place so the handle identity survives.
		if err := b.disp.Upload(b.displayObj, make([]byte, n)); err != nil {
			return deviceErr("resize display buffer", err)
		}
	}
	mem, err := mapper.MapForCompute(b.displayObj, b.device)
	if err != nil {
		return deviceErr("map display buffer for compute", err)
	}
	b.computeBuf = mem
	b.mapped = true
	return nil
}

func (interopTransfer) release(b *Buffer) {
	if !b.mapped {
		return
	}
	if mapper, ok := b.disp.(display.ComputeMapper); ok {
		if err := mapper.UnmapFromCompute(b.displayObj); err != nil {
			Logger().Warn("framebuf: releasing interop mapping failed", "err", err)
		}
	}
	b.mapped = false
}

// syncPoint unmaps the interop mapping; that is the completion signal for
// this strategy. The next Map re-establishes the mapping.
func (interopTransfer) syncPoint(b *Buffer) error {
	if !b.mapped {
		return nil
	}
	mapper, ok := b.disp.(display.ComputeMapper)
	if !ok {
		return &StrategyError{Strategy: GraphicsInterop, Op: "Unmap", Missing: "display.ComputeMapper"}
	}
	if err := mapper.UnmapFromCompute(b.displayObj); err != nil {
		return deviceErr("unmap display buffer", err)
	}
	b.mapped = false
	b.computeBuf = nil
	return nil
}

func (interopTransfer) hostBytes(b *Buffer) ([]byte, error) {
	return nil, &StrategyError{Strategy: GraphicsInterop, Op: "HostBuffer"}
}

// present has no copy to run: kernel writes already landed in the display
// object. It still reconciles the object's storage size with the descriptor,
// since a resize after the last Map leaves the object at the old size. The
// object is not mapped here; a mapping must not outlive the export.
func (interopTransfer) present(b *Buffer) error {
	if b.mapped {
		return nil
	}
	if n := b.ByteSize(); b.displayObj.Size() != n {
		if err := b.disp.Upload(b.displayObj, make([]byte, n)); err != nil {
			return deviceErr("resize display buffer", err)
		}
	}
	return nil
}

var _ transfer = interopTransfer{}
