// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package framebuf manages the pixel buffer that sits between a GPU compute
// kernel and a display pipeline.
//
// # Overview
//
// A compute kernel writes pixels into device-visible memory; a display
// pipeline binds a buffer object and rasterizes from it. framebuf owns the
// question of where those bytes live at any moment and how they travel
// between the compute device, host memory, and the display buffer object,
// with as few copies as the active transfer strategy allows.
//
// The central type is [Buffer]. Its frame loop is:
//
//	buf, _ := framebuf.New(drv, disp, framebuf.Config{
//	    Strategy: framebuf.DeviceLocal,
//	    Format:   framebuf.FormatFloat4,
//	    Width:    800,
//	    Height:   600,
//	})
//	mem, _ := buf.Map()      // compute-visible storage, lazily allocated
//	launchKernel(mem)        // external kernel writes width*height pixels
//	buf.Unmap()              // synchronization barrier for those writes
//	obj, _ := buf.DisplayBuffer() // display object with current contents
//
// Changing the format, dimensions, device index, or strategy invalidates the
// compute and host storage; the next Map or DisplayBuffer call reallocates.
// The display buffer object keeps its identity across reallocation so
// external bindings to it stay valid.
//
// # Transfer strategies
//
// Four [Strategy] variants decide the copy path:
//
//   - [DeviceLocal]: device memory plus a host staging buffer; export copies
//     device to host, then uploads to the display object.
//   - [GraphicsInterop]: the display object itself is mapped into the compute
//     address space; no copies.
//   - [ZeroCopy]: host-mapped memory visible to the device; export uploads
//     straight from the mapped region.
//   - [PeerToPeer]: device memory transferred over a peer link to the
//     display-owning device.
//
// Strategies that need a collaborator capability the injected driver or
// display backend does not provide fail with [ErrUnsupportedStrategy].
//
// # Collaborators
//
// framebuf receives its device and display access, it does not create them.
// The compute side is a [github.com/gogpu/framebuf/driver.Provider]; the
// display side is a [github.com/gogpu/framebuf/display.Backend]. The
// memdriver package provides a software implementation of both for tests and
// for machines without a GPU.
//
// Buffers are not safe for concurrent use; one goroutine drives a Buffer.
package framebuf
