// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package display defines the display-engine seam consumed by framebuf.
//
// A display backend owns buffer objects that the rasterization pipeline can
// bind directly. framebuf creates one object per Buffer, refreshes its
// contents as the active transfer strategy requires, and hands the opaque
// handle back to the caller for binding.
//
// Backends that can expose a buffer object's storage to a compute device
// additionally implement ComputeMapper; the graphics-interop and
// peer-to-peer transfer strategies require it.
package display

import "github.com/gogpu/framebuf/driver"

// Object is an opaque display buffer handle. Handle identity is stable for
// the life of the object: resizing its storage does not change the handle.
type Object interface {
	// ID returns the backend-assigned identifier for this object.
	ID() uint64

	// Size returns the current storage size in bytes.
	Size() int
}

// Backend creates and feeds display buffer objects.
type Backend interface {
	// CreateBuffer creates a buffer object with size bytes of storage.
	CreateBuffer(size int) (Object, error)

	// Upload replaces the object's contents with data, resizing its
	// storage to len(data) if necessary. Handle identity is preserved.
	Upload(obj Object, data []byte) error

	// Delete destroys the object and its storage. Deleting an object that
	// is mapped for compute is a caller error.
	Delete(obj Object) error
}

// ComputeMapper is an optional Backend capability: mapping a buffer object's
// storage into a compute device's address space so kernels write into it
// directly. At most one mapping per object may be active.
type ComputeMapper interface {
	// MapForCompute maps the object's storage for writing by dev.
	MapForCompute(obj Object, dev driver.Device) (driver.Memory, error)

	// UnmapFromCompute releases the active mapping. Device writes made
	// through the mapping are visible to the display pipeline afterwards.
	UnmapFromCompute(obj Object) error
}
