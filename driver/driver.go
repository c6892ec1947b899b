// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package driver defines the compute-device seam consumed by framebuf.
//
// framebuf RECEIVES device access through these interfaces, it does not
// create devices. A hardware binding (CUDA, HIP, wgpu compute) implements
// Provider and registers itself; the memdriver package provides a software
// implementation for tests and GPU-less machines.
//
// The base interfaces cover what every transfer strategy needs. Optional
// capabilities (host-mapped allocation, peer copies) are separate interfaces
// that a Device may additionally implement; strategies that require a
// capability probe for it with a type assertion and fail cleanly when it is
// absent.
package driver

import "errors"

// Package errors for driver.
var (
	// ErrUnknownDriver is returned when opening a driver name that was
	// never registered.
	ErrUnknownDriver = errors.New("driver: unknown driver")

	// ErrNoDriver is returned when no registered driver is available.
	ErrNoDriver = errors.New("driver: no driver available")

	// ErrBadDevice is returned for an out-of-range device index.
	ErrBadDevice = errors.New("driver: bad device index")
)

// Memory is a compute-visible allocation. The pointer is valid for read and
// write by code running on the owning device; the host must go through the
// device copy operations unless the memory was host-mapped.
type Memory interface {
	// Ptr returns the compute-visible address of the allocation.
	Ptr() uintptr

	// Size returns the allocation size in bytes.
	Size() int
}

// Stream is an ordering handle for asynchronous work on a device. Work
// enqueued on one stream executes in order; Synchronize blocks until all
// previously enqueued work has completed.
type Stream interface {
	Synchronize() error
}

// Device is one compute device.
//
// Device selection is stateful per underlying API: MakeCurrent must be
// asserted before resource operations, since other code may have switched
// the active device in between.
type Device interface {
	// Index returns the device index this handle was acquired with.
	Index() int

	// MakeCurrent selects this device as the active one for subsequent
	// device-API calls on the calling thread.
	MakeCurrent() error

	// DefaultStream returns the device's null/default stream.
	DefaultStream() Stream

	// Alloc allocates size bytes of device memory.
	Alloc(size int) (Memory, error)

	// Free releases memory obtained from Alloc (or AllocMapped).
	Free(mem Memory) error

	// CopyToHost copies len(dst) bytes from device memory to the host.
	// The copy is synchronous.
	CopyToHost(dst []byte, src Memory) error

	// CopyFromHost copies len(src) bytes from the host to device memory.
	// The copy is synchronous.
	CopyFromHost(dst Memory, src []byte) error
}

// MappedAllocator is an optional Device capability: allocation of pinned
// host memory mapped into the device address space. The returned Memory is
// valid for device writes and the byte slice is the host view of the same
// physical storage. Required by the zero-copy transfer strategy.
type MappedAllocator interface {
	AllocMapped(size int) (Memory, []byte, error)
}

// PeerCopier is an optional Device capability: direct device-to-device
// transfer over a peer link, no host staging. Required by the peer-to-peer
// transfer strategy.
type PeerCopier interface {
	// CanAccessPeer reports whether a peer link to the other device exists.
	CanAccessPeer(peer Device) bool

	// CopyPeer copies src (resident on the receiver) into dst, which is
	// resident on the peer device. The copy is synchronous.
	CopyPeer(dst Memory, peer Device, src Memory) error
}

// Provider acquires device handles. Implementations own device enumeration
// and any underlying API initialization.
type Provider interface {
	// AcquireDevice returns a handle for the device at index.
	// Fails with an error wrapping ErrBadDevice for an invalid index.
	AcquireDevice(index int) (Device, error)

	// DeviceCount returns the number of devices this provider exposes.
	DeviceCount() int
}
