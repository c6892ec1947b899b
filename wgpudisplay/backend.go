// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package wgpudisplay implements the framebuf display seam on top of
// gogpu/wgpu HAL buffers. The display pipeline binds the underlying
// hal.Buffer (see HalBuffer); framebuf feeds it through queue writes.
//
// wgpudisplay does not map buffer storage into a compute device's address
// space, so the graphics-interop and peer-to-peer strategies report the
// missing capability when used against it. Device-local and zero-copy
// transfers work unchanged.
package wgpudisplay

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	types "github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framebuf/display"
)

// Package errors for wgpudisplay.
var (
	// ErrNilDevice is returned when the device or queue is nil.
	ErrNilDevice = errors.New("wgpudisplay: nil device or queue")

	// ErrNoHalProvider is returned when a device provider does not expose
	// HAL handles.
	ErrNoHalProvider = errors.New("wgpudisplay: provider does not expose HAL handles")

	// ErrUnknownObject is returned for handles this backend did not create.
	ErrUnknownObject = errors.New("wgpudisplay: unknown display buffer handle")
)

// Backend is a display.Backend backed by wgpu HAL buffers.
//
// Thread safety: Backend is safe for concurrent use; resource tracking is
// protected by a mutex.
type Backend struct {
	mu     sync.Mutex
	device hal.Device
	queue  hal.Queue
	nextID uint64
	bufs   map[uint64]hal.Buffer
}

// New creates a Backend over the given HAL device and queue. The Backend
// receives the device from the host application, it does not create one.
func New(device hal.Device, queue hal.Queue) (*Backend, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	return &Backend{
		device: device,
		queue:  queue,
		nextID: 1,
		bufs:   make(map[uint64]hal.Buffer),
	}, nil
}

// NewFromProvider creates a Backend from a shared gpucontext device
// provider (e.g., a gogpu window). The provider must also implement
// gpucontext.HalProvider so the HAL device and queue can be extracted.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Backend, error) {
	if provider == nil {
		return nil, ErrNilDevice
	}
	hp, ok := provider.(gpucontext.HalProvider)
	if !ok {
		return nil, ErrNoHalProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHalProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHalProvider)
	}
	return New(device, queue)
}

// CreateBuffer creates a display buffer object with size bytes of storage.
// The buffer carries vertex and copy-destination usage so a render pipeline
// can bind it directly.
func (b *Backend) CreateBuffer(size int) (display.Object, error) {
	if size <= 0 {
		return nil, fmt.Errorf("wgpudisplay: buffer size %d", size)
	}
	buf, err := b.createHal(size)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	obj := &object{id: b.nextID, size: size}
	b.nextID++
	b.bufs[obj.id] = buf
	return obj, nil
}

// Upload replaces the object's contents with data. When the size changed,
// the underlying HAL buffer is recreated at the new size; the handle passed
// around by callers keeps its identity.
func (b *Backend) Upload(obj display.Object, data []byte) error {
	o, ok := obj.(*object)
	if !ok {
		return ErrUnknownObject
	}
	b.mu.Lock()
	buf, ok := b.bufs[o.id]
	b.mu.Unlock()
	if !ok {
		return ErrUnknownObject
	}

	if o.size != len(data) {
		fresh, err := b.createHal(len(data))
		if err != nil {
			return err
		}
		b.device.DestroyBuffer(buf)
		b.mu.Lock()
		b.bufs[o.id] = fresh
		b.mu.Unlock()
		buf = fresh
		o.size = len(data)
	}
	if len(data) > 0 {
		b.queue.WriteBuffer(buf, 0, data)
	}
	return nil
}

// Delete destroys the object and its HAL buffer.
func (b *Backend) Delete(obj display.Object) error {
	o, ok := obj.(*object)
	if !ok {
		return ErrUnknownObject
	}
	b.mu.Lock()
	buf, ok := b.bufs[o.id]
	if ok {
		delete(b.bufs, o.id)
	}
	b.mu.Unlock()
	if !ok {
		return ErrUnknownObject
	}
	b.device.DestroyBuffer(buf)
	return nil
}

// HalBuffer returns the HAL buffer behind a display object, for binding by
// the render pipeline. The mapping from handle to HAL buffer may change
// across Upload calls that resize the storage; re-query after resizing.
func (b *Backend) HalBuffer(obj display.Object) (hal.Buffer, bool) {
	o, ok := obj.(*object)
	if !ok {
		return nil, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := b.bufs[o.id]
	return buf, ok
}

// Flush blocks until all queued uploads have completed on the device.
func (b *Backend) Flush() error {
	fence, err := b.device.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpudisplay: create fence: %w", err)
	}
	defer b.device.DestroyFence(fence)

	if err := b.queue.Submit(nil, fence, 1); err != nil {
		return fmt.Errorf("wgpudisplay: submit: %w", err)
	}
	// 5 second timeout, matching typical GPU sync budgets.
	if _, err := b.device.Wait(fence, 1, 5_000_000_000); err != nil {
		return fmt.Errorf("wgpudisplay: wait: %w", err)
	}
	return nil
}

// Close destroys every live buffer object.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, buf := range b.bufs {
		b.device.DestroyBuffer(buf)
		delete(b.bufs, id)
	}
}

func (b *Backend) createHal(size int) (hal.Buffer, error) {
	desc := &hal.BufferDescriptor{
		Label: "framebuf-display",
		Size:  uint64(size),
		Usage: types.BufferUsageCopyDst | types.BufferUsageVertex,
	}
	buf, err := b.device.CreateBuffer(desc)
	if err != nil {
		return nil, fmt.Errorf("wgpudisplay: create buffer: %w", err)
	}
	return buf, nil
}

// object is a stable display buffer handle; the HAL buffer behind it may be
// swapped on resize.
type object struct {
	id   uint64
	size int
}

func (o *object) ID() uint64 { return o.id }
func (o *object) Size() int  { return o.size }

// Interface compliance.
var (
	_ display.Backend = (*Backend)(nil)
	_ display.Object  = (*object)(nil)
)
