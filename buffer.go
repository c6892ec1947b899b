// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package framebuf

import (
	"fmt"

	"github.com/gogpu/framebuf/display"
	"github.com/gogpu/framebuf/driver"
)

// Config carries the initial buffer descriptor for New and Configure.
type Config struct {
	// Strategy selects the transfer strategy. The zero value is
	// DeviceLocal.
	Strategy Strategy

	// Format is the pixel format. Ignored when FormatTag is set.
	Format PixelFormat

	// FormatTag optionally names the format ("float4", "uchar4", ...);
	// it is resolved via ResolveFormat and takes precedence over Format.
	FormatTag string

	// Width and Height are the buffer dimensions in pixels; both must be
	// at least 1.
	Width, Height int

	// DeviceIndex selects the compute device. Zero is the first device.
	DeviceIndex int

	// DisplayDeviceIndex names the device that owns the display pipeline.
	// Only the peer-to-peer strategy consults it; the zero default matches
	// the common single-display setup.
	DisplayDeviceIndex int

	// Stream orders asynchronous device work. Nil selects the device's
	// default stream.
	Stream driver.Stream
}

// Buffer owns a pixel buffer shared between a compute kernel and a display
// pipeline: the descriptor (format, dimensions, device, strategy), the
// lazily materialized storage behind it, and the display buffer object the
// rasterizer binds.
//
// Any descriptor mutation invalidates the compute and host storage; the next
// Map, HostBuffer, or DisplayBuffer call reallocates it. The display object
// is created once and keeps its identity across reallocation so external
// bindings stay valid; only ReleaseDisplayBuffer or Close destroys it.
//
// A Buffer is driven by a single goroutine.
type Buffer struct {
	provider driver.Provider
	disp     display.Backend

	// Descriptor.
	format       PixelFormat
	width        int
	height       int
	devIndex     int
	dispDevIndex int
	strategy     Strategy

	device driver.Device
	stream driver.Stream // nil means the device default stream

	// Storage triple. computeBuf and hostBuf are nil whenever the
	// descriptor has changed since they were materialized.
	computeBuf driver.Memory
	hostBuf    []byte
	displayObj display.Object

	mapped   bool // interop mapping active
	transfer transfer
	closed   bool
}

// New creates a Buffer from the given collaborators and initial descriptor.
// The provider and display backend must be non-nil; framebuf receives device
// and display access, it does not create them.
func New(provider driver.Provider, disp display.Backend, cfg Config) (*Buffer, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: driver provider", ErrNilCollaborator)
	}
	if disp == nil {
		return nil, fmt.Errorf("%w: display backend", ErrNilCollaborator)
	}
	b := &Buffer{
		provider: provider,
		disp:     disp,
		devIndex: -1, // force the first SetDeviceIndex to acquire
	}
	if err := b.Configure(cfg); err != nil {
		return nil, err
	}
	return b, nil
}

// Configure applies every descriptor field from cfg through the individual
// setters, in the same order New does. Fields equal to the current value do
// not invalidate storage.
func (b *Buffer) Configure(cfg Config) error {
	if b.closed {
		return ErrClosed
	}
	if err := b.SetDeviceIndex(cfg.DeviceIndex); err != nil {
		return err
	}
	format := cfg.Format
	if cfg.FormatTag != "" {
		f, err := ResolveFormat(cfg.FormatTag)
		if err != nil {
			return err
		}
		format = f
	}
	if err := b.SetFormat(format); err != nil {
		return err
	}
	if err := b.SetStrategy(cfg.Strategy); err != nil {
		return err
	}
	if err := b.Resize(cfg.Width, cfg.Height); err != nil {
		return err
	}
	b.SetDisplayDeviceIndex(cfg.DisplayDeviceIndex)
	b.SetStream(cfg.Stream)
	return nil
}

// Width returns the buffer width in pixels.
func (b *Buffer) Width() int { return b.width }

// Height returns the buffer height in pixels.
func (b *Buffer) Height() int { return b.height }

// Format returns the pixel format.
func (b *Buffer) Format() PixelFormat { return b.format }

// Strategy returns the active transfer strategy.
func (b *Buffer) Strategy() Strategy { return b.strategy }

// DeviceIndex returns the compute device index.
func (b *Buffer) DeviceIndex() int { return b.devIndex }

// DisplayDeviceIndex returns the index of the display-owning device.
func (b *Buffer) DisplayDeviceIndex() int { return b.dispDevIndex }

// Len returns the pixel count (width * height).
func (b *Buffer) Len() int { return b.width * b.height }

// ByteSize returns the storage size in bytes (width * height * bytes/pixel).
func (b *Buffer) ByteSize() int { return b.Len() * b.format.BytesPerPixel() }

// Resize sets the buffer dimensions. A change invalidates storage; equal
// dimensions are a no-op. Fails with ErrInvalidDimension if either value is
// below 1, without touching current state.
func (b *Buffer) Resize(width, height int) error {
	if b.closed {
		return ErrClosed
	}
	if width < 1 || height < 1 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimension, width, height)
	}
	if width == b.width && height == b.height {
		return nil
	}
	b.invalidate()
	b.width = width
	b.height = height
	return nil
}

// SetFormat sets the pixel format. A change invalidates storage; the current
// format is a no-op. Fails with ErrInvalidFormat for a format that does not
// resolve to a concrete storage type.
func (b *Buffer) SetFormat(f PixelFormat) error {
	if b.closed {
		return ErrClosed
	}
	if !f.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidFormat, f)
	}
	if f == b.format {
		return nil
	}
	b.invalidate()
	b.format = f
	return nil
}

// SetFormatTag resolves tag via ResolveFormat and applies it like SetFormat.
func (b *Buffer) SetFormatTag(tag string) error {
	f, err := ResolveFormat(tag)
	if err != nil {
		return err
	}
	return b.SetFormat(f)
}

// SetStrategy sets the transfer strategy. A change invalidates storage; the
// current strategy is a no-op.
func (b *Buffer) SetStrategy(s Strategy) error {
	if b.closed {
		return ErrClosed
	}
	if b.transfer != nil && s == b.strategy {
		return nil
	}
	t, err := newTransfer(s)
	if err != nil {
		return err
	}
	b.invalidate()
	b.strategy = s
	b.transfer = t
	return nil
}

// SetDeviceIndex selects the compute device, re-acquiring the device handle.
// A change invalidates storage; the current index is a no-op.
func (b *Buffer) SetDeviceIndex(index int) error {
	if b.closed {
		return ErrClosed
	}
	if index == b.devIndex && b.device != nil {
		return nil
	}
	dev, err := b.provider.AcquireDevice(index)
	if err != nil {
		return deviceErr(fmt.Sprintf("acquire device %d", index), err)
	}
	b.invalidate()
	b.devIndex = index
	b.device = dev
	return nil
}

// SetDisplayDeviceIndex names the device that owns the display pipeline,
// used as the peer-copy target by the peer-to-peer strategy. It affects only
// the export path and does not invalidate storage; a bad index surfaces as
// ErrDevice on the next DisplayBuffer call.
func (b *Buffer) SetDisplayDeviceIndex(index int) {
	b.dispDevIndex = index
}

// SetStream sets the ordering stream for asynchronous device work. Nil
// restores the device's default stream. Changing the stream does not
// invalidate storage.
func (b *Buffer) SetStream(s driver.Stream) {
	b.stream = s
}

// streamHandle returns the active stream, falling back to the device default.
func (b *Buffer) streamHandle() driver.Stream {
	if b.stream != nil {
		return b.stream
	}
	return b.device.DefaultStream()
}

// Map materializes storage if the descriptor changed since the last
// allocation, selects the compute device, and returns the compute-visible
// storage for the external kernel to write into. The caller must not write
// past Len() pixels and must call Unmap before reading the results.
//
// Map may return before prior work on the stream completes; the kernel
// launch that follows is expected to be enqueued on the same stream.
func (b *Buffer) Map() (driver.Memory, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if err := b.makeCurrent(); err != nil {
		return nil, err
	}
	if err := b.ensureStorage(); err != nil {
		return nil, err
	}
	return b.computeBuf, nil
}

// Unmap is the synchronization barrier for kernel writes: after it returns,
// all prior asynchronous work through the mapped pointer is visible to host
// copies and display binds. The completion signal is strategy-specific (a
// stream synchronize, or releasing the interop mapping).
func (b *Buffer) Unmap() error {
	if b.closed {
		return ErrClosed
	}
	if err := b.makeCurrent(); err != nil {
		return err
	}
	return b.transfer.syncPoint(b)
}

// HostBuffer copies the current pixels to the host staging buffer and
// returns it. Only strategies that stage through host memory support this;
// the others fail with ErrUnsupportedStrategy and must be read through the
// display object instead. The returned slice is reused across calls.
func (b *Buffer) HostBuffer() ([]byte, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if err := b.makeCurrent(); err != nil {
		return nil, err
	}
	return b.transfer.hostBytes(b)
}

// DisplayBuffer lazily creates the display buffer object, runs whatever copy
// the active strategy needs to make its contents current, and returns the
// handle for the display pipeline to bind. The handle identity is stable
// across calls and across reallocation.
//
// Calling DisplayBuffer before Unmap exports undefined pixel content: the
// kernel write happens outside the Buffer, so ordering is the caller's
// responsibility.
func (b *Buffer) DisplayBuffer() (display.Object, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if err := b.makeCurrent(); err != nil {
		return nil, err
	}
	if b.displayObj == nil {
		obj, err := b.disp.CreateBuffer(b.ByteSize())
		if err != nil {
			return nil, deviceErr("create display buffer", err)
		}
		b.displayObj = obj
	}
	if err := b.transfer.present(b); err != nil {
		return nil, err
	}
	return b.displayObj, nil
}

// ReleaseDisplayBuffer destroys the display buffer object if present.
// It is a no-op when no object exists. An active interop mapping is released
// first.
func (b *Buffer) ReleaseDisplayBuffer() error {
	if b.displayObj == nil {
		return nil
	}
	if b.mapped {
		b.transfer.release(b)
		b.computeBuf = nil
	}
	if err := b.disp.Delete(b.displayObj); err != nil {
		return deviceErr("delete display buffer", err)
	}
	b.displayObj = nil
	return nil
}

// Close releases all storage and the display buffer object.
// Close is idempotent; a closed Buffer fails every other operation with
// ErrClosed.
func (b *Buffer) Close() error {
	if b.closed {
		return nil
	}
	b.invalidate()
	err := b.ReleaseDisplayBuffer()
	b.closed = true
	return err
}

// makeCurrent asserts the compute device as the active one. Re-asserted at
// the start of every operation that touches device or display resources,
// since other controllers or external code may have switched devices.
func (b *Buffer) makeCurrent() error {
	if err := b.device.MakeCurrent(); err != nil {
		return deviceErr("make device current", err)
	}
	return nil
}

// ensureStorage materializes the storage triple when the descriptor has
// changed since the last allocation. A failed allocation leaves the storage
// nil, not half-built, so the caller can retry after freeing resources.
func (b *Buffer) ensureStorage() error {
	if b.computeBuf != nil {
		return nil
	}
	if err := b.transfer.allocate(b); err != nil {
		return err
	}
	Logger().Debug("framebuf: storage reallocated",
		"strategy", b.strategy, "format", b.format,
		"width", b.width, "height", b.height, "device", b.devIndex)
	return nil
}

// refreshDisplay resizes an existing display object's storage to the current
// byte size, preserving its identity. Called from the strategy allocate
// paths; a nil data argument refreshes with zeroed contents.
func (b *Buffer) refreshDisplay(data []byte) error {
	if b.displayObj == nil {
		return nil
	}
	if data == nil {
		data = make([]byte, b.ByteSize())
	}
	if err := b.disp.Upload(b.displayObj, data); err != nil {
		return deviceErr("refresh display buffer", err)
	}
	Logger().Debug("framebuf: display buffer refreshed", "bytes", len(data))
	return nil
}

// invalidate drops the compute and host storage. The display object and its
// identity survive; only its contents are refreshed on the next allocation.
func (b *Buffer) invalidate() {
	if b.transfer != nil && b.computeBuf != nil {
		b.transfer.release(b)
	}
	b.computeBuf = nil
	b.hostBuf = nil
	b.mapped = false
}
