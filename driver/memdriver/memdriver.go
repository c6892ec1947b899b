// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package memdriver is a software implementation of the framebuf driver and
// display seams. Every allocation lives in host memory, so the full set of
// transfer strategies — including host-mapped and peer transfers — can run
// without a GPU. It backs the test suite and serves as the fallback driver
// on machines with no compute hardware.
//
// memdriver registers itself with the driver registry under the name "mem"
// at software priority; import it for its side effect:
//
//	import _ "github.com/gogpu/framebuf/driver/memdriver"
//
// Devices and the display backend count their API calls (allocations,
// uploads, synchronizations), which tests use to observe lazy reallocation
// behavior.
package memdriver

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/framebuf/driver"
)

func init() {
	driver.Register("mem", 10, func() (driver.Provider, error) {
		return New(1), nil
	}, nil)
}

// Driver is a software driver.Provider over a fixed set of simulated
// devices. Peer links between devices are disabled until EnablePeer is
// called, mirroring hardware where peer access is opt-in.
type Driver struct {
	mu      sync.Mutex
	devices []*Device
	current int // index of the device most recently made current
	peers   map[[2]int]bool
}

// New creates a Driver exposing deviceCount simulated devices.
func New(deviceCount int) *Driver {
	if deviceCount < 1 {
		deviceCount = 1
	}
	d := &Driver{
		peers:   make(map[[2]int]bool),
		current: -1,
	}
	for i := range deviceCount {
		d.devices = append(d.devices, &Device{drv: d, index: i})
	}
	return d
}

// EnablePeer opens a symmetric peer link between devices a and b.
func (d *Driver) EnablePeer(a, b int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peers[[2]int{a, b}] = true
	d.peers[[2]int{b, a}] = true
}

// CurrentDevice returns the index of the device most recently made current,
// or -1 if none.
func (d *Driver) CurrentDevice() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// AcquireDevice returns the device handle at index.
func (d *Driver) AcquireDevice(index int) (driver.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= len(d.devices) {
		return nil, fmt.Errorf("%w: %d (have %d devices)", driver.ErrBadDevice, index, len(d.devices))
	}
	return d.devices[index], nil
}

// DeviceCount returns the number of simulated devices.
func (d *Driver) DeviceCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.devices)
}

// Device is one simulated compute device. Its memory is plain host memory;
// "device" copies are memmoves. Call counters are exposed for tests.
type Device struct {
	drv   *Driver
	index int

	mu          sync.Mutex
	allocCalls  int
	freeCalls   int
	toHostCalls int
	fromHost    int
	syncCalls   int
}

// AllocCalls returns how many times Alloc or AllocMapped was called.
func (dev *Device) AllocCalls() int {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.allocCalls
}

// FreeCalls returns how many times Free was called.
func (dev *Device) FreeCalls() int {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.freeCalls
}

// CopyToHostCalls returns how many device-to-host copies ran.
func (dev *Device) CopyToHostCalls() int {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.toHostCalls
}

// SyncCalls returns how many stream synchronizations ran.
func (dev *Device) SyncCalls() int {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.syncCalls
}

// Index returns the device index.
func (dev *Device) Index() int { return dev.index }

// MakeCurrent records this device as the active one on the driver.
func (dev *Device) MakeCurrent() error {
	dev.drv.mu.Lock()
	defer dev.drv.mu.Unlock()
	dev.drv.current = dev.index
	return nil
}

// DefaultStream returns the device's null stream.
func (dev *Device) DefaultStream() driver.Stream {
	return &stream{dev: dev}
}

// Alloc allocates size bytes of simulated device memory.
func (dev *Device) Alloc(size int) (driver.Memory, error) {
	if size <= 0 {
		return nil, fmt.Errorf("memdriver: alloc size %d", size)
	}
	dev.mu.Lock()
	dev.allocCalls++
	dev.mu.Unlock()
	return &memory{buf: make([]byte, size), dev: dev}, nil
}

// AllocMapped allocates simulated pinned memory mapped into the device
// address space: the returned Memory and byte slice share one backing array.
func (dev *Device) AllocMapped(size int) (driver.Memory, []byte, error) {
	mem, err := dev.Alloc(size)
	if err != nil {
		return nil, nil, err
	}
	return mem, mem.(*memory).buf, nil
}

// Free releases memory obtained from this device.
func (dev *Device) Free(mem driver.Memory) error {
	m, ok := mem.(*memory)
	if !ok || m.dev != dev {
		return fmt.Errorf("memdriver: foreign memory handle")
	}
	dev.mu.Lock()
	dev.freeCalls++
	dev.mu.Unlock()
	m.freed = true
	return nil
}

// CopyToHost copies from simulated device memory to the host.
func (dev *Device) CopyToHost(dst []byte, src driver.Memory) error {
	m, err := dev.own(src)
	if err != nil {
		return err
	}
	if len(dst) > len(m.buf) {
		return fmt.Errorf("memdriver: copy of %d bytes from %d-byte allocation", len(dst), len(m.buf))
	}
	copy(dst, m.buf)
	dev.mu.Lock()
	dev.toHostCalls++
	dev.mu.Unlock()
	return nil
}

// CopyFromHost copies from the host to simulated device memory.
func (dev *Device) CopyFromHost(dst driver.Memory, src []byte) error {
	m, err := dev.own(dst)
	if err != nil {
		return err
	}
	if len(src) > len(m.buf) {
		return fmt.Errorf("memdriver: copy of %d bytes into %d-byte allocation", len(src), len(m.buf))
	}
	copy(m.buf, src)
	dev.mu.Lock()
	dev.fromHost++
	dev.mu.Unlock()
	return nil
}

// CanAccessPeer reports whether a peer link to the other device is enabled.
// A device can always reach itself.
func (dev *Device) CanAccessPeer(peer driver.Device) bool {
	if peer.Index() == dev.index {
		return true
	}
	dev.drv.mu.Lock()
	defer dev.drv.mu.Unlock()
	return dev.drv.peers[[2]int{dev.index, peer.Index()}]
}

// CopyPeer copies src (on this device) into dst on the peer device.
func (dev *Device) CopyPeer(dst driver.Memory, peer driver.Device, src driver.Memory) error {
	s, err := dev.own(src)
	if err != nil {
		return err
	}
	d, ok := dst.(*memory)
	if !ok {
		return fmt.Errorf("memdriver: foreign destination memory handle")
	}
	if len(s.buf) > len(d.buf) {
		return fmt.Errorf("memdriver: peer copy of %d bytes into %d-byte allocation", len(s.buf), len(d.buf))
	}
	copy(d.buf, s.buf)
	return nil
}

// own checks that mem belongs to this device and is still live.
func (dev *Device) own(mem driver.Memory) (*memory, error) {
	m, ok := mem.(*memory)
	if !ok || m.dev != dev {
		return nil, fmt.Errorf("memdriver: foreign memory handle")
	}
	if m.freed {
		return nil, fmt.Errorf("memdriver: use of freed memory")
	}
	return m, nil
}

// Bytes returns the backing slice of a memdriver allocation, so software
// kernels can write through the compute-visible pointer in tests and demos.
// Returns false for memory not allocated by memdriver.
func Bytes(mem driver.Memory) ([]byte, bool) {
	m, ok := mem.(*memory)
	if !ok || m.freed {
		return nil, false
	}
	return m.buf, true
}

// memory is a host-backed simulated device allocation.
type memory struct {
	buf   []byte
	dev   *Device
	freed bool
}

func (m *memory) Ptr() uintptr {
	if len(m.buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&m.buf[0]))
}

func (m *memory) Size() int { return len(m.buf) }

// stream is the device's null stream. All memdriver work is synchronous, so
// Synchronize only counts the call.
type stream struct {
	dev *Device
}

func (s *stream) Synchronize() error {
	s.dev.mu.Lock()
	s.dev.syncCalls++
	s.dev.mu.Unlock()
	return nil
}

// Interface compliance.
var (
	_ driver.Provider        = (*Driver)(nil)
	_ driver.Device          = (*Device)(nil)
	_ driver.MappedAllocator = (*Device)(nil)
	_ driver.PeerCopier      = (*Device)(nil)
	_ driver.Memory          = (*memory)(nil)
	_ driver.Stream          = (*stream)(nil)
)
