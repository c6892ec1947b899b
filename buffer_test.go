// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package framebuf

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/framebuf/display"
	"github.com/gogpu/framebuf/driver"
	"github.com/gogpu/framebuf/driver/memdriver"
)

// testRig bundles a buffer with the software collaborators behind it.
type testRig struct {
	drv  *memdriver.Driver
	disp *memdriver.Display
	buf  *Buffer
}

func (r *testRig) device(t *testing.T, index int) *memdriver.Device {
	t.Helper()
	dev, err := r.drv.AcquireDevice(index)
	if err != nil {
		t.Fatalf("AcquireDevice(%d) = %v", index, err)
	}
	return dev.(*memdriver.Device)
}

func newTestRig(t *testing.T, cfg Config) *testRig {
	t.Helper()
	drv := memdriver.New(2)
	disp := memdriver.NewDisplay()
	buf, err := New(drv, disp, cfg)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	t.Cleanup(func() { buf.Close() })
	return &testRig{drv: drv, disp: disp, buf: buf}
}

func deviceLocalConfig(w, h int) Config {
	return Config{
		Strategy: DeviceLocal,
		Format:   FormatFloat4,
		Width:    w,
		Height:   h,
	}
}

func TestNewNilCollaborators(t *testing.T) {
	drv := memdriver.New(1)
	disp := memdriver.NewDisplay()

	if _, err := New(nil, disp, deviceLocalConfig(4, 4)); !errors.Is(err, ErrNilCollaborator) {
		t.Errorf("New(nil provider) = %v, want ErrNilCollaborator", err)
	}
	if _, err := New(drv, nil, deviceLocalConfig(4, 4)); !errors.Is(err, ErrNilCollaborator) {
		t.Errorf("New(nil display) = %v, want ErrNilCollaborator", err)
	}
}

func TestMapAllocatesStorage(t *testing.T) {
	r := newTestRig(t, deviceLocalConfig(7, 5))

	mem, err := r.buf.Map()
	if err != nil {
		t.Fatalf("Map() = %v", err)
	}
	want := 7 * 5 * FormatFloat4.BytesPerPixel()
	if mem.Size() < want {
		t.Errorf("mapped size = %d, want >= %d", mem.Size(), want)
	}
	if mem.Ptr() == 0 {
		t.Error("mapped pointer is 0")
	}
	if got := r.device(t, 0).AllocCalls(); got != 1 {
		t.Errorf("AllocCalls = %d, want 1", got)
	}
}

func TestMapIsLazyUntilNeeded(t *testing.T) {
	r := newTestRig(t, deviceLocalConfig(4, 4))

	// Construction alone must not allocate.
	if got := r.device(t, 0).AllocCalls(); got != 0 {
		t.Errorf("AllocCalls after New = %d, want 0", got)
	}
}

func TestSettersIdempotent(t *testing.T) {
	r := newTestRig(t, deviceLocalConfig(8, 8))
	if _, err := r.buf.Map(); err != nil {
		t.Fatalf("Map() = %v", err)
	}

	if err := r.buf.Resize(8, 8); err != nil {
		t.Fatalf("Resize(same) = %v", err)
	}
	if err := r.buf.SetFormat(FormatFloat4); err != nil {
		t.Fatalf("SetFormat(same) = %v", err)
	}
	if err := r.buf.SetStrategy(DeviceLocal); err != nil {
		t.Fatalf("SetStrategy(same) = %v", err)
	}
	if err := r.buf.SetDeviceIndex(0); err != nil {
		t.Fatalf("SetDeviceIndex(same) = %v", err)
	}

	if _, err := r.buf.Map(); err != nil {
		t.Fatalf("Map() after no-op setters = %v", err)
	}
	if got := r.device(t, 0).AllocCalls(); got != 1 {
		t.Errorf("AllocCalls = %d, want 1 (no-op setters must not invalidate)", got)
	}
}

func TestSettersInvalidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Buffer) error
	}{
		{"resize", func(b *Buffer) error { return b.Resize(16, 8) }},
		{"format", func(b *Buffer) error { return b.SetFormat(FormatUchar4) }},
		{"strategy", func(b *Buffer) error { return b.SetStrategy(ZeroCopy) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRig(t, deviceLocalConfig(8, 8))
			if _, err := r.buf.Map(); err != nil {
				t.Fatalf("Map() = %v", err)
			}
			if err := tt.mutate(r.buf); err != nil {
				t.Fatalf("mutate = %v", err)
			}
			if _, err := r.buf.Map(); err != nil {
				t.Fatalf("Map() after mutation = %v", err)
			}
			if got := r.device(t, 0).AllocCalls(); got != 2 {
				t.Errorf("AllocCalls = %d, want 2 (exactly one reallocation)", got)
			}
		})
	}
}

func TestDeviceChangeReacquiresAndInvalidates(t *testing.T) {
	r := newTestRig(t, deviceLocalConfig(4, 4))
	if _, err := r.buf.Map(); err != nil {
		t.Fatalf("Map() = %v", err)
	}

	if err := r.buf.SetDeviceIndex(1); err != nil {
		t.Fatalf("SetDeviceIndex(1) = %v", err)
	}
	if _, err := r.buf.Map(); err != nil {
		t.Fatalf("Map() on device 1 = %v", err)
	}

	if got := r.device(t, 0).AllocCalls(); got != 1 {
		t.Errorf("device 0 AllocCalls = %d, want 1", got)
	}
	if got := r.device(t, 1).AllocCalls(); got != 1 {
		t.Errorf("device 1 AllocCalls = %d, want 1", got)
	}
	if got := r.drv.CurrentDevice(); got != 1 {
		t.Errorf("CurrentDevice = %d, want 1", got)
	}
}

func TestBadDeviceIndex(t *testing.T) {
	r := newTestRig(t, deviceLocalConfig(4, 4))

	err := r.buf.SetDeviceIndex(9)
	if !errors.Is(err, ErrDevice) {
		t.Errorf("SetDeviceIndex(9) = %v, want ErrDevice", err)
	}
	// The descriptor must be unchanged after the failure.
	if got := r.buf.DeviceIndex(); got != 0 {
		t.Errorf("DeviceIndex after failed set = %d, want 0", got)
	}
}

func TestInvalidDimensions(t *testing.T) {
	drv := memdriver.New(1)
	disp := memdriver.NewDisplay()

	if _, err := New(drv, disp, deviceLocalConfig(0, 4)); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("New(width=0) = %v, want ErrInvalidDimension", err)
	}
	if _, err := New(drv, disp, deviceLocalConfig(4, -1)); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("New(height=-1) = %v, want ErrInvalidDimension", err)
	}

	r := newTestRig(t, deviceLocalConfig(4, 4))
	if err := r.buf.Resize(0, 8); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("Resize(0, 8) = %v, want ErrInvalidDimension", err)
	}
	if r.buf.Width() != 4 || r.buf.Height() != 4 {
		t.Errorf("dimensions after failed resize = %dx%d, want 4x4", r.buf.Width(), r.buf.Height())
	}
}

func TestInvalidFormat(t *testing.T) {
	drv := memdriver.New(1)
	disp := memdriver.NewDisplay()

	_, err := New(drv, disp, Config{Strategy: DeviceLocal, FormatTag: "float9", Width: 4, Height: 4})
	if !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("New(float9) = %v, want ErrInvalidFormat", err)
	}

	_, err = New(drv, disp, Config{Strategy: DeviceLocal, Width: 4, Height: 4})
	if !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("New(zero format) = %v, want ErrInvalidFormat", err)
	}
}

func TestDeviceLocalRoundTrip(t *testing.T) {
	r := newTestRig(t, Config{Strategy: DeviceLocal, Format: FormatUchar4, Width: 16, Height: 4})

	mem, err := r.buf.Map()
	if err != nil {
		t.Fatalf("Map() = %v", err)
	}
	raw, ok := memdriver.Bytes(mem)
	if !ok {
		t.Fatal("memdriver.Bytes() failed")
	}
	pattern := makePattern(len(raw))
	copy(raw, pattern)

	if err := r.buf.Unmap(); err != nil {
		t.Fatalf("Unmap() = %v", err)
	}
	host, err := r.buf.HostBuffer()
	if err != nil {
		t.Fatalf("HostBuffer() = %v", err)
	}
	if !bytes.Equal(host, pattern) {
		t.Error("host buffer does not match the written pattern")
	}
	if got := r.device(t, 0).SyncCalls(); got == 0 {
		t.Error("Unmap did not synchronize the stream")
	}
}

func TestDisplayBufferStableIdentity(t *testing.T) {
	r := newTestRig(t, deviceLocalConfig(8, 8))

	obj1, err := r.buf.DisplayBuffer()
	if err != nil {
		t.Fatalf("DisplayBuffer() = %v", err)
	}
	obj2, err := r.buf.DisplayBuffer()
	if err != nil {
		t.Fatalf("DisplayBuffer() second call = %v", err)
	}
	if obj1.ID() != obj2.ID() {
		t.Errorf("display buffer identity changed: %d != %d", obj1.ID(), obj2.ID())
	}
	if got := r.disp.CreateCalls(); got != 1 {
		t.Errorf("CreateCalls = %d, want 1", got)
	}
}

func TestResizePreservesDisplayHandle(t *testing.T) {
	for _, s := range []Strategy{DeviceLocal, GraphicsInterop, ZeroCopy, PeerToPeer} {
		t.Run(s.String(), func(t *testing.T) {
			r := newTestRig(t, Config{Strategy: s, Format: FormatUchar4, Width: 8, Height: 8})

			// Full frame cycle first, so the handle exists and is bound
			// to the original size before the resize.
			if _, err := r.buf.Map(); err != nil {
				t.Fatalf("Map() = %v", err)
			}
			if err := r.buf.Unmap(); err != nil {
				t.Fatalf("Unmap() = %v", err)
			}
			obj1, err := r.buf.DisplayBuffer()
			if err != nil {
				t.Fatalf("DisplayBuffer() = %v", err)
			}
			if want := 8 * 8 * FormatUchar4.BytesPerPixel(); obj1.Size() != want {
				t.Fatalf("display buffer size = %d, want %d", obj1.Size(), want)
			}

			if err := r.buf.Resize(16, 16); err != nil {
				t.Fatalf("Resize() = %v", err)
			}
			obj2, err := r.buf.DisplayBuffer()
			if err != nil {
				t.Fatalf("DisplayBuffer() after resize = %v", err)
			}
			if obj1.ID() != obj2.ID() {
				t.Errorf("display buffer identity changed on resize: %d != %d", obj1.ID(), obj2.ID())
			}
			want := 16 * 16 * FormatUchar4.BytesPerPixel()
			if obj2.Size() != want {
				t.Errorf("display buffer size after resize = %d, want %d", obj2.Size(), want)
			}
			if got := r.disp.CreateCalls(); got != 1 {
				t.Errorf("CreateCalls = %d, want 1 (resize must not recreate the handle)", got)
			}
		})
	}
}

func TestDeviceLocalExportContents(t *testing.T) {
	r := newTestRig(t, Config{Strategy: DeviceLocal, Format: FormatUchar4, Width: 4, Height: 4})

	mem, err := r.buf.Map()
	if err != nil {
		t.Fatalf("Map() = %v", err)
	}
	raw, _ := memdriver.Bytes(mem)
	pattern := makePattern(len(raw))
	copy(raw, pattern)
	if err := r.buf.Unmap(); err != nil {
		t.Fatalf("Unmap() = %v", err)
	}

	obj, err := r.buf.DisplayBuffer()
	if err != nil {
		t.Fatalf("DisplayBuffer() = %v", err)
	}
	got, err := r.disp.Data(obj)
	if err != nil {
		t.Fatalf("Data() = %v", err)
	}
	if !bytes.Equal(got, pattern) {
		t.Error("display buffer contents do not match the written pattern")
	}
}

func TestHostBufferUnsupportedStrategies(t *testing.T) {
	for _, s := range []Strategy{GraphicsInterop, ZeroCopy, PeerToPeer} {
		t.Run(s.String(), func(t *testing.T) {
			r := newTestRig(t, Config{Strategy: s, Format: FormatUchar4, Width: 4, Height: 4})

			_, err := r.buf.HostBuffer()
			if !errors.Is(err, ErrUnsupportedStrategy) {
				t.Fatalf("HostBuffer() = %v, want ErrUnsupportedStrategy", err)
			}
			var serr *StrategyError
			if !errors.As(err, &serr) {
				t.Fatalf("HostBuffer() error %T does not name the failing operation", err)
			}
			if serr.Strategy != s || serr.Op != "HostBuffer" {
				t.Errorf("StrategyError = {%v %q}, want {%v %q}", serr.Strategy, serr.Op, s, "HostBuffer")
			}
		})
	}
}

func TestZeroCopyRoundTrip(t *testing.T) {
	r := newTestRig(t, Config{Strategy: ZeroCopy, Format: FormatUchar4, Width: 8, Height: 8})

	mem, err := r.buf.Map()
	if err != nil {
		t.Fatalf("Map() = %v", err)
	}
	raw, _ := memdriver.Bytes(mem)
	pattern := makePattern(len(raw))
	copy(raw, pattern)
	if err := r.buf.Unmap(); err != nil {
		t.Fatalf("Unmap() = %v", err)
	}

	obj, err := r.buf.DisplayBuffer()
	if err != nil {
		t.Fatalf("DisplayBuffer() = %v", err)
	}
	got, err := r.disp.Data(obj)
	if err != nil {
		t.Fatalf("Data() = %v", err)
	}
	if !bytes.Equal(got, pattern) {
		t.Error("display buffer contents do not match the written pattern")
	}
	// Zero-copy never stages through a device-to-host read.
	if n := r.device(t, 0).CopyToHostCalls(); n != 0 {
		t.Errorf("CopyToHostCalls = %d, want 0", n)
	}
}

func TestGraphicsInteropRoundTrip(t *testing.T) {
	r := newTestRig(t, Config{Strategy: GraphicsInterop, Format: FormatUchar4, Width: 8, Height: 8})

	mem, err := r.buf.Map()
	if err != nil {
		t.Fatalf("Map() = %v", err)
	}
	raw, _ := memdriver.Bytes(mem)
	pattern := makePattern(len(raw))
	copy(raw, pattern)
	if err := r.buf.Unmap(); err != nil {
		t.Fatalf("Unmap() = %v", err)
	}

	obj, err := r.buf.DisplayBuffer()
	if err != nil {
		t.Fatalf("DisplayBuffer() = %v", err)
	}
	got, err := r.disp.Data(obj)
	if err != nil {
		t.Fatalf("Data() = %v", err)
	}
	if !bytes.Equal(got, pattern) {
		t.Error("display buffer contents do not match the written pattern")
	}
	// Interop writes land in place: no uploads, no device allocations.
	if n := r.disp.UploadCalls(); n != 0 {
		t.Errorf("UploadCalls = %d, want 0", n)
	}
	if n := r.device(t, 0).AllocCalls(); n != 0 {
		t.Errorf("AllocCalls = %d, want 0", n)
	}
}

func TestPeerToPeerRoundTrip(t *testing.T) {
	drv := memdriver.New(2)
	drv.EnablePeer(0, 1)
	disp := memdriver.NewDisplay()
	buf, err := New(drv, disp, Config{
		Strategy:    PeerToPeer,
		Format:      FormatUchar4,
		Width:       8,
		Height:      8,
		DeviceIndex: 1,
	})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	defer buf.Close()

	mem, err := buf.Map()
	if err != nil {
		t.Fatalf("Map() = %v", err)
	}
	raw, _ := memdriver.Bytes(mem)
	pattern := makePattern(len(raw))
	copy(raw, pattern)
	if err := buf.Unmap(); err != nil {
		t.Fatalf("Unmap() = %v", err)
	}

	obj, err := buf.DisplayBuffer()
	if err != nil {
		t.Fatalf("DisplayBuffer() = %v", err)
	}
	got, err := disp.Data(obj)
	if err != nil {
		t.Fatalf("Data() = %v", err)
	}
	if !bytes.Equal(got, pattern) {
		t.Error("display buffer contents do not match the written pattern")
	}
}

func TestPeerToPeerWithoutLink(t *testing.T) {
	drv := memdriver.New(2) // no EnablePeer
	disp := memdriver.NewDisplay()
	buf, err := New(drv, disp, Config{
		Strategy:    PeerToPeer,
		Format:      FormatUchar4,
		Width:       4,
		Height:      4,
		DeviceIndex: 1,
	})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	defer buf.Close()

	if _, err := buf.Map(); err != nil {
		t.Fatalf("Map() = %v", err)
	}
	if err := buf.Unmap(); err != nil {
		t.Fatalf("Unmap() = %v", err)
	}
	// No peer link: a device error, not a silent fallback to host staging.
	if _, err := buf.DisplayBuffer(); !errors.Is(err, ErrDevice) {
		t.Errorf("DisplayBuffer() without peer link = %v, want ErrDevice", err)
	}
}

func TestPeerToPeerDisplayDeviceIndex(t *testing.T) {
	cfg := Config{
		Strategy:           PeerToPeer,
		Format:             FormatUchar4,
		Width:              4,
		Height:             4,
		DeviceIndex:        0,
		DisplayDeviceIndex: 1,
	}

	t.Run("linked", func(t *testing.T) {
		drv := memdriver.New(2)
		drv.EnablePeer(0, 1)
		disp := memdriver.NewDisplay()
		buf, err := New(drv, disp, cfg)
		if err != nil {
			t.Fatalf("New() = %v", err)
		}
		defer buf.Close()
		if got := buf.DisplayDeviceIndex(); got != 1 {
			t.Fatalf("DisplayDeviceIndex = %d, want 1", got)
		}

		mem, err := buf.Map()
		if err != nil {
			t.Fatalf("Map() = %v", err)
		}
		raw, _ := memdriver.Bytes(mem)
		pattern := makePattern(len(raw))
		copy(raw, pattern)
		if err := buf.Unmap(); err != nil {
			t.Fatalf("Unmap() = %v", err)
		}

		obj, err := buf.DisplayBuffer()
		if err != nil {
			t.Fatalf("DisplayBuffer() = %v", err)
		}
		got, err := disp.Data(obj)
		if err != nil {
			t.Fatalf("Data() = %v", err)
		}
		if !bytes.Equal(got, pattern) {
			t.Error("display buffer contents do not match the written pattern")
		}
	})

	t.Run("unlinked", func(t *testing.T) {
		drv := memdriver.New(2) // no EnablePeer
		buf, err := New(drv, memdriver.NewDisplay(), cfg)
		if err != nil {
			t.Fatalf("New() = %v", err)
		}
		defer buf.Close()

		if _, err := buf.Map(); err != nil {
			t.Fatalf("Map() = %v", err)
		}
		if err := buf.Unmap(); err != nil {
			t.Fatalf("Unmap() = %v", err)
		}
		if _, err := buf.DisplayBuffer(); !errors.Is(err, ErrDevice) {
			t.Errorf("DisplayBuffer() without peer link = %v, want ErrDevice", err)
		}
	})
}

// limitedDevice hides the optional capabilities of a memdriver device.
type limitedDevice struct{ driver.Device }

// limitedProvider wraps devices so they expose only the base Device surface.
type limitedProvider struct{ driver.Provider }

func (p limitedProvider) AcquireDevice(index int) (driver.Device, error) {
	dev, err := p.Provider.AcquireDevice(index)
	if err != nil {
		return nil, err
	}
	return limitedDevice{dev}, nil
}

// limitedDisplay hides the compute-mapping capability of a memdriver display.
type limitedDisplay struct{ display.Backend }

func TestMissingCapabilityFailsCleanly(t *testing.T) {
	t.Run("zero-copy without MappedAllocator", func(t *testing.T) {
		drv := memdriver.New(1)
		buf, err := New(limitedProvider{drv}, memdriver.NewDisplay(), Config{
			Strategy: ZeroCopy, Format: FormatUchar4, Width: 4, Height: 4,
		})
		if err != nil {
			t.Fatalf("New() = %v", err)
		}
		defer buf.Close()
		if _, err := buf.Map(); !errors.Is(err, ErrUnsupportedStrategy) {
			t.Errorf("Map() = %v, want ErrUnsupportedStrategy", err)
		}
	})

	t.Run("interop without ComputeMapper", func(t *testing.T) {
		buf, err := New(memdriver.New(1), limitedDisplay{memdriver.NewDisplay()}, Config{
			Strategy: GraphicsInterop, Format: FormatUchar4, Width: 4, Height: 4,
		})
		if err != nil {
			t.Fatalf("New() = %v", err)
		}
		defer buf.Close()
		if _, err := buf.Map(); !errors.Is(err, ErrUnsupportedStrategy) {
			t.Errorf("Map() = %v, want ErrUnsupportedStrategy", err)
		}
	})

	t.Run("peer-to-peer without ComputeMapper", func(t *testing.T) {
		buf, err := New(memdriver.New(1), limitedDisplay{memdriver.NewDisplay()}, Config{
			Strategy: PeerToPeer, Format: FormatUchar4, Width: 4, Height: 4,
		})
		if err != nil {
			t.Fatalf("New() = %v", err)
		}
		defer buf.Close()
		if _, err := buf.DisplayBuffer(); !errors.Is(err, ErrUnsupportedStrategy) {
			t.Errorf("DisplayBuffer() = %v, want ErrUnsupportedStrategy", err)
		}
	})
}

// failOnceDevice fails the first Alloc and delegates afterwards.
type failOnceDevice struct {
	driver.Device
	failed *bool
}

func (d failOnceDevice) Alloc(size int) (driver.Memory, error) {
	if !*d.failed {
		*d.failed = true
		return nil, errors.New("simulated allocation failure")
	}
	return d.Device.Alloc(size)
}

type failOnceProvider struct {
	driver.Provider
	failed *bool
}

func (p failOnceProvider) AcquireDevice(index int) (driver.Device, error) {
	dev, err := p.Provider.AcquireDevice(index)
	if err != nil {
		return nil, err
	}
	return failOnceDevice{dev, p.failed}, nil
}

func TestFailedAllocationIsRetryable(t *testing.T) {
	failed := false
	drv := memdriver.New(1)
	buf, err := New(failOnceProvider{drv, &failed}, memdriver.NewDisplay(), deviceLocalConfig(4, 4))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	defer buf.Close()

	if _, err := buf.Map(); !errors.Is(err, ErrDevice) {
		t.Fatalf("first Map() = %v, want ErrDevice", err)
	}
	// Storage must be left null, not half-built: the retry allocates fresh.
	mem, err := buf.Map()
	if err != nil {
		t.Fatalf("retry Map() = %v", err)
	}
	if mem.Size() == 0 {
		t.Error("retry Map() returned empty storage")
	}
}

func TestReleaseDisplayBuffer(t *testing.T) {
	r := newTestRig(t, deviceLocalConfig(4, 4))

	if err := r.buf.ReleaseDisplayBuffer(); err != nil {
		t.Fatalf("ReleaseDisplayBuffer() with no object = %v", err)
	}

	if _, err := r.buf.DisplayBuffer(); err != nil {
		t.Fatalf("DisplayBuffer() = %v", err)
	}
	if err := r.buf.ReleaseDisplayBuffer(); err != nil {
		t.Fatalf("ReleaseDisplayBuffer() = %v", err)
	}
	if err := r.buf.ReleaseDisplayBuffer(); err != nil {
		t.Fatalf("second ReleaseDisplayBuffer() = %v", err)
	}
	if got := r.disp.DeleteCalls(); got != 1 {
		t.Errorf("DeleteCalls = %d, want 1", got)
	}

	// A fresh export creates a new object.
	if _, err := r.buf.DisplayBuffer(); err != nil {
		t.Fatalf("DisplayBuffer() after release = %v", err)
	}
	if got := r.disp.CreateCalls(); got != 2 {
		t.Errorf("CreateCalls = %d, want 2", got)
	}
}

func TestCloseIdempotentAndTerminal(t *testing.T) {
	r := newTestRig(t, deviceLocalConfig(4, 4))
	if _, err := r.buf.Map(); err != nil {
		t.Fatalf("Map() = %v", err)
	}
	if _, err := r.buf.DisplayBuffer(); err != nil {
		t.Fatalf("DisplayBuffer() = %v", err)
	}

	if err := r.buf.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := r.buf.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}

	if _, err := r.buf.Map(); !errors.Is(err, ErrClosed) {
		t.Errorf("Map() after Close = %v, want ErrClosed", err)
	}
	if err := r.buf.Resize(8, 8); !errors.Is(err, ErrClosed) {
		t.Errorf("Resize() after Close = %v, want ErrClosed", err)
	}
	if got := r.device(t, 0).FreeCalls(); got != 1 {
		t.Errorf("FreeCalls = %d, want 1", got)
	}
	if got := r.disp.DeleteCalls(); got != 1 {
		t.Errorf("DeleteCalls = %d, want 1", got)
	}
}

func TestMakeCurrentReassertedPerOperation(t *testing.T) {
	drv := memdriver.New(2)
	disp := memdriver.NewDisplay()

	buf0, err := New(drv, disp, deviceLocalConfig(4, 4))
	if err != nil {
		t.Fatalf("New(buf0) = %v", err)
	}
	defer buf0.Close()

	cfg := deviceLocalConfig(4, 4)
	cfg.DeviceIndex = 1
	buf1, err := New(drv, disp, cfg)
	if err != nil {
		t.Fatalf("New(buf1) = %v", err)
	}
	defer buf1.Close()

	if _, err := buf0.Map(); err != nil {
		t.Fatalf("buf0.Map() = %v", err)
	}
	if got := drv.CurrentDevice(); got != 0 {
		t.Errorf("CurrentDevice after buf0.Map = %d, want 0", got)
	}
	if _, err := buf1.Map(); err != nil {
		t.Fatalf("buf1.Map() = %v", err)
	}
	if got := drv.CurrentDevice(); got != 1 {
		t.Errorf("CurrentDevice after buf1.Map = %d, want 1", got)
	}
	if err := buf0.Unmap(); err != nil {
		t.Fatalf("buf0.Unmap() = %v", err)
	}
	if got := drv.CurrentDevice(); got != 0 {
		t.Errorf("CurrentDevice after buf0.Unmap = %d, want 0", got)
	}
}

func TestConfigureReappliesDescriptor(t *testing.T) {
	r := newTestRig(t, deviceLocalConfig(4, 4))
	if _, err := r.buf.Map(); err != nil {
		t.Fatalf("Map() = %v", err)
	}

	// Identical descriptor: no invalidation.
	if err := r.buf.Configure(deviceLocalConfig(4, 4)); err != nil {
		t.Fatalf("Configure(same) = %v", err)
	}
	if _, err := r.buf.Map(); err != nil {
		t.Fatalf("Map() = %v", err)
	}
	if got := r.device(t, 0).AllocCalls(); got != 1 {
		t.Errorf("AllocCalls after identical Configure = %d, want 1", got)
	}

	// Changed descriptor: one reallocation.
	if err := r.buf.Configure(Config{Strategy: DeviceLocal, Format: FormatUchar4, Width: 6, Height: 6}); err != nil {
		t.Fatalf("Configure(changed) = %v", err)
	}
	if r.buf.Format() != FormatUchar4 || r.buf.Width() != 6 || r.buf.Height() != 6 {
		t.Errorf("descriptor = %v %dx%d, want uchar4 6x6", r.buf.Format(), r.buf.Width(), r.buf.Height())
	}
	if _, err := r.buf.Map(); err != nil {
		t.Fatalf("Map() = %v", err)
	}
	if got := r.device(t, 0).AllocCalls(); got != 2 {
		t.Errorf("AllocCalls after changed Configure = %d, want 2", got)
	}
}

// makePattern fills a deterministic byte pattern for round-trip checks.
func makePattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + 3)
	}
	return p
}
