// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package memdriver

import (
	"fmt"
	"sync"

	"github.com/gogpu/framebuf/display"
	"github.com/gogpu/framebuf/driver"
)

// Display is a software display backend. Buffer objects are host byte
// slices; compute mapping hands the object's storage to a simulated device
// so interop and peer strategies work end to end.
type Display struct {
	mu     sync.Mutex
	nextID uint64
	olist  map[uint64]*object

	createCalls int
	uploadCalls int
	deleteCalls int
}

// NewDisplay creates an empty software display backend.
func NewDisplay() *Display {
	return &Display{
		nextID: 1,
		olist:  make(map[uint64]*object),
	}
}

// CreateCalls returns how many buffer objects were created.
func (d *Display) CreateCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.createCalls
}

// UploadCalls returns how many uploads ran.
func (d *Display) UploadCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.uploadCalls
}

// DeleteCalls returns how many buffer objects were deleted.
func (d *Display) DeleteCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deleteCalls
}

// CreateBuffer creates a buffer object with size bytes of zeroed storage.
func (d *Display) CreateBuffer(size int) (display.Object, error) {
	if size <= 0 {
		return nil, fmt.Errorf("memdriver: display buffer size %d", size)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	obj := &object{id: d.nextID, disp: d, data: make([]byte, size)}
	d.nextID++
	d.olist[obj.id] = obj
	d.createCalls++
	return obj, nil
}

// Upload replaces the object's contents, resizing its storage to len(data).
// The object handle keeps its identity.
func (d *Display) Upload(obj display.Object, data []byte) error {
	o, err := d.own(obj)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if o.mapped {
		return fmt.Errorf("memdriver: upload to display buffer %d while mapped for compute", o.id)
	}
	if len(o.data) != len(data) {
		o.data = make([]byte, len(data))
	}
	copy(o.data, data)
	d.uploadCalls++
	return nil
}

// Delete destroys the object. Deleting an already-deleted object fails.
func (d *Display) Delete(obj display.Object) error {
	o, err := d.own(obj)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.olist[o.id]; !ok {
		return fmt.Errorf("memdriver: delete of unknown display buffer %d", o.id)
	}
	delete(d.olist, o.id)
	d.deleteCalls++
	return nil
}

// MapForCompute exposes the object's storage as device memory on dev.
// Kernel writes through the returned memory land directly in the object.
func (d *Display) MapForCompute(obj display.Object, dev driver.Device) (driver.Memory, error) {
	o, err := d.own(obj)
	if err != nil {
		return nil, err
	}
	mdev, ok := dev.(*Device)
	if !ok {
		return nil, fmt.Errorf("memdriver: cannot map display buffer for a foreign device")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if o.mapped {
		return nil, fmt.Errorf("memdriver: display buffer %d already mapped", o.id)
	}
	o.mapped = true
	// Share the object's backing array so writes land in place.
	return &memory{buf: o.data, dev: mdev}, nil
}

// UnmapFromCompute releases the active mapping.
func (d *Display) UnmapFromCompute(obj display.Object) error {
	o, err := d.own(obj)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !o.mapped {
		return fmt.Errorf("memdriver: display buffer %d is not mapped", o.id)
	}
	o.mapped = false
	return nil
}

// Data returns a copy of the object's current contents. Test and demo
// helper; a real display backend has no readback path.
func (d *Display) Data(obj display.Object) ([]byte, error) {
	o, err := d.own(obj)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, len(o.data))
	copy(out, o.data)
	return out, nil
}

func (d *Display) own(obj display.Object) (*object, error) {
	o, ok := obj.(*object)
	if !ok || o.disp != d {
		return nil, fmt.Errorf("memdriver: foreign display buffer handle")
	}
	return o, nil
}

// object is a software display buffer.
type object struct {
	id     uint64
	disp   *Display
	data   []byte
	mapped bool
}

func (o *object) ID() uint64 { return o.id }
func (o *object) Size() int  { return len(o.data) }

// Interface compliance.
var (
	_ display.Backend       = (*Display)(nil)
	_ display.ComputeMapper = (*Display)(nil)
	_ display.Object        = (*object)(nil)
)
