// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpudisplay

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// nullProvider is a DeviceProvider that does not expose HAL handles.
type nullProvider struct{}

func (nullProvider) Device() gpucontext.Device   { return nil }
func (nullProvider) Queue() gpucontext.Queue     { return nil }
func (nullProvider) Adapter() gpucontext.Adapter { return nil }
func (nullProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

var _ gpucontext.DeviceProvider = nullProvider{}

func TestNewNilDevice(t *testing.T) {
	if _, err := New(nil, nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("New(nil, nil) = %v, want ErrNilDevice", err)
	}
}

func TestNewFromProviderNil(t *testing.T) {
	if _, err := NewFromProvider(nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("NewFromProvider(nil) = %v, want ErrNilDevice", err)
	}
}

func TestNewFromProviderWithoutHal(t *testing.T) {
	if _, err := NewFromProvider(nullProvider{}); !errors.Is(err, ErrNoHalProvider) {
		t.Errorf("NewFromProvider(nullProvider) = %v, want ErrNoHalProvider", err)
	}
}
