// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package framebuf

import (
	"errors"
	"strings"
	"testing"
)

func TestStrategyString(t *testing.T) {
	tests := []struct {
		s    Strategy
		want string
	}{
		{DeviceLocal, "device-local"},
		{GraphicsInterop, "graphics-interop"},
		{ZeroCopy, "zero-copy"},
		{PeerToPeer, "peer-to-peer"},
		{Strategy(42), "Strategy(42)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{DeviceLocal, GraphicsInterop, ZeroCopy, PeerToPeer} {
		got, err := ParseStrategy(s.String())
		if err != nil {
			t.Errorf("ParseStrategy(%q) = %v", s.String(), err)
			continue
		}
		if got != s {
			t.Errorf("ParseStrategy(%q) = %v, want %v", s.String(), got, s)
		}
	}

	if _, err := ParseStrategy("dma"); !errors.Is(err, ErrUnsupportedStrategy) {
		t.Errorf("ParseStrategy(dma) = %v, want ErrUnsupportedStrategy", err)
	}
}

func TestNewTransferUnknownStrategy(t *testing.T) {
	if _, err := newTransfer(Strategy(42)); !errors.Is(err, ErrUnsupportedStrategy) {
		t.Errorf("newTransfer(42) = %v, want ErrUnsupportedStrategy", err)
	}
}

func TestNewTransferMatchesStrategy(t *testing.T) {
	for _, s := range []Strategy{DeviceLocal, GraphicsInterop, ZeroCopy, PeerToPeer} {
		tr, err := newTransfer(s)
		if err != nil {
			t.Fatalf("newTransfer(%v) = %v", s, err)
		}
		if got := tr.strategy(); got != s {
			t.Errorf("transfer for %v reports strategy %v", s, got)
		}
	}
}

func TestStrategyErrorMessage(t *testing.T) {
	err := &StrategyError{Strategy: ZeroCopy, Op: "Map", Missing: "driver.MappedAllocator"}
	if !errors.Is(err, ErrUnsupportedStrategy) {
		t.Error("StrategyError does not unwrap to ErrUnsupportedStrategy")
	}
	msg := err.Error()
	for _, want := range []string{"Map", "zero-copy", "driver.MappedAllocator"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}

	bare := &StrategyError{Strategy: PeerToPeer, Op: "HostBuffer"}
	if strings.Contains(bare.Error(), "missing") {
		t.Errorf("Error() = %q, should not name a missing capability", bare.Error())
	}
}
