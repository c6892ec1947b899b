// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package framebuf

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// ElemKind identifies the scalar element type of a pixel channel.
type ElemKind uint8

const (
	// ElemInvalid is the zero value; not a usable element kind.
	ElemInvalid ElemKind = iota

	// ElemFloat32 is a 32-bit IEEE float channel.
	ElemFloat32

	// ElemUint8 is an 8-bit unsigned normalized channel.
	ElemUint8
)

// elemSize returns the size of one element in bytes.
func (k ElemKind) elemSize() int {
	switch k {
	case ElemFloat32:
		return 4
	case ElemUint8:
		return 1
	default:
		return 0
	}
}

func (k ElemKind) String() string {
	switch k {
	case ElemFloat32:
		return "float"
	case ElemUint8:
		return "uchar"
	default:
		return "invalid"
	}
}

// PixelFormat describes the semantic pixel type of a buffer: the scalar
// element kind and the number of channels per pixel. PixelFormat is a
// comparable value type; equality means identical storage layout.
type PixelFormat struct {
	Elem     ElemKind
	Channels int
}

// Common pixel formats.
var (
	// FormatFloat4 is 4 x float32 per pixel (RGBA).
	FormatFloat4 = PixelFormat{Elem: ElemFloat32, Channels: 4}

	// FormatFloat3 is 3 x float32 per pixel (RGB).
	FormatFloat3 = PixelFormat{Elem: ElemFloat32, Channels: 3}

	// FormatFloat is a single float32 per pixel.
	FormatFloat = PixelFormat{Elem: ElemFloat32, Channels: 1}

	// FormatUchar4 is 4 x uint8 per pixel (RGBA8).
	FormatUchar4 = PixelFormat{Elem: ElemUint8, Channels: 4}

	// FormatUchar3 is 3 x uint8 per pixel (RGB8).
	FormatUchar3 = PixelFormat{Elem: ElemUint8, Channels: 3}

	// FormatUchar is a single uint8 per pixel.
	FormatUchar = PixelFormat{Elem: ElemUint8, Channels: 1}
)

// Valid reports whether the format resolves to a concrete storage type.
func (f PixelFormat) Valid() bool {
	return f.Elem.elemSize() > 0 && f.Channels >= 1 && f.Channels <= 4
}

// BytesPerPixel returns the storage size of one pixel.
func (f PixelFormat) BytesPerPixel() int {
	return f.Elem.elemSize() * f.Channels
}

func (f PixelFormat) String() string {
	if !f.Valid() {
		return "invalid"
	}
	if f.Channels == 1 {
		return f.Elem.String()
	}
	return fmt.Sprintf("%s%d", f.Elem, f.Channels)
}

// TextureFormat returns the texture format a display pipeline would use to
// sample this pixel layout directly. Three-channel layouts have no packed
// texture equivalent and return TextureFormatUndefined; they are still valid
// buffer storage.
func (f PixelFormat) TextureFormat() gputypes.TextureFormat {
	switch f {
	case FormatFloat4:
		return gputypes.TextureFormatRGBA32Float
	case PixelFormat{Elem: ElemFloat32, Channels: 2}:
		return gputypes.TextureFormatRG32Float
	case FormatFloat:
		return gputypes.TextureFormatR32Float
	case FormatUchar4:
		return gputypes.TextureFormatRGBA8Unorm
	case FormatUchar:
		return gputypes.TextureFormatR8Unorm
	default:
		return gputypes.TextureFormatUndefined
	}
}

// formatTags maps format tags to concrete pixel formats. Vector-type tags
// ("float4", "uchar3") follow the compute-kernel naming convention; the
// texture-style aliases are accepted for callers coming from the display side.
var formatTags = map[string]PixelFormat{
	"float":   FormatFloat,
	"float2":  {Elem: ElemFloat32, Channels: 2},
	"float3":  FormatFloat3,
	"float4":  FormatFloat4,
	"uchar":   FormatUchar,
	"uchar3":  FormatUchar3,
	"uchar4":  FormatUchar4,
	"r32f":    FormatFloat,
	"rg32f":   {Elem: ElemFloat32, Channels: 2},
	"rgba32f": FormatFloat4,
	"r8":      FormatUchar,
	"rgb8":    FormatUchar3,
	"rgba8":   FormatUchar4,
}

// ResolveFormat resolves a format tag to a concrete pixel format.
// Unknown tags fail with ErrInvalidFormat.
func ResolveFormat(tag string) (PixelFormat, error) {
	f, ok := formatTags[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return PixelFormat{}, fmt.Errorf("%w: unknown tag %q", ErrInvalidFormat, tag)
	}
	return f, nil
}
