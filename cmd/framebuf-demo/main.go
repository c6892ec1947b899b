// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Command framebuf-demo runs a software compute kernel through the framebuf
// residency controller and writes the exported pixels to an image file.
//
// It exercises the full frame loop — configure, map, kernel write, unmap,
// export — on a registered driver (the software "mem" driver by default),
// for any of the four transfer strategies.
//
// Example:
//
//	framebuf-demo --width 800 --height 600 --strategy zero-copy -o out.webp
package main

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/spf13/cobra"
	"golang.org/x/image/draw"

	"github.com/gogpu/framebuf"
	"github.com/gogpu/framebuf/driver"
	"github.com/gogpu/framebuf/driver/memdriver"
)

var (
	width      int
	height     int
	formatTag  string
	strategy   string
	driverName string
	scale      float64
	outPath    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "framebuf-demo",
	Short: "Render a test gradient through the framebuf transfer pipeline",
	Long: `framebuf-demo drives the framebuf residency controller end to end:
it maps the compute buffer, writes a gradient the way a compute kernel
would, unmaps, exports the display buffer object, and encodes the result
as WebP or PNG depending on the output file extension.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().IntVar(&width, "width", 512, "buffer width in pixels")
	rootCmd.Flags().IntVar(&height, "height", 512, "buffer height in pixels")
	rootCmd.Flags().StringVar(&formatTag, "format", "uchar4", "pixel format tag (float4, uchar4, ...)")
	rootCmd.Flags().StringVar(&strategy, "strategy", "device-local", "transfer strategy (device-local, graphics-interop, zero-copy, peer-to-peer)")
	rootCmd.Flags().StringVar(&driverName, "driver", "mem", "registered compute driver name")
	rootCmd.Flags().Float64Var(&scale, "scale", 1.0, "scale factor applied to the output image")
	rootCmd.Flags().StringVarP(&outPath, "output", "o", "framebuf-demo.webp", "output image path (.webp or .png)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	if verbose {
		framebuf.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	strat, err := framebuf.ParseStrategy(strategy)
	if err != nil {
		return err
	}

	provider, err := driver.Open(driverName)
	if err != nil {
		return fmt.Errorf("open driver %q (registered: %s): %w", driverName, strings.Join(driver.List(), ", "), err)
	}
	disp := memdriver.NewDisplay()

	buf, err := framebuf.New(provider, disp, framebuf.Config{
		Strategy:  strat,
		FormatTag: formatTag,
		Width:     width,
		Height:    height,
	})
	if err != nil {
		return err
	}
	defer buf.Close()

	// The frame loop: map, kernel write, unmap, export.
	mem, err := buf.Map()
	if err != nil {
		return err
	}
	raw, ok := memdriver.Bytes(mem)
	if !ok {
		return fmt.Errorf("driver %q does not expose host-writable memory; the demo kernel is software-only", driverName)
	}
	writeGradient(raw, buf.Format(), width, height)
	if err := buf.Unmap(); err != nil {
		return err
	}
	obj, err := buf.DisplayBuffer()
	if err != nil {
		return err
	}
	pixels, err := disp.Data(obj)
	if err != nil {
		return err
	}
	fmt.Printf("exported %d bytes (%dx%d %s, %s) via display buffer %d\n",
		len(pixels), width, height, buf.Format(), buf.Strategy(), obj.ID())

	img := toImage(pixels, buf.Format(), width, height)
	if scale != 1.0 {
		img = resize(img, scale)
	}
	return writeImage(outPath, img)
}

// writeGradient plays the role of the compute kernel: it fills the mapped
// region with a horizontal/vertical color ramp in the buffer's pixel format.
func writeGradient(raw []byte, f framebuf.PixelFormat, w, h int) {
	bpp := f.BytesPerPixel()
	for y := range h {
		for x := range w {
			px := raw[(y*w+x)*bpp:]
			writePixel(px, f, [4]float32{ramp(x, w), ramp(y, h), 0.25, 1})
		}
	}
}

// ramp maps position i on an n-pixel axis to [0, 1]. A 1-pixel axis has no
// gradient and stays at 0.
func ramp(i, n int) float32 {
	if n <= 1 {
		return 0
	}
	return float32(i) / float32(n-1)
}

func writePixel(dst []byte, f framebuf.PixelFormat, rgba [4]float32) {
	for c := range f.Channels {
		v := rgba[c]
		switch f.Elem {
		case framebuf.ElemFloat32:
			binary.LittleEndian.PutUint32(dst[c*4:], math.Float32bits(v))
		case framebuf.ElemUint8:
			dst[c] = uint8(v*255 + 0.5)
		}
	}
}

// toImage converts exported pixels to NRGBA for encoding. Missing channels
// default to opaque black.
func toImage(pixels []byte, f framebuf.PixelFormat, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	bpp := f.BytesPerPixel()
	for y := range h {
		for x := range w {
			src := pixels[(y*w+x)*bpp:]
			var rgba [4]float32
			rgba[3] = 1
			for c := range f.Channels {
				switch f.Elem {
				case framebuf.ElemFloat32:
					rgba[c] = math.Float32frombits(binary.LittleEndian.Uint32(src[c*4:]))
				case framebuf.ElemUint8:
					rgba[c] = float32(src[c]) / 255
				}
			}
			o := img.PixOffset(x, y)
			for c := range 4 {
				img.Pix[o+c] = uint8(min(max(rgba[c], 0), 1)*255 + 0.5)
			}
		}
	}
	return img
}

func resize(img *image.NRGBA, factor float64) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0,
		int(float64(b.Dx())*factor), int(float64(b.Dy())*factor)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func writeImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".webp":
		err = nativewebp.Encode(f, img, nil)
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	fmt.Println("wrote", path)
	return nil
}
