// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package livegraph

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/relabs-tech/edl_robot/internal/buffer"
)

var (
	DefaultBackground = color.RGBA{0xff, 0xff, 0xff, 0xff}
	DefaultPrimary    = color.RGBA{0x1f, 0x77, 0xb4, 0xff}
	DefaultSecondary  = color.RGBA{0xd6, 0x27, 0x28, 0xff}
	axisColor         = color.RGBA{0x40, 0x40, 0x40, 0xff}
)

// ImageRenderer draws a snapshot as a line plot. Invalid points break the
// line; the secondary series is drawn dashed.
type ImageRenderer struct {
	Width, Height int
	Background    color.Color
	Primary       color.Color
	Secondary     color.Color
	LineWidth     float32
}

// NewImageRenderer returns a renderer with the default palette.
func NewImageRenderer(w, h int) *ImageRenderer {
	return &ImageRenderer{
		Width:      w,
		Height:     h,
		Background: DefaultBackground,
		Primary:    DefaultPrimary,
		Secondary:  DefaultSecondary,
		LineWidth:  1.5,
	}
}

const (
	marginLeft   = 40
	marginRight  = 8
	marginTop    = 18
	marginBottom = 16
)

// Draw renders s into a new RGBA image.
func (r *ImageRenderer) Draw(s Snapshot) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{r.Background}, image.Point{}, draw.Src)

	plot := image.Rect(marginLeft, marginTop, r.Width-marginRight, r.Height-marginBottom)
	r.drawAxes(img, plot)

	d := &font.Drawer{Dst: img, Src: &image.Uniform{axisColor}, Face: basicfont.Face7x13}
	title := s.Title
	if last, ok := s.Last(); ok {
		title = fmt.Sprintf("%s  %.2f", title, last.Value)
	}
	d.Dot = fixed.P(marginLeft, 13)
	d.DrawString(title)

	b, ok := bounds(s.Points)
	if !ok {
		d.Dot = fixed.P(plot.Min.X+4, plot.Min.Y+16)
		d.DrawString("no data")
		return img
	}
	d.Dot = fixed.P(2, plot.Min.Y+10)
	d.DrawString(fmt.Sprintf("%.1f", b.maxV))
	d.Dot = fixed.P(2, plot.Max.Y)
	d.DrawString(fmt.Sprintf("%.1f", b.minV))

	project := func(t, v float64) (float32, float32) {
		x := float64(plot.Min.X) + (t-b.minT)/(b.maxT-b.minT)*float64(plot.Dx())
		y := float64(plot.Max.Y) - (v-b.minV)/(b.maxV-b.minV)*float64(plot.Dy())
		return float32(x), float32(y)
	}

	z := vector.NewRasterizer(r.Width, r.Height)
	primary := &image.Uniform{r.Primary}
	secondary := &image.Uniform{r.Secondary}
	for i := 1; i < len(s.Points); i++ {
		a, c := s.Points[i-1], s.Points[i]
		if !a.Valid || !c.Valid {
			continue
		}
		ax, ay := project(a.Time, a.Value)
		cx, cy := project(c.Time, c.Value)
		r.stroke(z, img, primary, ax, ay, cx, cy)

		if a.HasSecondary && c.HasSecondary && i%2 == 0 {
			ax, ay = project(a.Time, a.Secondary)
			cx, cy = project(c.Time, c.Secondary)
			r.stroke(z, img, secondary, ax, ay, cx, cy)
		}
	}
	return img
}

// Render satisfies Sink by drawing and discarding; useful as a smoke sink.
func (r *ImageRenderer) Render(s Snapshot) error {
	_ = r.Draw(s)
	return nil
}

func (r *ImageRenderer) drawAxes(img *image.RGBA, plot image.Rectangle) {
	c := &image.Uniform{axisColor}
	draw.Draw(img, image.Rect(plot.Min.X-1, plot.Min.Y, plot.Min.X, plot.Max.Y+1), c, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(plot.Min.X-1, plot.Max.Y, plot.Max.X, plot.Max.Y+1), c, image.Point{}, draw.Src)
}

// stroke draws one segment as a thin quad. Each segment is rasterized on
// its own so overlapping segments cannot cancel each other's coverage.
func (r *ImageRenderer) stroke(z *vector.Rasterizer, dst *image.RGBA, src image.Image, x0, y0, x1, y1 float32) {
	dx, dy := x1-x0, y1-y0
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		dx, dy, l = 1, 0, 1
	}
	w := r.LineWidth
	if w <= 0 {
		w = 1
	}
	nx, ny := -dy/l*w/2, dx/l*w/2

	z.Reset(r.Width, r.Height)
	z.MoveTo(x0+nx, y0+ny)
	z.LineTo(x1+nx, y1+ny)
	z.LineTo(x1-nx, y1-ny)
	z.LineTo(x0-nx, y0-ny)
	z.ClosePath()
	z.Draw(dst, dst.Bounds(), src, image.Point{})
}

type plotBounds struct {
	minT, maxT, minV, maxV float64
}

// bounds spans the valid points of both series, padded so a flat series
// still has a non-zero range.
func bounds(pts []buffer.Point) (plotBounds, bool) {
	b := plotBounds{minT: math.Inf(1), maxT: math.Inf(-1), minV: math.Inf(1), maxV: math.Inf(-1)}
	n := 0
	for _, p := range pts {
		if !p.Valid {
			continue
		}
		n++
		b.minT = math.Min(b.minT, p.Time)
		b.maxT = math.Max(b.maxT, p.Time)
		b.minV = math.Min(b.minV, p.Value)
		b.maxV = math.Max(b.maxV, p.Value)
		if p.HasSecondary {
			b.minV = math.Min(b.minV, p.Secondary)
			b.maxV = math.Max(b.maxV, p.Secondary)
		}
	}
	if n == 0 {
		return b, false
	}
	if b.maxT == b.minT {
		b.maxT = b.minT + 1
	}
	if b.maxV == b.minV {
		b.minV -= 1
		b.maxV += 1
	}
	return b, true
}

// PNGSink writes every snapshot to Path, replacing the previous image.
type PNGSink struct {
	Path     string
	Renderer *ImageRenderer
}

func (s *PNGSink) Render(snap Snapshot) error {
	return WritePNG(s.Path, s.Renderer.Draw(snap))
}

// WritePNG encodes img next to path and renames it into place, so readers
// never see a partial file.
func WritePNG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".graph-*.png")
	if err != nil {
		return fmt.Errorf("livegraph: png temp file: %w", err)
	}
	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("livegraph: png encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("livegraph: png close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("livegraph: png rename: %w", err)
	}
	return nil
}
