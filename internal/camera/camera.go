// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package camera captures frames on a background goroutine and keeps only the
// latest one for readers.
package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"strconv"

	"golang.org/x/image/bmp"
)

// Device is an exclusively owned capture handle. Capture may block.
type Device interface {
	Capture(ctx context.Context) (image.Image, error)
	Close() error
}

// DefaultStillCommand is the Raspberry Pi still-capture tool.
const DefaultStillCommand = "rpicam-still"

// StillCommand captures one frame per call by running an external command
// that writes a BMP to stdout.
type StillCommand struct {
	Command string
	Args    []string
}

// NewStillCommand returns a device running rpicam-still at the given
// resolution with the preview disabled.
func NewStillCommand(width, height int) *StillCommand {
	return &StillCommand{
		Command: DefaultStillCommand,
		Args: []string{
			"-n", "-t", "1",
			"--width", strconv.Itoa(width),
			"--height", strconv.Itoa(height),
			"-e", "bmp",
			"-o", "-",
		},
	}
}

func (c *StillCommand) Capture(ctx context.Context) (image.Image, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Command, c.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w (%s)", c.Command, err, bytes.TrimSpace(stderr.Bytes()))
	}
	img, err := bmp.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode %s output: %w", c.Command, err)
	}
	return img, nil
}

// Close is a no-op; each capture owns its own process.
func (c *StillCommand) Close() error { return nil }

// SwapRB returns a copy of img with the red and blue channels exchanged.
func SwapRB(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			i := out.PixOffset(x, y)
			out.Pix[i+0] = uint8(bl >> 8)
			out.Pix[i+1] = uint8(g >> 8)
			out.Pix[i+2] = uint8(r >> 8)
			out.Pix[i+3] = uint8(a >> 8)
		}
	}
	return out
}
