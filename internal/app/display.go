// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/edl_robot/internal/config"
	"github.com/relabs-tech/edl_robot/internal/livegraph"
	"github.com/relabs-tech/edl_robot/internal/orientation"
)

const (
	oledWidth  = 128
	oledHeight = 64
)

// Screen is the part of ssd1306.Dev the display loop needs.
type Screen interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

func newFrame() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, oledWidth, oledHeight))
	return img, &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
}

func drawLines(d *font.Drawer, x int, lines ...string) {
	for i, s := range lines {
		d.Dot = fixed.P(x, 13*(i+1))
		d.DrawString(s)
	}
}

// PoseFrame renders roll, pitch and yaw as three text lines.
func PoseFrame(p orientation.Pose, have bool) *image1bit.VerticalLSB {
	img, d := newFrame()
	if !have {
		drawLines(d, 0, "", "Orientation", "Waiting...")
		return img
	}
	drawLines(d, 0,
		fmt.Sprintf("R: %6.1f", p.Roll),
		fmt.Sprintf("P: %6.1f", p.Pitch),
		fmt.Sprintf("Y: %6.1f", p.Yaw),
	)
	return img
}

// SplashFrame is shown while waiting for the first message.
func SplashFrame() *image1bit.VerticalLSB {
	img, d := newFrame()
	drawLines(d, 10, "", "EDL Robot", "Orientation")
	return img
}

// GraphFrame renders a snapshot in white on black at OLED resolution.
func GraphFrame(r *livegraph.ImageRenderer, s livegraph.Snapshot) *image1bit.VerticalLSB {
	img, _ := newFrame()
	src := r.Draw(s)
	draw.Draw(img, img.Bounds(), src, image.Point{}, draw.Src)
	return img
}

// NewOLEDRenderer returns a monochrome-friendly graph renderer.
func NewOLEDRenderer() *livegraph.ImageRenderer {
	r := livegraph.NewImageRenderer(oledWidth, oledHeight)
	r.Background = color.Black
	r.Primary = color.White
	r.Secondary = color.White
	r.LineWidth = 1
	return r
}

// ScreenSink draws every graph render onto a screen.
type ScreenSink struct {
	Screen   Screen
	Renderer *livegraph.ImageRenderer
}

func (s *ScreenSink) Render(snap livegraph.Snapshot) error {
	return s.Screen.Draw(s.Screen.Bounds(), GraphFrame(s.Renderer, snap), image.Point{})
}

// poseDisplay holds the latest pose for the text screen.
type poseDisplay struct {
	mu   sync.RWMutex
	pose orientation.Pose
	have bool
}

func (d *poseDisplay) set(p orientation.Pose) {
	d.mu.Lock()
	d.pose, d.have = p, true
	d.mu.Unlock()
}

func (d *poseDisplay) get() (orientation.Pose, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pose, d.have
}

// runPoseScreen redraws the pose every interval until ctx is done.
func runPoseScreen(ctx context.Context, scr Screen, d *poseDisplay, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		p, have := d.get()
		if err := scr.Draw(scr.Bounds(), PoseFrame(p, have), image.Point{}); err != nil {
			log.Warnf("display: error updating display: %v", err)
		}
	}
}

// RunDisplay shows the pose stream on an SSD1306 OLED, either as text or
// as a scrolling graph of the configured series.
func RunDisplay(ctx context.Context, cfg *config.Config) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(cfg.Display.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	log.Printf("display: initialized, showing %s", cfg.Display.Content)

	if err := dev.Draw(dev.Bounds(), SplashFrame(), image.Point{}); err != nil {
		log.Warnf("display: error showing splash: %v", err)
	}

	client, err := ConnectMQTT(cfg.MQTT, cfg.MQTT.ClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if cfg.Display.Content == "graph" {
		g, err := livegraph.New(livegraph.Options{
			Title:          cfg.Graph.Series,
			Capacity:       oledWidth,
			UpdateInterval: cfg.Display.UpdateInterval,
		}, &ScreenSink{Screen: dev, Renderer: NewOLEDRenderer()})
		if err != nil {
			return err
		}
		err = SubscribeJSON(client, cfg.Topics.Pose, func(m PoseMessage) {
			g.AddDataPoint(SeriesValue(m.Pose, cfg.Graph.Series), nil, true)
		})
		if err != nil {
			return err
		}
		if err := g.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return g.Stop()
	}

	state := &poseDisplay{}
	if err := SubscribeJSON(client, cfg.Topics.Pose, func(m PoseMessage) { state.set(m.Pose) }); err != nil {
		return err
	}
	return runPoseScreen(ctx, dev, state, cfg.Display.UpdateInterval)
}
