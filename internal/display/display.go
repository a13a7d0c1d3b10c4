// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display renders the door state on a 128x64 SSD1306 OLED.
package display

import (
	"fmt"
	"image"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/doorwatch/internal/monitor"
)

const (
	Width  = 128
	Height = 64

	// Addr is the only address the ssd1306 driver talks to.
	Addr = 0x3C
)

// drawer is the part of ssd1306.Dev the panel uses.
type drawer interface {
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// Panel is a monitor.Sink that redraws the OLED on every result.
type Panel struct {
	dev  drawer
	last string // text of the previous frame, used to skip identical redraws
}

// Open initializes the SSD1306 at Addr and shows the splash screen.
func Open(bus i2c.Bus) (*Panel, error) {
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "init ssd1306 at 0x%02X", Addr)
	}
	logrus.Infof("display: initialized at 0x%02X", Addr)
	p := &Panel{dev: dev}
	if err := p.dev.Draw(image.Rect(0, 0, Width, Height), Splash(), image.Point{}); err != nil {
		logrus.Warnf("display: splash: %v", err)
	}
	return p, nil
}

// Show implements monitor.Sink.
func (p *Panel) Show(r monitor.Result) error {
	key := frameKey(r)
	if key == p.last {
		return nil
	}
	if err := p.dev.Draw(image.Rect(0, 0, Width, Height), Render(r), image.Point{}); err != nil {
		return errors.Wrap(err, "draw frame")
	}
	p.last = key
	return nil
}

func frameKey(r monitor.Result) string {
	return fmt.Sprintf("%s|%s|%t|%t", r.State, r.Adjusted, r.Calibrated, r.Stale)
}

// Render draws one result: the state in double-size text on top, the
// adjusted axes below and a flag line at the bottom.
func Render(r monitor.Result) *image1bit.VerticalLSB {
	img := blank()
	drawLarge(img, 4, 2, stateLabel(r))

	d := newDrawer(img)
	d.Dot = fixed.P(0, 42)
	d.DrawString(fmt.Sprintf("X%5d Y%5d", r.Adjusted.X, r.Adjusted.Y))
	d.Dot = fixed.P(0, 62)
	d.DrawString(fmt.Sprintf("Z%5d %s", r.Adjusted.Z, flags(r)))
	return img
}

// Splash is the frame shown before the first result.
func Splash() *image1bit.VerticalLSB {
	img := blank()
	drawLarge(img, 4, 2, "DOOR")
	d := newDrawer(img)
	d.Dot = fixed.P(10, 52)
	d.DrawString("Waiting...")
	return img
}

func stateLabel(r monitor.Result) string {
	return fmt.Sprintf("%-6s", strings.ToUpper(r.State.String()))
}

func flags(r monitor.Result) string {
	switch {
	case r.Stale:
		return "STALE"
	case !r.Calibrated:
		return "UNCAL"
	}
	return "OK"
}

func blank() *image1bit.VerticalLSB {
	return image1bit.NewVerticalLSB(image.Rect(0, 0, Width, Height))
}

func newDrawer(dst *image1bit.VerticalLSB) *font.Drawer {
	return &font.Drawer{
		Dst:  dst,
		Src:  &image.Uniform{C: image1bit.On},
		Face: basicfont.Face7x13,
	}
}

// drawLarge draws s at twice the font size with its top-left corner at (x, y).
func drawLarge(dst *image1bit.VerticalLSB, x, y int, s string) {
	face := basicfont.Face7x13
	small := image1bit.NewVerticalLSB(image.Rect(0, 0, len(s)*face.Advance, face.Height))
	d := newDrawer(small)
	d.Dot = fixed.P(0, face.Ascent)
	d.DrawString(s)

	b := small.Bounds()
	for sy := b.Min.Y; sy < b.Max.Y; sy++ {
		for sx := b.Min.X; sx < b.Max.X; sx++ {
			if !small.BitAt(sx, sy) {
				continue
			}
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					px, py := x+2*sx+dx, y+2*sy+dy
					if px < Width && py < Height {
						dst.SetBit(px, py, image1bit.On)
					}
				}
			}
		}
	}
}
