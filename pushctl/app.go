// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package pushctl implements the "pushctl" command-line tool: it discovers
// PixelPusher controllers on the local network, drives them through a
// control.Registry frame clock with a simple color-cycling test pattern, and
// reports pusher lifecycle and status through the standard log package
// (stderr).
//
// It exists to exercise control.Registry end-to-end the way demo/colorphase
// exercises the lower-level device.Mutable path.
package pushctl

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danjacques/gopushpixels/control"
	"github.com/danjacques/gopushpixels/discovery"
	"github.com/danjacques/gopushpixels/protocol/pixelpusher"

	"github.com/spf13/pflag"
)

var (
	frameRateLimit = pflag.Int("frame-rate", 30,
		"Maximum frames per second to drive connected pushers. Zero means unlimited.")
	totalPowerLimit = pflag.Int64("power-limit", -1,
		"Total electrical power budget, in the units PowerTotal beacons report, across all pushers. Negative disables enforcement.")
	brightnessLimit = pflag.Float64("brightness-limit", 0,
		"If greater than zero, caps average strip brightness to this fraction of full scale.")
	autothrottle = pflag.Bool("autothrottle", true,
		"Automatically adjust pacing in response to dropped packets.")
	statusInterval = pflag.Duration("status-interval", 5*time.Second,
		"How often to print a summary of tracked pushers.")
)

// Main is pushctl's entry point.
func Main() {
	pflag.Parse()

	var l discovery.Listener
	conn, err := discovery.DefaultListenerConn().ListenMulticastUDP4()
	if err != nil {
		log.Fatalf("pushctl: couldn't listen for discovery packets: %s", err)
	}
	defer conn.Close()
	if err := l.Start(conn); err != nil {
		log.Fatalf("pushctl: couldn't start discovery listener: %s", err)
	}

	reg := &control.Registry{
		Listener:                  &l,
		FrameRateLimit:            *frameRateLimit,
		TotalPowerLimit:           *totalPowerLimit,
		DoAdjustForDroppedPackets: *autothrottle,
		BrightnessScale:           pixelpusher.DefaultBrightnessScale(),
		NotifyFunc:                logNotification,
	}

	var c cycler
	reg.FrameDelegate = control.FrameDelegateFunc(func() { fillPattern(reg, &c) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := reg.Run(ctx); err != nil {
			log.Printf("pushctl: discovery loop exited: %s", err)
		}
	}()

	reg.StartPushing()

	go statusLoop(ctx, reg, *statusInterval)

	<-sigC
	log.Print("pushctl: shutting down")
	cancel()
	reg.StopPushing()
}

func logNotification(n control.Notification) {
	if n.Reason != nil {
		log.Printf("pushctl: %s: %s (%s)", n.Kind, n.Device.ID(), n.Reason)
		return
	}
	log.Printf("pushctl: %s: %s", n.Kind, n.Device.ID())
}

func statusLoop(ctx context.Context, reg *control.Registry, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			strips := reg.PusherStrips()
			count := 0
			for _, s := range strips {
				count += len(s)
			}
			log.Printf("pushctl: tracking %d pusher(s), %d strip(s)", len(strips), count)

			if *brightnessLimit > 0 {
				reg.ScaleAverageBrightnessForLimit(*brightnessLimit, true)
			}
		}
	}
}

// fillPattern writes one frame of a simple hue-cycling pattern into every
// tracked strip, adapted from demo/colorphase's shift-register cycler to
// write directly through PixelStrip instead of device.Mutable.
func fillPattern(reg *control.Registry, c *cycler) {
	r, g, b := c.Next()
	for _, strips := range reg.PusherStrips() {
		for _, s := range strips {
			if s == nil {
				continue
			}
			for i := 0; i < s.AdvertisedPixelCount; i++ {
				s.SetPixelByte(i, r, g, b)
			}
		}
	}
}

// cycler produces a slowly rotating solid color, the same masked shift
// pattern demo/colorphase uses for its per-pixel animation, applied here as
// a single whole-strip color instead.
type cycler struct {
	v    int
	mask uint
}

const cyclerMask = uint(0x2E711)

func (c *cycler) Next() (r, g, b uint8) {
	if c.mask == 0 {
		c.mask = cyclerMask
	}

	v := c.v
	if v > 0xFF {
		v = 0x1FF - v
	}

	if c.mask&0x01 != 0 {
		r = uint8(v)
	}
	if c.mask&0x02 != 0 {
		g = uint8(v)
	}
	if c.mask&0x04 != 0 {
		b = uint8(v)
	}

	c.v++
	if c.v > 0x1FF {
		c.v = 0
		c.mask >>= 3
	}
	return
}
