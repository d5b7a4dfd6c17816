// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package control provides the top-level Registry that composes discovery,
// device tracking, and the per-pusher transmit engine into a single frame
// clock.
//
// Registry listens for PixelPusher discovery beacons, creates and updates a
// pixelpusher.Pusher and its PixelStrips for each discovered controller, and
// drives a frame loop that asks a FrameDelegate to fill those strips, applies
// a global electrical power budget, and flushes every pusher in lockstep.
//
// Registry lives outside the device package (which the discovery package
// already imports) to avoid an import cycle; it composes discovery.Listener
// and device.Registry rather than extending either.
package control
