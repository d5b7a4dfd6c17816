// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package control

import (
	"fmt"

	"github.com/danjacques/gopushpixels/device"
)

// NotificationKind identifies the cause of a Notification.
type NotificationKind int

const (
	// PusherAppeared is posted when a beacon is observed for a MAC address
	// the Registry has not seen before.
	PusherAppeared NotificationKind = iota
	// PusherUpdated is posted when a beacon refreshes a mutable field
	// (update period, delta sequence) on an already-known pusher.
	PusherUpdated
	// PusherDisappeared is posted when a pusher is removed: it expired,
	// failed, was explicitly stopped, or was replaced due to a capability
	// mismatch.
	PusherDisappeared
)

func (k NotificationKind) String() string {
	switch k {
	case PusherAppeared:
		return "PusherAppeared"
	case PusherUpdated:
		return "PusherUpdated"
	case PusherDisappeared:
		return "PusherDisappeared"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Notification describes a single pusher lifecycle event. It is always
// posted from the frame/discovery tasks, never from application code.
type Notification struct {
	// Kind is the notification's cause.
	Kind NotificationKind
	// Device is the pusher this notification concerns.
	Device device.D
	// Reason is non-nil for PusherDisappeared notifications caused by an
	// error (capability mismatch, expiration, socket failure).
	Reason error
}
