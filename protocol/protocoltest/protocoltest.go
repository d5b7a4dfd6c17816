// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package protocoltest offers canned protocol packets for use in tests
// across the protocol and discovery packages.
package protocoltest

import (
	"bytes"

	"github.com/danjacques/gopushpixels/protocol/pixelpusher"
)

// pixelPusherDiscoveryHeader is the canonical discovery header used to
// generate PixelPusherDiscoveryPacket. Its field values are shared with the
// protocol and discovery package tests that assert against the packet's
// decoded form.
type pixelPusherDiscoveryHeader struct {
	MacAddress       [6]byte
	IPAddress        [4]byte
	DeviceType       uint8
	ProtocolVersion  uint8
	VendorID         uint16
	ProductID        uint16
	HardwareRevision uint16
	SoftwareRevision uint16
	LinkSpeed        uint32
}

// PixelPusherDiscoveryPacket returns a well-formed PixelPusher discovery
// packet (sans any trailing Extra bytes) suitable for feeding to
// ParseDiscoveryHeaders or a discovery Listener.
//
// The packet describes a PixelPusher with 6 strips of 128 pixels each,
// software revision 130 (so all extension headers are present).
func PixelPusherDiscoveryPacket() []byte {
	var buf bytes.Buffer

	h := pixelPusherDiscoveryHeader{
		MacAddress:       [6]byte{0xFA, 0xCE, 0xFE, 0xED, 0x70, 0xAD},
		IPAddress:        [4]byte{0x0A, 0x00, 0x00, 0x01},
		DeviceType:       2, // PixelPusherDeviceType
		ProtocolVersion:  1, // DefaultProtocolVersion
		VendorID:         0x1337,
		ProductID:        0xDAB5,
		HardwareRevision: 0xCCDD,
		SoftwareRevision: 130,
		LinkSpeed:        0x12345678,
	}
	buf.Write(h.MacAddress[:])
	buf.Write(h.IPAddress[:])
	buf.WriteByte(h.DeviceType)
	buf.WriteByte(h.ProtocolVersion)
	writeLE16(&buf, h.VendorID)
	writeLE16(&buf, h.ProductID)
	writeLE16(&buf, h.HardwareRevision)
	writeLE16(&buf, h.SoftwareRevision)
	writeLE32(&buf, h.LinkSpeed)

	pp := pixelpusher.Device{
		DeviceHeader: pixelpusher.DeviceHeader{
			StripsAttached:     6,
			MaxStripsPerPacket: 2,
			PixelsPerStrip:     128,
			UpdatePeriod:       0x10111213,
			PowerTotal:         0x20212223,
			DeltaSequence:      0x30313233,
			ControllerOrdinal:  0x40414243,
			GroupOrdinal:       0x50515253,
			ArtNetUniverse:     0x6061,
			ArtNetChannel:      0x7071,
		},
		DeviceHeaderExt101: pixelpusher.DeviceHeaderExt101{
			MyPort: 0xFACE,
		},
		DeviceHeaderExt109: pixelpusher.DeviceHeaderExt109{
			StripFlags: []pixelpusher.StripFlags{0x70, 0x71, 0x72, 0x73, 0x74, 0x75},
		},
		DeviceHeaderExt117: pixelpusher.DeviceHeaderExt117{
			PusherFlags: 0x55667788,
			Segments:    0x11223344,
			PowerDomain: 0xAABBCCDD,
		},
	}
	if err := pp.Write(&buf, h.SoftwareRevision); err != nil {
		panic(err)
	}

	return buf.Bytes()
}

func writeLE16(buf *bytes.Buffer, v uint16) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
}

func writeLE32(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v >> 16))
	buf.WriteByte(byte(v >> 24))
}
