// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package control

import (
	"github.com/danjacques/gopushpixels/device"
	"github.com/danjacques/gopushpixels/protocol"
	"github.com/danjacques/gopushpixels/protocol/pixelpusher"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func pusherHeaders(mac byte, stripsAttached uint8, powerTotal uint32, deltaSequence uint32) *protocol.DiscoveryHeaders {
	return &protocol.DiscoveryHeaders{
		DeviceHeader: protocol.DeviceHeader{
			MacAddress:      [6]byte{0, 0, 0, 0, 0, mac},
			DeviceType:      protocol.PixelPusherDeviceType,
			SoftwareRevision: pixelpusher.LatestSoftwareRevision,
		},
		PixelPusher: &pixelpusher.Device{
			DeviceHeader: pixelpusher.DeviceHeader{
				StripsAttached:     stripsAttached,
				MaxStripsPerPacket: 8,
				PixelsPerStrip:     30,
				UpdatePeriod:       1000,
				PowerTotal:         powerTotal,
				DeltaSequence:      deltaSequence,
			},
			DeviceHeaderExt109: pixelpusher.DeviceHeaderExt109{
				StripFlags: make([]pixelpusher.StripFlags, stripsAttached),
			},
		},
	}
}

var _ = Describe("Registry", func() {
	var reg *Registry
	var notifications []Notification

	BeforeEach(func() {
		notifications = nil
		reg = &Registry{
			NotifyFunc: func(n Notification) {
				notifications = append(notifications, n)
			},
		}
	})

	It("rejects a beacon that does not describe a PixelPusher", func() {
		_, err := reg.Observe(&protocol.DiscoveryHeaders{})
		Expect(err).To(Equal(pixelpusher.ErrUnknownDevice))
	})

	Context("when a new pusher is observed", func() {
		var d0 device.D

		BeforeEach(func() {
			var err error
			d0, err = reg.Observe(pusherHeaders(1, 2, 800, 0))
			Expect(err).ToNot(HaveOccurred())
			Expect(d0).ToNot(BeNil())
		})

		It("posts a PusherAppeared notification", func() {
			Expect(notifications).To(HaveLen(1))
			Expect(notifications[0].Kind).To(Equal(PusherAppeared))
			Expect(notifications[0].Device).To(Equal(d0))
		})

		It("re-observing identical headers posts no further notification", func() {
			d1, err := reg.Observe(pusherHeaders(1, 2, 800, 0))
			Expect(err).ToNot(HaveOccurred())
			Expect(d1).To(Equal(d0))
			Expect(notifications).To(HaveLen(1))
		})

		It("re-observing with a new delta sequence posts a PusherUpdated notification", func() {
			_, err := reg.Observe(pusherHeaders(1, 2, 800, 5))
			Expect(err).ToNot(HaveOccurred())
			Expect(notifications).To(HaveLen(2))
			Expect(notifications[1].Kind).To(Equal(PusherUpdated))
		})

		It("re-observing with a changed strip count replaces the pusher", func() {
			d1, err := reg.Observe(pusherHeaders(1, 3, 800, 0))
			Expect(err).ToNot(HaveOccurred())
			Expect(d1).ToNot(Equal(d0))

			Eventually(func() []NotificationKind {
				kinds := make([]NotificationKind, len(notifications))
				for i, n := range notifications {
					kinds[i] = n.Kind
				}
				return kinds
			}).Should(ContainElement(PusherDisappeared))
		})
	})

	Context("power budget scaling", func() {
		BeforeEach(func() {
			reg.TotalPowerLimit = 1000
			_, err := reg.Observe(pusherHeaders(1, 1, 800, 0))
			Expect(err).ToNot(HaveOccurred())
			_, err = reg.Observe(pusherHeaders(2, 1, 400, 0))
			Expect(err).ToNot(HaveOccurred())
		})

		It("computes scale = limit / total across pushers", func() {
			reg.applyPowerBudget()

			for _, e := range reg.entries() {
				for _, s := range e.pusher.Strips() {
					Expect(s.PowerScale).To(BeNumerically("~", 1000.0/1200.0, 0.0001))
				}
			}
		})

		It("holds the same scale across repeated ticks instead of oscillating", func() {
			reg.applyPowerBudget()
			reg.applyPowerBudget()

			for _, e := range reg.entries() {
				for _, s := range e.pusher.Strips() {
					Expect(s.PowerScale).To(BeNumerically("~", 1000.0/1200.0, 0.0001))
				}
			}
		})

		It("leaves scale at 1 when under budget", func() {
			reg.TotalPowerLimit = 5000
			reg.applyPowerBudget()

			for _, e := range reg.entries() {
				for _, s := range e.pusher.Strips() {
					Expect(s.PowerScale).To(BeNumerically("==", 1))
				}
			}
		})
	})

	Context("GroupWithOrdinal", func() {
		It("returns nil without a DeviceRegistry", func() {
			Expect(reg.GroupWithOrdinal(0)).To(BeNil())
		})

		It("delegates to DeviceRegistry when set", func() {
			reg.DeviceRegistry = &device.Registry{}
			_, err := reg.Observe(pusherHeaders(1, 1, 0, 0))
			Expect(err).ToNot(HaveOccurred())

			Expect(reg.GroupWithOrdinal(0)).To(HaveLen(1))
		})
	})
})
