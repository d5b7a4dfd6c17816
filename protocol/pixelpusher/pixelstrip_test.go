// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package pixelpusher

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("PixelStrip", func() {
	Describe("plain RGB strip", func() {
		var s *PixelStrip

		BeforeEach(func() {
			s = &PixelStrip{Number: 0, AdvertisedPixelCount: 4, Table: NewIntensityTable(LinearCurve)}
		})

		It("reports PixelCount equal to AdvertisedPixelCount", func() {
			Expect(s.PixelCount()).To(Equal(4))
		})

		It("is untouched until a pixel is written", func() {
			Expect(s.Touched()).To(BeFalse())
			s.SetPixelByte(0, 255, 0, 0)
			Expect(s.Touched()).To(BeTrue())
		})

		It("writes a full-scale byte pixel to the high byte of its payload", func() {
			s.SetPixelByte(0, 255, 128, 0)
			payload := s.Payload()

			// payload[0] is the strip number header byte.
			Expect(payload[0]).To(BeEquivalentTo(0))
			Expect(payload[1]).To(BeEquivalentTo(255))
			Expect(payload[3]).To(BeEquivalentTo(0))
		})

		It("clears Touched after SerializeInto but keeps the payload", func() {
			s.SetPixelByte(0, 255, 255, 255)
			buf := make([]byte, 32)
			n, err := s.SerializeInto(buf, len(buf))
			Expect(err).ToNot(HaveOccurred())
			Expect(s.Touched()).To(BeFalse())
			Expect(buf[:n]).To(Equal(s.Payload()))
		})

		It("rejects SerializeInto into a too-small buffer", func() {
			s.SetPixelByte(0, 1, 2, 3)
			_, err := s.SerializeInto(make([]byte, 1), 1)
			Expect(err).To(Equal(ErrBufferTooSmall))
		})

		It("ScaleAverageBrightness(1.0) is a no-op on stored values", func() {
			s.SetPixelByte(0, 255, 128, 64)
			before := append([]byte(nil), s.Payload()...)
			s.ScaleAverageBrightness(1.0)
			Expect(s.Payload()).To(Equal(before))
		})

		It("ScaleAverageBrightness halves stored component values", func() {
			s.SetPixelByte(0, 255, 255, 255)
			avgBefore := s.AverageBrightness()
			s.ScaleAverageBrightness(0.5)
			Expect(s.AverageBrightness()).To(BeNumerically("~", avgBefore/2, 0.01))
		})

		It("applies per-component brightness scaling", func() {
			s.Brightness = BrightnessScale{Red: 0.5, Green: 1, Blue: 1}
			s.SetPixelByte(0, 255, 255, 255)
			payload := s.Payload()
			Expect(payload[1]).To(BeNumerically("<", payload[2]))
		})

		It("SetPixelByte never bumps the shared table past 256-entry precision", func() {
			Expect(s.Table.Precision()).To(Equal(256))
			s.SetPixelByte(0, 1, 2, 3)
			s.SetPixelByte(1, 4, 5, 6)
			Expect(s.Table.Precision()).To(Equal(256))
		})

		It("SetPixelShort bumps the table to 65536-entry precision", func() {
			s.SetPixelShort(0, 1, 2, 3)
			Expect(s.Table.Precision()).To(Equal(65536))
		})

		It("SetPixelFloat bumps the table to 65536-entry precision", func() {
			s.SetPixelFloat(0, 0.1, 0.2, 0.3)
			Expect(s.Table.Precision()).To(Equal(65536))
		})
	})

	Describe("RGBOW strip", func() {
		var s *PixelStrip

		BeforeEach(func() {
			s = &PixelStrip{
				Number:               0,
				Flags:                SFlagRGBOW,
				AdvertisedPixelCount: 2,
				Table:                NewIntensityTable(LinearCurve),
			}
		})

		It("reports PixelCount as 8x AdvertisedPixelCount", func() {
			Expect(s.PixelCount()).To(Equal(16))
		})

		It("writes the documented {W,W,W,W,W,R,G,B} 8-byte replication layout", func() {
			s.SetPixelByte(0, 255, 0, 0)
			payload := s.Payload()

			// payload[0] is the header byte; pixel 0 occupies bytes 1..8.
			w := payload[1]
			Expect(payload[2]).To(Equal(w))
			Expect(payload[3]).To(Equal(w))
			Expect(payload[4]).To(Equal(w))
			Expect(payload[5]).To(Equal(w))
			Expect(payload[6]).To(BeEquivalentTo(255)) // R
			Expect(payload[7]).To(BeEquivalentTo(0))   // G
			Expect(payload[8]).To(BeEquivalentTo(0))   // B
		})
	})

	Describe("WIDE_PIXELS strip", func() {
		var s *PixelStrip

		BeforeEach(func() {
			s = &PixelStrip{
				Number:               0,
				Flags:                SFlagWidePixels,
				AdvertisedPixelCount: 2,
				Table:                NewIntensityTable(LinearCurve),
			}
		})

		It("writes each component as two bytes", func() {
			s.SetPixelShort(0, 65535, 0, 0)
			payload := s.Payload()
			Expect(payload[1]).To(BeEquivalentTo(0xFF))
			Expect(payload[2]).To(BeEquivalentTo(0xFF))
		})

		It("payloadSize accounts for 6 bytes per pixel", func() {
			Expect(len(s.Payload())).To(Equal(1 + 2*6))
		})
	})

	Describe("logarithmic strip", func() {
		It("bypasses the intensity table", func() {
			s := &PixelStrip{
				Flags:                SFlagLogarithmic,
				AdvertisedPixelCount: 1,
				Table:                NewIntensityTable(AntilogCurve),
			}
			s.SetPixelByte(0, 128, 0, 0)
			payload := s.Payload()
			Expect(payload[1]).To(BeEquivalentTo(128))
		})
	})

	Describe("SetPixelsFromByteArray", func() {
		It("copies raw bytes directly without the intensity table", func() {
			s := &PixelStrip{AdvertisedPixelCount: 2}
			s.SetPixelsFromByteArray(2, []byte{1, 2, 3, 4, 5, 6})
			Expect(s.Payload()[1:]).To(Equal([]byte{1, 2, 3, 4, 5, 6}))
		})

		It("truncates to the strip's pixel capacity", func() {
			s := &PixelStrip{AdvertisedPixelCount: 1}
			s.SetPixelsFromByteArray(2, []byte{1, 2, 3, 4, 5, 6})
			Expect(s.Payload()[1:]).To(Equal([]byte{1, 2, 3}))
		})
	})
})
