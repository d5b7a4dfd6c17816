// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package pixelpusher

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("IntensityTable", func() {
	It("defaults to 256-entry precision", func() {
		it := NewIntensityTable(nil)
		Expect(it.Precision()).To(Equal(256))
	})

	It("maps the identity curve's endpoints exactly", func() {
		it := NewIntensityTable(LinearCurve)
		Expect(it.Lookup8(0)).To(BeEquivalentTo(0))
		Expect(it.Lookup8(255)).To(BeEquivalentTo(65535))
	})

	It("bumps to 65536-entry precision on Lookup16", func() {
		it := NewIntensityTable(LinearCurve)
		it.Lookup16(32768)
		Expect(it.Precision()).To(Equal(65536))
	})

	It("BumpTo16Bit is idempotent", func() {
		it := NewIntensityTable(LinearCurve)
		it.BumpTo16Bit()
		it.BumpTo16Bit()
		Expect(it.Precision()).To(Equal(65536))
	})

	It("preserves the curve across a precision bump", func() {
		it := NewIntensityTable(LinearCurve)
		before := it.Lookup8(128)
		it.BumpTo16Bit()
		after := it.Lookup16(32896) // 128 scaled to 16-bit range
		Expect(after).To(BeNumerically("~", before, 256))
	})

	It("rejects a nil curve on SetCurve", func() {
		it := NewIntensityTable(nil)
		Expect(it.SetCurve(nil)).To(HaveOccurred())
	})

	It("a zero-value table is usable and defaults to AntilogCurve", func() {
		var it IntensityTable
		Expect(it.Lookup8(0)).To(BeEquivalentTo(0))
		Expect(it.Lookup8(255)).To(BeNumerically(">", 0))
	})

	Describe("AntilogCurve", func() {
		It("maps 0 to 0 and 1 to 1 and clamps inputs", func() {
			Expect(AntilogCurve(0)).To(BeNumerically("~", 0, 0.0001))
			Expect(AntilogCurve(1)).To(BeNumerically("~", 1, 0.0001))
			Expect(AntilogCurve(-1)).To(Equal(AntilogCurve(0)))
			Expect(AntilogCurve(2)).To(Equal(AntilogCurve(1)))
		})
	})
})
