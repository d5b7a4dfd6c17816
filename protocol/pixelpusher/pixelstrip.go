// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package pixelpusher

import (
	"github.com/pkg/errors"
)

// ErrBufferTooSmall is returned by PixelStrip.SerializeInto when the
// destination buffer cannot hold the strip's serialized payload.
var ErrBufferTooSmall = errors.New("pixelpusher: destination buffer too small")

// BrightnessScale is a per-component multiplier applied to every pixel
// write.
type BrightnessScale struct {
	Red, Green, Blue float64
}

// DefaultBrightnessScale returns a BrightnessScale that leaves pixel values
// unchanged.
func DefaultBrightnessScale() BrightnessScale { return BrightnessScale{1, 1, 1} }

// PixelStrip owns one strip's serialized output buffer. It accepts pixel
// writes in byte, short, or float form, runs them through the shared
// IntensityTable plus per-component brightness and power scaling, and
// produces the exact on-wire payload bytes a Pusher flush transmits.
//
// PixelStrip is the brightness-pipeline counterpart to StripState: StripState
// and pixel.Buffer serve simple raw-RGB mutation (device.Mutable); PixelStrip
// serves the full intensity/brightness/power pipeline a Pusher drives.
//
// PixelStrip is single-writer: it performs no internal locking.
type PixelStrip struct {
	// Number is this strip's index within its pusher.
	Number StripNumber
	// Flags describes this strip's wire behavior.
	Flags StripFlags
	// AdvertisedPixelCount is the pixel count the pusher beacon advertised
	// for this strip (before RGBOW expansion).
	AdvertisedPixelCount int

	// Table is the IntensityTable this strip writes through. If nil,
	// DefaultIntensityTable is used.
	Table *IntensityTable

	// PowerScale is a global scalar in [0,1] applied to every component, set
	// by the registry's power-budget enforcement. Zero is treated as 1
	// (unscaled) so a zero-value PixelStrip behaves sanely before a registry
	// has assigned it a scale.
	PowerScale float64
	// Brightness is the per-component multiplier applied to every write.
	Brightness BrightnessScale

	touched bool
	buf     []byte
}

func (s *PixelStrip) table() *IntensityTable {
	if s.Table != nil {
		return s.Table
	}
	return DefaultIntensityTable
}

func (s *PixelStrip) bytesPerPixel() int {
	if s.Flags.IsWidePixels() {
		return 6
	}
	return 3
}

func (s *PixelStrip) componentWidth() int {
	if s.Flags.IsWidePixels() {
		return 2
	}
	return 1
}

// PixelCount returns the effective number of output pixels for this strip:
// 8x AdvertisedPixelCount if the strip is RGBOW, else AdvertisedPixelCount.
func (s *PixelStrip) PixelCount() int {
	if s.Flags.IsRGBOW() {
		return s.AdvertisedPixelCount * 8
	}
	return s.AdvertisedPixelCount
}

func (s *PixelStrip) payloadSize() int {
	return 1 + s.PixelCount()*s.bytesPerPixel()
}

// ensureBuf allocates/resizes the internal buffer to the strip's current
// payload size, preserving prior content where possible.
func (s *PixelStrip) ensureBuf() {
	want := s.payloadSize()
	if len(s.buf) == want {
		return
	}
	buf := make([]byte, want)
	copy(buf, s.buf)
	buf[0] = byte(s.Number)
	s.buf = buf
}

// Touched reports whether any pixel write has occurred since the last
// SerializeInto call. It is advisory only: a flush always transmits a full
// frame regardless of Touched's value.
func (s *PixelStrip) Touched() bool { return s.touched }

func (s *PixelStrip) powerScaleOrOne() float64 {
	if s.PowerScale == 0 {
		return 1
	}
	return s.PowerScale
}

func brightnessOrOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// scaleComponent applies brightness*powerScale and returns the table-mapped
// (or logarithmic passthrough) 16-bit output. bump selects the table's
// 16-bit lookup (bumping it to 65536-entry precision); otherwise the 8-bit
// lookup is used and the table's current precision is left untouched, so a
// byte-only caller never forces every strip's shared table to 65536 entries.
func (s *PixelStrip) scaleComponent(raw, brightness float64, bump bool) uint16 {
	scaled := raw * brightnessOrOne(brightness) * s.powerScaleOrOne()
	if scaled < 0 {
		scaled = 0
	} else if scaled > 1 {
		scaled = 1
	}

	if s.Flags.IsLogarithmic() {
		return uint16(scaled * 65535)
	}
	if bump {
		return s.table().Lookup16(uint16(scaled * 65535))
	}
	return s.table().Lookup8(uint8(scaled * 255))
}

type normalizedPixel struct {
	r, g, b float64
}

// writeNormalized writes p at logical pixel idx. bump must be true only for
// callers that have already established 16-bit precision is required
// (SetPixelShort, SetPixelFloat); SetPixelByte passes false to stay on the
// table's 256-entry lookup.
func (s *PixelStrip) writeNormalized(idx int, p normalizedPixel, bump bool) {
	s.ensureBuf()
	s.touched = true

	r := s.scaleComponent(p.r, s.Brightness.Red, bump)
	g := s.scaleComponent(p.g, s.Brightness.Green, bump)
	b := s.scaleComponent(p.b, s.Brightness.Blue, bump)

	if s.Flags.IsRGBOW() {
		s.writeRGBOWPixel(idx, r, g, b)
		return
	}

	off := 1 + idx*s.bytesPerPixel()
	cw := s.componentWidth()
	s.writeComponent(off, r)
	s.writeComponent(off+cw, g)
	s.writeComponent(off+2*cw, b)
}

func (s *PixelStrip) writeComponent(off int, v uint16) {
	if s.Flags.IsWidePixels() {
		s.buf[off] = byte(v >> 8)
		s.buf[off+1] = byte(v)
		return
	}
	s.buf[off] = byte(v >> 8)
}

// writeRGBOWPixel writes the 8-way replicated RGBOW block for logical pixel
// idx: positions 0..4 are W (grayscale luminance of r/g/b), 5 is R, 6 is G,
// 7 is B.
func (s *PixelStrip) writeRGBOWPixel(idx int, r, g, b uint16) {
	w := grayscale(r, g, b)
	cw := s.componentWidth()
	base := 1 + idx*8*s.bytesPerPixel()

	for rep := 0; rep < 5; rep++ {
		s.writeComponent(base+rep*cw, w)
	}
	s.writeComponent(base+5*cw, r)
	s.writeComponent(base+6*cw, g)
	s.writeComponent(base+7*cw, b)
}

func grayscale(r, g, b uint16) uint16 {
	sum := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	if sum > 65535 {
		sum = 65535
	}
	return uint16(sum)
}

// SetPixelByte writes component values given as 8-bit (0..255) inputs,
// routed through the (by default) 256-entry intensity table.
func (s *PixelStrip) SetPixelByte(idx int, r, g, b uint8) {
	s.writeNormalized(idx, normalizedPixel{
		r: float64(r) / 255,
		g: float64(g) / 255,
		b: float64(b) / 255,
	}, false)
}

// SetPixelShort writes component values given as 16-bit (0..65535) inputs.
// This bumps the shared intensity table to 65536-entry precision.
func (s *PixelStrip) SetPixelShort(idx int, r, g, b uint16) {
	s.table().BumpTo16Bit()
	s.writeNormalized(idx, normalizedPixel{
		r: float64(r) / 65535,
		g: float64(g) / 65535,
		b: float64(b) / 65535,
	}, true)
}

// SetPixelFloat writes component values given as floats, clamped to [0,1].
// This bumps the shared intensity table to 65536-entry precision.
func (s *PixelStrip) SetPixelFloat(idx int, r, g, b float64) {
	s.table().BumpTo16Bit()
	s.writeNormalized(idx, normalizedPixel{r: clamp01(r), g: clamp01(g), b: clamp01(b)}, true)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SetPixelsFromByteArray is a fast path for pre-curved bytes: count pixels,
// each 3 (or 6, for wide strips) raw bytes, copied directly into the
// serialized buffer without touching the intensity table.
func (s *PixelStrip) SetPixelsFromByteArray(count int, data []byte) {
	s.ensureBuf()
	s.touched = true

	bpp := s.bytesPerPixel()
	n := count
	if max := s.PixelCount(); n > max {
		n = max
	}
	want := n * bpp
	if want > len(data) {
		want = len(data)
	}
	copy(s.buf[1:1+want], data[:want])
}

// ScaleAverageBrightness multiplies the currently stored pixel values by
// scale in place. This is a one-time modification of the buffered data, not
// a persistent future-applied factor.
func (s *PixelStrip) ScaleAverageBrightness(scale float64) {
	if len(s.buf) <= 1 {
		return
	}
	cw := s.componentWidth()
	for off := 1; off+cw <= len(s.buf); off += cw {
		v := s.readComponent(off)
		scaled := float64(v) * scale
		if scaled > 65535 {
			scaled = 65535
		} else if scaled < 0 {
			scaled = 0
		}
		s.writeComponent(off, uint16(scaled))
	}
}

func (s *PixelStrip) readComponent(off int) uint16 {
	if s.Flags.IsWidePixels() {
		return uint16(s.buf[off])<<8 | uint16(s.buf[off+1])
	}
	return uint16(s.buf[off]) << 8
}

// AverageBrightness returns the mean of all stored components, normalized to
// [0,1] of the maximum.
func (s *PixelStrip) AverageBrightness() float64 {
	if len(s.buf) <= 1 {
		return 0
	}
	cw := s.componentWidth()
	var sum float64
	count := 0
	for off := 1; off+cw <= len(s.buf); off += cw {
		sum += float64(s.readComponent(off))
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count) / 65535
}

// SerializeInto copies this strip's serialized payload into buffer, which
// must have capacity capacity. It returns the number of bytes written, and
// clears Touched. Serializing an untouched strip still writes the last
// written bytes in full — Touched never gates transmission.
func (s *PixelStrip) SerializeInto(buffer []byte, capacity int) (int, error) {
	s.ensureBuf()
	if len(s.buf) > capacity || len(s.buf) > len(buffer) {
		return 0, ErrBufferTooSmall
	}
	n := copy(buffer, s.buf)
	s.touched = false
	return n, nil
}

// Payload returns the strip's current serialized payload bytes directly,
// without copying. Callers must not retain or mutate the returned slice
// beyond the current flush cycle.
func (s *PixelStrip) Payload() []byte {
	s.ensureBuf()
	return s.buf
}
