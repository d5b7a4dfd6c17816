// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package pixelpusher

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// CurveFunc maps a normalized input in [0, 1] to a normalized output in
// [0, 1].
//
// A CurveFunc may be called repeatedly, concurrently, and from any
// goroutine while IntensityTable recomputes its lookup at varying
// precisions. Implementations must be reentrant and side-effect free.
type CurveFunc func(in float64) float64

const (
	// smallTablePrecision is the entry count for the 8-bit-input lookup.
	smallTablePrecision = 256
	// largeTablePrecision is the entry count used once any 16-bit or float
	// pixel write has been observed.
	largeTablePrecision = 65536
)

// LinearCurve is the identity output curve: out == in.
func LinearCurve(in float64) float64 { return in }

// AntilogCurve is the default output curve. It boosts low-end values to
// compensate for the eye's logarithmic brightness perception.
func AntilogCurve(in float64) float64 {
	if in < 0 {
		in = 0
	} else if in > 1 {
		in = 1
	}
	return (math.Exp(in) - 1) / (math.E - 1)
}

// intensityTableData is the immutable snapshot held by IntensityTable.
type intensityTableData struct {
	curve   CurveFunc
	entries []uint16
}

func buildTable(curve CurveFunc, precision int) *intensityTableData {
	entries := make([]uint16, precision)
	last := float64(precision - 1)
	for i := range entries {
		v := curve(float64(i) / last)
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		entries[i] = uint16(math.Round(v * 65535))
	}
	return &intensityTableData{curve: curve, entries: entries}
}

// IntensityTable is a process-wide lookup translating a linear pixel
// component value into a perceptually-corrected uint16 output.
//
// It is built lazily at 256 entries (byte precision) and rebuilt at 65536
// entries (word/float precision) the first time Lookup16 or BumpTo16Bit is
// called. Rebuilds are serialized by a dedicated lock; readers load an
// immutable snapshot atomically and never block on a rebuild in progress.
//
// The zero value uses AntilogCurve and is ready to use.
type IntensityTable struct {
	mu   sync.Mutex
	data atomic.Value // *intensityTableData
}

// NewIntensityTable returns an IntensityTable using the supplied curve.
//
// If curve is nil, AntilogCurve is used.
func NewIntensityTable(curve CurveFunc) *IntensityTable {
	if curve == nil {
		curve = AntilogCurve
	}
	it := &IntensityTable{}
	it.data.Store(buildTable(curve, smallTablePrecision))
	return it
}

func (it *IntensityTable) current() *intensityTableData {
	if v := it.data.Load(); v != nil {
		return v.(*intensityTableData)
	}

	// Zero-value IntensityTable: initialize with the default curve.
	it.mu.Lock()
	defer it.mu.Unlock()
	if v := it.data.Load(); v != nil {
		return v.(*intensityTableData)
	}
	d := buildTable(AntilogCurve, smallTablePrecision)
	it.data.Store(d)
	return d
}

// SetCurve installs a new curve function, rebuilding the table at its
// current precision.
//
// SetCurve is safe for concurrent use with Lookup8/Lookup16/BumpTo16Bit.
func (it *IntensityTable) SetCurve(curve CurveFunc) error {
	if curve == nil {
		return errors.New("curve function must not be nil")
	}

	it.mu.Lock()
	defer it.mu.Unlock()

	precision := smallTablePrecision
	if cur := it.data.Load(); cur != nil {
		precision = len(cur.(*intensityTableData).entries)
	}
	it.data.Store(buildTable(curve, precision))
	return nil
}

// BumpTo16Bit forces a rebuild at 65536-entry precision if the table is
// currently at 8-bit precision. It is a no-op if the table is already at
// 16-bit precision.
func (it *IntensityTable) BumpTo16Bit() {
	cur := it.current()
	if len(cur.entries) >= largeTablePrecision {
		return
	}

	it.mu.Lock()
	defer it.mu.Unlock()

	// Re-check under lock: another goroutine may have already bumped it.
	cur = it.current()
	if len(cur.entries) >= largeTablePrecision {
		return
	}
	it.data.Store(buildTable(cur.curve, largeTablePrecision))
}

// Lookup8 returns the table's output for an 8-bit input component i.
//
// If the table is currently at 16-bit precision, i is scaled up to index
// into it.
func (it *IntensityTable) Lookup8(i uint8) uint16 {
	cur := it.current()
	if len(cur.entries) == smallTablePrecision {
		return cur.entries[i]
	}
	// Scale an 8-bit index into the wider table: replicate the byte so that
	// 0xFF maps to 0xFFFF's index, matching the float/word write path.
	idx := (uint32(i) * uint32(len(cur.entries)-1)) / 255
	return cur.entries[idx]
}

// Lookup16 returns the table's output for a 16-bit input component i.
//
// Calling Lookup16 implicitly bumps the table to 16-bit precision if it is
// not already there.
func (it *IntensityTable) Lookup16(i uint16) uint16 {
	it.BumpTo16Bit()
	return it.current().entries[i]
}

// Precision returns the table's current entry count (256 or 65536).
func (it *IntensityTable) Precision() int { return len(it.current().entries) }

// DefaultIntensityTable is the package-level IntensityTable instance used by
// PixelStrip when no table is explicitly supplied.
//
// This mirrors the PixelPusher reference implementation's single global
// output-curve table: all strips in a process share one intensity mapping.
var DefaultIntensityTable = NewIntensityTable(AntilogCurve)
