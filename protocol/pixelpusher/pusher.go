// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package pixelpusher

import (
	"bytes"
	"sync"
	"time"

	"github.com/danjacques/gopushpixels/support/logging"
	"github.com/danjacques/gopushpixels/support/network"

	"github.com/pkg/errors"
)

// Sentinel errors shared across the pixelpusher package.
var (
	// ErrBadPacket is returned when a beacon or packet is malformed.
	ErrBadPacket = errors.New("pixelpusher: malformed beacon/packet")
	// ErrUnknownDevice is returned when a discovery beacon does not describe a
	// PixelPusher device.
	ErrUnknownDevice = errors.New("pixelpusher: beacon does not describe a PixelPusher device")
	// ErrClosed is returned for operations attempted on a closing or closed
	// Pusher.
	ErrClosed = errors.New("pixelpusher: pusher is closed")
	// ErrSocket wraps transient I/O errors encountered while sending.
	ErrSocket = errors.New("pixelpusher: socket error")
	// ErrCapabilityMismatch is returned when a beacon's immutable capability
	// fields no longer match the Pusher built from an earlier beacon.
	ErrCapabilityMismatch = errors.New("pixelpusher: beacon capability mismatch")
)

// maxDatagramMTU is the target maximum size, in bytes, of any outbound data
// packet, sequence prefix included.
const maxDatagramMTU = 1460

// consecutiveSendErrorLimit is the number of back-to-back send failures that
// escalate a Pusher to Closed.
const consecutiveSendErrorLimit = 3

// PusherState is a Pusher's lifecycle state.
type PusherState int

const (
	// PusherCreated is the state immediately after construction, before the
	// owning registry has started pushing frames.
	PusherCreated PusherState = iota
	// PusherStarted means the registry has begun driving this pusher, but no
	// flush has yet completed successfully.
	PusherStarted
	// PusherRunning means at least one flush has completed successfully.
	PusherRunning
	// PusherClosing means the pusher is being torn down: expired, replaced due
	// to a capability mismatch, or stopped by the registry.
	PusherClosing
	// PusherClosed means the underlying socket has been released.
	PusherClosed
)

func (s PusherState) String() string {
	switch s {
	case PusherCreated:
		return "Created"
	case PusherStarted:
		return "Started"
	case PusherRunning:
		return "Running"
	case PusherClosing:
		return "Closing"
	case PusherClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// FlushResult is the outcome of a single Pusher.Flush call, delivered
// asynchronously on the channel Flush returns.
type FlushResult struct {
	// Err is nil on success, or the error that failed the flush (ErrClosed on
	// cancellation, a wrapped ErrSocket on send failure).
	Err error
}

// Pusher is the per-controller UDP transmit engine: it owns a socket, packet
// assembler, pacing scheduler, autothrottle, command queue, and monotonic
// sequence counter for a single PixelPusher controller.
//
// Pusher is safe for concurrent use.
type Pusher struct {
	// Logger receives diagnostic output. If nil, logging is suppressed.
	Logger logging.L

	// MaxStripsPerPacket is the maximum number of strip payloads batched into
	// a single data packet. The effective per-packet limit is the stricter of
	// this and the 1460-byte MTU budget.
	MaxStripsPerPacket int

	// DoAdjustForDroppedPackets enables the autothrottle integral controller.
	DoAdjustForDroppedPackets bool

	// BaseExtraDelay is a fixed floor added to every computed extra delay.
	BaseExtraDelay time.Duration

	// OnSent, if not nil, is called after each packet (command or data) is
	// successfully posted to the socket. payload is the framed packet,
	// sequence prefix included; callers must not retain it past the call.
	//
	// OnSent is invoked from the packet's pacing goroutine and must not block.
	OnSent func(seq uint32, payload []byte)

	// OnClosed, if not nil, is called exactly once when the pusher reaches
	// PusherClosed. reason is nil for an explicit Close call and non-nil when
	// the pusher closed itself after exhausting consecutiveSendErrorLimit.
	//
	// OnClosed is invoked from whichever goroutine triggered the close and
	// must not block.
	OnClosed func(reason error)

	mu    sync.Mutex
	state PusherState

	sender network.DatagramSender

	strips []*PixelStrip

	updatePeriod      time.Duration
	extraDelay        time.Duration
	lastDeltaSequence uint32
	sendErrorStreak   int

	nextSeq      uint32
	lastEgress   time.Time
	commandQueue [][]byte

	closeOnce sync.Once
	doneC     chan struct{}
}

// NewPusher constructs a Pusher bound to sender, which it owns and will
// close when the Pusher is closed.
func NewPusher(sender network.DatagramSender, maxStripsPerPacket int) *Pusher {
	return &Pusher{
		Logger:             logging.Nop,
		MaxStripsPerPacket: maxStripsPerPacket,
		sender:             sender,
		state:              PusherCreated,
		doneC:              make(chan struct{}),
	}
}

// State returns the Pusher's current lifecycle state.
func (p *Pusher) State() PusherState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start transitions a Created pusher to Started. It is a no-op if the
// pusher has already started or is closing/closed.
func (p *Pusher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == PusherCreated {
		p.state = PusherStarted
	}
}

// SetStrips installs the strips this pusher drives. It is typically called
// once, immediately after construction from a beacon's strip layout.
func (p *Pusher) SetStrips(strips []*PixelStrip) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strips = strips
}

// Strips returns the strips this pusher drives.
func (p *Pusher) Strips() []*PixelStrip {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.strips
}

// UpdateWithHeader refreshes the pusher's mutable tail fields
// (updatePeriodUsec, deltaSequence) from a freshly received beacon and
// drives the autothrottle controller. It returns whether any observable
// property changed such that a caller should emit a pusherUpdated
// notification.
func (p *Pusher) UpdateWithHeader(updatePeriod time.Duration, deltaSequence uint32) (changed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if updatePeriod != p.updatePeriod {
		p.updatePeriod = updatePeriod
		changed = true
	}
	if deltaSequence != p.lastDeltaSequence {
		p.lastDeltaSequence = deltaSequence
		changed = true
	}

	if p.DoAdjustForDroppedPackets {
		p.applyAutothrottleLocked(deltaSequence)
	}
	return changed
}

// applyAutothrottleLocked is the integral controller with hysteresis:
// extraDelay grows by 5ms whenever deltaSequence exceeds 2, and shrinks by
// 1ms, floored at zero, whenever deltaSequence is exactly zero. There is no
// proportional term.
func (p *Pusher) applyAutothrottleLocked(deltaSequence uint32) {
	switch {
	case deltaSequence > 2:
		p.extraDelay += 5 * time.Millisecond
	case deltaSequence == 0:
		p.extraDelay -= time.Millisecond
		if p.extraDelay < 0 {
			p.extraDelay = 0
		}
	}
}

// ExtraDelay returns the pusher's current adaptive extra delay.
func (p *Pusher) ExtraDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.extraDelay
}

// EnqueuePusherCommand encodes cmd (CommandMagic + command byte + content)
// and FIFO-appends the encoded payload, to be drained one per flush cycle.
func (p *Pusher) EnqueuePusherCommand(cmd Command) error {
	var buf bytes.Buffer
	if err := WriteCommand(cmd, &buf, true); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == PusherClosing || p.state == PusherClosed {
		return ErrClosed
	}
	p.commandQueue = append(p.commandQueue, buf.Bytes())
	return nil
}

// targetPeriodLocked computes max(updatePeriod, 1ms) + extraDelay + BaseExtraDelay.
func (p *Pusher) targetPeriodLocked() time.Duration {
	period := p.updatePeriod
	if period < time.Millisecond {
		period = time.Millisecond
	}
	return period + p.extraDelay + p.BaseExtraDelay
}

// assemblePacketsLocked builds at most one command packet followed by N data
// packets from the pusher's current queue and strip state, honoring both
// MaxStripsPerPacket and the MTU budget (the stricter of the two wins).
func (p *Pusher) assemblePacketsLocked() [][]byte {
	var packets [][]byte

	// One command per flush, per spec's "drained one per flush" ordering.
	if len(p.commandQueue) > 0 {
		cmd := p.commandQueue[0]
		p.commandQueue = p.commandQueue[1:]
		packets = append(packets, append([]byte(nil), cmd...))
	}

	maxPerPacket := p.MaxStripsPerPacket
	if maxPerPacket <= 0 {
		maxPerPacket = 1
	}

	var cur bytes.Buffer
	curCount := 0
	flushCur := func() {
		if curCount == 0 {
			return
		}
		packets = append(packets, append([]byte(nil), cur.Bytes()...))
		cur.Reset()
		curCount = 0
	}

	for _, s := range p.strips {
		if s == nil {
			continue
		}
		payload := s.Payload()

		// 4 bytes reserved for the sequence prefix at send time.
		if curCount > 0 && (curCount >= maxPerPacket || 4+cur.Len()+len(payload) > maxDatagramMTU) {
			flushCur()
		}
		cur.Write(payload)
		curCount++
	}
	flushCur()

	return packets
}

// Flush serializes the current command queue and strip state into packets,
// schedules their paced egress, and returns a channel that receives exactly
// one FlushResult once the last packet has been posted to the socket (or the
// flush has failed or been cancelled).
//
// Per spec, egress times within a flush producing K packets are
// t0 + k*(period/K) for k=0..K-1, where t0 is the time the previous flush's
// last packet was sent (or now, on the first flush).
func (p *Pusher) Flush() <-chan FlushResult {
	resultC := make(chan FlushResult, 1)

	p.mu.Lock()
	if p.state == PusherClosing || p.state == PusherClosed {
		p.mu.Unlock()
		resultC <- FlushResult{Err: ErrClosed}
		return resultC
	}

	packets := p.assemblePacketsLocked()
	if len(packets) == 0 {
		p.mu.Unlock()
		resultC <- FlushResult{}
		return resultC
	}

	period := p.targetPeriodLocked()
	t0 := p.lastEgress
	if t0.IsZero() {
		t0 = time.Now()
	}
	step := period / time.Duration(len(packets))
	p.mu.Unlock()

	go p.sendPaced(packets, t0, step, resultC)
	return resultC
}

func (p *Pusher) sendPaced(packets [][]byte, t0 time.Time, step time.Duration, resultC chan<- FlushResult) {
	var lastEgress time.Time
	for k, pkt := range packets {
		target := t0.Add(step * time.Duration(k))
		if d := time.Until(target); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-timer.C:
			case <-p.doneC:
				timer.Stop()
				resultC <- FlushResult{Err: ErrClosed}
				return
			}
		}

		if err := p.sendOne(pkt); err != nil {
			resultC <- FlushResult{Err: err}
			return
		}
		lastEgress = time.Now()
	}

	p.mu.Lock()
	p.lastEgress = lastEgress
	if p.state == PusherStarted {
		p.state = PusherRunning
	}
	p.mu.Unlock()

	resultC <- FlushResult{}
}

func (p *Pusher) sendOne(payload []byte) error {
	p.mu.Lock()
	seq := p.nextSeq
	p.nextSeq++
	sender := p.sender
	onSent := p.OnSent
	p.mu.Unlock()

	framed := make([]byte, 4+len(payload))
	framed[0] = byte(seq)
	framed[1] = byte(seq >> 8)
	framed[2] = byte(seq >> 16)
	framed[3] = byte(seq >> 24)
	copy(framed[4:], payload)

	if err := sender.SendDatagram(framed); err != nil {
		p.mu.Lock()
		p.sendErrorStreak++
		escalate := p.sendErrorStreak >= consecutiveSendErrorLimit
		p.mu.Unlock()

		wrapped := errors.Wrap(ErrSocket, err.Error())
		if escalate {
			p.Logger.Warnf("pusher: %d consecutive send errors, closing: %s", consecutiveSendErrorLimit, err)
			_ = p.closeWithReason(wrapped)
		}
		return wrapped
	}

	p.mu.Lock()
	p.sendErrorStreak = 0
	p.mu.Unlock()

	if onSent != nil {
		onSent(seq, framed)
	}
	return nil
}

// ResetHardwareBrightness issues the appropriate hardware brightness reset
// command based on which PFlag* capability the pusher's beacon advertised:
// GLOBALBRIGHTNESS_SET if PFlagGlobalBrightness, else one STRIPBRIGHTNESS_SET
// per strip if PFlagStripBrightness. It is a no-op if neither is supported.
func (p *Pusher) ResetHardwareBrightness(flags uint32, fullScale uint16) error {
	switch {
	case flags&PFlagGlobalBrightness != 0:
		return p.EnqueuePusherCommand(&GlobalBrightnessSetCommand{Parameter: fullScale})

	case flags&PFlagStripBrightness != 0:
		for _, s := range p.Strips() {
			if s == nil {
				continue
			}
			cmd := &StripBrightnessSetCommand{
				StripNumber: uint8(s.Number),
				Parameter:   fullScale,
			}
			if err := p.EnqueuePusherCommand(cmd); err != nil {
				return err
			}
		}
	}
	return nil
}

// SupportsHardwareBrightness reports whether flags advertises either
// hardware brightness capability.
func SupportsHardwareBrightness(flags uint32) bool {
	return flags&(PFlagGlobalBrightness|PFlagStripBrightness) != 0
}

// Close transitions the pusher to Closing, cancels any pending send tasks
// (their in-flight Flush promise completes with ErrClosed), and releases the
// underlying socket.
func (p *Pusher) Close() error {
	return p.closeWithReason(nil)
}

// closeWithReason is Close's implementation. reason is nil for an explicit
// Close and non-nil when the pusher is closing itself after a socket
// failure; it is forwarded to OnClosed.
func (p *Pusher) closeWithReason(reason error) error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.state = PusherClosing
		sender := p.sender
		p.mu.Unlock()

		close(p.doneC)

		if sender != nil {
			err = sender.Close()
		}

		p.mu.Lock()
		p.state = PusherClosed
		onClosed := p.OnClosed
		p.mu.Unlock()

		if onClosed != nil {
			onClosed(reason)
		}
	})
	return err
}

// DoneC returns a channel that is closed once Close has been called.
func (p *Pusher) DoneC() <-chan struct{} { return p.doneC }
