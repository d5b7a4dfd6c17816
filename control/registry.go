// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package control

import (
	"context"
	"sync"
	"time"

	"github.com/danjacques/gopushpixels/device"
	"github.com/danjacques/gopushpixels/discovery"
	"github.com/danjacques/gopushpixels/protocol"
	"github.com/danjacques/gopushpixels/protocol/pixelpusher"
	"github.com/danjacques/gopushpixels/replay"
	"github.com/danjacques/gopushpixels/support/byteslicereader"
	"github.com/danjacques/gopushpixels/support/logging"

	"github.com/pkg/errors"
)

// maxUpdatePeriod is the ceiling spec.md's data model imposes on a beacon's
// advertised update period for pacing purposes: values beyond this are
// clamped, not rejected.
const maxUpdatePeriod = 100 * time.Millisecond

// minExpiration is the floor on a pusher's expiration threshold, regardless
// of how short its advertised update period is.
const minExpiration = 2 * time.Second

// expirationMultiple is how many update periods of silence before a pusher
// is swept as disappeared.
const expirationMultiple = 10

// drainTimeout bounds how long StopPushing waits for the frame loop to
// finish its in-flight tick before forcing pushers closed.
const drainTimeout = 2 * time.Second

// sweepInterval is how often the expiration sweeper runs.
const sweepInterval = time.Second

// Registry is the process-wide frame clock, discovery consumer, and
// power-budget enforcer for a fleet of PixelPusher controllers.
//
// Registry composes a discovery.Listener and an optional device.Registry the
// way demo/colorphase/app.go wires them by hand, generalized into a single
// reusable component that also owns each controller's pixelpusher.Pusher.
//
// A zero Registry is usable; Listener must be set before calling Run.
type Registry struct {
	// Logger receives diagnostic output. If nil, logging is suppressed.
	Logger logging.L

	// Listener is the discovery beacon listener Run consumes from.
	Listener *discovery.Listener

	// DeviceRegistry, if not nil, is updated with every discovered pusher and
	// backs GroupWithOrdinal's realization of spec.md's PusherGroup.
	DeviceRegistry *device.Registry

	// FrameDelegate supplies pixel data at the start of every frame tick. If
	// nil, the frame loop still ticks and flushes, but strips are never
	// written by the Registry itself.
	FrameDelegate FrameDelegate

	// NotifyFunc, if not nil, is called for every pusher lifecycle event. It
	// is invoked from the frame or discovery task and must not block.
	NotifyFunc func(Notification)

	// FrameRateLimit caps the frame loop to this many ticks per second. Zero
	// means unlimited: the next tick starts as soon as all pushers are ready.
	FrameRateLimit int

	// ExtraDelay is a fixed baseline added to every pusher's pacing period,
	// independent of its autothrottle-computed extra delay.
	ExtraDelay time.Duration

	// TotalPowerLimit caps sum(powerTotal*powerScale) across all pushers.
	// Negative disables power-budget enforcement.
	TotalPowerLimit int64

	// BrightnessScale is the per-component multiplier applied to every strip
	// this Registry creates.
	BrightnessScale pixelpusher.BrightnessScale

	// DoAdjustForDroppedPackets enables each pusher's autothrottle.
	DoAdjustForDroppedPackets bool

	// DoKillPushersWhenNotRunning closes every pusher when StopPushing is
	// called, rather than leaving them idle to be driven again later.
	DoKillPushersWhenNotRunning bool

	// Recorder, if not nil, receives a best-effort mirror of every outbound
	// data packet. Strips using RGBOW or WIDE_PIXELS encoding cannot be
	// decoded by the legacy PacketReader this mirrors through (see
	// DESIGN.md); packets for those pushers are skipped, with a warning logged
	// once when the pusher is created.
	Recorder *replay.Recorder

	mu      sync.Mutex
	pushers map[string]*pusherEntry
	running bool

	stopC          chan struct{}
	renderFinished chan struct{}
	wg             sync.WaitGroup
}

type capabilitySnapshot struct {
	stripsAttached     uint8
	pixelsPerStrip     uint16
	maxStripsPerPacket uint8
}

func snapshotOf(d *pixelpusher.Device) capabilitySnapshot {
	return capabilitySnapshot{
		stripsAttached:     d.StripsAttached,
		pixelsPerStrip:     d.PixelsPerStrip,
		maxStripsPerPacket: d.MaxStripsPerPacket,
	}
}

type pusherEntry struct {
	id       string
	dh       *protocol.DiscoveryHeaders
	remote   *device.Remote
	pusher   *pixelpusher.Pusher
	snapshot capabilitySnapshot

	updatePeriod time.Duration
	lastSeen     time.Time
}

func clampUpdatePeriod(d time.Duration) time.Duration {
	if d > maxUpdatePeriod {
		return maxUpdatePeriod
	}
	return d
}

func (reg *Registry) logger() logging.L { return logging.Must(reg.Logger) }

func (reg *Registry) notify(n Notification) {
	if reg.NotifyFunc != nil {
		reg.NotifyFunc(n)
	}
}

// Observe ingests a single decoded discovery beacon, creating, updating, or
// replacing the pusher it describes.
//
// Observe is safe to call directly (e.g. from a test, or a transport other
// than Listener), and is what Run calls for every beacon it accepts.
func (reg *Registry) Observe(dh *protocol.DiscoveryHeaders) (device.D, error) {
	if dh == nil || dh.DeviceType != protocol.PixelPusherDeviceType || dh.PixelPusher == nil {
		return nil, pixelpusher.ErrUnknownDevice
	}

	id := dh.HardwareAddr().String()
	snap := snapshotOf(dh.PixelPusher)
	period := clampUpdatePeriod(dh.PixelPusher.UpdatePeriodDuration())
	now := time.Now()

	reg.mu.Lock()

	if e, ok := reg.pushers[id]; ok {
		if e.snapshot != snap {
			reg.removePusherLocked(e, pixelpusher.ErrCapabilityMismatch)
		} else {
			e.dh = dh
			e.lastSeen = now
			e.updatePeriod = period
			changed := e.pusher.UpdateWithHeader(period, dh.PixelPusher.DeltaSequence)
			e.remote.UpdateHeaders(now, dh)
			d := device.D(e.remote)
			reg.mu.Unlock()

			if changed {
				reg.notify(Notification{Kind: PusherUpdated, Device: d})
			}
			return d, nil
		}
	}

	remote, err := reg.newPusherLocked(id, dh, snap, period, now)
	reg.mu.Unlock()
	if err != nil {
		return nil, err
	}

	reg.notify(Notification{Kind: PusherAppeared, Device: remote})
	return remote, nil
}

func (reg *Registry) newPusherLocked(
	id string, dh *protocol.DiscoveryHeaders, snap capabilitySnapshot, period time.Duration, now time.Time,
) (*device.Remote, error) {
	remote := device.MakeRemote(id, dh)
	remote.Logger = reg.Logger

	sender, err := remote.Sender()
	if err != nil {
		return nil, errors.Wrapf(err, "control: creating sender for %s", id)
	}

	pusher := pixelpusher.NewPusher(sender, int(dh.PixelPusher.MaxStripsPerPacket))
	pusher.Logger = logging.Must(reg.Logger)
	pusher.DoAdjustForDroppedPackets = reg.DoAdjustForDroppedPackets
	pusher.BaseExtraDelay = reg.ExtraDelay
	pusher.SetStrips(makeStrips(dh.PixelPusher, reg.BrightnessScale))
	pusher.UpdateWithHeader(period, dh.PixelPusher.DeltaSequence)

	e := &pusherEntry{
		id:           id,
		dh:           dh,
		remote:       remote,
		pusher:       pusher,
		snapshot:     snap,
		updatePeriod: period,
		lastSeen:     now,
	}
	if reg.Recorder != nil {
		pusher.OnSent = reg.recordSent(e)
	}
	pusher.OnClosed = reg.onPusherClosed(e)

	if reg.pushers == nil {
		reg.pushers = make(map[string]*pusherEntry)
	}
	reg.pushers[id] = e

	if reg.DeviceRegistry != nil {
		reg.DeviceRegistry.Add(remote)
	}
	if reg.running {
		pusher.Start()
	}

	return remote, nil
}

// removePusherLocked removes e from the pusher map and asynchronously closes
// it and posts a PusherDisappeared notification. It must be called with
// reg.mu held, and never blocks on the close itself.
func (reg *Registry) removePusherLocked(e *pusherEntry, reason error) {
	delete(reg.pushers, e.id)

	go func() {
		_ = e.pusher.Close()
		e.remote.MarkDone()
		reg.notify(Notification{Kind: PusherDisappeared, Device: e.remote, Reason: reason})
	}()
}

// onPusherClosed is installed as e.pusher.OnClosed. It fires for every Close,
// but only acts when reason is non-nil: that is the signal that the pusher
// closed itself after exhausting its send-error budget (spec.md §4.6's
// pusherSocketFailed), rather than being closed deliberately by
// removePusherLocked, sweep, or StopPushing, all of which already remove the
// entry and notify themselves.
func (reg *Registry) onPusherClosed(e *pusherEntry) func(reason error) {
	return func(reason error) {
		if reason == nil {
			return
		}

		reg.mu.Lock()
		cur, ok := reg.pushers[e.id]
		if ok && cur == e {
			delete(reg.pushers, e.id)
		}
		reg.mu.Unlock()

		if !ok || cur != e {
			return
		}

		e.remote.MarkDone()
		reg.notify(Notification{Kind: PusherDisappeared, Device: e.remote, Reason: reason})
	}
}

func makeStrips(d *pixelpusher.Device, brightness pixelpusher.BrightnessScale) []*pixelpusher.PixelStrip {
	strips := make([]*pixelpusher.PixelStrip, d.StripsAttached)
	for i := range strips {
		var flags pixelpusher.StripFlags
		if i < len(d.StripFlags) {
			flags = d.StripFlags[i]
		}
		strips[i] = &pixelpusher.PixelStrip{
			Number:               pixelpusher.StripNumber(i),
			Flags:                flags,
			AdvertisedPixelCount: int(d.PixelsPerStrip),
			Brightness:           brightness,
		}
	}
	return strips
}

// recordSent returns a pixelpusher.Pusher.OnSent hook that mirrors e's
// outbound packets to reg.Recorder, decoded through the legacy PacketReader.
//
// That reader's RGBOW layout predates spec.md's 8x-replication scheme, so
// strips using RGBOW or WIDE_PIXELS cannot be decoded correctly; recording
// for such a pusher is skipped entirely rather than silently mis-decoded.
func (reg *Registry) recordSent(e *pusherEntry) func(seq uint32, payload []byte) {
	for _, f := range e.dh.PixelPusher.StripFlags {
		if f.IsRGBOW() || f.IsWidePixels() {
			reg.logger().Warnf(
				"control: recording disabled for %s: RGBOW/WIDE_PIXELS strips are not "+
					"decodable by the legacy packet reader", e.id)
			return nil
		}
	}

	pr, err := e.dh.PacketReader()
	if err != nil {
		reg.logger().Warnf("control: no packet reader for %s, recording disabled: %s", e.id, err)
		return nil
	}

	return func(seq uint32, payload []byte) {
		r := byteslicereader.R{Buffer: payload}
		var pkt protocol.Packet
		if err := pr.ReadPacket(&r, &pkt); err != nil {
			reg.logger().Warnf("control: failed to decode sent packet from %s for recording: %s", e.id, err)
			return
		}
		if err := reg.Recorder.RecordPacket(e.remote, &pkt); err != nil {
			reg.logger().Warnf("control: failed to record packet from %s: %s", e.id, err)
		}
	}
}

// GroupWithOrdinal returns the devices registered under group ordinal n,
// sorted by (controllerOrdinal, MAC) per spec.md's PusherGroup. It requires
// DeviceRegistry to be set; otherwise it returns nil.
func (reg *Registry) GroupWithOrdinal(n int) []device.D {
	if reg.DeviceRegistry == nil {
		return nil
	}
	return reg.DeviceRegistry.DevicesForGroup(n)
}

// PusherStrips returns the strips belonging to every currently tracked
// pusher, keyed by pusher ID. It is the point through which a FrameDelegate
// reaches the pixel data it should fill each frame.
func (reg *Registry) PusherStrips() map[string][]*pixelpusher.PixelStrip {
	entries := reg.entries()
	strips := make(map[string][]*pixelpusher.PixelStrip, len(entries))
	for _, e := range entries {
		strips[e.id] = e.pusher.Strips()
	}
	return strips
}

// EnqueuePusherCommandInAllPushers fans cmd out to every currently-tracked
// pusher's command queue. Failures on individual pushers are logged, not
// returned: a global command op reports aggregate effort, never aborts early.
func (reg *Registry) EnqueuePusherCommandInAllPushers(cmd pixelpusher.Command) {
	for _, e := range reg.entries() {
		if err := e.pusher.EnqueuePusherCommand(cmd); err != nil {
			reg.logger().Warnf("control: failed to enqueue command for %s: %s", e.id, err)
		}
	}
}

// ScaleAverageBrightnessForLimit scales strips down when their average
// brightness exceeds limit. If perPusher is true, each pusher's strips are
// evaluated and scaled independently; otherwise all strips across all
// pushers are evaluated as a single pool. It returns whether any scope was
// scaled.
func (reg *Registry) ScaleAverageBrightnessForLimit(limit float64, perPusher bool) bool {
	entries := reg.entries()

	if perPusher {
		scaled := false
		for _, e := range entries {
			if scaleStripsForLimit(e.pusher.Strips(), limit) {
				scaled = true
			}
		}
		return scaled
	}

	var all []*pixelpusher.PixelStrip
	for _, e := range entries {
		all = append(all, e.pusher.Strips()...)
	}
	return scaleStripsForLimit(all, limit)
}

func scaleStripsForLimit(strips []*pixelpusher.PixelStrip, limit float64) bool {
	if len(strips) == 0 {
		return false
	}

	var sum float64
	for _, s := range strips {
		sum += s.AverageBrightness()
	}
	avg := sum / float64(len(strips))
	if avg <= limit {
		return false
	}

	scale := limit / avg
	for _, s := range strips {
		s.ScaleAverageBrightness(scale)
	}
	return true
}

func (reg *Registry) entries() []*pusherEntry {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	entries := make([]*pusherEntry, 0, len(reg.pushers))
	for _, e := range reg.pushers {
		entries = append(entries, e)
	}
	return entries
}

// Run consumes beacons from Listener until ctx is cancelled or a listener
// error occurs, Observing each one, and runs the expiration sweeper
// alongside it.
func (reg *Registry) Run(ctx context.Context) error {
	sweepCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go reg.sweepLoop(sweepCtx)

	for {
		dh, err := reg.Listener.Accept(ctx)
		if err != nil {
			return err
		}
		if _, err := reg.Observe(dh); err != nil {
			reg.logger().Warnf("control: failed to observe beacon from %s: %s", dh.HardwareAddr(), err)
		}
	}
}

func (reg *Registry) sweepLoop(ctx context.Context) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			reg.sweep()
		}
	}
}

// sweep closes and posts PusherDisappeared for any pusher unseen for longer
// than expirationMultiple update periods (floored at minExpiration).
func (reg *Registry) sweep() {
	now := time.Now()

	reg.mu.Lock()
	var expired []*pusherEntry
	for id, e := range reg.pushers {
		threshold := expirationMultiple * e.updatePeriod
		if threshold < minExpiration {
			threshold = minExpiration
		}
		if now.Sub(e.lastSeen) > threshold {
			expired = append(expired, e)
			delete(reg.pushers, id)
		}
	}
	reg.mu.Unlock()

	for _, e := range expired {
		_ = e.pusher.Close()
		e.remote.MarkDone()
		reg.notify(Notification{Kind: PusherDisappeared, Device: e.remote, Reason: errExpired})
	}
}

// errExpired is the PusherDisappeared reason posted by the expiration
// sweeper.
var errExpired = errors.New("control: pusher expired")

// StartPushing arms the frame clock. It is a no-op if already running.
func (reg *Registry) StartPushing() {
	reg.mu.Lock()
	if reg.running {
		reg.mu.Unlock()
		return
	}
	reg.running = true
	reg.stopC = make(chan struct{})
	stopC := reg.stopC
	for _, e := range reg.pushers {
		e.pusher.Start()
	}
	reg.mu.Unlock()

	reg.wg.Add(1)
	go reg.frameLoop(stopC)
}

// StopPushing disarms the frame clock, waiting up to a bounded drain window
// for the in-flight tick to finish before returning. If
// DoKillPushersWhenNotRunning is set, every tracked pusher is then closed.
func (reg *Registry) StopPushing() {
	reg.mu.Lock()
	if !reg.running {
		reg.mu.Unlock()
		return
	}
	reg.running = false
	close(reg.stopC)
	reg.mu.Unlock()

	done := make(chan struct{})
	go func() {
		reg.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		reg.logger().Warnf("control: frame loop did not drain within %s; forcing close", drainTimeout)
	}

	if reg.DoKillPushersWhenNotRunning {
		reg.closeAllPushers()
	}
}

func (reg *Registry) closeAllPushers() {
	entries := reg.entries()

	reg.mu.Lock()
	reg.pushers = nil
	reg.mu.Unlock()

	for _, e := range entries {
		_ = e.pusher.Close()
		e.remote.MarkDone()
		reg.notify(Notification{Kind: PusherDisappeared, Device: e.remote})
	}
}

// PPRenderFinished is the FrameDelegate callback for the async render
// variant: the delegate calls it once every strip write for the current
// frame has completed.
func (reg *Registry) PPRenderFinished() {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.renderFinished != nil {
		close(reg.renderFinished)
		reg.renderFinished = nil
	}
}

func (reg *Registry) frameLoop(stopC chan struct{}) {
	defer reg.wg.Done()

	var tickInterval time.Duration
	if reg.FrameRateLimit > 0 {
		tickInterval = time.Second / time.Duration(reg.FrameRateLimit)
	}

	for {
		select {
		case <-stopC:
			return
		default:
		}

		tickStart := time.Now()

		if !reg.renderFrame(stopC) {
			return
		}

		if tickInterval > 0 {
			if d := tickInterval - time.Since(tickStart); d > 0 {
				timer := time.NewTimer(d)
				select {
				case <-timer.C:
				case <-stopC:
					timer.Stop()
					return
				}
			}
		}
	}
}

// renderFrame executes a single frame tick: render, power budget, flush. It
// returns false if stopC fired before the tick completed.
func (reg *Registry) renderFrame(stopC chan struct{}) bool {
	if fd := reg.FrameDelegate; fd != nil {
		if !fd.PPRenderStart() {
			reg.mu.Lock()
			reg.renderFinished = make(chan struct{})
			waitC := reg.renderFinished
			reg.mu.Unlock()

			select {
			case <-waitC:
			case <-stopC:
				return false
			}
		}
	}

	reg.applyPowerBudget()
	return reg.flushAll(stopC)
}

// applyPowerBudget implements spec.md §4.8 step 2 and the §8 testable
// property: scale = min(1, limit/sum(powerTotal)), computed from each
// beacon's raw advertised powerTotal. The estimate deliberately excludes any
// previously broadcast PowerScale — feeding last tick's scale back into this
// tick's sum would make the computed scale oscillate between the capped
// value and 1.0 every other frame instead of converging.
func (reg *Registry) applyPowerBudget() {
	entries := reg.entries()
	for _, e := range entries {
		pusherExtraDelaySeconds.WithLabelValues(e.id).Set(e.pusher.ExtraDelay().Seconds())
	}

	if reg.TotalPowerLimit < 0 {
		return
	}

	var total float64
	for _, e := range entries {
		total += float64(e.dh.PixelPusher.PowerTotal)
	}

	scale := 1.0
	if total > float64(reg.TotalPowerLimit) && total > 0 {
		scale = float64(reg.TotalPowerLimit) / total
	}
	registryPowerScale.Set(scale)

	for _, e := range entries {
		for _, s := range e.pusher.Strips() {
			if s != nil {
				s.PowerScale = scale
			}
		}
		pusherPowerScale.WithLabelValues(e.id).Set(scale)
	}
}

func (reg *Registry) flushAll(stopC chan struct{}) bool {
	entries := reg.entries()

	resultCs := make([]<-chan pixelpusher.FlushResult, len(entries))
	for i, e := range entries {
		resultCs[i] = e.pusher.Flush()
	}

	for i, rc := range resultCs {
		select {
		case res := <-rc:
			if res.Err != nil && res.Err != pixelpusher.ErrClosed {
				reg.logger().Warnf("control: flush failed for %s: %s", entries[i].id, res.Err)
			}
		case <-stopC:
			return false
		}
	}
	return true
}
