// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package pixelpusher

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type fakeSender struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
	failN  int // fail the next failN sends
}

func (f *fakeSender) SendDatagram(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return errFakeSend
	}
	cp := append([]byte(nil), b...)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeSender) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSender) MaxDatagramSize() int { return maxDatagramMTU }

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

var errFakeSend = ErrSocket

func makeStripsN(n int, pixels int) []*PixelStrip {
	strips := make([]*PixelStrip, n)
	for i := range strips {
		strips[i] = &PixelStrip{Number: StripNumber(i), AdvertisedPixelCount: pixels}
		strips[i].SetPixelByte(0, 1, 2, 3)
	}
	return strips
}

var _ = Describe("Pusher", func() {
	var sender *fakeSender
	var p *Pusher

	BeforeEach(func() {
		sender = &fakeSender{}
		p = NewPusher(sender, 8)
	})

	It("starts in the Created state", func() {
		Expect(p.State()).To(Equal(PusherCreated))
	})

	It("transitions to Started on Start", func() {
		p.Start()
		Expect(p.State()).To(Equal(PusherStarted))
	})

	It("assembles one data packet per strip when MaxStripsPerPacket is 1", func() {
		p.MaxStripsPerPacket = 1
		p.SetStrips(makeStripsN(8, 4))

		res := <-p.Flush()
		Expect(res.Err).ToNot(HaveOccurred())
		Expect(sender.sentCount()).To(Equal(8))
	})

	It("batches all strips into one packet under a generous limit", func() {
		p.MaxStripsPerPacket = 100
		p.SetStrips(makeStripsN(4, 4))

		res := <-p.Flush()
		Expect(res.Err).ToNot(HaveOccurred())
		Expect(sender.sentCount()).To(Equal(1))
	})

	It("prefixes each sent packet with a little-endian sequence number", func() {
		p.SetStrips(makeStripsN(1, 1))
		<-p.Flush()
		<-p.Flush()

		Expect(sender.sent).To(HaveLen(2))
		Expect(sender.sent[0][0:4]).To(Equal([]byte{0, 0, 0, 0}))
		Expect(sender.sent[1][0:4]).To(Equal([]byte{1, 0, 0, 0}))
	})

	It("transitions to Running after the first successful flush", func() {
		p.Start()
		p.SetStrips(makeStripsN(1, 1))
		<-p.Flush()
		Expect(p.State()).To(Equal(PusherRunning))
	})

	It("drains exactly one queued command per flush", func() {
		p.SetStrips(makeStripsN(1, 1))
		Expect(p.EnqueuePusherCommand(&ResetCommand{})).ToNot(HaveOccurred())
		Expect(p.EnqueuePusherCommand(&ResetCommand{})).ToNot(HaveOccurred())

		<-p.Flush()
		Expect(sender.sentCount()).To(Equal(2)) // 1 command + 1 data packet

		<-p.Flush()
		Expect(sender.sentCount()).To(Equal(4)) // 1 more command + 1 more data packet
	})

	It("invokes OnSent for every packet sent", func() {
		var seqs []uint32
		var mu sync.Mutex
		p.OnSent = func(seq uint32, payload []byte) {
			mu.Lock()
			defer mu.Unlock()
			seqs = append(seqs, seq)
		}
		p.SetStrips(makeStripsN(1, 1))
		<-p.Flush()

		mu.Lock()
		defer mu.Unlock()
		Expect(seqs).To(Equal([]uint32{0}))
	})

	Describe("autothrottle", func() {
		It("increases extra delay when deltaSequence exceeds 2", func() {
			p.DoAdjustForDroppedPackets = true
			p.UpdateWithHeader(time.Millisecond, 3)
			Expect(p.ExtraDelay()).To(Equal(5 * time.Millisecond))
		})

		It("decreases extra delay, floored at zero, when deltaSequence is zero", func() {
			p.DoAdjustForDroppedPackets = true
			p.UpdateWithHeader(time.Millisecond, 3)
			p.UpdateWithHeader(time.Millisecond, 0)
			Expect(p.ExtraDelay()).To(Equal(4 * time.Millisecond))

			for i := 0; i < 10; i++ {
				p.UpdateWithHeader(time.Millisecond, 0)
			}
			Expect(p.ExtraDelay()).To(BeZero())
		})

		It("does nothing when DoAdjustForDroppedPackets is false", func() {
			p.UpdateWithHeader(time.Millisecond, 10)
			Expect(p.ExtraDelay()).To(BeZero())
		})
	})

	It("reports changed=true the first time UpdateWithHeader sees new values", func() {
		Expect(p.UpdateWithHeader(5*time.Millisecond, 1)).To(BeTrue())
		Expect(p.UpdateWithHeader(5*time.Millisecond, 1)).To(BeFalse())
		Expect(p.UpdateWithHeader(6*time.Millisecond, 1)).To(BeTrue())
	})

	It("closes after three consecutive send failures", func() {
		sender.failN = 3
		p.SetStrips(makeStripsN(1, 1))

		// Each flush sends one packet, so three flushes make three failed sends.
		for i := 0; i < 3; i++ {
			res := <-p.Flush()
			Expect(res.Err).To(HaveOccurred())
		}
		Expect(p.State()).To(Equal(PusherClosed))
	})

	It("fails flushes requested after Close with ErrClosed", func() {
		p.SetStrips(makeStripsN(1, 1))
		Expect(p.Close()).ToNot(HaveOccurred())

		res := <-p.Flush()
		Expect(res.Err).To(Equal(ErrClosed))
	})

	It("Close is idempotent", func() {
		Expect(p.Close()).ToNot(HaveOccurred())
		Expect(p.Close()).ToNot(HaveOccurred())
		Expect(sender.closed).To(BeTrue())
	})

	Describe("ResetHardwareBrightness", func() {
		It("enqueues a global brightness command when PFlagGlobalBrightness is set", func() {
			Expect(p.ResetHardwareBrightness(PFlagGlobalBrightness, 65535)).ToNot(HaveOccurred())
			p.SetStrips(nil)
			<-p.Flush()
			Expect(sender.sentCount()).To(Equal(1))
		})

		It("enqueues one strip brightness command per strip when PFlagStripBrightness is set", func() {
			p.SetStrips(makeStripsN(3, 1))
			Expect(p.ResetHardwareBrightness(PFlagStripBrightness, 65535)).ToNot(HaveOccurred())
			<-p.Flush()
			// 1 command (one per flush) + 1 data packet holding all 3 strips.
			Expect(sender.sentCount()).To(Equal(2))
		})

		It("is a no-op when neither capability flag is set", func() {
			Expect(p.ResetHardwareBrightness(0, 65535)).ToNot(HaveOccurred())
			p.SetStrips(nil)
			<-p.Flush()
			Expect(sender.sentCount()).To(Equal(0))
		})
	})

	Describe("SupportsHardwareBrightness", func() {
		It("is true for either capability flag", func() {
			Expect(SupportsHardwareBrightness(PFlagGlobalBrightness)).To(BeTrue())
			Expect(SupportsHardwareBrightness(PFlagStripBrightness)).To(BeTrue())
			Expect(SupportsHardwareBrightness(0)).To(BeFalse())
		})
	})
})
