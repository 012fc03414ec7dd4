package transfer

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// fakeChannel is an in-memory Channel used to drive two Controllers
// against each other without a real WebRTC connection. Deliveries
// preserve send order via a buffered inbox drained by one goroutine.
type fakeChannel struct {
	peer      *fakeChannel
	onMessage func([]byte)
	onClose   func()
	onLow     func()
	inbox     chan []byte
	closed    atomic.Bool
}

func newFakeChannelPair() (*fakeChannel, *fakeChannel) {
	a := &fakeChannel{inbox: make(chan []byte, 4096)}
	b := &fakeChannel{inbox: make(chan []byte, 4096)}
	a.peer = b
	b.peer = a
	return a, b
}

func (c *fakeChannel) dispatch() {
	for data := range c.inbox {
		if c.onMessage != nil {
			c.onMessage(data)
		}
	}
}

func (c *fakeChannel) Send(data []byte) error {
	if c.closed.Load() {
		return fmt.Errorf("fakeChannel: closed")
	}
	cp := append([]byte(nil), data...)
	c.peer.inbox <- cp
	return nil
}

func (c *fakeChannel) OnMessage(f func([]byte)) {
	c.onMessage = f
	go c.dispatch()
}
func (c *fakeChannel) OnClose(f func())         { c.onClose = f }
func (c *fakeChannel) BufferedAmount() uint64   { return 0 }
func (c *fakeChannel) SetBufferedAmountLowThreshold(uint64) {}
func (c *fakeChannel) OnBufferedAmountLow(f func()) { c.onLow = f }

func (c *fakeChannel) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.inbox)
		if c.onClose != nil {
			c.onClose()
		}
	}
	return nil
}

// pacingFakeChannel lets a test control BufferedAmount directly to drive
// Controller's backpressure logic without any real transport, and records
// every sent frame for inspection.
type pacingFakeChannel struct {
	buffered atomic.Int64
	onLow    func()

	mu   sync.Mutex
	sent [][]byte
}

func (c *pacingFakeChannel) Send(data []byte) error {
	c.mu.Lock()
	c.sent = append(c.sent, append([]byte(nil), data...))
	c.mu.Unlock()
	return nil
}

func (c *pacingFakeChannel) sentFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}
func (c *pacingFakeChannel) OnMessage(func([]byte))     {}
func (c *pacingFakeChannel) OnClose(func())             {}
func (c *pacingFakeChannel) BufferedAmount() uint64     { return uint64(c.buffered.Load()) }
func (c *pacingFakeChannel) SetBufferedAmountLowThreshold(uint64) {}
func (c *pacingFakeChannel) OnBufferedAmountLow(f func()) { c.onLow = f }
func (c *pacingFakeChannel) Close() error               { return nil }
