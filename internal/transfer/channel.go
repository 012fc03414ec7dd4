package transfer

import (
	pion "github.com/pion/webrtc/v4"
)

// Channel is the transport surface the engine needs: an ordered,
// reliable byte-message channel with an exposed buffered-byte count and
// low-water-mark event. Defined as an interface so the engine can be
// exercised against a fake sink in tests without a real WebRTC
// connection.
type Channel interface {
	Send(data []byte) error
	OnMessage(func(data []byte))
	OnClose(func())
	BufferedAmount() uint64
	SetBufferedAmountLowThreshold(threshold uint64)
	OnBufferedAmountLow(func())
	Close() error
}

// pionChannel adapts a *pion.DataChannel to Channel.
type pionChannel struct {
	dc *pion.DataChannel
}

// WrapDataChannel adapts an open pion data channel for use by the
// transfer engine.
func WrapDataChannel(dc *pion.DataChannel) Channel {
	return &pionChannel{dc: dc}
}

func (c *pionChannel) Send(data []byte) error {
	return c.dc.Send(data)
}

func (c *pionChannel) OnMessage(f func(data []byte)) {
	c.dc.OnMessage(func(msg pion.DataChannelMessage) {
		f(msg.Data)
	})
}

func (c *pionChannel) OnClose(f func()) {
	c.dc.OnClose(f)
}

func (c *pionChannel) BufferedAmount() uint64 {
	return c.dc.BufferedAmount()
}

func (c *pionChannel) SetBufferedAmountLowThreshold(threshold uint64) {
	c.dc.SetBufferedAmountLowThreshold(threshold)
}

func (c *pionChannel) OnBufferedAmountLow(f func()) {
	c.dc.OnBufferedAmountLow(f)
}

func (c *pionChannel) Close() error {
	return c.dc.Close()
}
