// Package bletest provides a fake BLE transport for tests: a scriptable
// peripheral and an adapter that advertises it, implementing the same
// interfaces the hardware binding does.
package bletest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chaz8081/fingerbot/internal/ble"
)

// Peripheral simulates one BLE accessory. The zero value is a device with
// both characteristics and no scripted behavior; tests flip the fields to
// model degraded peripherals.
type Peripheral struct {
	Device ble.Device

	// NoWriteChar omits the write characteristic from discovery.
	NoWriteChar bool
	// NoNotifyChar omits the notify characteristic from discovery.
	NoNotifyChar bool
	// SubscribeErr is returned by Subscribe on the notify characteristic.
	SubscribeErr error
	// WriteErr is returned by every write to the write characteristic.
	WriteErr error
	// OnWrite, if set, runs synchronously after each recorded write.
	OnWrite func(data []byte)

	mu           sync.Mutex
	writes       [][]byte
	notifyCb     func([]byte)
	disconnectCb func()
}

// Writes returns a copy of everything written to the write characteristic.
func (p *Peripheral) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	copy(out, p.writes)
	return out
}

// Notify delivers a frame to the notify subscriber, if any.
func (p *Peripheral) Notify(frame []byte) {
	p.mu.Lock()
	cb := p.notifyCb
	p.mu.Unlock()
	if cb != nil {
		cb(frame)
	}
}

// SimulateDisconnect fires the peripheral-initiated disconnect event.
func (p *Peripheral) SimulateDisconnect() {
	p.mu.Lock()
	cb := p.disconnectCb
	p.mu.Unlock()
	if cb != nil {
		cb()
	}
}

type fakeConnection struct {
	p *Peripheral
}

func (c *fakeConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (ble.Characteristic, error) {
	switch charUUID {
	case ble.WriteCharUUID:
		if c.p.NoWriteChar {
			return nil, fmt.Errorf("bletest: characteristic %s not present", charUUID)
		}
		return &writeCharacteristic{p: c.p}, nil
	case ble.NotifyCharUUID:
		if c.p.NoNotifyChar {
			return nil, fmt.Errorf("bletest: characteristic %s not present", charUUID)
		}
		return &notifyCharacteristic{p: c.p}, nil
	}
	return nil, fmt.Errorf("bletest: unknown characteristic UUID %q", charUUID)
}

func (c *fakeConnection) Disconnect() error {
	return nil
}

func (c *fakeConnection) OnDisconnect(cb func()) {
	c.p.mu.Lock()
	c.p.disconnectCb = cb
	c.p.mu.Unlock()
}

type writeCharacteristic struct {
	p *Peripheral
}

func (c *writeCharacteristic) Write(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	c.p.mu.Lock()
	c.p.writes = append(c.p.writes, cp)
	onWrite := c.p.OnWrite
	err := c.p.WriteErr
	c.p.mu.Unlock()
	if onWrite != nil {
		onWrite(cp)
	}
	return err
}

func (c *writeCharacteristic) Subscribe(func([]byte)) error {
	return fmt.Errorf("bletest: write characteristic does not notify")
}

type notifyCharacteristic struct {
	p *Peripheral
}

func (c *notifyCharacteristic) Write([]byte) error {
	return fmt.Errorf("bletest: notify characteristic is not writable")
}

func (c *notifyCharacteristic) Subscribe(cb func([]byte)) error {
	if c.p.SubscribeErr != nil {
		return c.p.SubscribeErr
	}
	c.p.mu.Lock()
	c.p.notifyCb = cb
	c.p.mu.Unlock()
	return nil
}

// Adapter is a fake ble.Adapter advertising a fixed set of peripherals.
type Adapter struct {
	// Peripherals are reported, in order, by every scan.
	Peripherals []*Peripheral
	// ConnectErr makes every Connect fail.
	ConnectErr error

	mu        sync.Mutex
	scanCount int
	stopCh    chan struct{}
}

// NewAdapter builds a fake adapter advertising the given peripherals.
func NewAdapter(peripherals ...*Peripheral) *Adapter {
	return &Adapter{Peripherals: peripherals}
}

func (a *Adapter) Enable() error { return nil }

// Scan reports every peripheral once, then blocks until the context ends or
// StopScan is called, mirroring a real scan window.
func (a *Adapter) Scan(ctx context.Context, found func(ble.Device)) error {
	a.mu.Lock()
	a.scanCount++
	stop := make(chan struct{})
	a.stopCh = stop
	peripherals := a.Peripherals
	a.mu.Unlock()

	for _, p := range peripherals {
		found(p.Device)
	}

	select {
	case <-ctx.Done():
	case <-stop:
	}
	return nil
}

func (a *Adapter) StopScan() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopCh != nil {
		select {
		case <-a.stopCh:
		default:
			close(a.stopCh)
		}
	}
	return nil
}

func (a *Adapter) Connect(_ context.Context, address string) (ble.Connection, error) {
	if a.ConnectErr != nil {
		return nil, a.ConnectErr
	}
	a.mu.Lock()
	peripherals := a.Peripherals
	a.mu.Unlock()
	for _, p := range peripherals {
		if strings.EqualFold(p.Device.Address, address) {
			return &fakeConnection{p: p}, nil
		}
	}
	return nil, fmt.Errorf("bletest: no peripheral at %s", address)
}

// ScanCount returns how many scan attempts have been started.
func (a *Adapter) ScanCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scanCount
}

var (
	_ ble.Adapter        = (*Adapter)(nil)
	_ ble.Connection     = (*fakeConnection)(nil)
	_ ble.Characteristic = (*writeCharacteristic)(nil)
	_ ble.Characteristic = (*notifyCharacteristic)(nil)
)
