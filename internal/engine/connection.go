package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chaz8081/fingerbot/internal/ble"
)

// notifyBuffer bounds queued notifications between the transport callback
// and the sequencer. Frames beyond it are dropped, not blocked on.
const notifyBuffer = 8

// link is one live connection to the peripheral: the write characteristic,
// the notification stream (nil when the peripheral offers none), and the
// channel closed if the peripheral drops the connection.
type link struct {
	conn          ble.Connection
	write         ble.Characteristic
	notifications chan []byte
	disconnected  chan struct{}

	dropOnce  sync.Once
	closeOnce sync.Once
}

// connect establishes the connection and sets up both characteristics.
// A missing write characteristic is fatal for the operation; a missing or
// unsubscribable notify characteristic degrades to timer-driven advancement.
// The notify subscription is in place before any command is sent.
func (e *Engine) connect(ctx context.Context, dev ble.Device) (*link, error) {
	connectCtx, cancel := context.WithTimeout(ctx, e.opts.ConnectTimeout)
	defer cancel()

	conn, err := e.adapter.Connect(connectCtx, dev.Address)
	if err != nil {
		if connectCtx.Err() != nil && ctx.Err() == nil {
			return nil, ErrConnectionTimeout
		}
		return nil, fmt.Errorf("engine: connect: %w", err)
	}

	lnk := &link{conn: conn, disconnected: make(chan struct{})}

	writeChar, err := conn.DiscoverCharacteristic(ble.ServiceUUID, ble.WriteCharUUID)
	if err != nil {
		slog.Error("[ENGINE] write characteristic unavailable", "uuid", ble.WriteCharUUID, "error", err)
		lnk.close()
		return nil, ErrMissingWriteCharacteristic
	}
	lnk.write = writeChar

	notifyChar, err := conn.DiscoverCharacteristic(ble.ServiceUUID, ble.NotifyCharUUID)
	if err != nil {
		slog.Warn("[ENGINE] no notify characteristic, falling back to timers", "uuid", ble.NotifyCharUUID, "error", err)
	} else {
		ch := make(chan []byte, notifyBuffer)
		err := notifyChar.Subscribe(func(data []byte) {
			frame := make([]byte, len(data))
			copy(frame, data)
			select {
			case ch <- frame:
			default:
				slog.Debug("[ENGINE] notification dropped, sequencer behind")
			}
		})
		if err != nil {
			slog.Warn("[ENGINE] subscribe failed, falling back to timers", "error", err)
		} else {
			lnk.notifications = ch
		}
	}

	conn.OnDisconnect(func() {
		lnk.dropOnce.Do(func() { close(lnk.disconnected) })
	})

	return lnk, nil
}

// close tears the link down. Idempotent; disconnect errors are swallowed
// because the peripheral may already be gone.
func (l *link) close() {
	l.closeOnce.Do(func() {
		if err := l.conn.Disconnect(); err != nil {
			slog.Debug("[ENGINE] disconnect", "error", err)
		}
	})
}
