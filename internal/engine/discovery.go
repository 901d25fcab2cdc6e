package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chaz8081/fingerbot/internal/ble"
)

// discover scans for the configured address, retrying up to ScanRetries
// full scan cycles with RetryCooldown between them. Each attempt registers
// its own listener; the previous attempt's scan is fully stopped before the
// next begins, so a stale advertisement can never match twice.
func (e *Engine) discover(ctx context.Context) (ble.Device, error) {
	for attempt := 1; attempt <= e.opts.ScanRetries; attempt++ {
		if attempt > 1 {
			slog.Debug("[ENGINE] scan cooldown", "wait", e.opts.RetryCooldown)
			select {
			case <-time.After(e.opts.RetryCooldown):
			case <-ctx.Done():
				return ble.Device{}, ctx.Err()
			}
		}

		slog.Info("[ENGINE] scanning", "address", e.creds.Address, "attempt", attempt, "of", e.opts.ScanRetries)
		dev, found, err := e.scanOnce(ctx)
		if err != nil {
			return ble.Device{}, err
		}
		if found {
			slog.Info("[ENGINE] device found", "address", dev.Address, "name", dev.Name, "rssi", dev.RSSI)
			return dev, nil
		}
		if ctx.Err() != nil {
			return ble.Device{}, ctx.Err()
		}
	}
	return ble.Device{}, ErrDeviceNotFound
}

// scanOnce runs a single bounded scan attempt, stopping early on the first
// advertisement whose address matches the target.
func (e *Engine) scanOnce(parent context.Context) (ble.Device, bool, error) {
	ctx, cancel := context.WithTimeout(parent, e.opts.ScanDuration)
	defer cancel()

	var (
		mu    sync.Mutex
		match ble.Device
		found bool
	)
	err := e.adapter.Scan(ctx, func(d ble.Device) {
		if !strings.EqualFold(d.Address, e.creds.Address) {
			return
		}
		mu.Lock()
		if found {
			mu.Unlock()
			return
		}
		match = d
		found = true
		mu.Unlock()
		cancel()
		_ = e.adapter.StopScan()
	})
	if err != nil {
		return ble.Device{}, false, fmt.Errorf("engine: scan: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	return match, found, nil
}
