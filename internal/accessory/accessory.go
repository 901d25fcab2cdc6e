// Package accessory is the smart-home façade over the protocol engine: a
// momentary power switch that drives one press operation, and a cached
// battery percentage refreshed in the background.
package accessory

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Controller is the slice of the protocol engine the façade needs.
type Controller interface {
	Press(ctx context.Context) error
	BatteryQuery(ctx context.Context) error
	OnBattery(fn func(level int))
}

// Accessory serves the switch and battery properties to a home-automation
// host. Reads are always instant: Power reflects the in-flight press and
// BatteryLevel returns the cache, refreshing it asynchronously when stale.
type Accessory struct {
	controller      Controller
	batteryInterval time.Duration

	mu         sync.Mutex
	on         bool
	battery    int
	batteryAt  time.Time
	refreshing bool
}

// New builds the façade and registers for battery updates. The cache starts
// at 100% with zero age, so the first read triggers a refresh.
func New(controller Controller, batteryInterval time.Duration) *Accessory {
	a := &Accessory{
		controller:      controller,
		batteryInterval: batteryInterval,
		battery:         100,
	}
	controller.OnBattery(a.storeBattery)
	return a
}

// Power reports whether a press operation is currently in flight.
func (a *Accessory) Power() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.on
}

// SetPower drives the switch. True triggers one press operation; the switch
// reads on until the operation completes and then auto-resets, so a failed
// press never leaves it on. False is accepted as a no-op: the actuator
// releases on its own. A set while a press is already in flight is ignored.
func (a *Accessory) SetPower(on bool) error {
	if !on {
		return nil
	}

	a.mu.Lock()
	if a.on {
		a.mu.Unlock()
		return nil
	}
	a.on = true
	a.mu.Unlock()

	go func() {
		if err := a.controller.Press(context.Background()); err != nil {
			slog.Error("[ACCESSORY] press failed", "error", err)
		}
		a.mu.Lock()
		a.on = false
		a.mu.Unlock()
	}()
	return nil
}

// BatteryLevel returns the cached battery percentage immediately. When the
// cache is older than the configured interval, one background battery query
// is started; its failure leaves the cache stale for the next read to retry.
func (a *Accessory) BatteryLevel() int {
	a.mu.Lock()
	level := a.battery
	stale := time.Since(a.batteryAt) > a.batteryInterval
	start := stale && !a.refreshing
	if start {
		a.refreshing = true
	}
	a.mu.Unlock()

	if start {
		go a.refreshBattery()
	}
	return level
}

func (a *Accessory) refreshBattery() {
	defer func() {
		a.mu.Lock()
		a.refreshing = false
		a.mu.Unlock()
	}()
	if err := a.controller.BatteryQuery(context.Background()); err != nil {
		slog.Warn("[ACCESSORY] battery refresh failed", "error", err)
	}
}

func (a *Accessory) storeBattery(level int) {
	a.mu.Lock()
	a.battery = level
	a.batteryAt = time.Now()
	a.mu.Unlock()
	slog.Debug("[ACCESSORY] battery cache updated", "percent", level)
}
