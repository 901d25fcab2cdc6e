// Package engine drives one Tuya-style BLE accessory through complete
// operations: discover the peripheral, connect and set up its GATT
// characteristics, then run the ordered authentication and command sequence.
// At most one operation runs at a time; session state never outlives the
// operation that created it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaz8081/fingerbot/internal/ble"
	"github.com/chaz8081/fingerbot/internal/tuya"
)

// Credentials identify and authenticate the target device. All three fields
// are required; they are fixed for the life of the engine.
type Credentials struct {
	Address  string // transport-level identity, matched case-insensitively
	DeviceID string // authentication identifier carried in the Login packet
	LocalKey string // shared secret the session key is derived from
}

// WritePolicy decides what a failed characteristic write does to a running
// sequence. The devices tolerate dropped commands, so the observed behavior
// is to log and keep going; fail-fast is available for callers that would
// rather surface the failure than risk masking a real device fault.
type WritePolicy int

const (
	// PolicyFailOpen logs a failed write and advances the sequence anyway.
	PolicyFailOpen WritePolicy = iota
	// PolicyFailFast aborts the operation on the first failed write.
	PolicyFailFast
)

// Options configures engine timing and policy.
type Options struct {
	ScanDuration     time.Duration // length of one scan attempt
	ScanRetries      int           // total scan attempts before DeviceNotFound
	RetryCooldown    time.Duration // pause between scan attempts
	ConnectTimeout   time.Duration // deadline for the connect stage
	OperationTimeout time.Duration // hard ceiling for a whole operation
	PressDuration    time.Duration // how long the actuator is held down
	StepDelay        time.Duration // fallback per-step delay without notifications
	SettleDelay      time.Duration // wait after the final write before completing
	WritePolicy      WritePolicy
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		ScanDuration:     10 * time.Second,
		ScanRetries:      3,
		RetryCooldown:    5 * time.Second,
		ConnectTimeout:   10 * time.Second,
		OperationTimeout: 60 * time.Second,
		PressDuration:    time.Second,
		StepDelay:        500 * time.Millisecond,
		SettleDelay:      500 * time.Millisecond,
	}
}

// Engine is the protocol engine for one configured accessory.
type Engine struct {
	adapter ble.Adapter
	creds   Credentials
	opts    Options

	busy atomic.Bool

	mu        sync.Mutex
	onBattery func(level int)
}

// New validates the credentials and builds an engine. Missing credentials
// are a configuration error: the device cannot be driven without them.
func New(adapter ble.Adapter, creds Credentials, opts Options) (*Engine, error) {
	switch {
	case creds.Address == "":
		return nil, errors.New("engine: device address is required")
	case creds.DeviceID == "":
		return nil, errors.New("engine: device id is required")
	case creds.LocalKey == "":
		return nil, errors.New("engine: local key is required")
	}

	def := DefaultOptions()
	if opts.ScanDuration <= 0 {
		opts.ScanDuration = def.ScanDuration
	}
	if opts.ScanRetries <= 0 {
		opts.ScanRetries = def.ScanRetries
	}
	if opts.RetryCooldown <= 0 {
		opts.RetryCooldown = def.RetryCooldown
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = def.ConnectTimeout
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = def.OperationTimeout
	}
	if opts.PressDuration <= 0 {
		opts.PressDuration = def.PressDuration
	}
	if opts.StepDelay <= 0 {
		opts.StepDelay = def.StepDelay
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = def.SettleDelay
	}

	return &Engine{adapter: adapter, creds: creds, opts: opts}, nil
}

// OnBattery registers the handler invoked whenever a battery datapoint is
// extracted from a received frame, regardless of which operation is running.
func (e *Engine) OnBattery(fn func(level int)) {
	e.mu.Lock()
	e.onBattery = fn
	e.mu.Unlock()
}

func (e *Engine) notifyBattery(level int) {
	e.mu.Lock()
	fn := e.onBattery
	e.mu.Unlock()
	if fn != nil {
		fn(level)
	}
}

// Press runs one full press operation: login, heartbeat, status query,
// actuator down, actuator up.
func (e *Engine) Press(ctx context.Context) error {
	return e.run(ctx, opPress)
}

// BatteryQuery runs a reduced operation that only issues a status query.
// An extracted battery level is delivered through the OnBattery handler.
func (e *Engine) BatteryQuery(ctx context.Context) error {
	return e.run(ctx, opBattery)
}

// run executes one complete operation. The busy flag admits a single
// pipeline at a time and is released on every exit path, as is the
// peripheral connection.
func (e *Engine) run(ctx context.Context, kind opKind) error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer e.busy.Store(false)

	ctx, cancel := context.WithTimeout(ctx, e.opts.OperationTimeout)
	defer cancel()

	if err := e.adapter.Enable(); err != nil {
		return fmt.Errorf("engine: enable adapter: %w", err)
	}

	// Fresh session per operation; never reused across attempts.
	session := tuya.NewSession(e.creds.DeviceID, e.creds.LocalKey)

	dev, err := e.discover(ctx)
	if err != nil {
		return e.mapTimeout(ctx, err)
	}

	lnk, err := e.connect(ctx, dev)
	if err != nil {
		return e.mapTimeout(ctx, err)
	}
	defer lnk.close()

	seq := &sequencer{
		session:       session,
		write:         lnk.write.Write,
		kind:          kind,
		hasNotify:     lnk.notifications != nil,
		policy:        e.opts.WritePolicy,
		pressDuration: e.opts.PressDuration,
		stepDelay:     e.opts.StepDelay,
		settleDelay:   e.opts.SettleDelay,
		onFrame:       e.handleFrame,
	}
	return seq.run(ctx, lnk.notifications, lnk.disconnected)
}

// handleFrame is the status extractor: every received frame is scanned for
// a battery datapoint. Reports whether one was found.
func (e *Engine) handleFrame(frame []byte) bool {
	level, ok := extractBattery(frame)
	if ok {
		e.notifyBattery(level)
	}
	return ok
}

// mapTimeout converts an expired overall deadline into the operation
// timeout error, whatever stage it surfaced from.
func (e *Engine) mapTimeout(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrOperationTimeout
	}
	return err
}
