package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/fingerbot/internal/tuya"
)

// opKind selects which step sequence an operation runs.
type opKind int

const (
	opPress opKind = iota
	opBattery
)

// step is the sequencer's current position in the ordered command sequence.
type step int

const (
	stepLogin step = iota
	stepHeartbeat
	stepStatus
	stepPress
	stepRelease
	stepDone
)

func (st step) String() string {
	switch st {
	case stepLogin:
		return "login"
	case stepHeartbeat:
		return "heartbeat"
	case stepStatus:
		return "status"
	case stepPress:
		return "press"
	case stepRelease:
		return "release"
	case stepDone:
		return "done"
	}
	return fmt.Sprintf("step(%d)", int(st))
}

// eventKind distinguishes the two event sources feeding the sequencer.
type eventKind int

const (
	eventResponse eventKind = iota
	eventTimer
)

// seqEvent is one input to advance: a received frame or an expired timer.
// Both origins feed the same transition path.
type seqEvent struct {
	kind         eventKind
	frame        []byte
	batteryFound bool
}

// Datapoint ids on the press accessory.
const (
	dpSwitch  = 0x01
	dpBattery = 0x0C
)

// sequencer runs the ordered step sequence for one operation. Steps advance
// strictly in order: a response or timer event moves to the next step and
// sends its packet before any further event is consumed.
type sequencer struct {
	session   *tuya.Session
	write     func([]byte) error
	kind      opKind
	hasNotify bool
	policy    WritePolicy

	pressDuration time.Duration
	stepDelay     time.Duration
	settleDelay   time.Duration

	// onFrame receives every incoming frame and reports whether it carried
	// a recognizable battery datapoint.
	onFrame func([]byte) bool

	step step
}

// run drives the sequence to completion or until the operation deadline,
// a disconnect, or (under fail-fast) a write error ends it. A nil
// notifications channel blocks forever in the select, leaving the fallback
// timers as the only advancement source.
func (s *sequencer) run(ctx context.Context, notifications <-chan []byte, disconnected <-chan struct{}) error {
	s.step = s.firstStep()
	if err := s.send(s.step); err != nil {
		return err
	}

	var timerC <-chan time.Time
	if d := s.stepTimeout(); d > 0 {
		timerC = time.After(d)
	}

	for {
		var ev seqEvent
		select {
		case <-ctx.Done():
			return ErrOperationTimeout
		case <-disconnected:
			return ErrUnexpectedDisconnect
		case frame := <-notifications:
			ev = seqEvent{kind: eventResponse, frame: frame}
		case <-timerC:
			ev = seqEvent{kind: eventTimer}
		}

		prev := s.step
		done, err := s.advance(ev)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		// Only a step change re-arms the timer; a non-triggering event must
		// not reset a running press or settle countdown.
		if s.step != prev {
			timerC = nil
			if d := s.stepTimeout(); d > 0 {
				timerC = time.After(d)
			}
		}
	}
}

// advance applies one event to the sequence. It is the single transition
// path for both notification-driven and timer-driven advancement: feed the
// frame to the status extractor, decide whether the event triggers the
// current step, and if so move on and send the next packet. Returns true
// when the sequence has reached its terminal step.
func (s *sequencer) advance(ev seqEvent) (bool, error) {
	if ev.kind == eventResponse && s.onFrame != nil {
		ev.batteryFound = s.onFrame(ev.frame)
	}
	if !s.triggers(ev) {
		return false, nil
	}

	next := s.nextStep()
	s.step = next
	if next == stepDone {
		return true, nil
	}
	if err := s.send(next); err != nil {
		return false, err
	}
	return false, nil
}

// triggers reports whether ev is a valid advancement trigger for the
// current step.
func (s *sequencer) triggers(ev seqEvent) bool {
	switch s.step {
	case stepPress, stepRelease:
		// Press duration and settle are wall-clock scheduled, independent
		// of any response the device sends meanwhile.
		return ev.kind == eventTimer
	case stepStatus:
		if s.kind == opBattery && ev.kind == eventResponse {
			// A battery query resolves on an extracted battery datapoint
			// or on its timer, whichever comes first.
			return ev.batteryFound
		}
		return true
	default:
		return true
	}
}

func (s *sequencer) firstStep() step {
	if s.kind == opBattery {
		return stepStatus
	}
	return stepLogin
}

func (s *sequencer) nextStep() step {
	if s.kind == opBattery {
		return stepDone
	}
	if s.step == stepRelease {
		return stepDone
	}
	return s.step + 1
}

// stepTimeout returns the timer to arm for the current step, or zero for
// steps that advance on notifications alone.
func (s *sequencer) stepTimeout() time.Duration {
	switch s.step {
	case stepPress:
		return s.pressDuration
	case stepRelease:
		return s.settleDelay
	case stepStatus:
		if s.kind == opBattery {
			// Response window after the status write.
			return s.settleDelay
		}
	}
	if s.hasNotify {
		return 0
	}
	return s.stepDelay
}

// send builds and writes the packet for st. Under the fail-open policy a
// failed write is logged and the sequence keeps advancing; a stalled
// actuator is worse than a dropped command.
func (s *sequencer) send(st step) error {
	pkt, err := s.packet(st)
	if err != nil {
		return fmt.Errorf("engine: encode %v packet: %w", st, err)
	}
	slog.Debug("[ENGINE] sending", "step", st, "bytes", len(pkt))
	if err := s.write(pkt); err != nil {
		if s.policy == PolicyFailFast {
			return fmt.Errorf("engine: write %v packet: %w", st, err)
		}
		slog.Warn("[ENGINE] write failed, continuing", "step", st, "error", err)
	}
	return nil
}

func (s *sequencer) packet(st step) ([]byte, error) {
	switch st {
	case stepLogin:
		return s.session.Encode(tuya.CmdLogin, []byte(s.session.DeviceID()))
	case stepHeartbeat:
		ts := binary.BigEndian.AppendUint32(nil, uint32(time.Now().Unix()))
		return s.session.Encode(tuya.CmdHeartbeat, ts)
	case stepStatus:
		return s.session.Encode(tuya.CmdStatusQuery, nil)
	case stepPress:
		return s.session.Encode(tuya.CmdDPCommand, tuya.EncodeDP(dpSwitch, tuya.DPBool, true))
	case stepRelease:
		return s.session.Encode(tuya.CmdDPCommand, tuya.EncodeDP(dpSwitch, tuya.DPBool, false))
	}
	return nil, fmt.Errorf("engine: no packet for step %v", st)
}
