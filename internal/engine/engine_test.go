package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chaz8081/fingerbot/internal/ble"
	"github.com/chaz8081/fingerbot/internal/ble/bletest"
	"github.com/chaz8081/fingerbot/internal/tuya"
)

func newTestPeripheral() *bletest.Peripheral {
	return &bletest.Peripheral{
		Device: ble.Device{Name: "Fingerbot", Address: "AA:BB:CC:DD:EE:FF", RSSI: -52},
	}
}

// ackWrites scripts the peripheral to acknowledge every authentication and
// status write with an empty response frame, the way real devices do.
func ackWrites(p *bletest.Peripheral) {
	p.OnWrite = func(data []byte) {
		if tuya.Command(data[6]) != tuya.CmdDPCommand {
			p.Notify([]byte{0x55, 0xAA, 0x00, 0x00, 0x00, 0x00, 0x00})
		}
	}
}

func writtenCommands(p *bletest.Peripheral) []tuya.Command {
	writes := p.Writes()
	out := make([]tuya.Command, len(writes))
	for i, w := range writes {
		out[i] = tuya.Command(w[6])
	}
	return out
}

func TestPressEndToEnd(t *testing.T) {
	p := newTestPeripheral()
	ackWrites(p)
	opts := fastOptions()
	e := mustEngine(t, bletest.NewAdapter(p), opts)

	start := time.Now()
	if err := e.Press(context.Background()); err != nil {
		t.Fatalf("Press() error = %v", err)
	}
	elapsed := time.Since(start)

	got := writtenCommands(p)
	want := []tuya.Command{tuya.CmdLogin, tuya.CmdHeartbeat, tuya.CmdStatusQuery, tuya.CmdDPCommand, tuya.CmdDPCommand}
	if len(got) != len(want) {
		t.Fatalf("write count = %d (%v), want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d command = 0x%02x, want 0x%02x", i, got[i], want[i])
		}
	}

	if min := opts.PressDuration + opts.SettleDelay; elapsed < min {
		t.Errorf("Press() resolved in %v, want at least press duration plus settle (%v)", elapsed, min)
	}
}

func TestPressWithoutNotifyCharacteristic(t *testing.T) {
	p := newTestPeripheral()
	p.NoNotifyChar = true
	e := mustEngine(t, bletest.NewAdapter(p), fastOptions())

	if err := e.Press(context.Background()); err != nil {
		t.Fatalf("Press() error = %v, want timer-driven fallback to succeed", err)
	}
	if got := len(p.Writes()); got != 5 {
		t.Errorf("write count = %d, want 5", got)
	}
}

func TestMissingWriteCharacteristicIsFatal(t *testing.T) {
	p := newTestPeripheral()
	p.NoWriteChar = true
	e := mustEngine(t, bletest.NewAdapter(p), fastOptions())

	err := e.Press(context.Background())
	if !errors.Is(err, ErrMissingWriteCharacteristic) {
		t.Errorf("Press() error = %v, want ErrMissingWriteCharacteristic", err)
	}
}

func TestSubscribeFailureDegradesToTimers(t *testing.T) {
	p := newTestPeripheral()
	p.SubscribeErr = errors.New("subscribe refused")
	e := mustEngine(t, bletest.NewAdapter(p), fastOptions())

	if err := e.Press(context.Background()); err != nil {
		t.Fatalf("Press() error = %v, subscription failure should be non-fatal", err)
	}
	if got := len(p.Writes()); got != 5 {
		t.Errorf("write count = %d, want 5", got)
	}
}

func TestBusyRejectsSecondOperation(t *testing.T) {
	p := newTestPeripheral()
	ackWrites(p)
	opts := fastOptions()
	opts.PressDuration = 150 * time.Millisecond
	e := mustEngine(t, bletest.NewAdapter(p), opts)

	pressDone := make(chan error, 1)
	go func() { pressDone <- e.Press(context.Background()) }()

	// Wait for the press operation to take the guard.
	for !e.busy.Load() {
		time.Sleep(time.Millisecond)
	}

	if err := e.BatteryQuery(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("BatteryQuery() during press error = %v, want ErrBusy", err)
	}

	if err := <-pressDone; err != nil {
		t.Fatalf("Press() error = %v", err)
	}

	// The guard must be free again after the operation terminates.
	if err := e.BatteryQuery(context.Background()); errors.Is(err, ErrBusy) {
		t.Error("BatteryQuery() after press still reports busy")
	}
}

func TestUnexpectedDisconnectAbortsOperation(t *testing.T) {
	p := newTestPeripheral()
	// No acks: the sequence stalls on the login response until the
	// peripheral drops the connection.
	p.OnWrite = func([]byte) { go p.SimulateDisconnect() }
	e := mustEngine(t, bletest.NewAdapter(p), fastOptions())

	err := e.Press(context.Background())
	if !errors.Is(err, ErrUnexpectedDisconnect) {
		t.Fatalf("Press() error = %v, want ErrUnexpectedDisconnect", err)
	}
	if e.busy.Load() {
		t.Error("operation guard still held after disconnect abort")
	}
}

func TestOperationTimeout(t *testing.T) {
	p := newTestPeripheral()
	// Notify characteristic present but the device never responds.
	opts := fastOptions()
	opts.OperationTimeout = 60 * time.Millisecond
	e := mustEngine(t, bletest.NewAdapter(p), opts)

	err := e.Press(context.Background())
	if !errors.Is(err, ErrOperationTimeout) {
		t.Errorf("Press() error = %v, want ErrOperationTimeout", err)
	}
	if e.busy.Load() {
		t.Error("operation guard still held after timeout")
	}
}

func TestBatteryQueryDeliversLevel(t *testing.T) {
	p := newTestPeripheral()
	p.OnWrite = func(data []byte) {
		if tuya.Command(data[6]) == tuya.CmdStatusQuery {
			p.Notify(tuya.EncodeDP(0x0C, tuya.DPInt, 73))
		}
	}
	e := mustEngine(t, bletest.NewAdapter(p), fastOptions())

	levels := make(chan int, 1)
	e.OnBattery(func(level int) { levels <- level })

	if err := e.BatteryQuery(context.Background()); err != nil {
		t.Fatalf("BatteryQuery() error = %v", err)
	}

	select {
	case level := <-levels:
		if level != 73 {
			t.Errorf("battery level = %d, want 73", level)
		}
	default:
		t.Error("no battery level delivered to the handler")
	}
}

func TestPressFeedsExtractorFromAnyFrame(t *testing.T) {
	p := newTestPeripheral()
	// Status responses during a press carry the battery record; the
	// extractor should pick it up even though no battery query is running.
	p.OnWrite = func(data []byte) {
		switch tuya.Command(data[6]) {
		case tuya.CmdStatusQuery:
			p.Notify(tuya.EncodeDP(0x0C, tuya.DPInt, 42))
		case tuya.CmdDPCommand:
		default:
			p.Notify([]byte{0x55, 0xAA, 0x00, 0x00, 0x00, 0x00, 0x00})
		}
	}
	e := mustEngine(t, bletest.NewAdapter(p), fastOptions())

	levels := make(chan int, 1)
	e.OnBattery(func(level int) { levels <- level })

	if err := e.Press(context.Background()); err != nil {
		t.Fatalf("Press() error = %v", err)
	}
	select {
	case level := <-levels:
		if level != 42 {
			t.Errorf("battery level = %d, want 42", level)
		}
	default:
		t.Error("battery record in a press response was not extracted")
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
	}{
		{"missing address", Credentials{DeviceID: "d", LocalKey: "k"}},
		{"missing device id", Credentials{Address: "a", LocalKey: "k"}},
		{"missing local key", Credentials{Address: "a", DeviceID: "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(bletest.NewAdapter(), tt.creds, Options{}); err == nil {
				t.Error("New() = nil error, want configuration error")
			}
		})
	}
}
