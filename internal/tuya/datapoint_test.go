package tuya

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeDP(t *testing.T) {
	tests := []struct {
		name  string
		id    byte
		typ   DPType
		value any
		want  []byte
	}{
		{"bool true", 0x01, DPBool, true, []byte{0x01, 0x01, 0x00, 0x01, 0x01}},
		{"bool false", 0x01, DPBool, false, []byte{0x01, 0x01, 0x00, 0x01, 0x00}},
		{"int", 0x0C, DPInt, 87, []byte{0x0C, 0x02, 0x00, 0x04, 0x00, 0x00, 0x00, 0x57}},
		{"string", 0x05, DPString, "up", []byte{0x05, 0x03, 0x00, 0x02, 'u', 'p'}},
		{"unknown type raw byte", 0x07, DPType(0x7F), byte(0xAA), []byte{0x07, 0x7F, 0x00, 0x01, 0xAA}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeDP(tt.id, tt.typ, tt.value)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeDP() = % x, want % x", got, tt.want)
			}
		})
	}
}

func TestFindDPNotFound(t *testing.T) {
	frame := []byte{0x55, 0xAA, 0x00, 0x00, 0x00, 0x01, 0x08, 0x00, 0x00}
	if _, ok := FindDP(frame, 0x0C, DPInt, nil); ok {
		t.Error("FindDP() found a datapoint in a frame with none")
	}
}

func TestFindDPRejectsTruncatedLength(t *testing.T) {
	// id and type match but the declared length runs past the frame end.
	frame := []byte{0x0C, 0x02, 0x00, 0x04, 0x00, 0x00}
	if _, ok := FindDP(frame, 0x0C, DPInt, nil); ok {
		t.Error("FindDP() accepted a record whose value overruns the frame")
	}
}

func TestFindDPSkipsDecoyThenMatches(t *testing.T) {
	sane := func(v []byte) bool { return binary.BigEndian.Uint32(v) <= 100 }

	var frame []byte
	// Decoy: structurally valid id+type+len but an insane value (300%).
	frame = append(frame, 0x0C, 0x02, 0x00, 0x04, 0x00, 0x00, 0x01, 0x2C)
	// Decoy: right id byte followed by the wrong type byte.
	frame = append(frame, 0x0C, 0x01, 0x00, 0x01, 0x63)
	// The real record: battery at 87%.
	frame = append(frame, EncodeDP(0x0C, DPInt, 87)...)

	value, ok := FindDP(frame, 0x0C, DPInt, sane)
	if !ok {
		t.Fatal("FindDP() = not found, want the valid record after the decoys")
	}
	if got := binary.BigEndian.Uint32(value); got != 87 {
		t.Errorf("FindDP() value = %d, want 87", got)
	}
}

func TestFindDPFirstMatchWins(t *testing.T) {
	frame := append(EncodeDP(0x0C, DPInt, 10), EncodeDP(0x0C, DPInt, 90)...)
	value, ok := FindDP(frame, 0x0C, DPInt, nil)
	if !ok {
		t.Fatal("FindDP() = not found")
	}
	if got := binary.BigEndian.Uint32(value); got != 10 {
		t.Errorf("FindDP() value = %d, want first match 10", got)
	}
}

func TestFindDPEnforcesBoolShape(t *testing.T) {
	// Bool record with a two-byte value is structurally invalid.
	frame := []byte{0x01, 0x01, 0x00, 0x02, 0x01, 0x01}
	if _, ok := FindDP(frame, 0x01, DPBool, nil); ok {
		t.Error("FindDP() accepted a bool record with a 2-byte value")
	}
}
