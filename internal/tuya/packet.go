// Package tuya implements the wire protocol spoken by Tuya-style BLE
// accessories: packet framing with an additive checksum, session key
// derivation from the device's local key, AES-ECB payload encryption,
// and typed datapoint (DP) records.
package tuya

import "encoding/binary"

// Frame header marker bytes.
const (
	headerHi = 0x55
	headerLo = 0xAA
)

// Command is the single-byte command field of a packet.
type Command byte

const (
	CmdLogin       Command = 0x01
	CmdHeartbeat   Command = 0x02
	CmdDPCommand   Command = 0x06
	CmdStatusQuery Command = 0x08
)

// frameOverhead is the number of non-payload bytes in a packet:
// 2 header + 4 sequence + 1 command + 2 length + 1 checksum.
const frameOverhead = 10

// buildFrame serializes a complete wire packet:
//
//	[0x55,0xAA][seq:4 BE][cmd:1][len:2 BE][payload:len][checksum:1]
//
// The payload is transmitted as given; callers encrypt before framing.
func buildFrame(seq uint32, cmd Command, payload []byte) []byte {
	out := make([]byte, 0, frameOverhead+len(payload))
	out = append(out, headerHi, headerLo)
	out = binary.BigEndian.AppendUint32(out, seq)
	out = append(out, byte(cmd))
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload)))
	out = append(out, payload...)
	return append(out, Checksum(out))
}

// Checksum returns the additive sum of b truncated modulo 256. A packet's
// trailing checksum byte is the Checksum of every byte that precedes it.
func Checksum(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum += c
	}
	return sum
}
