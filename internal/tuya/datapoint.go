package tuya

import "encoding/binary"

// DPType identifies the value encoding of a datapoint record.
type DPType byte

const (
	DPBool   DPType = 0x01
	DPInt    DPType = 0x02
	DPString DPType = 0x03
)

// EncodeDP serializes one datapoint record:
//
//	[id:1][type:1][len:2 BE][value:len]
//
// Bool encodes as a single 0x00/0x01 byte, Int as 4 big-endian bytes,
// String as its UTF-8 bytes. Any other type encodes a single raw byte.
func EncodeDP(id byte, typ DPType, value any) []byte {
	var v []byte
	switch typ {
	case DPBool:
		v = []byte{0x00}
		if b, ok := value.(bool); ok && b {
			v[0] = 0x01
		}
	case DPInt:
		var n uint32
		switch i := value.(type) {
		case uint32:
			n = i
		case int:
			n = uint32(i)
		}
		v = binary.BigEndian.AppendUint32(nil, n)
	case DPString:
		s, _ := value.(string)
		v = []byte(s)
	default:
		b, _ := value.(byte)
		v = []byte{b}
	}
	out := []byte{id, byte(typ)}
	out = binary.BigEndian.AppendUint16(out, uint16(len(v)))
	return append(out, v...)
}

// FindDP scans frame for a plausible datapoint record with the given id and
// type and returns the first match's value bytes. Response frames from real
// devices do not reliably match the request framing offsets, so this is a
// deliberate heuristic: every byte offset is tried for an id byte followed
// by a type byte, the next two bytes are read as a big-endian length, and
// the record is accepted when the value fits inside the frame, has the
// shape the type requires, and satisfies the caller's sanity predicate.
// A nil predicate accepts any value. First structurally valid hit wins.
func FindDP(frame []byte, id byte, typ DPType, valid func(value []byte) bool) ([]byte, bool) {
	for i := 0; i+4 <= len(frame); i++ {
		if frame[i] != id || frame[i+1] != byte(typ) {
			continue
		}
		n := int(binary.BigEndian.Uint16(frame[i+2 : i+4]))
		if i+4+n > len(frame) {
			continue
		}
		value := frame[i+4 : i+4+n]
		switch typ {
		case DPBool:
			if n != 1 {
				continue
			}
		case DPInt:
			if n != 4 {
				continue
			}
		}
		if valid != nil && !valid(value) {
			continue
		}
		return value, true
	}
	return nil, false
}
