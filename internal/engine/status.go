package engine

import (
	"encoding/binary"

	"github.com/chaz8081/fingerbot/internal/tuya"
)

// extractBattery scans a received frame for the battery datapoint. Response
// frames do not reliably follow the request framing, so this relies on the
// tolerant byte-scan in tuya.FindDP with a percentage sanity bound.
func extractBattery(frame []byte) (int, bool) {
	value, ok := tuya.FindDP(frame, dpBattery, tuya.DPInt, func(v []byte) bool {
		return binary.BigEndian.Uint32(v) <= 100
	})
	if !ok {
		return 0, false
	}
	return int(binary.BigEndian.Uint32(value)), true
}
