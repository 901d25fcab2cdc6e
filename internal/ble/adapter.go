// Package ble abstracts the Bluetooth Low Energy transport consumed by the
// protocol engine: adapter power-up, scanning, connection, and GATT
// characteristic access. The engine only ever talks to these interfaces; the
// real binding lives in HardwareAdapter and tests substitute a mock.
package ble

import "context"

// GATT identifiers used by Tuya-style BLE accessories.
const (
	ServiceUUID    = "1910"
	WriteCharUUID  = "2b11"
	NotifyCharUUID = "2b10"
)

// Device is a discovered BLE peripheral.
type Device struct {
	Name    string
	Address string
	RSSI    int
}

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Write sends data to the characteristic without response.
	Write(data []byte) error
	// Subscribe registers a callback for notifications on this characteristic.
	Subscribe(callback func(data []byte)) error
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection. Safe to call more than once.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan reports discovered peripherals to found until ctx is cancelled
	// or StopScan is called. Each call registers exactly one listener and
	// the listener is gone once Scan returns.
	Scan(ctx context.Context, found func(Device)) error
	// StopScan aborts an in-progress Scan.
	StopScan() error
	// Connect establishes a connection to the device at the given address.
	Connect(ctx context.Context, address string) (Connection, error)
}
