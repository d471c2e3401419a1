package models

import (
	"strings"
	"time"
)

type DeviceStatus string

const (
	StatusOffline   DeviceStatus = "OFFLINE"
	StatusLocked    DeviceStatus = "LOCKED"
	StatusConnected DeviceStatus = "CONNECTED"
)

type DeviceType string

const (
	DeviceWindows DeviceType = "WINDOWS"
	DeviceAndroid DeviceType = "ANDROID"
	DeviceLinux   DeviceType = "LINUX"
	DeviceMacOS   DeviceType = "MACOS"
	DeviceUnknown DeviceType = "UNKNOWN"
)

// ParseDeviceType upper-cases the input and maps anything unrecognised to UNKNOWN
func ParseDeviceType(s string) DeviceType {
	switch t := DeviceType(strings.ToUpper(strings.TrimSpace(s))); t {
	case DeviceWindows, DeviceAndroid, DeviceLinux, DeviceMacOS:
		return t
	default:
		return DeviceUnknown
	}
}

type Device struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      DeviceType `json:"type"`
	PublicKey string     `json:"publicKey"`
	AllowedIP string     `json:"allowedIp"`

	// Derived from session/pairing activity only
	Status   DeviceStatus `json:"status"`
	LastSeen *time.Time   `json:"lastSeen"`

	TOTPSecret string     `json:"totpSecret,omitempty"`
	PairedAt   *time.Time `json:"pairedAt"`
}

// Clone returns a deep copy so callers never alias store memory
func (d Device) Clone() Device {
	if d.LastSeen != nil {
		t := *d.LastSeen
		d.LastSeen = &t
	}
	if d.PairedAt != nil {
		t := *d.PairedAt
		d.PairedAt = &t
	}
	return d
}

// HasTOTP reports whether the device finished pairing with an enrolled secret
func (d *Device) HasTOTP() bool {
	return d.TOTPSecret != ""
}
