package models

import "time"

// Sentinel request IDs for sessions that were not opened from an UnlockRequest
const (
	SessionManual = "manual"
	SessionTOTP   = "totp"
)

type UnlockRequest struct {
	ID              string     `json:"id"`
	DeviceID        string     `json:"deviceId"`
	DeviceName      string     `json:"deviceName"`
	DeviceType      DeviceType `json:"deviceType"`
	RequestSourceIP string     `json:"requestSourceIp"`
	Reason          string     `json:"reason"`
	Timestamp       time.Time  `json:"timestamp"`
}

type ActiveSession struct {
	DeviceID   string    `json:"deviceId"`
	RequestID  string    `json:"requestId"`
	ExpiresAt  time.Time `json:"expiresAt"`
	ApprovedAt time.Time `json:"approvedAt"`
}

// PairingSession is the one in-flight enrollment for a device
type PairingSession struct {
	DeviceID    string     `json:"deviceId"`
	DeviceName  string     `json:"deviceName"`
	DeviceType  DeviceType `json:"deviceType"`
	AllowedIP   string     `json:"allowedIp"`
	PairingCode string     `json:"pairingCode"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	TOTPSecret  string     `json:"totpSecret"`
}

type UnlockToken struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"deviceId"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type LogLevel string

const (
	LevelInfo    LogLevel = "INFO"
	LevelWarn    LogLevel = "WARN"
	LevelError   LogLevel = "ERROR"
	LevelSuccess LogLevel = "SUCCESS"
)

type LogCategory string

const (
	CategoryAuth   LogCategory = "AUTH"
	CategoryVPN    LogCategory = "VPN"
	CategorySystem LogCategory = "SYSTEM"
)

// LogEntry is an append-only audit record
type LogEntry struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Level     LogLevel    `json:"level"`
	Category  LogCategory `json:"category"`
	Message   string      `json:"message"`
	Details   string      `json:"details,omitempty"`
}

// StateSnapshot is the full durable state, written wholesale on every mutation
type StateSnapshot struct {
	Devices  []Device         `json:"devices"`
	Requests []UnlockRequest  `json:"requests"`
	Sessions []ActiveSession  `json:"sessions"`
	Logs     []LogEntry       `json:"logs"`
	Pairings []PairingSession `json:"pairings"`
	Tokens   []UnlockToken    `json:"tokens"`
}

type LatencyPoint struct {
	Timestamp  time.Time `json:"timestamp"`
	Ping       float64   `json:"ping"`
	Jitter     float64   `json:"jitter"`
	PacketLoss float64   `json:"packetLoss"`
}

type HealthSnapshot struct {
	CPUUsage      float64        `json:"cpuUsage"`
	RAMUsage      float64        `json:"ramUsage"`
	Uptime        string         `json:"uptime"`
	ActiveTunnels int            `json:"activeTunnels"`
	Latency       []LatencyPoint `json:"latency"`
	PacketLoss    *float64       `json:"packetLoss,omitempty"`
}
