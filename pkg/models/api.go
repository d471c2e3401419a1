package models

import "time"

// Pairing API types
type PairStartRequest struct {
	DeviceID          string `json:"deviceId"`
	DeviceName        string `json:"deviceName"`
	DeviceType        string `json:"deviceType"`
	AllowedIP         string `json:"allowedIp"`
	PairingTTLMinutes int    `json:"pairingTtlMinutes,omitempty"`
}

type PairStartResponse struct {
	PairingCode   string    `json:"pairingCode"`
	ExpiresAt     time.Time `json:"expiresAt"`
	TOTPSecret    string    `json:"totpSecret"`
	OTPAuthURL    string    `json:"otpauthUrl"`
	PairingString string    `json:"pairingString"`
}

type PairCompleteRequest struct {
	DeviceID    string `json:"deviceId"`
	PairingCode string `json:"pairingCode"`
	PublicKey   string `json:"publicKey"`
}

type PairCompleteResponse struct {
	Status     string `json:"status"`
	DeviceID   string `json:"deviceId"`
	TOTPSecret string `json:"totpSecret"`
}

// Unlock API types
type UnlockRequestBody struct {
	DeviceID        string `json:"deviceId"`
	Reason          string `json:"reason,omitempty"`
	RequestSourceIP string `json:"requestSourceIp,omitempty"`
}

type ApproveRequest struct {
	DurationMinutes int `json:"durationMinutes,omitempty"`
}

type ApproveResponse struct {
	ExpiresAt time.Time `json:"expiresAt"`
	DeviceID  string    `json:"deviceId"`
}

type TokenCreateRequest struct {
	DeviceID   string `json:"deviceId"`
	TTLSeconds int    `json:"ttlSeconds,omitempty"`
}

type TokenCreateResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type TokenRedeemRequest struct {
	DeviceID        string `json:"deviceId"`
	Token           string `json:"token"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
}

type TOTPUnlockRequest struct {
	DeviceID        string `json:"deviceId"`
	Code            string `json:"code"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
}

type UnlockResponse struct {
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type StatusUpdateRequest struct {
	Status DeviceStatus `json:"status"`
}

// List wrappers
type ListDevicesResponse struct {
	Devices []Device `json:"devices"`
}

type ListRequestsResponse struct {
	Requests []UnlockRequest `json:"requests"`
}

type ListPairingsResponse struct {
	Pairings []PairingSession `json:"pairings"`
}

type ListLogsResponse struct {
	Logs []LogEntry `json:"logs"`
}

// Error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

type UnlockRequestResponse struct {
	Request UnlockRequest `json:"request"`
}

// StatusResponse is the body of simple acknowledgements ("denied", "revoked", ...)
type StatusResponse struct {
	Status string `json:"status"`
}
