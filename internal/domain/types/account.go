package types

import "time"

// AccountInfo identifies the account held by an SDK instance on a specific key server.
type AccountInfo struct {
	ServerURL     string    `json:"server_url"`
	UserID        UserID    `json:"user_id"`
	DeviceID      DeviceID  `json:"device_id"`
	DeviceExpires time.Time `json:"device_expires"`
}
