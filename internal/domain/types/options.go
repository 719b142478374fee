package types

import "time"

// DefaultDeviceExpiry is how long a new or renewed device key stays valid when the
// caller does not say otherwise.
const DefaultDeviceExpiry = 5 * 365 * 24 * time.Hour

// CreateAccountOptions configures account creation.
type CreateAccountOptions struct {
	SignupJWT   string
	DisplayName string
	DeviceName  string
	Keys        *GeneratedPrivateKeys
	ExpireAfter time.Duration
}

// RenewKeysOptions configures a device key renewal. PreparedRenewal, when set, carries
// keys produced earlier by PrepareRenew and takes precedence over Keys.
type RenewKeysOptions struct {
	PreparedRenewal []byte
	Keys            *GeneratedPrivateKeys
	ExpireAfter     time.Duration
}

// SubIdentityOptions configures the creation of an extra device.
type SubIdentityOptions struct {
	DeviceName  string
	Keys        *GeneratedPrivateKeys
	ExpireAfter time.Duration
}

// CreateGroupOptions configures group creation. The creator is always a member and
// an admin.
type CreateGroupOptions struct {
	Name    string
	Members []UserID
	Admins  []UserID
	Keys    *GeneratedPrivateKeys
}
