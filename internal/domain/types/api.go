package types

// CreateAccountRequest registers a user and its first device.
type CreateAccountRequest struct {
	SignupJWT   string        `json:"signup_jwt"`
	DisplayName string        `json:"display_name,omitempty"`
	Device      DevicePublic  `json:"device"`
	Sigchain    SigchainEntry `json:"sigchain"`
}

// AddDeviceRequest registers another device of the authenticated user.
type AddDeviceRequest struct {
	Device   DevicePublic  `json:"device"`
	Sigchain SigchainEntry `json:"sigchain"`
}

// RenewDeviceRequest replaces the keys of a device of the authenticated user.
type RenewDeviceRequest struct {
	Device   DevicePublic  `json:"device"`
	Sigchain SigchainEntry `json:"sigchain"`
}

// Recipient is a resolved session recipient: a user with its devices, or a group with
// its current key.
type Recipient struct {
	ID      string         `json:"id"`
	IsGroup bool           `json:"is_group"`
	Devices []DevicePublic `json:"devices"`
}

// CreateSessionRequest registers a new encryption session and its wrapped keys.
type CreateSessionRequest struct {
	SessionID  SessionID             `json:"session_id"`
	Recipients []RecipientWithRights `json:"recipients"`
	Keys       []WrappedKey          `json:"keys"`
}

// SessionKeyResponse is the wrapped key a device can open for a session.
//
// When ViaGroup is set, Key is wrapped for the group key generation GroupKeyID and the
// caller must first open the group keys.
type SessionKeyResponse struct {
	SessionID  SessionID    `json:"session_id"`
	CreatedBy  UserID       `json:"created_by"`
	Key        WrappedKey   `json:"key"`
	Sender     DevicePublic `json:"sender"`
	ViaGroup   GroupID      `json:"via_group,omitempty"`
	GroupKeyID DeviceID     `json:"group_key_id,omitempty"`
}

// AddRecipientsRequest grants access to more recipients.
type AddRecipientsRequest struct {
	Recipients []RecipientWithRights `json:"recipients"`
	Keys       []WrappedKey          `json:"keys"`
}

// AddRecipientsResponse maps each recipient to its outcome.
type AddRecipientsResponse struct {
	Recipients map[string]ActionStatus `json:"recipients"`
}

// RevokeRequest removes recipients from a session. All removes everyone, Others
// removes everyone but the caller.
type RevokeRequest struct {
	Recipients []string `json:"recipients,omitempty"`
	All        bool     `json:"all,omitempty"`
	Others     bool     `json:"others,omitempty"`
}

// MissingKeysResponse lists sessions the caller can open but the target device cannot.
type MissingKeysResponse struct {
	Sessions []SessionID `json:"sessions"`
}

// CreateGroupRequest registers a group with its first key generation wrapped for every
// member device.
type CreateGroupRequest struct {
	Group    Group         `json:"group"`
	Keys     []WrappedKey  `json:"keys"`
	Sigchain SigchainEntry `json:"sigchain"`
}

// GroupMembersRequest adds members (and optionally makes some of them admins).
type GroupMembersRequest struct {
	Members []UserID     `json:"members"`
	Admins  []UserID     `json:"admins,omitempty"`
	Keys    []WrappedKey `json:"keys,omitempty"`
}

// RenewGroupKeyRequest installs a new group key generation.
type RenewGroupKeyRequest struct {
	Key      DevicePublic  `json:"key"`
	Keys     []WrappedKey  `json:"keys"`
	Sigchain SigchainEntry `json:"sigchain"`
}

// GroupKeyResponse is a group key generation wrapped for the caller's device.
type GroupKeyResponse struct {
	Key    WrappedKey   `json:"key"`
	Sender DevicePublic `json:"sender"`
}

// BackupRecord is an encrypted identity stored under a password-derived lookup token.
type BackupRecord struct {
	UserID UserID `json:"user_id"`
	Lookup string `json:"lookup"`
	Blob   []byte `json:"blob"`
}
