package types

// ChannelMessage is the wire-format message posted to and fetched from the relay queue
// of a device.
type ChannelMessage struct {
	FromUser       UserID         `json:"from_user"`
	FromDevice     DeviceID       `json:"from_device"`
	ToUser         UserID         `json:"to_user"`
	ToDevice       DeviceID       `json:"to_device"`
	Header         RatchetHeader  `json:"header"`
	Cipher         []byte         `json:"cipher"`
	AssociatedData []byte         `json:"associated_data,omitempty"`
	PreKey         *PreKeyMessage `json:"pre_key,omitempty"`
	Timestamp      int64          `json:"timestamp"`
}

// DecryptedMessage is what the message service returns for each processed ChannelMessage.
type DecryptedMessage struct {
	FromUser   UserID   `json:"from_user"`
	FromDevice DeviceID `json:"from_device"`
	ToUser     UserID   `json:"to_user"`
	Plaintext  []byte   `json:"plaintext"`
	Timestamp  int64    `json:"timestamp"`
}
