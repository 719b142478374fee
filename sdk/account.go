package sdk

import "context"

// GeneratePrivateKeys returns fresh device keys for a later CreateAccount, RenewKeys,
// CreateSubIdentity or CreateGroup call.
func (s *SDK) GeneratePrivateKeys() (GeneratedPrivateKeys, error) {
	w, done, err := s.wire()
	if err != nil {
		return GeneratedPrivateKeys{}, err
	}
	defer done()
	return w.Identity.GeneratePrivateKeys()
}

// CreateAccount registers a user and this device with the key server.
func (s *SDK) CreateAccount(ctx context.Context, opts CreateAccountOptions) (AccountInfo, error) {
	w, done, err := s.wire()
	if err != nil {
		return AccountInfo{}, err
	}
	defer done()
	return w.Identity.CreateAccount(ctx, opts)
}

// CurrentAccountInfo returns the account of this instance, or nil when there is none.
func (s *SDK) CurrentAccountInfo() (*AccountInfo, error) {
	w, done, err := s.wire()
	if err != nil {
		return nil, err
	}
	defer done()
	return w.Identity.CurrentAccountInfo()
}

// UpdateCurrentDevice refreshes the device expiry from the key server.
func (s *SDK) UpdateCurrentDevice(ctx context.Context) error {
	w, done, err := s.wire()
	if err != nil {
		return err
	}
	defer done()
	return w.Identity.UpdateCurrentDevice(ctx)
}

// PrepareRenew returns an identity export carrying the keys a later RenewKeys installs.
func (s *SDK) PrepareRenew(keys *GeneratedPrivateKeys) ([]byte, error) {
	w, done, err := s.wire()
	if err != nil {
		return nil, err
	}
	defer done()
	return w.Identity.PrepareRenew(keys)
}

// RenewKeys rotates the keys of this device.
func (s *SDK) RenewKeys(ctx context.Context, opts RenewKeysOptions) error {
	w, done, err := s.wire()
	if err != nil {
		return err
	}
	defer done()
	return w.Identity.RenewKeys(ctx, opts)
}

// CreateSubIdentity registers another device of the current user and returns its
// identity export.
func (s *SDK) CreateSubIdentity(ctx context.Context, opts SubIdentityOptions) (SubIdentity, error) {
	w, done, err := s.wire()
	if err != nil {
		return SubIdentity{}, err
	}
	defer done()
	return w.Identity.CreateSubIdentity(ctx, opts)
}

// ImportIdentity installs an identity exported by ExportIdentity or CreateSubIdentity.
func (s *SDK) ImportIdentity(ctx context.Context, export []byte) error {
	w, done, err := s.wire()
	if err != nil {
		return err
	}
	defer done()
	return w.Identity.ImportIdentity(ctx, export)
}

// ExportIdentity returns the identity of this device, private keys included.
func (s *SDK) ExportIdentity() ([]byte, error) {
	w, done, err := s.wire()
	if err != nil {
		return nil, err
	}
	defer done()
	return w.Identity.ExportIdentity()
}

// FingerprintIdentity returns a short fingerprint of this device's public keys.
func (s *SDK) FingerprintIdentity() (Fingerprint, error) {
	w, done, err := s.wire()
	if err != nil {
		return "", err
	}
	defer done()
	return w.Identity.FingerprintIdentity()
}

// GetSigchainHash returns the hash at position of user's sigchain; -1 is the last
// entry.
func (s *SDK) GetSigchainHash(ctx context.Context, user UserID, position int) (SigchainHash, error) {
	w, done, err := s.wire()
	if err != nil {
		return SigchainHash{}, err
	}
	defer done()
	return w.Identity.GetSigchainHash(ctx, user, position)
}

// CheckSigchainHash looks hash up in user's sigchain. A non-negative position
// restricts the lookup to that entry.
func (s *SDK) CheckSigchainHash(ctx context.Context, user UserID, hash string, position int) (SigchainCheck, error) {
	w, done, err := s.wire()
	if err != nil {
		return SigchainCheck{}, err
	}
	defer done()
	return w.Identity.CheckSigchainHash(ctx, user, hash, position)
}
