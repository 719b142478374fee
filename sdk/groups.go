package sdk

import "context"

// CreateGroup creates a group administered by the current user.
func (s *SDK) CreateGroup(ctx context.Context, opts CreateGroupOptions) (GroupID, error) {
	w, done, err := s.wire()
	if err != nil {
		return "", err
	}
	defer done()
	return w.Groups.CreateGroup(ctx, opts)
}

// AddGroupMembers adds members; those also listed in admins become admins.
func (s *SDK) AddGroupMembers(ctx context.Context, id GroupID, members, admins []UserID) error {
	w, done, err := s.wire()
	if err != nil {
		return err
	}
	defer done()
	return w.Groups.AddGroupMembers(ctx, id, members, admins)
}

// RemoveGroupMembers removes members and renews the group key.
func (s *SDK) RemoveGroupMembers(ctx context.Context, id GroupID, members []UserID) error {
	w, done, err := s.wire()
	if err != nil {
		return err
	}
	defer done()
	return w.Groups.RemoveGroupMembers(ctx, id, members)
}

// RenewGroupKey installs a new group key generation.
func (s *SDK) RenewGroupKey(ctx context.Context, id GroupID, keys *GeneratedPrivateKeys) error {
	w, done, err := s.wire()
	if err != nil {
		return err
	}
	defer done()
	return w.Groups.RenewGroupKey(ctx, id, keys)
}

// SetGroupAdmins replaces the admins of a group.
func (s *SDK) SetGroupAdmins(ctx context.Context, id GroupID, admins []UserID) error {
	w, done, err := s.wire()
	if err != nil {
		return err
	}
	defer done()
	return w.Groups.SetGroupAdmins(ctx, id, admins)
}
