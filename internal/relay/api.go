package relay

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"sealkit/internal/domain"
)

var (
	_ domain.RelayClient  = (*Client)(nil)
	_ domain.BackupAPI    = (*Client)(nil)
	_ domain.AnonymousAPI = (*Client)(nil)
)

// route fills the {name} variables of template, in order.
func route(template string, values ...string) string {
	out := template
	for _, v := range values {
		start := strings.IndexByte(out, '{')
		end := strings.IndexByte(out, '}')
		if start < 0 || end < start {
			break
		}
		out = out[:start] + url.PathEscape(v) + out[end+1:]
	}
	return out
}

// Accounts

func (c *Client) CreateAccount(ctx context.Context, req domain.CreateAccountRequest) error {
	return c.do(ctx, call{method: http.MethodPost, path: RouteAccounts, in: req, auth: authNone})
}

func (c *Client) AddDevice(ctx context.Context, req domain.AddDeviceRequest) error {
	return c.post(ctx, RouteDevices, req, nil)
}

func (c *Client) RenewDevice(ctx context.Context, req domain.RenewDeviceRequest) error {
	return c.put(ctx, route(RouteDevice, string(req.Device.DeviceID)), req, nil)
}

func (c *Client) ListDevices(ctx context.Context, user domain.UserID) ([]domain.DevicePublic, error) {
	var out []domain.DevicePublic
	if err := c.getJSON(ctx, route(RouteUserDevices, string(user)), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetDevice(ctx context.Context, user domain.UserID, device domain.DeviceID) (domain.DevicePublic, error) {
	var out domain.DevicePublic
	if err := c.getJSON(ctx, route(RouteUserDevice, string(user), string(device)), &out); err != nil {
		return domain.DevicePublic{}, err
	}
	return out, nil
}

func (c *Client) Sigchain(ctx context.Context, user domain.UserID) ([]domain.SigchainEntry, error) {
	var out []domain.SigchainEntry
	if err := c.getJSON(ctx, route(RouteUserSigchain, string(user)), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Heartbeat(ctx context.Context) error {
	return c.post(ctx, RouteHeartbeat, nil, nil)
}

// Channels

func (c *Client) RegisterPreKeyBundle(ctx context.Context, bundle domain.PreKeyBundle) error {
	return c.put(ctx, RoutePreKeys, bundle, nil)
}

func (c *Client) FetchPreKeyBundle(
	ctx context.Context,
	user domain.UserID,
	device domain.DeviceID,
) (domain.PreKeyBundle, error) {
	var out domain.PreKeyBundle
	if err := c.post(ctx, route(RouteUserPreKeys, string(user), string(device)), nil, &out); err != nil {
		return domain.PreKeyBundle{}, err
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, msg domain.ChannelMessage) error {
	return c.post(ctx, RouteMessages, msg, nil)
}

func (c *Client) FetchMessages(ctx context.Context, limit int) ([]domain.ChannelMessage, error) {
	cl := call{method: http.MethodGet, path: RouteMessages, auth: authDevice}
	if limit > 0 {
		cl.query = "limit=" + strconv.Itoa(limit)
	}
	var out []domain.ChannelMessage
	cl.out = &out
	if err := c.do(ctx, cl); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AckMessages(ctx context.Context, count int) error {
	return c.post(ctx, RouteMessagesAck, AckRequest{Count: count}, nil)
}

// Sessions

func (c *Client) ResolveRecipients(ctx context.Context, ids []string) ([]domain.Recipient, error) {
	var out []domain.Recipient
	if err := c.post(ctx, RouteRecipients, ResolveRequest{IDs: ids}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateSession(ctx context.Context, req domain.CreateSessionRequest) error {
	return c.post(ctx, RouteSessions, req, nil)
}

func (c *Client) FetchSessionKey(
	ctx context.Context,
	id domain.SessionID,
	lookupGroupKey bool,
) (domain.SessionKeyResponse, error) {
	cl := call{method: http.MethodGet, path: route(RouteSessionKey, string(id)), auth: authDevice}
	if lookupGroupKey {
		cl.query = "group=true"
	}
	var out domain.SessionKeyResponse
	cl.out = &out
	if err := c.do(ctx, cl); err != nil {
		return domain.SessionKeyResponse{}, err
	}
	return out, nil
}

func (c *Client) AddSessionRecipients(
	ctx context.Context,
	id domain.SessionID,
	req domain.AddRecipientsRequest,
) (domain.AddRecipientsResponse, error) {
	var out domain.AddRecipientsResponse
	if err := c.post(ctx, route(RouteSessionRecipients, string(id)), req, &out); err != nil {
		return domain.AddRecipientsResponse{}, err
	}
	return out, nil
}

func (c *Client) RevokeSessionRecipients(
	ctx context.Context,
	id domain.SessionID,
	req domain.RevokeRequest,
) (domain.RevokeResult, error) {
	var out domain.RevokeResult
	if err := c.post(ctx, route(RouteSessionRevoke, string(id)), req, &out); err != nil {
		return domain.RevokeResult{}, err
	}
	return out, nil
}

func (c *Client) UploadSessionKeys(ctx context.Context, id domain.SessionID, keys []domain.WrappedKey) error {
	return c.post(ctx, route(RouteSessionKeys, string(id)), keys, nil)
}

func (c *Client) MissingSessionKeys(
	ctx context.Context,
	device domain.DeviceID,
	limit int,
) ([]domain.SessionID, error) {
	cl := call{method: http.MethodGet, path: route(RouteMissingKeys, string(device)), auth: authDevice}
	if limit > 0 {
		cl.query = "limit=" + strconv.Itoa(limit)
	}
	var out domain.MissingKeysResponse
	cl.out = &out
	if err := c.do(ctx, cl); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *Client) DevicesMissingKeys(ctx context.Context) ([]domain.DeviceMissingKeys, error) {
	var out []domain.DeviceMissingKeys
	if err := c.getJSON(ctx, RouteDevicesMissing, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Groups

func (c *Client) CreateGroup(ctx context.Context, req domain.CreateGroupRequest) error {
	return c.post(ctx, RouteGroups, req, nil)
}

func (c *Client) GetGroup(ctx context.Context, id domain.GroupID) (domain.Group, error) {
	var out domain.Group
	if err := c.getJSON(ctx, route(RouteGroup, string(id)), &out); err != nil {
		return domain.Group{}, err
	}
	return out, nil
}

func (c *Client) AddGroupMembers(ctx context.Context, id domain.GroupID, req domain.GroupMembersRequest) error {
	return c.post(ctx, route(RouteGroupMembers, string(id)), req, nil)
}

func (c *Client) RemoveGroupMembers(ctx context.Context, id domain.GroupID, members []domain.UserID) error {
	return c.post(ctx, route(RouteGroupRemove, string(id)), MembersRequest{Members: members}, nil)
}

func (c *Client) RenewGroupKey(ctx context.Context, id domain.GroupID, req domain.RenewGroupKeyRequest) error {
	return c.post(ctx, route(RouteGroupKeys, string(id)), req, nil)
}

func (c *Client) SetGroupAdmins(ctx context.Context, id domain.GroupID, admins []domain.UserID) error {
	return c.put(ctx, route(RouteGroupAdmins, string(id)), AdminsRequest{Admins: admins}, nil)
}

func (c *Client) FetchGroupKey(
	ctx context.Context,
	id domain.GroupID,
	keyID domain.DeviceID,
) (domain.GroupKeyResponse, error) {
	var out domain.GroupKeyResponse
	if err := c.getJSON(ctx, route(RouteGroupKey, string(id), string(keyID)), &out); err != nil {
		return domain.GroupKeyResponse{}, err
	}
	return out, nil
}

// Backups

func (c *Client) PutBackup(ctx context.Context, rec domain.BackupRecord) error {
	return c.do(ctx, call{method: http.MethodPut, path: RouteBackups, in: rec, auth: authNone})
}

func (c *Client) GetBackup(ctx context.Context, user domain.UserID, lookup string) ([]byte, error) {
	var out domain.BackupRecord
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   route(RouteBackup, string(user), lookup),
		out:    &out,
		auth:   authNone,
	})
	if err != nil {
		return nil, err
	}
	return out.Blob, nil
}

func (c *Client) DeleteBackup(ctx context.Context, user domain.UserID, lookup string) error {
	return c.do(ctx, call{method: http.MethodDelete, path: route(RouteBackup, string(user), lookup), auth: authNone})
}

// Anonymous senders

func (c *Client) AnonymousRecipients(
	ctx context.Context,
	token string,
	users []domain.UserID,
) ([]domain.Recipient, error) {
	var out []domain.Recipient
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   RouteAnonRecipients,
		in:     UsersRequest{Users: users},
		out:    &out,
		auth:   authBearer,
		bearer: token,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAnonymousSession(ctx context.Context, token string, req domain.CreateSessionRequest) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   RouteAnonSessions,
		in:     req,
		auth:   authBearer,
		bearer: token,
	})
}
