package relay

import "sealkit/internal/domain"

// Route templates, in gorilla/mux syntax. The client fills the variables with
// url.PathEscape.
const (
	APIPrefix = "/api/v1"

	RouteAccounts          = "/accounts"
	RouteDevices           = "/devices"
	RouteDevice            = "/devices/{device}"
	RouteHeartbeat         = "/heartbeat"
	RouteUserDevices       = "/users/{user}/devices"
	RouteUserDevice        = "/users/{user}/devices/{device}"
	RouteUserSigchain      = "/users/{user}/sigchain"
	RoutePreKeys           = "/prekeys"
	RouteUserPreKeys       = "/users/{user}/devices/{device}/prekeys"
	RouteMessages          = "/messages"
	RouteMessagesAck       = "/messages/ack"
	RouteRecipients        = "/recipients/resolve"
	RouteSessions          = "/sessions"
	RouteSessionKey        = "/sessions/{session}/key"
	RouteSessionRecipients = "/sessions/{session}/recipients"
	RouteSessionRevoke     = "/sessions/{session}/revoke"
	RouteSessionKeys       = "/sessions/{session}/keys"
	RouteMissingKeys       = "/devices/{device}/missing-keys"
	RouteDevicesMissing    = "/missing-keys"
	RouteGroups            = "/groups"
	RouteGroup             = "/groups/{group}"
	RouteGroupMembers      = "/groups/{group}/members"
	RouteGroupRemove       = "/groups/{group}/members/remove"
	RouteGroupKeys         = "/groups/{group}/keys"
	RouteGroupKey          = "/groups/{group}/keys/{key}"
	RouteGroupAdmins       = "/groups/{group}/admins"
	RouteBackups           = "/backups"
	RouteBackup            = "/backups/{user}/{lookup}"
	RouteAnonRecipients    = "/anonymous/recipients"
	RouteAnonSessions      = "/anonymous/sessions"
)

// Small request bodies shared by client and server.
type (
	AckRequest struct {
		Count int `json:"count"`
	}
	ResolveRequest struct {
		IDs []string `json:"ids"`
	}
	UsersRequest struct {
		Users []domain.UserID `json:"users"`
	}
	MembersRequest struct {
		Members []domain.UserID `json:"members"`
	}
	AdminsRequest struct {
		Admins []domain.UserID `json:"admins"`
	}
)
