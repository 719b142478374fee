package relayserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"sealkit/internal/relay"
	"sealkit/internal/token"
)

const maxBodySize = 64 << 20

type timeSource func() time.Time

// Options configures a Server.
type Options struct {
	// AppID is the application whose tokens the server accepts.
	AppID string
	// Secret verifies signup and encryption tokens.
	Secret []byte
	// AllowedOrigins lists CORS origins.
	AllowedOrigins []string
	// ClockSkew is the accepted age of a signed request. Default five minutes.
	ClockSkew time.Duration
	Logger    zerolog.Logger
	// Now replaces time.Now in tests.
	Now func() time.Time
}

// Server is the key server.
type Server struct {
	appID   string
	issuer  *token.Issuer
	skew    time.Duration
	log     zerolog.Logger
	now     timeSource
	st      *state
	handler http.Handler
}

// New builds a Server with empty state.
func New(opts Options) (*Server, error) {
	issuer, err := token.NewIssuer(opts.AppID, opts.Secret)
	if err != nil {
		return nil, errors.Wrap(err, "token issuer")
	}
	s := &Server{
		appID:  opts.AppID,
		issuer: issuer,
		skew:   opts.ClockSkew,
		log:    opts.Logger,
		now:    opts.Now,
		st:     newState(),
	}
	if s.skew <= 0 {
		s.skew = 5 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}

	router := mux.NewRouter()
	api := router.PathPrefix(relay.APIPrefix).Subrouter()
	s.routes(api)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, relay.CodeNotFound, "no such route")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, relay.CodeBadRequest, "method not allowed")
	})
	router.Use(s.requestID, s.accessLog, s.checkApp)

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{
			"Content-Type", "Authorization",
			relay.HeaderUser, relay.HeaderDevice, relay.HeaderTimestamp, relay.HeaderSignature, relay.HeaderAppID,
		},
		ExposedHeaders: []string{"X-Request-Id"},
	})
	s.handler = c.Handler(router)
	return s, nil
}

func (s *Server) routes(r *mux.Router) {
	r.HandleFunc(relay.RouteAccounts, s.createAccount).Methods(http.MethodPost)
	r.HandleFunc(relay.RouteDevices, s.authenticated(s.addDevice)).Methods(http.MethodPost)
	r.HandleFunc(relay.RouteDevice, s.authenticatedExpired(s.renewDevice)).Methods(http.MethodPut)
	r.HandleFunc(relay.RouteHeartbeat, s.authenticated(s.heartbeat)).Methods(http.MethodPost)
	r.HandleFunc(relay.RouteUserDevices, s.authenticated(s.listDevices)).Methods(http.MethodGet)
	r.HandleFunc(relay.RouteUserDevice, s.authenticated(s.getDevice)).Methods(http.MethodGet)
	r.HandleFunc(relay.RouteUserSigchain, s.authenticated(s.getSigchain)).Methods(http.MethodGet)

	r.HandleFunc(relay.RoutePreKeys, s.authenticated(s.registerBundle)).Methods(http.MethodPut)
	r.HandleFunc(relay.RouteUserPreKeys, s.authenticated(s.fetchBundle)).Methods(http.MethodPost)
	r.HandleFunc(relay.RouteMessages, s.authenticated(s.sendMessage)).Methods(http.MethodPost)
	r.HandleFunc(relay.RouteMessages, s.authenticated(s.fetchMessages)).Methods(http.MethodGet)
	r.HandleFunc(relay.RouteMessagesAck, s.authenticated(s.ackMessages)).Methods(http.MethodPost)

	r.HandleFunc(relay.RouteRecipients, s.authenticated(s.resolveRecipients)).Methods(http.MethodPost)
	r.HandleFunc(relay.RouteSessions, s.authenticated(s.createSession)).Methods(http.MethodPost)
	r.HandleFunc(relay.RouteSessionKey, s.authenticated(s.fetchSessionKey)).Methods(http.MethodGet)
	r.HandleFunc(relay.RouteSessionRecipients, s.authenticated(s.addSessionRecipients)).Methods(http.MethodPost)
	r.HandleFunc(relay.RouteSessionRevoke, s.authenticated(s.revokeSessionRecipients)).Methods(http.MethodPost)
	r.HandleFunc(relay.RouteSessionKeys, s.authenticated(s.uploadSessionKeys)).Methods(http.MethodPost)
	r.HandleFunc(relay.RouteMissingKeys, s.authenticated(s.missingSessionKeys)).Methods(http.MethodGet)
	r.HandleFunc(relay.RouteDevicesMissing, s.authenticated(s.devicesMissingKeys)).Methods(http.MethodGet)

	r.HandleFunc(relay.RouteGroups, s.authenticated(s.createGroup)).Methods(http.MethodPost)
	r.HandleFunc(relay.RouteGroup, s.authenticated(s.getGroup)).Methods(http.MethodGet)
	r.HandleFunc(relay.RouteGroupMembers, s.authenticated(s.addGroupMembers)).Methods(http.MethodPost)
	r.HandleFunc(relay.RouteGroupRemove, s.authenticated(s.removeGroupMembers)).Methods(http.MethodPost)
	r.HandleFunc(relay.RouteGroupKeys, s.authenticated(s.renewGroupKey)).Methods(http.MethodPost)
	r.HandleFunc(relay.RouteGroupAdmins, s.authenticated(s.setGroupAdmins)).Methods(http.MethodPut)
	r.HandleFunc(relay.RouteGroupKey, s.authenticated(s.fetchGroupKey)).Methods(http.MethodGet)

	r.HandleFunc(relay.RouteBackups, s.putBackup).Methods(http.MethodPut)
	r.HandleFunc(relay.RouteBackup, s.getBackup).Methods(http.MethodGet)
	r.HandleFunc(relay.RouteBackup, s.deleteBackup).Methods(http.MethodDelete)

	r.HandleFunc(relay.RouteAnonRecipients, s.bearer(s.anonymousRecipients)).Methods(http.MethodPost)
	r.HandleFunc(relay.RouteAnonSessions, s.bearer(s.anonymousSession)).Methods(http.MethodPost)
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.handler }

// Issuer returns the token issuer, for minting development tokens.
func (s *Server) Issuer() *token.Issuer { return s.issuer }

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Str("app", s.appID).Msg("key server listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
