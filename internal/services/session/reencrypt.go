package session

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
	pkgerrors "github.com/pkg/errors"

	"sealkit/internal/domain"
	"sealkit/internal/protocol/keywrap"
	"sealkit/internal/relay"
)

// DevicesMissingKeys lists devices of the current user that lack keys of sessions the
// user can read.
func (s *Service) DevicesMissingKeys(ctx context.Context, forceLocalAccountUpdate bool) ([]domain.DeviceMissingKeys, error) {
	if forceLocalAccountUpdate {
		if err := s.ids.UpdateCurrentDevice(ctx); err != nil {
			return nil, pkgerrors.Wrap(err, "update current device")
		}
	}
	out, err := s.api.DevicesMissingKeys(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "devices missing keys")
	}
	return out, nil
}

// MassReencrypt wraps, for device, the key of every session the current user reads
// directly but device cannot open yet. Each session is retried opts.Retries times;
// sessions that still fail are counted and skipped.
func (s *Service) MassReencrypt(
	ctx context.Context,
	device domain.DeviceID,
	opts domain.MassReencryptOptions,
) (domain.MassReencryptResponse, error) {
	def := domain.DefaultMassReencryptOptions()
	if opts.RetrieveBatchSize <= 0 {
		opts.RetrieveBatchSize = def.RetrieveBatchSize
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.ForceLocalAccountUpdate {
		if err := s.ids.UpdateCurrentDevice(ctx); err != nil {
			return domain.MassReencryptResponse{}, pkgerrors.Wrap(err, "update current device")
		}
	}
	id, err := s.identity()
	if err != nil {
		return domain.MassReencryptResponse{}, err
	}
	target, err := s.dir.Device(ctx, id.UserID, device)
	if err != nil {
		return domain.MassReencryptResponse{}, err
	}

	var res domain.MassReencryptResponse
	failed := make(map[domain.SessionID]bool)
	for {
		// Failed sessions stay listed, so ask for enough to get a full batch past them.
		limit := opts.RetrieveBatchSize + len(failed)
		ids, err := s.api.MissingSessionKeys(ctx, device, limit)
		if err != nil {
			return res, pkgerrors.Wrap(err, "list missing session keys")
		}
		todo := 0
		for _, sid := range ids {
			if failed[sid] {
				continue
			}
			todo++
			err := s.retry(ctx, opts, func() error { return s.reencryptOne(ctx, id, target, sid) })
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if err != nil {
				s.log.Warn().Err(err).Str("session", sid.String()).Str("device", device.String()).
					Msg("re-encryption failed")
				failed[sid] = true
				res.Failed++
				continue
			}
			res.Reencrypted++
		}
		if todo == 0 || len(ids) < limit {
			break
		}
	}
	s.log.Info().Str("device", device.String()).Int("reencrypted", res.Reencrypted).
		Int("failed", res.Failed).Msg("mass re-encryption done")
	return res, nil
}

func (s *Service) reencryptOne(ctx context.Context, id domain.Identity, target domain.DevicePublic, sid domain.SessionID) error {
	sess, err := s.RetrieveSession(ctx, sid, false, false)
	if err != nil {
		return err
	}
	wk, err := keywrap.Wrap(id, target, keywrap.SessionSubject(sid), sess.Key, domain.DefaultRights())
	if err != nil {
		return backoff.Permanent(err)
	}
	return s.api.UploadSessionKeys(ctx, sid, []domain.WrappedKey{wk})
}

func (s *Service) retry(ctx context.Context, opts domain.MassReencryptOptions, op func() error) error {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(opts.WaitBetweenRetries), uint64(opts.Retries)),
		ctx,
	)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !temporary(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

// temporary reports whether retrying may help. Key server refusals and local crypto
// failures are final.
func temporary(err error) bool {
	var apiErr *relay.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return false
	}
	return !errors.Is(err, domain.ErrNoAccess) && !errors.Is(err, domain.ErrUnknownSession) &&
		!errors.Is(err, keywrap.ErrBadSignature) && !errors.Is(err, context.Canceled)
}
