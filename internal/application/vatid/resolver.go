package vatid

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
)

// Resolver links tenant entities to cache rows and schedules re-validation.
//
// Resolvers never write a verdict. They create pending rows, move links, and
// stamp the throttle timestamp through a conditional update so that only one
// of several concurrent resolvers enqueues a job for the same row.
type Resolver struct {
	repo     vatid.Repository
	queue    JobQueue
	inflight shared.Claims
	recorder ValidationRecorder
	policy   vatid.Policy
	logger   *zap.Logger
	now      func() time.Time
}

// ResolverConfig contains configuration for Resolver
type ResolverConfig struct {
	Policy   vatid.Policy
	Recorder ValidationRecorder
	Now      func() time.Time
}

// NewResolver creates a new Resolver
func NewResolver(repo vatid.Repository, queue JobQueue, inflight shared.Claims, logger *zap.Logger, cfg ResolverConfig) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Policy.StaleAfter <= 0 || cfg.Policy.EnqueueThrottle <= 0 {
		cfg.Policy = vatid.DefaultPolicy()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = noopRecorder{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Resolver{
		repo:     repo,
		queue:    queue,
		inflight: inflight,
		recorder: cfg.Recorder,
		policy:   cfg.Policy,
		logger:   logger,
		now:      cfg.Now,
	}
}

// Resolve normalizes the entity's VAT identifier, links the entity to the
// matching cache row and enqueues a validation when the row is stale and not
// throttled. An empty identifier detaches any link and returns nil.
// The caller persists the entity.
func (r *Resolver) Resolve(ctx context.Context, entity vatid.Linkable) (*vatid.VatIdentity, error) {
	country, identifier := entity.VatKeyParts()
	key, ok := vatid.Normalize(country, identifier)
	if !ok {
		entity.LinkVatIdentity(nil)
		return nil, nil
	}

	identity, err := r.repo.FindOrCreate(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("resolve VAT identity %s: %w", key, err)
	}
	id := identity.ID
	entity.LinkVatIdentity(&id)

	if _, err := r.enqueue(ctx, identity, false); err != nil {
		// the link is valid even if scheduling failed; the stale sweep retries later
		r.logger.Warn("Failed to enqueue VAT validation",
			zap.String("vat_identity_id", identity.ID.String()),
			zap.Error(err))
	}
	return identity, nil
}

// Get returns a cache row
func (r *Resolver) Get(ctx context.Context, identityID uuid.UUID) (*vatid.VatIdentity, error) {
	return r.repo.FindByID(ctx, identityID)
}

// ManualRecheck enqueues a validation regardless of staleness, still honoring
// the throttle. It reports whether a job was enqueued.
func (r *Resolver) ManualRecheck(ctx context.Context, identityID uuid.UUID) (bool, error) {
	identity, err := r.repo.FindByID(ctx, identityID)
	if err != nil {
		return false, err
	}
	return r.enqueue(ctx, identity, true)
}

// SweepStale enqueues validation for referenced rows whose verdict expired.
// It returns how many jobs were enqueued.
func (r *Resolver) SweepStale(ctx context.Context, batch int) (int, error) {
	cutoff := r.now().Add(-r.policy.StaleAfter)
	rows, err := r.repo.FindStaleReferenced(ctx, cutoff, batch)
	if err != nil {
		return 0, fmt.Errorf("find stale VAT identities: %w", err)
	}

	enqueued := 0
	for i := range rows {
		ok, err := r.enqueue(ctx, &rows[i], false)
		if err != nil {
			r.logger.Warn("Stale sweep failed to enqueue",
				zap.String("vat_identity_id", rows[i].ID.String()),
				zap.Error(err))
			continue
		}
		if ok {
			enqueued++
		}
	}
	if enqueued > 0 {
		r.logger.Info("Stale VAT identities enqueued",
			zap.Int("candidates", len(rows)),
			zap.Int("enqueued", enqueued))
	}
	return enqueued, nil
}

func (r *Resolver) enqueue(ctx context.Context, identity *vatid.VatIdentity, force bool) (bool, error) {
	now := r.now().UTC()
	if !identity.ShouldEnqueue(now, r.policy, force) {
		r.recorder.RecordVatEnqueue(ctx, false)
		return false, nil
	}

	previous := identity.LastEnqueuedAt
	claimed, err := r.repo.ClaimEnqueue(ctx, identity.ID, now, r.policy.EnqueueThrottle)
	if err != nil {
		return false, err
	}
	if !claimed {
		r.recorder.RecordVatEnqueue(ctx, false)
		return false, nil
	}

	key := InflightKey(identity.ID)
	if r.inflight != nil {
		fresh, err := r.inflight.Claim(ctx, key, r.policy.EnqueueThrottle)
		if err != nil {
			r.logger.Warn("In-flight guard unavailable, relying on the throttle stamp",
				zap.String("key", key), zap.Error(err))
		} else if !fresh {
			r.recorder.RecordVatEnqueue(ctx, false)
			return false, nil
		}
	}

	job := ValidationJob{
		IdentityID: identity.ID,
		Country:    string(identity.Country),
		Identifier: identity.Identifier,
		EnqueuedAt: now,
		Manual:     force,
	}
	if err := r.queue.Enqueue(ctx, job); err != nil {
		if r.inflight != nil {
			_ = r.inflight.Release(ctx, key)
		}
		// no job exists, so the throttle must not hold back the next caller
		if rerr := r.repo.ReleaseEnqueue(ctx, identity.ID, now, previous); rerr != nil {
			r.logger.Warn("Failed to release the enqueue stamp",
				zap.String("vat_identity_id", identity.ID.String()),
				zap.Error(rerr))
		}
		return false, err
	}

	identity.MarkEnqueued(now)
	r.recorder.RecordVatEnqueue(ctx, true)
	r.logger.Debug("VAT validation enqueued",
		zap.String("vat_identity_id", identity.ID.String()),
		zap.String("key", identity.Key().String()),
		zap.Bool("manual", force))
	return true, nil
}
