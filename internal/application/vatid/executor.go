package vatid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
	"github.com/ledgerly/invoicing/internal/infrastructure/telemetry"
)

// DefaultProviderTimeout bounds one provider call.
const DefaultProviderTimeout = 15 * time.Second

// ValidationExecutor runs one validation job.
//
// The provider is called without holding any lock; the verdict is committed
// with a single update afterwards. A provider error leaves the status as it
// was and is recorded on the row for observability.
type ValidationExecutor struct {
	repo      vatid.Repository
	provider  vatid.ValidationProvider
	inflight  shared.Claims
	recompute DraftRecomputer
	recorder  ValidationRecorder
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// ValidationExecutorConfig contains configuration for ValidationExecutor
type ValidationExecutorConfig struct {
	Timeout   time.Duration
	Recompute DraftRecomputer
	Recorder  ValidationRecorder
	Now       func() time.Time
}

// NewValidationExecutor creates a new ValidationExecutor
func NewValidationExecutor(
	repo vatid.Repository,
	provider vatid.ValidationProvider,
	inflight shared.Claims,
	logger *zap.Logger,
	cfg ValidationExecutorConfig,
) *ValidationExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProviderTimeout
	}
	if cfg.Recorder == nil {
		cfg.Recorder = noopRecorder{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ValidationExecutor{
		repo:      repo,
		provider:  provider,
		inflight:  inflight,
		recompute: cfg.Recompute,
		recorder:  cfg.Recorder,
		timeout:   cfg.Timeout,
		logger:    logger,
		now:       cfg.Now,
	}
}

// Execute validates the row named by job and commits the outcome.
// The returned error feeds the queue's retry policy.
func (e *ValidationExecutor) Execute(ctx context.Context, job ValidationJob) (err error) {
	ctx, span := telemetry.StartOperation(ctx, "vat_identity", "validate",
		telemetry.IDAttr(telemetry.SpanAttrIdentityID, job.IdentityID),
		telemetry.StringAttr(telemetry.SpanAttrProvider, e.provider.Name()))
	defer func() { telemetry.EndOperation(span, err) }()

	if e.inflight != nil {
		defer func() {
			if err := e.inflight.Release(context.WithoutCancel(ctx), InflightKey(job.IdentityID)); err != nil {
				e.logger.Warn("Failed to release in-flight guard",
					zap.String("vat_identity_id", job.IdentityID.String()), zap.Error(err))
			}
		}()
	}

	identity, err := e.repo.FindByID(ctx, job.IdentityID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			e.logger.Warn("VAT identity vanished before validation",
				zap.String("vat_identity_id", job.IdentityID.String()))
			return nil
		}
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	result, callErr := e.provider.Validate(callCtx, identity.Country, identity.Identifier)
	cancel()

	if callErr != nil {
		identity.RecordFailure(callErr, e.now())
		if err := e.repo.SaveValidation(ctx, identity); err != nil {
			e.logger.Error("Failed to record VAT validation failure",
				zap.String("vat_identity_id", identity.ID.String()), zap.Error(err))
		}
		e.recorder.RecordVatValidation(ctx, "error")
		e.logger.Warn("VAT validation provider failed; status left unchanged",
			zap.String("vat_identity_id", identity.ID.String()),
			zap.String("key", identity.Key().String()),
			zap.String("provider", e.provider.Name()),
			zap.String("status", identity.Status.String()),
			zap.Error(callErr))
		return fmt.Errorf("validate %s with %s: %w", identity.Key(), e.provider.Name(), shared.ErrProviderUnavailable.WithMessage("%s", callErr.Error()))
	}
	if !result.Status.IsValid() {
		result.Status = vatid.StatusUnknown
	}

	previous := identity.Status
	changed := identity.ApplyResult(result, e.provider.Name())
	telemetry.AddEvent(span, "verdict",
		telemetry.StringAttr("previous", previous),
		telemetry.StringAttr("status", identity.Status))
	if err := e.repo.SaveValidation(ctx, identity); err != nil {
		return fmt.Errorf("save VAT validation: %w", err)
	}
	e.recorder.RecordVatValidation(ctx, identity.Status.String())
	e.logger.Info("VAT identity validated",
		zap.String("vat_identity_id", identity.ID.String()),
		zap.String("key", identity.Key().String()),
		zap.String("previous", previous.String()),
		zap.String("status", identity.Status.String()),
		zap.Bool("manual", job.Manual))

	if changed && e.recompute != nil {
		n, err := e.recompute.RecomputeForIdentity(ctx, identity.ID)
		if err != nil {
			e.logger.Warn("Failed to recompute drafts after VAT status change",
				zap.String("vat_identity_id", identity.ID.String()), zap.Error(err))
		} else if n > 0 {
			e.logger.Info("Drafts recomputed after VAT status change",
				zap.String("vat_identity_id", identity.ID.String()), zap.Int("drafts", n))
		}
	}
	return nil
}
