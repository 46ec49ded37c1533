package appeal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trafficase/internal/appeal/metrics"
	"trafficase/internal/appeal/models"
	"trafficase/internal/idempotency"
	"trafficase/internal/ledger"
	offensemodels "trafficase/internal/offense/models"
	"trafficase/internal/platform/redis"
	dErrors "trafficase/pkg/domain-errors"
	"trafficase/pkg/platform/audit"
	"trafficase/pkg/platform/sentinel"
	"trafficase/pkg/platform/tx"
	"trafficase/pkg/requestcontext"
)

const (
	cachePrefix = "appeal:"
	cacheTTL    = 5 * time.Minute
)

// OffenseDirectory resolves the offense an appeal challenges.
type OffenseDirectory interface {
	FindByID(ctx context.Context, id int64) (*offensemodels.Offense, error)
}

// CreateRequest carries the fields of a new appeal record.
type CreateRequest struct {
	OffenseID     int64
	AppellantName string
	AppealReason  string
}

// CreateResult is the outcome of a submission. Duplicate means a prior
// attempt with the same idempotency key already produced this record.
type CreateResult struct {
	Appeal    *models.Appeal
	Duplicate bool
}

// Service orchestrates appeal intake and reads.
type Service struct {
	store    Store
	offenses OffenseDirectory
	guard    *idempotency.Guard
	runner   tx.Runner
	auditor  audit.Publisher
	cache    *redis.Client
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

func WithOffenseDirectory(dir OffenseDirectory) Option {
	return func(s *Service) { s.offenses = dir }
}

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) { s.runner = runner }
}

func WithAuditPublisher(pub audit.Publisher) Option {
	return func(s *Service) { s.auditor = pub }
}

func WithCache(cache *redis.Client) Option {
	return func(s *Service) { s.cache = cache }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService constructs an appeal service.
func NewService(store Store, guard *idempotency.Guard, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		guard:   guard,
		runner:  tx.NoopRunner{},
		auditor: audit.NopPublisher{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create files a new appeal against an offense. Guarded by the idempotency
// key when the context carries one. Cancelled offenses cannot be appealed.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	key := requestcontext.IdempotencyKey(ctx)
	if key != "" {
		// Fast path: a fully completed prior attempt answers from the
		// ledger before validation or the appealability check.
		skip, err := s.guard.ShouldSkipProcessing(ctx, key)
		if err != nil {
			return nil, err
		}
		if skip {
			entry, err := s.guard.Lookup(ctx, key)
			if err != nil {
				return nil, err
			}
			return s.resolveDuplicate(ctx, key, entry)
		}
	}

	appeal, err := models.NewAppeal(req.OffenseID, req.AppellantName, req.AppealReason, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.requireAppealable(ctx, req.OffenseID); err != nil {
		return nil, err
	}

	if key == "" {
		if err := s.insert(ctx, appeal, ""); err != nil {
			return nil, err
		}
		return &CreateResult{Appeal: appeal}, nil
	}

	decision, err := s.guard.CheckAndAdmit(ctx, key)
	if err != nil {
		return nil, err
	}
	if decision.Admission == idempotency.Duplicate {
		return s.resolveDuplicate(ctx, key, decision.Entry)
	}

	if err := s.insert(ctx, appeal, key); err != nil {
		s.guard.MarkFailure(ctx, key, err.Error())
		return nil, err
	}
	return &CreateResult{Appeal: appeal}, nil
}

func (s *Service) requireAppealable(ctx context.Context, offenseID int64) error {
	if s.offenses == nil {
		return nil
	}
	offense, err := s.offenses.FindByID(ctx, offenseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeValidation, "offense record does not exist")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check offense")
	}
	if offense.ProcessStatus == "CANCELLED" {
		return dErrors.New(dErrors.CodeInvariantViolation, "cancelled offenses cannot be appealed")
	}
	return nil
}

func (s *Service) insert(ctx context.Context, appeal *models.Appeal, key string) error {
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, appeal); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create appeal")
		}
		if key != "" {
			if err := s.guard.MarkSuccess(txCtx, key, appeal.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.Recorded.Inc()
	}
	s.auditor.Emit(ctx, audit.Event{
		Action:  string(audit.EventAppealRecorded),
		Subject: fmt.Sprintf("appeal/%d", appeal.ID),
		Detail:  fmt.Sprintf("against offense/%d", appeal.OffenseID),
	})
	if err := s.cache.InvalidatePrefix(ctx, cachePrefix); err != nil {
		s.logger.WarnContext(ctx, "appeal cache invalidation failed", "error", err)
	}
	return nil
}

func (s *Service) resolveDuplicate(ctx context.Context, key string, entry *ledger.Entry) (*CreateResult, error) {
	if s.metrics != nil {
		s.metrics.Duplicates.Inc()
	}
	s.auditor.Emit(ctx, audit.Event{
		Action: string(audit.EventDuplicateRequest),
		Detail: "appeal submission replayed",
	})

	if entry.Completed() && entry.BusinessID != nil {
		appeal, err := s.store.FindByID(ctx, *entry.BusinessID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load original appeal for duplicate request")
		}
		return &CreateResult{Appeal: appeal, Duplicate: true}, nil
	}

	s.logger.WarnContext(ctx, "conflicting appeal submission",
		"idempotency_key", key,
		"business_status", entry.BusinessStatus,
	)
	return nil, dErrors.New(dErrors.CodeConflict,
		"a request with this idempotency key is already being processed")
}

// Get returns one appeal, reading through the cache.
func (s *Service) Get(ctx context.Context, id int64) (*models.Appeal, error) {
	if id < 1 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "appeal id must be a positive integer")
	}

	cacheKey := fmt.Sprintf("%s%d", cachePrefix, id)
	var cached models.Appeal
	if hit, err := s.cache.GetJSON(ctx, cacheKey, &cached); err != nil {
		s.logger.WarnContext(ctx, "appeal cache read failed", "error", err)
	} else if hit {
		return &cached, nil
	}

	appeal, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "appeal record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load appeal")
	}

	if err := s.cache.SetJSON(ctx, cacheKey, appeal, cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "appeal cache write failed", "error", err)
	}
	return appeal, nil
}

// ListByOffense returns every appeal filed against one offense.
func (s *Service) ListByOffense(ctx context.Context, offenseID int64) ([]models.Appeal, error) {
	if offenseID < 1 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "offense id must be a positive integer")
	}
	appeals, err := s.store.FindByOffense(ctx, offenseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list appeals")
	}
	return appeals, nil
}

// ListByStatus pages appeals in one lifecycle state.
func (s *Service) ListByStatus(ctx context.Context, status string, page, size int) ([]models.Appeal, error) {
	if status == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "status is required")
	}
	if page < 1 || size < 1 || size > 200 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "page must be >= 1 and size in [1,200]")
	}
	appeals, err := s.store.ListByStatus(ctx, status, page, size)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list appeals")
	}
	return appeals, nil
}
