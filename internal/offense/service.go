package offense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trafficase/internal/idempotency"
	"trafficase/internal/ledger"
	"trafficase/internal/offense/metrics"
	"trafficase/internal/offense/models"
	"trafficase/internal/platform/redis"
	dErrors "trafficase/pkg/domain-errors"
	"trafficase/pkg/platform/audit"
	"trafficase/pkg/platform/sentinel"
	"trafficase/pkg/platform/tx"
	"trafficase/pkg/requestcontext"
)

const (
	cachePrefix = "offense:"
	cacheTTL    = 5 * time.Minute
)

// CreateRequest carries the fields of a new offense record.
type CreateRequest struct {
	DriverName      string
	LicensePlate    string
	OffenseType     string
	OffenseLocation string
	FineAmount      int64
	DeductedPoints  int
	OccurredAt      time.Time
}

// CreateResult is the outcome of a submission. Duplicate means a prior
// attempt with the same idempotency key already produced this record.
type CreateResult struct {
	Offense   *models.Offense
	Duplicate bool
}

// Service orchestrates offense intake and reads. Submissions carrying an
// idempotency key run through the admission guard; the record insert and the
// ledger completion mark commit in one transaction.
type Service struct {
	store   Store
	guard   *idempotency.Guard
	runner  tx.Runner
	auditor audit.Publisher
	cache   *redis.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

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

// NewService constructs an offense service.
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

// Create records a new offense. When the context carries an idempotency key,
// a repeated submission returns the original record instead of creating a
// second one; without a key every call creates a record.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	key := requestcontext.IdempotencyKey(ctx)
	if key != "" {
		// Fast path: a fully completed prior attempt answers from the
		// ledger before any validation or write is attempted.
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

	offense, err := models.NewOffense(
		req.DriverName, req.LicensePlate, req.OffenseType, req.OffenseLocation,
		req.FineAmount, req.DeductedPoints, req.OccurredAt, requestcontext.Now(ctx),
	)
	if err != nil {
		return nil, err
	}

	if key == "" {
		if err := s.insert(ctx, offense, ""); err != nil {
			return nil, err
		}
		return &CreateResult{Offense: offense}, nil
	}

	decision, err := s.guard.CheckAndAdmit(ctx, key)
	if err != nil {
		return nil, err
	}
	if decision.Admission == idempotency.Duplicate {
		return s.resolveDuplicate(ctx, key, decision.Entry)
	}

	if err := s.insert(ctx, offense, key); err != nil {
		s.guard.MarkFailure(ctx, key, err.Error())
		return nil, err
	}
	return &CreateResult{Offense: offense}, nil
}

// insert writes the record, and for guarded submissions marks the ledger
// SUCCESS in the same transaction so a crash can never leave a completed
// entry without a record or vice versa.
func (s *Service) insert(ctx context.Context, offense *models.Offense, key string) error {
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, offense); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create offense")
		}
		if key != "" {
			if err := s.guard.MarkSuccess(txCtx, key, offense.ID); err != nil {
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
		Action:  string(audit.EventOffenseRecorded),
		Subject: fmt.Sprintf("offense/%d", offense.ID),
		Detail:  offense.OffenseType,
	})
	if err := s.cache.InvalidatePrefix(ctx, cachePrefix); err != nil {
		s.logger.WarnContext(ctx, "offense cache invalidation failed", "error", err)
	}
	return nil
}

// resolveDuplicate answers a repeated submission from the ledger. A completed
// attempt returns its record; an attempt still in flight or one that is
// permanently failed is a conflict.
func (s *Service) resolveDuplicate(ctx context.Context, key string, entry *ledger.Entry) (*CreateResult, error) {
	if s.metrics != nil {
		s.metrics.Duplicates.Inc()
	}
	s.auditor.Emit(ctx, audit.Event{
		Action: string(audit.EventDuplicateRequest),
		Detail: "offense submission replayed",
	})

	if entry.Completed() && entry.BusinessID != nil {
		offense, err := s.store.FindByID(ctx, *entry.BusinessID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load original offense for duplicate request")
		}
		return &CreateResult{Offense: offense, Duplicate: true}, nil
	}

	s.logger.WarnContext(ctx, "conflicting offense submission",
		"idempotency_key", key,
		"business_status", entry.BusinessStatus,
	)
	return nil, dErrors.New(dErrors.CodeConflict,
		"a request with this idempotency key is already being processed")
}

// Get returns one offense, reading through the cache.
func (s *Service) Get(ctx context.Context, id int64) (*models.Offense, error) {
	if id < 1 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "offense id must be a positive integer")
	}

	cacheKey := fmt.Sprintf("%s%d", cachePrefix, id)
	var cached models.Offense
	if hit, err := s.cache.GetJSON(ctx, cacheKey, &cached); err != nil {
		s.logger.WarnContext(ctx, "offense cache read failed", "error", err)
	} else if hit {
		if s.metrics != nil {
			s.metrics.CacheHits.Inc()
		}
		return &cached, nil
	}

	offense, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "offense record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load offense")
	}

	if err := s.cache.SetJSON(ctx, cacheKey, offense, cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "offense cache write failed", "error", err)
	}
	return offense, nil
}

// ListByStatus pages offenses in one lifecycle state.
func (s *Service) ListByStatus(ctx context.Context, status string, page, size int) ([]models.Offense, error) {
	if status == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "status is required")
	}
	if page < 1 || size < 1 || size > 200 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "page must be >= 1 and size in [1,200]")
	}
	offenses, err := s.store.ListByStatus(ctx, status, page, size)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list offenses")
	}
	return offenses, nil
}
