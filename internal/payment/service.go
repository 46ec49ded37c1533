package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trafficase/internal/idempotency"
	"trafficase/internal/ledger"
	offensemodels "trafficase/internal/offense/models"
	"trafficase/internal/payment/metrics"
	"trafficase/internal/payment/models"
	"trafficase/internal/platform/redis"
	dErrors "trafficase/pkg/domain-errors"
	"trafficase/pkg/platform/audit"
	"trafficase/pkg/platform/sentinel"
	"trafficase/pkg/platform/tx"
	"trafficase/pkg/requestcontext"
)

const (
	cachePrefix = "payment:"
	cacheTTL    = 5 * time.Minute
)

// OffenseDirectory resolves the offense a payment attaches to.
type OffenseDirectory interface {
	FindByID(ctx context.Context, id int64) (*offensemodels.Offense, error)
}

// CreateRequest carries the fields of a new payment record.
type CreateRequest struct {
	OffenseID     int64
	AmountDue     int64
	PaymentMethod string
}

// CreateResult is the outcome of a submission. Duplicate means a prior
// attempt with the same idempotency key already produced this record.
type CreateResult struct {
	Payment   *models.Payment
	Duplicate bool
}

// Service orchestrates payment intake, settlement amounts, and reads.
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

// NewService constructs a payment service.
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

// Create records a new payment obligation for an offense. Guarded by the
// idempotency key when the context carries one.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	key := requestcontext.IdempotencyKey(ctx)
	if key != "" {
		// Fast path: a fully completed prior attempt answers from the
		// ledger before validation or the offense lookup.
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

	payment, err := models.NewPayment(req.OffenseID, req.AmountDue, req.PaymentMethod, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.requireOffense(ctx, req.OffenseID); err != nil {
		return nil, err
	}

	if key == "" {
		if err := s.insert(ctx, payment, ""); err != nil {
			return nil, err
		}
		return &CreateResult{Payment: payment}, nil
	}

	decision, err := s.guard.CheckAndAdmit(ctx, key)
	if err != nil {
		return nil, err
	}
	if decision.Admission == idempotency.Duplicate {
		return s.resolveDuplicate(ctx, key, decision.Entry)
	}

	if err := s.insert(ctx, payment, key); err != nil {
		s.guard.MarkFailure(ctx, key, err.Error())
		return nil, err
	}
	return &CreateResult{Payment: payment}, nil
}

func (s *Service) requireOffense(ctx context.Context, offenseID int64) error {
	if s.offenses == nil {
		return nil
	}
	if _, err := s.offenses.FindByID(ctx, offenseID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeValidation, "offense record does not exist")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check offense")
	}
	return nil
}

func (s *Service) insert(ctx context.Context, payment *models.Payment, key string) error {
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, payment); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create payment")
		}
		if key != "" {
			if err := s.guard.MarkSuccess(txCtx, key, payment.ID); err != nil {
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
		Action:  string(audit.EventPaymentRecorded),
		Subject: fmt.Sprintf("payment/%d", payment.ID),
		Detail:  fmt.Sprintf("due %d for offense/%d", payment.AmountDue, payment.OffenseID),
	})
	if err := s.cache.InvalidatePrefix(ctx, cachePrefix); err != nil {
		s.logger.WarnContext(ctx, "payment cache invalidation failed", "error", err)
	}
	return nil
}

func (s *Service) resolveDuplicate(ctx context.Context, key string, entry *ledger.Entry) (*CreateResult, error) {
	if s.metrics != nil {
		s.metrics.Duplicates.Inc()
	}
	s.auditor.Emit(ctx, audit.Event{
		Action: string(audit.EventDuplicateRequest),
		Detail: "payment submission replayed",
	})

	if entry.Completed() && entry.BusinessID != nil {
		payment, err := s.store.FindByID(ctx, *entry.BusinessID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load original payment for duplicate request")
		}
		return &CreateResult{Payment: payment, Duplicate: true}, nil
	}

	s.logger.WarnContext(ctx, "conflicting payment submission",
		"idempotency_key", key,
		"business_status", entry.BusinessStatus,
	)
	return nil, dErrors.New(dErrors.CodeConflict,
		"a request with this idempotency key is already being processed")
}

// RecordAmount settles part of a payment. The lifecycle transition itself
// (PARTIAL_PAY, COMPLETE_PAYMENT) runs through the workflow endpoint; this
// only books the money.
func (s *Service) RecordAmount(ctx context.Context, id, amount int64) (*models.Payment, error) {
	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "settled amount must be positive")
	}

	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.RecordAmount(txCtx, id, amount); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "payment record not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record settled amount")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AmountSettled.Add(float64(amount))
	}
	if err := s.cache.InvalidatePrefix(ctx, cachePrefix); err != nil {
		s.logger.WarnContext(ctx, "payment cache invalidation failed", "error", err)
	}
	return s.Get(ctx, id)
}

// Get returns one payment, reading through the cache.
func (s *Service) Get(ctx context.Context, id int64) (*models.Payment, error) {
	if id < 1 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "payment id must be a positive integer")
	}

	cacheKey := fmt.Sprintf("%s%d", cachePrefix, id)
	var cached models.Payment
	if hit, err := s.cache.GetJSON(ctx, cacheKey, &cached); err != nil {
		s.logger.WarnContext(ctx, "payment cache read failed", "error", err)
	} else if hit {
		return &cached, nil
	}

	payment, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "payment record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payment")
	}

	if err := s.cache.SetJSON(ctx, cacheKey, payment, cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "payment cache write failed", "error", err)
	}
	return payment, nil
}

// ListByOffense returns every payment attached to one offense.
func (s *Service) ListByOffense(ctx context.Context, offenseID int64) ([]models.Payment, error) {
	if offenseID < 1 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "offense id must be a positive integer")
	}
	payments, err := s.store.FindByOffense(ctx, offenseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list payments")
	}
	return payments, nil
}

// ListByStatus pages payments in one lifecycle state.
func (s *Service) ListByStatus(ctx context.Context, status string, page, size int) ([]models.Payment, error) {
	if status == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "status is required")
	}
	if page < 1 || size < 1 || size > 200 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "page must be >= 1 and size in [1,200]")
	}
	payments, err := s.store.ListByStatus(ctx, status, page, size)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list payments")
	}
	return payments, nil
}
