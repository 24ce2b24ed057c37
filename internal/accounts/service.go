package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/krt-cliente/contas/internal/observability"
	"github.com/krt-cliente/contas/internal/platform/cache"
)

// ServiceConfig groups the collaborators of Service. Store may be nil, in
// which case every read goes to the repository.
type ServiceConfig struct {
	Repository Repository
	Store      cache.Store
	Codec      cache.Codec
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	Clock      func() time.Time
}

// Service orchestrates the account repository and the cache-aside layer.
// It keeps no per-request state.
type Service struct {
	repo  Repository
	cache *cacheAside
	clock func() time.Time
}

// NewService wires the service.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	codec := cfg.Codec
	if codec == nil {
		codec = cache.JSONCodec{}
	}
	return &Service{
		repo: cfg.Repository,
		cache: &cacheAside{
			store:   cfg.Store,
			codec:   codec,
			logger:  logger.With(slog.String("component", "accounts.cache")),
			metrics: cfg.Metrics,
			clock:   clock,
		},
		clock: clock,
	}
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	if list == nil {
		list = []Account{}
	}
	return list, nil
}

// Get returns the account with id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Account{}, notFound(msgAccountNotFound)
		}
		return Account{}, fmt.Errorf("get account %s: %w", id, err)
	}
	return account, nil
}

// GetPartnerView returns the summary projection of the account with id.
func (s *Service) GetPartnerView(ctx context.Context, id uuid.UUID) (SummaryView, error) {
	account, err := s.Get(ctx, id)
	if err != nil {
		return SummaryView{}, err
	}
	return account.Summary(), nil
}

// GetByTaxID returns the cached summary for the tax id.
func (s *Service) GetByTaxID(ctx context.Context, taxID string) (SummaryView, error) {
	return readThrough(ctx, s.cache, KeyByTaxID(taxID), func(ctx context.Context) (SummaryView, error) {
		account, err := s.repo.GetByTaxID(ctx, taxID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return SummaryView{}, notFound(msgAccountNotFound)
			}
			return SummaryView{}, fmt.Errorf("get account by tax id: %w", err)
		}
		return account.Summary(), nil
	})
}

// ListActive returns the cached summaries of active accounts.
func (s *Service) ListActive(ctx context.Context) ([]SummaryView, error) {
	return s.listByStatus(ctx, true)
}

// ListInactive returns the cached summaries of inactive accounts.
func (s *Service) ListInactive(ctx context.Context) ([]SummaryView, error) {
	return s.listByStatus(ctx, false)
}

func (s *Service) listByStatus(ctx context.Context, active bool) ([]SummaryView, error) {
	key, emptyMsg := KeyActive, msgNoActive
	if !active {
		key, emptyMsg = KeyInactive, msgNoInactive
	}
	return readThrough(ctx, s.cache, key, func(ctx context.Context) ([]SummaryView, error) {
		list, err := s.repo.ListByStatus(ctx, active)
		if err != nil {
			return nil, fmt.Errorf("list accounts by status: %w", err)
		}
		if len(list) == 0 {
			return nil, notFound(emptyMsg)
		}
		return summaries(list), nil
	})
}

// TotalsByYear counts accounts created in each requested year, ascending.
func (s *Service) TotalsByYear(ctx context.Context, years []int) ([]YearlyTotal, error) {
	if len(years) == 0 {
		return nil, badRequest(msgYearsRequired)
	}
	for _, year := range years {
		if year < minYear || year > maxYear {
			return nil, badRequest(msgInvalidYear)
		}
	}
	normalized := normalizeYears(years)
	return readThrough(ctx, s.cache, KeyTotalsByYear(normalized), func(ctx context.Context) ([]YearlyTotal, error) {
		totals, err := s.repo.TotalsByYear(ctx, normalized)
		if err != nil {
			return nil, fmt.Errorf("totals by year: %w", err)
		}
		if len(totals) == 0 {
			return nil, notFound(msgNoYearTotals)
		}
		return totals, nil
	})
}

// StatusSummary returns the cached active, inactive and total counts. An
// empty table yields a zero summary, which is cached like any other.
func (s *Service) StatusSummary(ctx context.Context) (StatusSummary, error) {
	return readThrough(ctx, s.cache, KeyStatusSummary, func(ctx context.Context) (StatusSummary, error) {
		summary, err := s.repo.CountByStatus(ctx)
		if err != nil {
			return StatusSummary{}, fmt.Errorf("status summary: %w", err)
		}
		return summary, nil
	})
}

// ListByPeriod returns summaries of accounts created within [start, end].
func (s *Service) ListByPeriod(ctx context.Context, start, end time.Time) ([]SummaryView, error) {
	list, err := s.repo.ListCreatedBetween(ctx, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("list accounts by period: %w", err)
	}
	if len(list) == 0 {
		return nil, notFound(msgNoPeriod)
	}
	return summaries(list), nil
}

// ListDeleted returns summaries of soft deleted accounts.
func (s *Service) ListDeleted(ctx context.Context) ([]SummaryView, error) {
	list, err := s.repo.ListDeleted(ctx)
	if err != nil {
		return nil, fmt.Errorf("list deleted accounts: %w", err)
	}
	if len(list) == 0 {
		return nil, notFound(msgNoDeleted)
	}
	return summaries(list), nil
}

// Create inserts a new account. The id and creation time are assigned here.
func (s *Service) Create(ctx context.Context, req CreateAccountRequest) (Account, error) {
	account := Account{
		ID:         uuid.New(),
		HolderName: req.HolderName,
		TaxID:      req.TaxID,
		Email:      req.Email,
		CreatedAt:  s.now(),
		Active:     req.Active,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Create(ctx, account)
	})
	if err != nil {
		return Account{}, fmt.Errorf("create account: %w", err)
	}
	s.cache.invalidate(ctx, InvalidationKeys(account.TaxID)...)
	return account, nil
}

// Update replaces the mutable fields of the account with id. A missing
// account surfaces as a concurrency conflict from the store and is reported as
// not found; a conflict on an existing account is returned as is.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateAccountRequest) error {
	if id != req.ID {
		return badRequest(msgIDMismatch)
	}
	now := s.now()
	account := Account{
		ID:         id,
		HolderName: req.HolderName,
		TaxID:      req.TaxID,
		Email:      req.Email,
		UpdatedAt:  &now,
		Active:     req.Active,
		DeletedAt:  req.DeletedAt,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Update(ctx, account)
	})
	if errors.Is(err, ErrConcurrencyConflict) {
		exists, existsErr := s.repo.Exists(ctx, id)
		if existsErr != nil {
			return fmt.Errorf("update account %s: %w", id, existsErr)
		}
		if !exists {
			return notFound(msgAccountNotFound)
		}
	}
	if err != nil {
		return fmt.Errorf("update account %s: %w", id, err)
	}
	s.cache.invalidate(ctx, InvalidationKeys(account.TaxID)...)
	return nil
}

// Delete removes the account permanently.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		account, err = repo.Get(ctx, id)
		if err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound(msgAccountNotFound)
		}
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	s.cache.invalidate(ctx, InvalidationKeys(account.TaxID)...)
	return nil
}

// Activate marks an inactive account as active.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) (StatusChange, error) {
	account, err := s.transition(ctx, id, func(a *Account, now time.Time) error {
		if a.Active {
			return badRequest(msgAlreadyActive)
		}
		a.Active = true
		a.UpdatedAt = &now
		return nil
	})
	if err != nil {
		return StatusChange{}, err
	}
	return StatusChange{Message: msgActivated, ID: account.ID, Status: account.Active}, nil
}

// Deactivate marks an active account as inactive.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (StatusChange, error) {
	account, err := s.transition(ctx, id, func(a *Account, now time.Time) error {
		if !a.Active {
			return badRequest(msgAlreadyInactive)
		}
		a.Active = false
		a.UpdatedAt = &now
		return nil
	})
	if err != nil {
		return StatusChange{}, err
	}
	return StatusChange{Message: msgDeactivated, ID: account.ID, Status: account.Active}, nil
}

// SoftDelete stamps DeletedAt and UpdatedAt. Repeated calls re-stamp both.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID) (DeletionChange, error) {
	account, err := s.transition(ctx, id, func(a *Account, now time.Time) error {
		a.DeletedAt = &now
		a.UpdatedAt = &now
		return nil
	})
	if err != nil {
		return DeletionChange{}, err
	}
	return DeletionChange{Message: msgSoftDeleted, ID: account.ID}, nil
}

// Restore clears DeletedAt of a soft deleted account.
func (s *Service) Restore(ctx context.Context, id uuid.UUID) (DeletionChange, error) {
	account, err := s.transition(ctx, id, func(a *Account, now time.Time) error {
		if a.DeletedAt == nil {
			return badRequest(msgNotDeleted)
		}
		a.DeletedAt = nil
		a.UpdatedAt = &now
		return nil
	})
	if err != nil {
		return DeletionChange{}, err
	}
	return DeletionChange{Message: msgRestored, ID: account.ID}, nil
}

// transition loads the account, applies mutate and saves it in one
// transaction, then invalidates the caches. A rejected mutation leaves the
// store and the cache untouched. A save conflict is reported as not found only
// when the account is gone.
func (s *Service) transition(ctx context.Context, id uuid.UUID, mutate func(*Account, time.Time) error) (Account, error) {
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		account, err = repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(&account, s.now()); err != nil {
			return err
		}
		return repo.Update(ctx, account)
	})
	if err != nil {
		var domainErr *Error
		switch {
		case errors.As(err, &domainErr):
			return Account{}, err
		case errors.Is(err, ErrNotFound):
			return Account{}, notFound(msgAccountNotFound)
		case errors.Is(err, ErrConcurrencyConflict):
			exists, existsErr := s.repo.Exists(ctx, id)
			if existsErr != nil {
				return Account{}, fmt.Errorf("update account %s: %w", id, existsErr)
			}
			if !exists {
				return Account{}, notFound(msgAccountNotFound)
			}
		}
		return Account{}, fmt.Errorf("update account %s: %w", id, err)
	}
	s.cache.invalidate(ctx, InvalidationKeys(account.TaxID)...)
	return account, nil
}
