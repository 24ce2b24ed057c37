package accounts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepository is an in-memory Repository with per-method call counters.
type memRepository struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]Account
	calls    map[string]int

	updateErr error
	listErr   error
	// vanishOnUpdate removes the row before Update runs, as a concurrent
	// delete would.
	vanishOnUpdate bool
}

func newMemRepository(seed ...Account) *memRepository {
	r := &memRepository{accounts: make(map[uuid.UUID]Account), calls: make(map[string]int)}
	for _, a := range seed {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *memRepository) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func (r *memRepository) totalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for name, n := range r.calls {
		if name != "WithTx" {
			total += n
		}
	}
	return total
}

func (r *memRepository) mutations() int {
	return r.count("Create") + r.count("Update") + r.count("Delete")
}

func (r *memRepository) snapshot(id uuid.UUID) (Account, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	return a, ok
}

func (r *memRepository) track(name string) {
	r.mu.Lock()
	r.calls[name]++
	r.mu.Unlock()
}

func (r *memRepository) sorted(keep func(Account) bool) []Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *memRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	r.track("WithTx")
	return fn(ctx, r)
}

func (r *memRepository) List(ctx context.Context) ([]Account, error) {
	r.track("List")
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.sorted(func(Account) bool { return true }), nil
}

func (r *memRepository) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	r.track("Get")
	a, ok := r.snapshot(id)
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (r *memRepository) GetByTaxID(ctx context.Context, taxID string) (Account, error) {
	r.track("GetByTaxID")
	list := r.sorted(func(a Account) bool { return a.TaxID == taxID })
	if len(list) == 0 {
		return Account{}, ErrNotFound
	}
	return list[0], nil
}

func (r *memRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	r.track("Exists")
	_, ok := r.snapshot(id)
	return ok, nil
}

func (r *memRepository) ListByStatus(ctx context.Context, active bool) ([]Account, error) {
	r.track("ListByStatus")
	return r.sorted(func(a Account) bool { return a.Active == active }), nil
}

func (r *memRepository) ListCreatedBetween(ctx context.Context, start, end time.Time) ([]Account, error) {
	r.track("ListCreatedBetween")
	return r.sorted(func(a Account) bool {
		return !a.CreatedAt.Before(start) && !a.CreatedAt.After(end)
	}), nil
}

func (r *memRepository) ListDeleted(ctx context.Context) ([]Account, error) {
	r.track("ListDeleted")
	return r.sorted(func(a Account) bool { return a.DeletedAt != nil }), nil
}

func (r *memRepository) CountByStatus(ctx context.Context) (StatusSummary, error) {
	r.track("CountByStatus")
	var s StatusSummary
	for _, a := range r.sorted(func(Account) bool { return true }) {
		if a.Active {
			s.ActiveCount++
		} else {
			s.InactiveCount++
		}
		s.TotalCount++
	}
	return s, nil
}

func (r *memRepository) TotalsByYear(ctx context.Context, years []int) ([]YearlyTotal, error) {
	r.track("TotalsByYear")
	wanted := make(map[int]bool, len(years))
	for _, y := range years {
		wanted[y] = true
	}
	counts := make(map[int]int)
	for _, a := range r.sorted(func(Account) bool { return true }) {
		if y := a.CreatedAt.UTC().Year(); wanted[y] {
			counts[y]++
		}
	}
	out := make([]YearlyTotal, 0, len(counts))
	for y, n := range counts {
		out = append(out, YearlyTotal{Year: y, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

func (r *memRepository) Create(ctx context.Context, a Account) error {
	r.track("Create")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = a
	return nil
}

func (r *memRepository) Update(ctx context.Context, a Account) error {
	r.track("Update")
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vanishOnUpdate {
		delete(r.accounts, a.ID)
	}
	current, ok := r.accounts[a.ID]
	if !ok {
		return ErrConcurrencyConflict
	}
	a.CreatedAt = current.CreatedAt
	r.accounts[a.ID] = a
	return nil
}

func (r *memRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.track("Delete")
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(r.accounts, id)
	return nil
}

// gatedRepository holds ListByStatus until release is closed or the load
// context ends.
type gatedRepository struct {
	*memRepository
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedRepository(seed ...Account) *gatedRepository {
	return &gatedRepository{
		memRepository: newMemRepository(seed...),
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (r *gatedRepository) ListByStatus(ctx context.Context, active bool) ([]Account, error) {
	r.once.Do(func() { close(r.started) })
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.memRepository.ListByStatus(ctx, active)
}

// recordingStore is a cache.Store that records every call.
type recordingStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    []string
	sets    []string
	ttls    map[string]time.Duration
	deletes []string

	getErr error
	setErr error
	delErr error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{entries: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (s *recordingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets = append(s.gets, key)
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *recordingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = append(s.sets, key)
	s.ttls[key] = ttl
	if s.setErr != nil {
		return s.setErr
	}
	s.entries[key] = append([]byte(nil), value...)
	return nil
}

func (s *recordingStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, key)
	if s.delErr != nil {
		return s.delErr
	}
	delete(s.entries, key)
	return nil
}

func (s *recordingStore) Ping(ctx context.Context) error { return nil }

func (s *recordingStore) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.gets)
}

func (s *recordingStore) setCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range s.sets {
		if k == key {
			n++
		}
	}
	return n
}

func (s *recordingStore) deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletes...)
}

func (s *recordingStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}
