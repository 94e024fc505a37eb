package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Emmannue01/trend-caps/internal/catalog"
	"github.com/Emmannue01/trend-caps/internal/coupon"
	"github.com/Emmannue01/trend-caps/internal/pricing"
)

type Scope int

const (
	// ScopeAnonymous carts live in the device cache only.
	ScopeAnonymous Scope = iota
	// ScopeBound carts write through to the account's persisted lines.
	ScopeBound
)

var (
	ErrSizeRequired    = errors.New("size is required for this product")
	ErrSizeUnavailable = errors.New("size is out of stock")
)

// Store owns one visitor's cart. It starts anonymous and transitions to
// bound exactly once, when Bind first observes an account identity; the
// transition merges the anonymous lines into the persisted cart.
//
// Mutations notify subscribers after they are applied, replacing the
// event wiring a UI would otherwise hang off storage callbacks.
type Store struct {
	repo  Repository
	cache Cache

	mu        sync.Mutex
	scope     Scope
	deviceID  string
	accountID string
	lines     map[string]Line
	coupon    string
	subs      []func([]Line)
}

// NewStore loads the device's cached anonymous cart, if any.
func NewStore(ctx context.Context, deviceID string, repo Repository, cache Cache) (*Store, error) {
	lines, err := cache.Load(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return &Store{
		repo:     repo,
		cache:    cache,
		deviceID: deviceID,
		lines:    lines,
	}, nil
}

func (s *Store) Scope() Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

func (s *Store) AccountID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountID
}

// Lines returns a snapshot sorted by line id.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) snapshot() []Line {
	out := make([]Line, 0, len(s.lines))
	for _, l := range s.lines {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Subscribe registers a callback invoked with a fresh snapshot after
// every successful mutation. Callbacks run outside the store lock and
// may read the Store.
func (s *Store) Subscribe(fn func([]Line)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// observers returns, under s.mu, what a mutation needs to fan out once
// the lock is released.
func (s *Store) observers() ([]func([]Line), []Line) {
	return s.subs, s.snapshot()
}

// notify runs subscriber callbacks. Callers must have released s.mu so
// a subscriber can call back into the Store.
func notify(subs []func([]Line), snapshot []Line) {
	for _, fn := range subs {
		fn(snapshot)
	}
}

// Add puts one unit of the product in the cart. An existing line for the
// same product and size gains a unit; a new line snapshots the current
// effective unit price. Size-tracked products require a size with stock.
func (s *Store) Add(ctx context.Context, p *catalog.Product, size string) error {
	if p.Stock.Sized && size == "" {
		return ErrSizeRequired
	}
	if size != "" && p.Stock.Available(size) <= 0 {
		return fmt.Errorf("%s %s: %w", p.ID, size, ErrSizeUnavailable)
	}

	s.mu.Lock()

	id := LineID(p.ID, size)
	line, ok := s.lines[id]
	if ok {
		line.Quantity++
	} else {
		line = Line{
			ProductID: p.ID,
			Name:      p.Name,
			Size:      size,
			Quantity:  1,
			UnitPrice: pricing.EffectiveUnitPrice(p),
		}
	}

	if err := s.writeLine(ctx, line); err != nil {
		s.mu.Unlock()
		return err
	}
	s.lines[id] = line
	subs, snap := s.observers()
	s.mu.Unlock()

	notify(subs, snap)
	return nil
}

// SetQuantity overwrites a line's quantity. The new value is absolute,
// not a delta, so two racing "+1" clicks cannot compound. Anything below
// one removes the line.
func (s *Store) SetQuantity(ctx context.Context, lineID string, qty int) error {
	if qty < 1 {
		return s.Remove(ctx, lineID)
	}

	s.mu.Lock()

	line, ok := s.lines[lineID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	line.Quantity = qty

	if err := s.writeLine(ctx, line); err != nil {
		s.mu.Unlock()
		return err
	}
	s.lines[lineID] = line
	subs, snap := s.observers()
	s.mu.Unlock()

	notify(subs, snap)
	return nil
}

// Remove deletes a line from the mirror and from whichever scope holds
// the durable copy.
func (s *Store) Remove(ctx context.Context, lineID string) error {
	s.mu.Lock()

	if _, ok := s.lines[lineID]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.lines, lineID)

	var err error
	if s.scope == ScopeBound {
		err = s.repo.DeleteLine(ctx, s.accountID, lineID)
	} else {
		err = s.cache.Save(ctx, s.deviceID, s.lines)
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	subs, snap := s.observers()
	s.mu.Unlock()

	notify(subs, snap)
	return nil
}

// writeLine persists a single line mutation. Callers hold s.mu.
func (s *Store) writeLine(ctx context.Context, line Line) error {
	if s.scope == ScopeBound {
		return s.repo.UpsertLine(ctx, s.accountID, line)
	}
	staged := make(map[string]Line, len(s.lines)+1)
	for id, l := range s.lines {
		staged[id] = l
	}
	staged[line.ID()] = line
	return s.cache.Save(ctx, s.deviceID, staged)
}

// ApplyCoupon stores the normalized code as the cart's single applied
// coupon; a second code replaces the first.
func (s *Store) ApplyCoupon(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupon = coupon.Normalize(code)
}

func (s *Store) Coupon() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coupon
}

// Bind transitions the store to the account scope and merges the
// anonymous cart into the persisted one: shared lines sum their
// quantities and keep the persisted price, other lines survive as-is.
// The merged set is written back, the anonymous copy dropped. Calling
// Bind on an already-bound store is a no-op.
func (s *Store) Bind(ctx context.Context, accountID string) error {
	if accountID == "" {
		return errors.New("accountID is required")
	}

	s.mu.Lock()

	if s.scope == ScopeBound {
		s.mu.Unlock()
		return nil
	}

	persisted, err := s.repo.LinesFor(ctx, accountID)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("load persisted cart: %w", err)
	}

	merged := mergeLines(s.lines, persisted)
	for _, line := range merged {
		if err := s.repo.UpsertLine(ctx, accountID, line); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("write merged line: %w", err)
		}
	}

	if err := s.cache.Drop(ctx, s.deviceID); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("drop anonymous cart: %w", err)
	}

	s.scope = ScopeBound
	s.accountID = accountID
	s.lines = merged
	subs, snap := s.observers()
	s.mu.Unlock()

	notify(subs, snap)
	return nil
}

// mergeLines folds the anonymous cart into the persisted one. For a
// shared line id the surviving quantity is the sum and the persisted
// unit price wins.
func mergeLines(anonymous, persisted map[string]Line) map[string]Line {
	merged := make(map[string]Line, len(anonymous)+len(persisted))
	for id, l := range persisted {
		merged[id] = l
	}
	for id, l := range anonymous {
		if existing, ok := merged[id]; ok {
			existing.Quantity += l.Quantity
			merged[id] = existing
			continue
		}
		merged[id] = l
	}
	return merged
}

// Reset empties the in-memory mirror. The committer has already cleared
// the persisted lines inside the checkout transaction; this brings the
// mirror and any subscribers in line with that.
func (s *Store) Reset() {
	s.mu.Lock()
	s.lines = map[string]Line{}
	s.coupon = ""
	subs := s.subs
	s.mu.Unlock()

	notify(subs, nil)
}
