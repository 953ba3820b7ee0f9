package repository

import (
	"context"
	"sync"

	"github.com/seanttaylor/parcely-sub000/crate"
	"github.com/seanttaylor/parcely-sub000/errors"
)

// MemoryCrateRepository is an in-memory CrateRepository guarded by a RWMutex.
// The store is not durable; a process crash loses its contents.
type MemoryCrateRepository struct {
	mu     sync.RWMutex
	crates map[string]crate.Crate
}

// NewMemoryCrateRepository creates an empty in-memory crate store.
func NewMemoryCrateRepository() *MemoryCrateRepository {
	return &MemoryCrateRepository{crates: make(map[string]crate.Crate)}
}

// Create stores a new crate. Fails with ErrDuplicateID when the id exists.
func (r *MemoryCrateRepository) Create(_ context.Context, c crate.Crate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.crates[c.ID]; exists {
		return errors.WrapInvalid(errors.ErrDuplicateID, "CrateRepository", "Create", "crate insert")
	}
	r.crates[c.ID] = c
	return nil
}

// FindByID returns the crate with the given id or ErrCrateNotFound.
func (r *MemoryCrateRepository) FindByID(_ context.Context, id string) (crate.Crate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.crates[id]
	if !exists {
		return crate.Crate{}, errors.WrapInvalid(errors.ErrCrateNotFound, "CrateRepository", "FindByID", "crate lookup")
	}
	return c, nil
}

// Update replaces an existing crate. Fails with ErrCrateNotFound when the
// crate was never created.
func (r *MemoryCrateRepository) Update(_ context.Context, c crate.Crate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.crates[c.ID]; !exists {
		return errors.WrapInvalid(errors.ErrCrateNotFound, "CrateRepository", "Update", "crate update")
	}
	r.crates[c.ID] = c
	return nil
}

// FindAll returns a snapshot of every stored crate.
func (r *MemoryCrateRepository) FindAll(_ context.Context) ([]crate.Crate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]crate.Crate, 0, len(r.crates))
	for _, c := range r.crates {
		result = append(result, c)
	}
	return result, nil
}

// MemoryShipmentRepository is an in-memory ShipmentRepository.
type MemoryShipmentRepository struct {
	mu        sync.RWMutex
	shipments map[string]crate.Shipment
}

// NewMemoryShipmentRepository creates an empty in-memory shipment store.
func NewMemoryShipmentRepository() *MemoryShipmentRepository {
	return &MemoryShipmentRepository{shipments: make(map[string]crate.Shipment)}
}

// Create stores a new shipment. Fails with ErrDuplicateID when the id exists.
func (r *MemoryShipmentRepository) Create(_ context.Context, s crate.Shipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.shipments[s.ID]; exists {
		return errors.WrapInvalid(errors.ErrDuplicateID, "ShipmentRepository", "Create", "shipment insert")
	}
	r.shipments[s.ID] = s
	return nil
}

// FindByID returns the shipment with the given id or ErrShipmentNotFound.
func (r *MemoryShipmentRepository) FindByID(_ context.Context, id string) (crate.Shipment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.shipments[id]
	if !exists {
		return crate.Shipment{}, errors.WrapInvalid(errors.ErrShipmentNotFound,
			"ShipmentRepository", "FindByID", "shipment lookup")
	}
	return s, nil
}

// Update replaces an existing shipment.
func (r *MemoryShipmentRepository) Update(_ context.Context, s crate.Shipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.shipments[s.ID]; !exists {
		return errors.WrapInvalid(errors.ErrShipmentNotFound, "ShipmentRepository", "Update", "shipment update")
	}
	r.shipments[s.ID] = s
	return nil
}

// FindByCrate returns all shipments recorded for a crate.
func (r *MemoryShipmentRepository) FindByCrate(_ context.Context, crateID string) ([]crate.Shipment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []crate.Shipment
	for _, s := range r.shipments {
		if s.CrateID == crateID {
			result = append(result, s)
		}
	}
	return result, nil
}

// StaticAccountResolver resolves emails against a fixed account set. It
// stands in for the excluded user-management collaborator.
type StaticAccountResolver struct {
	mu       sync.RWMutex
	accounts map[string]crate.Account
}

// NewStaticAccountResolver creates a resolver seeded with the given accounts.
func NewStaticAccountResolver(accounts ...crate.Account) *StaticAccountResolver {
	r := &StaticAccountResolver{accounts: make(map[string]crate.Account, len(accounts))}
	for _, a := range accounts {
		r.accounts[a.Email] = a
	}
	return r
}

// Add registers an account after construction.
func (r *StaticAccountResolver) Add(account crate.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.Email] = account
}

// ResolveEmail returns the account for an email or ErrAccountNotFound.
func (r *StaticAccountResolver) ResolveEmail(_ context.Context, email string) (crate.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, exists := r.accounts[email]
	if !exists {
		return crate.Account{}, errors.WrapInvalid(errors.ErrAccountNotFound,
			"AccountResolver", "ResolveEmail", "account lookup")
	}
	return account, nil
}
