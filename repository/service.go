package repository

import (
	"context"
	"log/slog"
	"sync"

	"github.com/seanttaylor/parcely-sub000/crate"
	"github.com/seanttaylor/parcely-sub000/errors"
	"github.com/seanttaylor/parcely-sub000/pkg/timestamp"
)

// keyedMutex serializes work per string key. Two telemetry samples for the
// same crate must be applied in the order they were dequeued; the per-crate
// lock prevents interleaved read-modify-write cycles when other mutation
// paths (SetRecipient, CompleteShipment) run concurrently with the
// processor. Entries are reference-counted and evicted once the last
// holder releases, so the map does not grow with crate churn.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyLock)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	lock, exists := k.locks[key]
	if !exists {
		lock = &keyLock{}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()

		k.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Service is the aggregate front: the only component permitted to
// read-modify-write crates and shipments. Every operation loads current
// state, applies a pure aggregate transition, and commits the resulting
// values back to the repositories under the crate's lock.
type Service struct {
	crates    CrateRepository
	shipments ShipmentRepository
	accounts  AccountResolver
	locks     *keyedMutex
	clock     timestamp.Clock
	logger    *slog.Logger
}

// ServiceConfig carries the collaborators a Service needs.
type ServiceConfig struct {
	Crates    CrateRepository
	Shipments ShipmentRepository
	Accounts  AccountResolver
	Clock     timestamp.Clock // defaults to timestamp.Now
	Logger    *slog.Logger    // defaults to slog.Default
}

// NewService creates the aggregate service.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = timestamp.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		crates:    cfg.Crates,
		shipments: cfg.Shipments,
		accounts:  cfg.Accounts,
		locks:     newKeyedMutex(),
		clock:     clock,
		logger:    logger.With("component", "crate-service"),
	}
}

// CreateCrate creates and stores a new crate in AwaitingDeployment.
func (s *Service) CreateCrate(ctx context.Context, size, merchantID string) (crate.Crate, error) {
	c := crate.NewCrate(size, merchantID)
	if err := s.crates.Create(ctx, c); err != nil {
		return crate.Crate{}, err
	}
	s.logger.Info("crate created", "crateId", c.ID, "size", size)
	return c, nil
}

// SetRecipient resolves the email to a known account, falling back to an
// email-only association when the resolver reports ErrAccountNotFound, and
// assigns it to the crate. Fails with ErrRecipientAlreadyAssigned when a
// recipient was assigned before; the stored crate is not modified.
func (s *Service) SetRecipient(ctx context.Context, crateID, email string) (crate.Crate, error) {
	unlock := s.locks.Lock(crateID)
	defer unlock()

	c, err := s.crates.FindByID(ctx, crateID)
	if err != nil {
		return crate.Crate{}, err
	}

	account, err := s.accounts.ResolveEmail(ctx, email)
	if err != nil {
		if !errors.IsNotFound(err) {
			return crate.Crate{}, err
		}
		// unresolved email still associates, without an account id
		account = crate.Account{Email: email}
	}

	updated, err := c.AssignRecipient(account)
	if err != nil {
		return crate.Crate{}, err
	}
	if err := s.crates.Update(ctx, updated); err != nil {
		return crate.Crate{}, err
	}

	s.logger.Info("recipient assigned", "crateId", crateID, "resolved", account.ID != "")
	return updated, nil
}

// StartShipment transitions the crate to InTransit and records the new
// shipment. A failed guard (missing merchant or recipient) creates nothing.
func (s *Service) StartShipment(ctx context.Context, crateID, originAddress, destinationAddress, trackingNumber string) (crate.Crate, crate.Shipment, error) {
	unlock := s.locks.Lock(crateID)
	defer unlock()

	c, err := s.crates.FindByID(ctx, crateID)
	if err != nil {
		return crate.Crate{}, crate.Shipment{}, err
	}

	updated, shipment, err := c.StartShipment(originAddress, destinationAddress, trackingNumber)
	if err != nil {
		return crate.Crate{}, crate.Shipment{}, err
	}

	if err := s.shipments.Create(ctx, shipment); err != nil {
		return crate.Crate{}, crate.Shipment{}, err
	}
	if err := s.crates.Update(ctx, updated); err != nil {
		return crate.Crate{}, crate.Shipment{}, err
	}

	s.logger.Info("shipment started",
		"crateId", crateID, "shipmentId", shipment.ID, "trackingNumber", trackingNumber)
	return updated, shipment, nil
}

// ApplyTelemetry applies one sample to its crate and active shipment.
// Returns the accepted event after both repository writes have committed,
// or nil when the sample was a no-op (no active shipment, or the shipment
// is Complete). An unknown crate id returns ErrCrateNotFound so the caller
// can drop the sample.
func (s *Service) ApplyTelemetry(ctx context.Context, sample crate.Sample) (*crate.AcceptedTelemetryEvent, error) {
	unlock := s.locks.Lock(sample.CrateID)
	defer unlock()

	c, err := s.crates.FindByID(ctx, sample.CrateID)
	if err != nil {
		return nil, err
	}

	if c.ActiveShipmentID == "" {
		// crate not in transit; nothing to record
		return nil, nil
	}

	shipment, err := s.shipments.FindByID(ctx, c.ActiveShipmentID)
	if err != nil {
		return nil, err
	}

	updatedCrate, updatedShipment, event := crate.PushTelemetry(c, shipment, sample, s.clock())
	if event == nil {
		return nil, nil
	}

	// event escapes only after both writes commit
	if err := s.shipments.Update(ctx, updatedShipment); err != nil {
		return nil, err
	}
	if err := s.crates.Update(ctx, updatedCrate); err != nil {
		return nil, err
	}

	return event, nil
}

// CompleteShipment finishes the crate's active shipment and delivers the
// crate. Fails with ErrShipmentNotFound when the crate has no active
// shipment.
func (s *Service) CompleteShipment(ctx context.Context, crateID string) (crate.Crate, crate.Shipment, error) {
	unlock := s.locks.Lock(crateID)
	defer unlock()

	c, err := s.crates.FindByID(ctx, crateID)
	if err != nil {
		return crate.Crate{}, crate.Shipment{}, err
	}
	if c.ActiveShipmentID == "" {
		return crate.Crate{}, crate.Shipment{}, errors.WrapInvalid(errors.ErrShipmentNotFound,
			"Service", "CompleteShipment", "active shipment lookup")
	}

	shipment, err := s.shipments.FindByID(ctx, c.ActiveShipmentID)
	if err != nil {
		return crate.Crate{}, crate.Shipment{}, err
	}

	updatedCrate, updatedShipment := crate.CompleteShipment(c, shipment, s.clock())

	if err := s.shipments.Update(ctx, updatedShipment); err != nil {
		return crate.Crate{}, crate.Shipment{}, err
	}
	if err := s.crates.Update(ctx, updatedCrate); err != nil {
		return crate.Crate{}, crate.Shipment{}, err
	}

	s.logger.Info("shipment completed", "crateId", crateID, "shipmentId", shipment.ID)
	return updatedCrate, updatedShipment, nil
}

// MarkReturned transitions a Delivered crate to PendingReturn; any other
// status is a no-op returning the crate unchanged.
func (s *Service) MarkReturned(ctx context.Context, crateID string) (crate.Crate, error) {
	unlock := s.locks.Lock(crateID)
	defer unlock()

	c, err := s.crates.FindByID(ctx, crateID)
	if err != nil {
		return crate.Crate{}, err
	}

	updated := c.MarkReturned()
	if updated.Status == c.Status {
		return c, nil
	}

	if err := s.crates.Update(ctx, updated); err != nil {
		return crate.Crate{}, err
	}
	s.logger.Info("crate marked returned", "crateId", crateID)
	return updated, nil
}

// GetCrate returns the stored crate.
func (s *Service) GetCrate(ctx context.Context, crateID string) (crate.Crate, error) {
	return s.crates.FindByID(ctx, crateID)
}

// GetShipment returns the stored shipment.
func (s *Service) GetShipment(ctx context.Context, shipmentID string) (crate.Shipment, error) {
	return s.shipments.FindByID(ctx, shipmentID)
}
