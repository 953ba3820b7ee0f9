// Package repository provides the storage collaborators behind the crate
// aggregate: create/find/update-by-id repositories, an account resolver for
// recipient emails, and the Service that mediates all aggregate mutation.
package repository

import (
	"context"

	"github.com/seanttaylor/parcely-sub000/crate"
)

// CrateRepository stores crates by id. Implementations must return value
// copies; callers never receive a handle into stored state.
type CrateRepository interface {
	Create(ctx context.Context, c crate.Crate) error
	FindByID(ctx context.Context, id string) (crate.Crate, error)
	Update(ctx context.Context, c crate.Crate) error
	FindAll(ctx context.Context) ([]crate.Crate, error)
}

// ShipmentRepository stores shipments by id.
type ShipmentRepository interface {
	Create(ctx context.Context, s crate.Shipment) error
	FindByID(ctx context.Context, id string) (crate.Shipment, error)
	Update(ctx context.Context, s crate.Shipment) error
	FindByCrate(ctx context.Context, crateID string) ([]crate.Shipment, error)
}

// AccountResolver resolves a recipient email to a known platform account.
// ErrAccountNotFound signals the caller to fall back to an email-only
// association rather than fail the assignment.
type AccountResolver interface {
	ResolveEmail(ctx context.Context, email string) (crate.Account, error)
}
