// Package errors provides standardized error handling patterns for Parcely components.
//
// # Overview
//
// The errors package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing).
//
// On top of the classification system the package defines the crate/shipment
// domain errors that form the aggregate's public contract:
//
//   - ErrRecipientAlreadyAssigned: a recipient may be assigned exactly once
//   - ErrMissingMerchantID: a shipment cannot start without a merchant
//   - ErrMissingRecipient: a shipment cannot start without a recipient
//
// Domain errors are always returned to the caller and never mutate state.
// Resolution errors (ErrCrateNotFound, ErrShipmentNotFound,
// ErrAccountNotFound) signal that a telemetry sample or email lookup could
// not be matched; the telemetry processor drops such samples instead of
// retrying them.
//
// # Error Classification
//
// Errors are classified based on their type or content:
//
//   - Transient: network timeouts, connection issues, storage unavailability (retry recommended)
//   - Invalid: malformed input, domain rule violations, bad configuration (do not retry)
//   - Fatal: unrecoverable states (stop processing)
//
// The classification system integrates with Go's standard error handling,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Return standard error variables for known conditions:
//
//	if crate.RecipientEmail != "" {
//	    return errors.ErrRecipientAlreadyAssigned
//	}
//
// Wrap infrastructure errors with component context:
//
//	if err := repo.Update(ctx, crate); err != nil {
//	    return errors.Wrap(err, "TelemetryProcessor", "applySample", "persist crate")
//	}
//
// Check classification for handling decisions:
//
//	if errors.IsTransient(err) {
//	    // retry with backoff
//	}
//	if errors.IsDomain(err) {
//	    // surface to the caller, nothing to log
//	}
package errors
