package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity (policy, tenant, API key) does not exist in store
// - ErrConflict: write lost to a duplicate or concurrent write
// - ErrExpired: credential has passed its expiry
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: backing service (Redis, Postgres) temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
