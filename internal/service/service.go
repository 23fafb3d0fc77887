// Package service contains the business rules of the server.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Services take repository interfaces, never *sqlite.DB, so tests pass
// in-memory fakes and the handlers never see SQL.
//
// ERRORS:
// Services return apperror values (NotFound, ValidationFailed, Conflict,
// Forbidden, Unauthorized) for anything the caller can fix, and wrap
// everything else with "service/<area>: ...: %w". The handler layer maps
// the apperror sentinels to status codes in one place.
package service

import "time"

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time
