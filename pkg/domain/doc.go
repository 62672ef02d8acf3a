// Package domain defines the core business types and failure model for the cogira backend.
//
// This package contains pure domain logic with ZERO external dependencies outside the
// Go standard library. All types in this package are:
//
// - Independent of infrastructure (no database, HTTP transport, telemetry)
// - Shared by the request pipeline, the domain handlers and the storage layer
// - Testable in isolation without mocks
//
// Other packages (api, pipeline, users, storage) depend on these types. The dependency
// direction is always:
//
//	Infrastructure → Domain (CORRECT)
//	Domain → Infrastructure (FORBIDDEN)
package domain
