// Package api defines the protocol-agnostic request and response records shared by
// the pipeline, the router and domain handlers.
//
// Gateway adapters translate their inbound traffic into an Event. Normalize turns an
// Event into an immutable Request; handlers answer with a Response built through JSON
// or NoContent.
package api
