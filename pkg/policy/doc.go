// Package policy integrates the Open Policy Agent (OPA) engine with the request
// pipeline's authorization stage.
//
// An Engine compiles Rego modules once and evaluates a boolean decision rule for
// each request. A Store holds the active engine behind an atomic pointer so a
// Watcher can swap in a recompiled policy when the policy file changes, without
// locking the request path.
package policy
