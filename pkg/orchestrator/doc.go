// Package orchestrator wires the loader, format adapters and Mount into one
// entry point: a source goes in, a form definition or a mounted form comes
// out.
package orchestrator
