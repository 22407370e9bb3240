// Package core defines the domain model for the Argus alert-triage engine.
//
// # Architecture Overview
//
// The core package provides:
//   - Domain types (Alert, Rule, Trace, ConclusionRecord, Incident)
//   - The symbolic fact vocabulary and its human-readable descriptions
//   - Construction-time validation for rules (CF bounds, non-empty conditions)
//
// # Design Principles
//
// Rules, traces and conclusion records are immutable value types once
// constructed. All validation happens at construction time: the inference
// engine in package infer assumes every rule it receives is already valid
// and raises no errors of its own.
//
// Traces serialize losslessly to JSON (nested maps, lists and primitives
// only) so stored incidents can be re-explained without re-running
// inference. See trace.go for the serialized shape.
package core
