// Package dag is a small directed graph used to reason about workflow
// topology. It answers reachability questions for the connection validator,
// detects cycles and produces a deterministic topological order for the
// prompt compiler.
//
// Node identity is a plain string. Insertion order is remembered so that every
// traversal result is reproducible for the same input.
package dag
