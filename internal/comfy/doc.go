// Package comfy is the HTTP client for the ComfyUI backend.
//
// Every operation that reaches the network either returns an error value or a
// result struct with an OK flag; nothing panics across the package boundary.
// Requests carry the caller's context and are traced with OpenTelemetry
// through the globally registered tracer provider.
package comfy
