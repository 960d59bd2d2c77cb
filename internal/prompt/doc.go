// Package prompt compiles an editor workflow into the request graph the
// backend executes.
//
// Compile is a pure projection: it never mutates its inputs and reports
// problems as values. Errors block submission and are meant to be shown to the
// user all at once. Warnings allow submission after confirmation.
package prompt
