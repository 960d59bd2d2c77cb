// Package cli is responsible for the command tree, validating user input, and
// handling process-level concerns like exit codes. It merges the HCL config
// file, TOUCAN_* environment variables and flags into the application's
// configuration.
package cli
