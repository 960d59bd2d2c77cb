// Package config defines the format-agnostic configuration model for the
// application, along with the Loader interface for reading it from a file.
//
// The concrete HCL implementation lives in internal/hcl. Values from the file
// are later overlaid by flags and TOUCAN_* environment variables in
// internal/cli.
package config
