// Package confloader provides configuration loading mechanism.
//
// This package implements a layered configuration loader on top of koanf:
//
//   - loader.go: Loader with file, environment, default and flag sources
//   - provider.go: koanf provider over dotted-key maps
//
// Priority (highest to lowest):
//
//  1. Command-line flags
//  2. Environment variables (MTLS_ prefix)
//  3. Configuration file (YAML)
//  4. Default values
package confloader
