// Package config provides the mtlsctl profile.
//
// This package defines CLI-specific configuration:
//
//   - spec.go: Profile struct (~/.mtls/profile.yaml)
//   - loader.go: layered loading through confloader, and saving
//   - validate.go: validation rules for the credential shapes
//
// Configuration includes:
//
//   - Credential locators (CA, client key and certificate, or keystore)
//   - Keystore password source
//   - HTTP client settings
//   - Output format and logging preferences
//   - Watch mode settings
package config
