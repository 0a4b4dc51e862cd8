// Package logger configures structured logging for mtlsctl.
//
// It builds log/slog loggers that the mtls and resource packages accept
// directly:
//
//   - logger.go: handler construction and dynamic level
//   - context.go: logger propagation through context.Context
//   - redact.go: masking of passwords, private keys and URL credentials
//
// Features:
//
//   - JSON and text output formats
//   - Log level filtering, adjustable at runtime
//   - Automatic sensitive data masking
package logger
