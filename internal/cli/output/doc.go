// Package output provides output formatting for mtlsctl.
//
// This package handles all CLI output formatting:
//
//   - formatter.go: Formatter interface and factory
//   - table.go: table rendering over text/tabwriter
//   - json.go: JSON output formatting
//   - yaml.go: YAML output formatting
//
// Table output is for humans; json and yaml are stable for scripting.
package output
