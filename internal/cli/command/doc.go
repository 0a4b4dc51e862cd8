// Package command provides CLI command definitions for mtlsctl.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: Root command, global flags, profile and client setup
//   - get.go: HTTP requests with the built client
//   - inspect.go: Credential store listing
//   - watch.go: Credential hot reload with an admin HTTP server
//   - config.go: Profile subcommand group
//   - version.go: Build information
//
// Commands follow a consistent pattern of loading the profile,
// building the client, and formatting output.
package command
