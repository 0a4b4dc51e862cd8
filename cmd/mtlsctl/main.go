// Package main provides the entry point for mtlsctl.
//
// mtlsctl builds mutual TLS HTTP clients from CA bundles, PKCS#8 keys,
// certificate chains or PKCS#12 keystores, and uses them to make requests,
// inspect credential stores and hot reload rotated credentials.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yndnr/mtlsclient-go/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
