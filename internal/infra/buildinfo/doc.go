// Package buildinfo provides build information for mtlsctl.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/mtlsclient-go/internal/infra/buildinfo.Version=v1.0.0"
//
// Fields left unset are filled from the module's embedded build
// information (VCS revision, VCS time, Go version) when available.
package buildinfo
