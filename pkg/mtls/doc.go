// Package mtls builds mutual-TLS HTTP clients from PEM or PKCS#12 material.
//
// A build runs this pipeline:
//
//   - store.go: in-memory, password-protected credential store keyed by alias
//   - certs.go: PEM/DER certificate set decoding
//   - key.go: PKCS#8 private key decoding with algorithm detection
//   - keystore.go: PKCS#12 keystore loading
//   - managers.go: trust and key manager derivation
//   - client.go: TLS context and HTTP transport factories
//   - builder.go: Builder, Build and store assembly
//
// Usage:
//
//	client, err := mtls.NewBuilder(mtls.WithLogger(logger)).
//		WithCA("file:///etc/mtls/ca.crt").
//		WithClientKey("file:///etc/mtls/client.pk8").
//		WithClientCert("file:///etc/mtls/client.crt").
//		Build(ctx)
//	if err != nil {
//		return err
//	}
//	resp, err := client.Get(ctx, "https://service.internal/index.html")
//
// Every build failure is an *Error whose Kind tells configuration, I/O,
// decode, derivation and TLS failures apart:
//
//	if errors.Is(err, mtls.ErrDecode) { ... }
package mtls
