package resource

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/hashicorp/vault/api"
)

// DefaultVaultField is the secret field read when the locator has no field parameter.
const DefaultVaultField = "value"

// VaultReader reads a secret at a logical path. *api.Logical satisfies it.
type VaultReader interface {
	ReadWithContext(ctx context.Context, path string) (*api.Secret, error)
}

// VaultOpener reads PEM or PKCS#12 material stored as a field of a Vault
// secret. Both KV v1 and KV v2 response shapes are accepted.
//
// Locator format:
//
//	vault://secret/data/mtls/client?field=cert
//	vault://secret/data/mtls/client?field=keystore&encoding=base64
type VaultOpener struct {
	log *slog.Logger

	once   sync.Once
	reader VaultReader
	err    error
}

// NewVaultOpener creates a VaultOpener. A nil reader is replaced on first use
// by a client configured from the VAULT_* environment variables.
func NewVaultOpener(reader VaultReader, logger *slog.Logger) *VaultOpener {
	if logger == nil {
		logger = slog.Default()
	}
	o := &VaultOpener{log: logger, reader: reader}
	if reader != nil {
		o.once.Do(func() {})
	}
	return o
}

func (o *VaultOpener) logical() (VaultReader, error) {
	o.once.Do(func() {
		client, err := api.NewClient(api.DefaultConfig())
		if err != nil {
			o.err = fmt.Errorf("resource: create vault client: %w", err)
			return
		}
		o.reader = client.Logical()
	})
	return o.reader, o.err
}

// Open implements Opener.
func (o *VaultOpener) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}
	path := strings.Trim(u.Host+u.Path, "/")
	if path == "" {
		return nil, fmt.Errorf("%w: empty vault path", ErrInvalidLocator)
	}
	field := u.Query().Get("field")
	if field == "" {
		field = DefaultVaultField
	}

	reader, err := o.logical()
	if err != nil {
		return nil, err
	}

	secret, err := reader.ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("resource: read vault %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: vault %s", ErrNotFound, path)
	}

	data := secret.Data
	// KV v2 nests the payload under "data".
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}

	raw, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("%w: vault %s has no field %q", ErrNotFound, path, field)
	}
	value, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("resource: vault %s field %q is %T, want string", path, field, raw)
	}

	content := []byte(value)
	if u.Query().Get("encoding") == "base64" {
		content, err = base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("resource: vault %s field %q: %w", path, field, err)
		}
	}

	o.log.Debug("read secret from vault",
		slog.String("path", path),
		slog.String("field", field))
	return io.NopCloser(bytes.NewReader(content)), nil
}
