package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/mtlsclient-go/internal/infra/confloader"
	"github.com/yndnr/mtlsclient-go/pkg/mtls"
)

// ErrPasswordEnvUnset is returned when password_env names an unset variable.
var ErrPasswordEnvUnset = errors.New("config: password environment variable not set")

// DefaultConfigPath returns the default profile path.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".mtls", "profile.yaml")
}

// Load loads and validates the profile.
//
// An empty path reads DefaultConfigPath if it exists. Values are layered as
// defaults, file, MTLS_* environment variables, then flags; flags is keyed
// by dotted path (e.g. "credentials.ca") and holds only flags the user set.
func Load(path string, flags map[string]any) (*Profile, error) {
	if path == "" {
		return load(confloader.WithOptionalConfigFile(DefaultConfigPath()), flags)
	}
	return load(confloader.WithConfigFile(path), flags)
}

// FromFlags builds a validated profile from defaults, environment and flags
// only, ignoring any profile file.
func FromFlags(flags map[string]any) (*Profile, error) {
	return load(nil, flags)
}

func load(file confloader.Option, flags map[string]any) (*Profile, error) {
	opts := []confloader.Option{
		confloader.WithDefaults(defaults()),
		confloader.WithFlags(flags),
	}
	if file != nil {
		opts = append(opts, file)
	}

	var p Profile
	if err := confloader.NewLoader(opts...).Load(&p); err != nil {
		return nil, err
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Save writes the profile as YAML with owner-only permissions.
func Save(p *Profile, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// MTLSConfig converts the credentials into a build configuration,
// resolving the keystore password from its source.
func (c Credentials) MTLSConfig() (mtls.Config, error) {
	cfg := mtls.Config{
		CA:         c.CA,
		ClientKey:  c.ClientKey,
		ClientCert: c.ClientCert,
		KeyStore:   c.KeyStore,
	}
	if c.KeyStore == "" {
		return cfg, nil
	}

	switch {
	case c.PasswordFile != "":
		data, err := os.ReadFile(c.PasswordFile)
		if err != nil {
			return mtls.Config{}, fmt.Errorf("config: read password file: %w", err)
		}
		cfg.Password = []byte(strings.TrimRight(string(data), "\r\n"))
	case c.PasswordEnv != "":
		v, ok := os.LookupEnv(c.PasswordEnv)
		if !ok {
			return mtls.Config{}, fmt.Errorf("%w: %s", ErrPasswordEnvUnset, c.PasswordEnv)
		}
		cfg.Password = []byte(v)
	default:
		cfg.Password = []byte(c.Password)
	}
	return cfg, nil
}
