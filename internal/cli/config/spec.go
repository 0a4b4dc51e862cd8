package config

import (
	"time"

	"github.com/yndnr/mtlsclient-go/pkg/mtls"
)

// Profile is the configuration for mtlsctl.
type Profile struct {
	Credentials Credentials `koanf:"credentials" yaml:"credentials"`
	HTTP        HTTP        `koanf:"http" yaml:"http"`
	Log         Log         `koanf:"log" yaml:"log"`
	Watch       Watch       `koanf:"watch" yaml:"watch"`

	// Output is the default output format (table, json, yaml).
	Output string `koanf:"output" yaml:"output" validate:"oneof=table json yaml"`
}

// Credentials holds resource locators. Locators are file paths or URIs
// (file, http, https, s3, vault).
type Credentials struct {
	CA         string `koanf:"ca" yaml:"ca,omitempty" validate:"required_without=KeyStore,excluded_with=KeyStore,omitempty,locator"`
	ClientKey  string `koanf:"client_key" yaml:"client_key,omitempty" validate:"required_with=ClientCert,excluded_with=KeyStore,omitempty,locator"`
	ClientCert string `koanf:"client_cert" yaml:"client_cert,omitempty" validate:"required_with=ClientKey,excluded_with=KeyStore,omitempty,locator"`
	KeyStore   string `koanf:"keystore" yaml:"keystore,omitempty" validate:"omitempty,locator"`

	// Exactly one password source is used with KeyStore.
	Password     string `koanf:"password" yaml:"password,omitempty" validate:"excluded_with=PasswordFile PasswordEnv"`
	PasswordFile string `koanf:"password_file" yaml:"password_file,omitempty" validate:"excluded_with=PasswordEnv"`
	PasswordEnv  string `koanf:"password_env" yaml:"password_env,omitempty"`
}

// HTTP holds HTTP client settings.
type HTTP struct {
	Timeout    time.Duration `koanf:"timeout" yaml:"timeout" validate:"gte=0"`
	ServerName string        `koanf:"server_name" yaml:"server_name,omitempty" validate:"omitempty,hostname_rfc1123"`
	MinVersion string        `koanf:"min_version" yaml:"min_version,omitempty" validate:"omitempty,oneof=1.2 1.3"`
}

// Log holds logging preferences.
type Log struct {
	Level  string `koanf:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" yaml:"format" validate:"oneof=text json"`
}

// Watch holds settings for mtlsctl watch.
type Watch struct {
	Listen      string        `koanf:"listen" yaml:"listen" validate:"omitempty,hostname_port"`
	Debounce    time.Duration `koanf:"debounce" yaml:"debounce" validate:"gte=0"`
	MinInterval time.Duration `koanf:"min_interval" yaml:"min_interval" validate:"gte=0"`
}

// Default returns the default profile.
func Default() *Profile {
	return &Profile{
		HTTP: HTTP{
			Timeout: mtls.DefaultHTTPTimeout,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Watch: Watch{
			Listen:      "127.0.0.1:9443",
			Debounce:    500 * time.Millisecond,
			MinInterval: time.Second,
		},
		Output: "table",
	}
}

// defaults flattens Default into dotted keys for the loader.
func defaults() map[string]any {
	d := Default()
	return map[string]any{
		"http.timeout":       d.HTTP.Timeout.String(),
		"log.level":          d.Log.Level,
		"log.format":         d.Log.Format,
		"watch.listen":       d.Watch.Listen,
		"watch.debounce":     d.Watch.Debounce.String(),
		"watch.min_interval": d.Watch.MinInterval.String(),
		"output":             d.Output,
	}
}
