package command

import (
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/mtlsclient-go/internal/cli/config"
	"github.com/yndnr/mtlsclient-go/internal/cli/output"
	"github.com/yndnr/mtlsclient-go/internal/infra/buildinfo"
	"github.com/yndnr/mtlsclient-go/internal/telemetry/logger"
	"github.com/yndnr/mtlsclient-go/pkg/mtls"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:     "mtlsctl",
		Usage:    "Build mutual TLS HTTP clients from CA, key and certificate resources",
		Version:  buildinfo.String(),
		Flags:    globalFlags(),
		Commands: []*cli.Command{
			GetCommand(),
			InspectCommand(),
			WatchCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
	}
}

// flagKeys maps global flags to profile keys. Only flags the user set are
// passed to the loader, so unset flags never mask file or env values.
var flagKeys = map[string]string{
	"ca":            "credentials.ca",
	"client-key":    "credentials.client_key",
	"client-cert":   "credentials.client_cert",
	"keystore":      "credentials.keystore",
	"password-file": "credentials.password_file",
	"password-env":  "credentials.password_env",
	"timeout":       "http.timeout",
	"server-name":   "http.server_name",
	"min-tls":       "http.min_version",
	"output":        "output",
	"log-level":     "log.level",
	"log-format":    "log.format",

	// watch command flags
	"listen":       "watch.listen",
	"debounce":     "watch.debounce",
	"min-interval": "watch.min_interval",
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Profile file (default ~/.mtls/profile.yaml)",
		},
		&cli.StringFlag{
			Name:  "ca",
			Usage: "CA bundle locator (path, file://, http(s)://, s3://, vault://)",
		},
		&cli.StringFlag{
			Name:  "client-key",
			Usage: "PKCS#8 PEM client private key locator",
		},
		&cli.StringFlag{
			Name:  "client-cert",
			Usage: "PEM client certificate chain locator",
		},
		&cli.StringFlag{
			Name:  "keystore",
			Usage: "PKCS#12 keystore locator (replaces --ca, --client-key and --client-cert)",
		},
		&cli.StringFlag{
			Name:  "password-file",
			Usage: "File holding the keystore password",
		},
		&cli.StringFlag{
			Name:  "password-env",
			Usage: "Environment variable holding the keystore password",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "HTTP client timeout",
		},
		&cli.StringFlag{
			Name:  "server-name",
			Usage: "Override the server name used for verification and SNI",
		},
		&cli.StringFlag{
			Name:  "min-tls",
			Usage: "Minimum TLS version: 1.2, 1.3",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format: text, json",
		},
	}
}

// setFlags returns the values of global flags the user set, keyed by
// profile path.
func setFlags(c *cli.Context) map[string]any {
	flags := make(map[string]any)
	for name, key := range flagKeys {
		if c.IsSet(name) {
			flags[key] = c.Value(name)
		}
	}
	return flags
}

// env is the per-invocation state shared by commands.
type env struct {
	profile *config.Profile
	logger  *slog.Logger
	format  output.Format
	out     io.Writer
}

// setup loads the profile and creates the logger.
func setup(c *cli.Context) (*env, error) {
	profile, err := config.Load(c.String("config"), setFlags(c))
	if err != nil {
		return nil, cli.Exit(err.Error(), 2)
	}

	format, err := output.ParseFormat(profile.Output)
	if err != nil {
		return nil, cli.Exit(err.Error(), 2)
	}

	log, err := logger.New(logger.Config{
		Level:  profile.Log.Level,
		Format: profile.Log.Format,
		Output: c.App.ErrWriter,
	})
	if err != nil {
		return nil, cli.Exit(err.Error(), 2)
	}

	return &env{
		profile: profile,
		logger:  log,
		format:  format,
		out:     c.App.Writer,
	}, nil
}

// print writes data in the selected output format.
func (e *env) print(data any) error {
	return output.NewFormatter(e.format).Format(e.out, data)
}

// mtlsConfig resolves the profile's credentials.
func (e *env) mtlsConfig() (mtls.Config, error) {
	cfg, err := e.profile.Credentials.MTLSConfig()
	if err != nil {
		return mtls.Config{}, cli.Exit(err.Error(), 2)
	}
	return cfg, nil
}

// buildOptions returns the build options derived from the profile.
func (e *env) buildOptions(extra ...mtls.Option) []mtls.Option {
	var minVersion uint16
	switch e.profile.HTTP.MinVersion {
	case "1.3":
		minVersion = tls.VersionTLS13
	case "1.2":
		minVersion = tls.VersionTLS12
	}

	opts := []mtls.Option{
		mtls.WithLogger(e.logger),
		mtls.WithTLSContextFactory(mtls.DefaultTLSContextFactory{
			MinVersion: minVersion,
			ServerName: e.profile.HTTP.ServerName,
		}),
		mtls.WithTransportFactory(mtls.DefaultTransportFactory{
			Timeout: e.profile.HTTP.Timeout,
		}),
	}
	return append(opts, extra...)
}

// build resolves the credentials and builds a client.
func (e *env) build(c *cli.Context, extra ...mtls.Option) (*mtls.Client, error) {
	cfg, err := e.mtlsConfig()
	if err != nil {
		return nil, err
	}
	client, err := mtls.Build(c.Context, cfg, e.buildOptions(extra...)...)
	if err != nil {
		return nil, fmt.Errorf("build client: %w", err)
	}
	return client, nil
}
