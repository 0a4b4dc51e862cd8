package command

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/mtlsclient-go/internal/cli/config"
	"github.com/yndnr/mtlsclient-go/internal/cli/output"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Profile management",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective profile (file, environment and flags merged)",
				Action: configShow,
			},
			{
				Name:   "validate",
				Usage:  "Validate the effective profile",
				Action: configValidate,
			},
			{
				Name:  "init",
				Usage: "Write a profile from the given flags",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing profile",
					},
				},
				Action: configInit,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}

	p := *e.profile
	if p.Credentials.Password != "" {
		p.Credentials.Password = "********"
	}
	// Tables cannot render nested sections.
	format := e.format
	if format == output.FormatTable {
		format = output.FormatYAML
	}
	return output.NewFormatter(format).Format(e.out, &p)
}

func configValidate(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	if _, err := e.mtlsConfig(); err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.out, "profile is valid")
	return err
}

func configInit(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return cli.Exit(fmt.Sprintf("%s already exists (use --force to overwrite)", path), 1)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	p, err := config.FromFlags(setFlags(c))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if err := config.Save(p, path); err != nil {
		return err
	}

	_, err = fmt.Fprintf(c.App.Writer, "profile written to %s\n", path)
	return err
}
