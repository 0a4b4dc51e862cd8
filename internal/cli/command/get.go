package command

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/mtlsclient-go/internal/cli/output"
)

// maxBody bounds the body kept for json and yaml output.
const maxBody = 1 << 20

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Perform an HTTPS GET with the configured client credentials",
		ArgsUsage: "URL",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "header",
				Aliases: []string{"H"},
				Usage:   "Request header as 'Name: value' (repeatable)",
			},
			&cli.BoolFlag{
				Name:    "fail",
				Aliases: []string{"f"},
				Usage:   "Exit with an error on HTTP status 400 and above",
			},
		},
		Action: get,
	}
}

// Response is the json and yaml view of a get.
type Response struct {
	URL        string            `json:"url" yaml:"url"`
	Status     int               `json:"status" yaml:"status"`
	TLSVersion string            `json:"tls_version,omitempty" yaml:"tls_version,omitempty"`
	Server     string            `json:"server_subject,omitempty" yaml:"server_subject,omitempty"`
	Headers    map[string]string `json:"headers" yaml:"headers"`
	Body       string            `json:"body" yaml:"body"`
}

func get(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("get requires exactly one URL", 2)
	}
	target := c.Args().First()

	e, err := setup(c)
	if err != nil {
		return err
	}

	client, err := e.build(c)
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(c.Context, http.MethodGet, target, nil)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid URL: %v", err), 2)
	}
	for _, h := range c.StringSlice("header") {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return cli.Exit(fmt.Sprintf("invalid header %q", h), 2)
		}
		req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	e.logger.Debug("response received",
		"status", resp.StatusCode,
		"build_id", client.BuildID)

	if e.format == output.FormatTable {
		if _, err := io.Copy(e.out, resp.Body); err != nil {
			return fmt.Errorf("read body: %w", err)
		}
	} else {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if err := e.print(newResponse(target, resp, body)); err != nil {
			return err
		}
	}

	if c.Bool("fail") && resp.StatusCode >= http.StatusBadRequest {
		return cli.Exit(fmt.Sprintf("server returned %s", resp.Status), 22)
	}
	return nil
}

func newResponse(target string, resp *http.Response, body []byte) Response {
	r := Response{
		URL:     target,
		Status:  resp.StatusCode,
		Headers: make(map[string]string, len(resp.Header)),
		Body:    string(body),
	}
	for name := range resp.Header {
		r.Headers[name] = resp.Header.Get(name)
	}
	if cs := resp.TLS; cs != nil {
		r.TLSVersion = tls.VersionName(cs.Version)
		if len(cs.PeerCertificates) > 0 {
			r.Server = cs.PeerCertificates[0].Subject.String()
		}
	}
	return r
}
