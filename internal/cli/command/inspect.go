package command

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/mtlsclient-go/internal/cli/output"
	"github.com/yndnr/mtlsclient-go/pkg/mtls"
)

// InspectCommand returns the inspect command.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:   "inspect",
		Usage:  "Build the credential store and list its entries",
		Action: inspect,
	}
}

// EntryView describes one credential store entry.
type EntryView struct {
	Alias       string    `json:"alias" yaml:"alias" table:"ALIAS"`
	Type        string    `json:"type" yaml:"type" table:"TYPE"`
	Subject     string    `json:"subject" yaml:"subject" table:"SUBJECT"`
	Issuer      string    `json:"issuer" yaml:"issuer" table:"ISSUER"`
	NotAfter    time.Time `json:"not_after" yaml:"not_after" table:"NOT AFTER"`
	ChainLength int       `json:"chain_length" yaml:"chain_length" table:"CHAIN"`
	Serial      string    `json:"serial" yaml:"serial" table:"-"`
	NotBefore   time.Time `json:"not_before" yaml:"not_before" table:"-"`
	DNSNames    []string  `json:"dns_names,omitempty" yaml:"dns_names,omitempty" table:"-"`
	SHA256      string    `json:"sha256" yaml:"sha256" table:"-"`
}

// Inspection is the json and yaml view of inspect.
type Inspection struct {
	BuildID string      `json:"build_id" yaml:"build_id"`
	Mode    mtls.Mode   `json:"mode" yaml:"mode"`
	Entries []EntryView `json:"entries" yaml:"entries"`
}

func inspect(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}

	client, err := e.build(c)
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	in := inspectClient(client)
	if e.format == output.FormatTable {
		return e.print(in.Entries)
	}
	return e.print(in)
}

// inspectClient lists the store of client in alias order.
func inspectClient(client *mtls.Client) Inspection {
	in := Inspection{
		BuildID: client.BuildID,
		Mode:    client.Mode,
		Entries: []EntryView{},
	}
	for _, alias := range client.Store.Aliases() {
		entry, ok := client.Store.Entry(alias)
		if !ok {
			continue
		}
		in.Entries = append(in.Entries, entryView(alias, entry))
	}
	return in
}

func entryView(alias string, entry mtls.Entry) EntryView {
	v := EntryView{
		Alias:       alias,
		Type:        "trusted",
		ChainLength: len(entry.Chain),
	}
	if entry.Type == mtls.KeyEntry {
		v.Type = "key"
	}
	if cert := entry.Certificate(); cert != nil {
		describeCertificate(&v, cert)
	}
	return v
}

func describeCertificate(v *EntryView, cert *x509.Certificate) {
	sum := sha256.Sum256(cert.Raw)
	v.Subject = cert.Subject.String()
	v.Issuer = cert.Issuer.String()
	v.Serial = cert.SerialNumber.String()
	v.NotBefore = cert.NotBefore
	v.NotAfter = cert.NotAfter
	v.DNSNames = cert.DNSNames
	v.SHA256 = hex.EncodeToString(sum[:])
}
