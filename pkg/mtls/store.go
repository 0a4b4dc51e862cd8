package mtls

import (
	"crypto"
	"crypto/subtle"
	"crypto/x509"
	"fmt"
)

// EntryType distinguishes store entries.
type EntryType int

const (
	// TrustedCertEntry holds a single trusted certificate.
	TrustedCertEntry EntryType = iota + 1
	// KeyEntry holds a private key and its certificate chain.
	KeyEntry
)

// Entry is a single Store entry.
type Entry struct {
	Type  EntryType
	Chain []*x509.Certificate // one certificate for TrustedCertEntry
	key   crypto.Signer
}

// Certificate returns the entry's first certificate (the leaf for key entries).
func (e Entry) Certificate() *x509.Certificate {
	if len(e.Chain) == 0 {
		return nil
	}
	return e.Chain[0]
}

// Store is an in-memory credential store mapping aliases to entries.
// Private keys are only handed out to callers presenting the store password.
//
// A Store is populated once per build and is not safe for concurrent writes.
type Store struct {
	password []byte
	entries  map[string]Entry
	order    []string
}

// NewStore creates an empty store protected by password.
func NewStore(password []byte) *Store {
	return &Store{
		password: append([]byte(nil), password...),
		entries:  make(map[string]Entry),
	}
}

// SetCertificateEntry adds a trusted certificate under alias.
func (s *Store) SetCertificateEntry(alias string, cert *x509.Certificate) error {
	if cert == nil {
		return fmt.Errorf("certificate entry %q: nil certificate", alias)
	}
	return s.put(alias, Entry{Type: TrustedCertEntry, Chain: []*x509.Certificate{cert}})
}

// SetKeyEntry adds a private key and its chain under alias. The chain's leaf
// is expected to match key; the pairing is not verified here.
func (s *Store) SetKeyEntry(alias string, key crypto.Signer, password []byte, chain []*x509.Certificate) error {
	if !s.unlocks(password) {
		return ErrIncorrectPassword
	}
	if key == nil {
		return fmt.Errorf("key entry %q: nil key", alias)
	}
	if len(chain) == 0 {
		return fmt.Errorf("key entry %q: %w", alias, ErrNoCertificates)
	}
	return s.put(alias, Entry{
		Type:  KeyEntry,
		Chain: append([]*x509.Certificate(nil), chain...),
		key:   key,
	})
}

func (s *Store) put(alias string, e Entry) error {
	if _, ok := s.entries[alias]; ok {
		return fmt.Errorf("%w: %q", ErrAliasExists, alias)
	}
	s.entries[alias] = e
	s.order = append(s.order, alias)
	return nil
}

// Key returns the private key and chain stored under alias.
func (s *Store) Key(alias string, password []byte) (crypto.Signer, []*x509.Certificate, error) {
	if !s.unlocks(password) {
		return nil, nil, ErrIncorrectPassword
	}
	e, ok := s.entries[alias]
	if !ok || e.Type != KeyEntry {
		return nil, nil, fmt.Errorf("no key entry %q", alias)
	}
	return e.key, e.Chain, nil
}

// Entry returns the entry stored under alias. The private key of a key entry
// is not reachable through the returned value.
func (s *Store) Entry(alias string) (Entry, bool) {
	e, ok := s.entries[alias]
	e.key = nil
	return e, ok
}

// Aliases returns all aliases in insertion order.
func (s *Store) Aliases() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.order)
}

// TrustedCertificates returns the certificates of all trusted entries in insertion order.
func (s *Store) TrustedCertificates() []*x509.Certificate {
	var certs []*x509.Certificate
	for _, alias := range s.order {
		if e := s.entries[alias]; e.Type == TrustedCertEntry {
			certs = append(certs, e.Chain[0])
		}
	}
	return certs
}

// KeyAliases returns the aliases of all key entries in insertion order.
func (s *Store) KeyAliases() []string {
	var aliases []string
	for _, alias := range s.order {
		if s.entries[alias].Type == KeyEntry {
			aliases = append(aliases, alias)
		}
	}
	return aliases
}

func (s *Store) unlocks(password []byte) bool {
	return subtle.ConstantTimeCompare(s.password, password) == 1
}
