// Package keyring implements a credential store on top of the operating system's keyring
// (Secret Service, KWallet, pass, the macOS Keychain, or an encrypted file).
//
// Each keyring item holds one DER-encoded object, keyed by its label. The item's description
// records what the object is:
//
//	private key   PKCS#8 PrivateKeyInfo
//	public key    PKIX SubjectPublicKeyInfo
//	certificate   X.509 certificate
//
// Items with any other description are reported as passwords.
//
// Other tools provision keys by writing keyring items under the store's service name with:
//
//	Key          the key's label
//	Label        the key's label
//	Description  one of the values above
//	Data         the DER bytes, not PEM
//
// NewItem builds such an item and Put writes one.
package keyring

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
	"github.com/awnumar/memguard"
	"github.com/codahale/keychain-access/pkg/kca/internal/pkcs8x"
	"github.com/codahale/keychain-access/pkg/kca/store"
)

// Item descriptions.
const (
	PrivateKey  = "private key"
	PublicKey   = "public key"
	Certificate = "certificate"
)

// Config configures the keyring a Store is opened on.
type Config struct {
	ServiceName  string             // The keyring service name.
	Backends     []string           // The allowed backends, in order of preference. Empty means all.
	FileDir      string             // The directory of the encrypted file backend.
	PasswordFunc keyring.PromptFunc // Prompts for the encrypted file backend's password.
}

type item struct {
	label     string
	kind      store.Kind
	class     store.Class
	algorithm string
	der       []byte
	key       interface{}
}

func (it *item) Label() string {
	return it.label
}

// Store is a credential store backed by a keyring.
type Store struct {
	ring keyring.Keyring
}

var _ store.Store = &Store{}

// Open opens the keyring described by the configuration.
func Open(cfg Config) (*Store, error) {
	backends := make([]keyring.BackendType, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		backends = append(backends, keyring.BackendType(b))
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:      cfg.ServiceName,
		AllowedBackends:  backends,
		FileDir:          cfg.FileDir,
		FilePasswordFunc: cfg.PasswordFunc,
		KWalletAppID:     cfg.ServiceName,
		KWalletFolder:    cfg.ServiceName,
		PassPrefix:       cfg.ServiceName,
	})
	if err != nil {
		return nil, &store.Error{Op: "open", Status: store.StatusNoSuchKeychain, Err: err}
	}

	return New(ring), nil
}

// New returns a Store backed by the given keyring.
func New(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// NewItem returns a keyring item holding the given private key, public key, or certificate.
func NewItem(label string, v interface{}) (keyring.Item, error) {
	var (
		description string
		der         []byte
		err         error
	)

	switch v := v.(type) {
	case *x509.Certificate:
		description, der = Certificate, v.Raw
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
		description = PublicKey
		der, err = x509.MarshalPKIXPublicKey(v)
	default:
		description = PrivateKey
		der, err = x509.MarshalPKCS8PrivateKey(v)
	}

	if err != nil {
		return keyring.Item{}, err
	}

	return keyring.Item{
		Key:         label,
		Data:        der,
		Label:       label,
		Description: description,
	}, nil
}

// Put adds the item to the keyring, replacing any item with the same label.
func (s *Store) Put(label string, v interface{}) error {
	ki, err := NewItem(label, v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", label, err)
	}

	return s.ring.Set(ki)
}

// Find returns the item with the given label. Keyring keys are unique, so a label never matches
// more than one item.
func (s *Store) Find(_ context.Context, label string) (store.Item, error) {
	ki, err := s.ring.Get(label)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, &store.Error{Op: "find", Status: store.StatusItemNotFound, Err: store.ErrNotFound}
		}

		return nil, &store.Error{Op: "find", Status: store.StatusNotAvailable, Err: err}
	}

	it := &item{label: label, der: append([]byte(nil), ki.Data...)}

	// Parse the item's contents according to its description.
	switch ki.Description {
	case PrivateKey:
		it.kind, it.class = store.KindKey, store.ClassPrivate
		it.key, err = x509.ParsePKCS8PrivateKey(it.der)
	case PublicKey:
		it.kind, it.class = store.KindKey, store.ClassPublic
		it.key, err = x509.ParsePKIXPublicKey(it.der)
	case Certificate:
		it.kind = store.KindCertificate
		it.key, err = x509.ParseCertificate(it.der)
	default:
		it.kind = store.KindPassword
	}

	if err != nil {
		s.Release(it)

		return nil, &store.Error{Op: "find", Status: store.StatusDecode, Err: err}
	}

	if it.kind == store.KindKey {
		if it.algorithm, err = store.Algorithm(it.key); err != nil {
			s.Release(it)

			return nil, &store.Error{Op: "find", Status: store.StatusUnsupportedFormat, Err: err}
		}
	}

	return it, nil
}

// Attributes returns the attributes of the item.
func (s *Store) Attributes(_ context.Context, i store.Item) (store.Attributes, error) {
	it, err := lookup(i)
	if err != nil {
		return store.Attributes{}, err
	}

	return store.Attributes{
		Label:     it.label,
		Kind:      it.kind,
		Class:     it.class,
		Algorithm: it.algorithm,
	}, nil
}

// Export serializes the item as the macOS keychain would.
func (s *Store) Export(_ context.Context, i store.Item, format store.Format, params store.ExportParams) ([]byte, error) {
	it, err := lookup(i)
	if err != nil {
		return nil, err
	}

	if it.kind != store.KindKey {
		return nil, store.Errorf("export", store.StatusUnimplemented, "can't export a %s", it.kind)
	}

	return store.ExportKey(it.key, it.class, format, params)
}

// Release wipes the item's key material.
func (s *Store) Release(i store.Item) {
	it, err := lookup(i)
	if err != nil {
		return
	}

	if it.class == store.ClassPrivate {
		pkcs8x.Destroy(it.key)
		memguard.WipeBytes(it.der)
	}

	it.key, it.der = nil, nil
}

// StatusText returns the shared description of the status.
func (s *Store) StatusText(status store.Status) (string, bool) {
	return store.StatusText(status)
}

func lookup(i store.Item) (*item, error) {
	it, ok := i.(*item)
	if !ok {
		return nil, store.Errorf("item", store.StatusInvalidKeychainOrItem, "not a keyring item: %T", i)
	}

	return it, nil
}
